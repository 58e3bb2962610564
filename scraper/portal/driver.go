package portal

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/chromedp/chromedp"

	"clubscan/utils"
)

// Handle identifies one resolved element: a CSS selector plus an optional
// text-content filter that together match exactly one node. Handles are what
// the resolver hands back; they carry no live element reference, so a re-render
// between resolution and use is tolerated.
type Handle struct {
	CSS  string
	Text string
	// Exact requires the trimmed text content to equal Text instead of
	// containing it. Calendar days and picker options need this: "1" is a
	// substring of half the calendar.
	Exact bool
}

// Driver is the minimal surface the engine needs from a browser session.
// The chromedp implementation below drives a real tab; tests substitute an
// in-memory fake.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	Count(ctx context.Context, h Handle) (int, error)
	Click(ctx context.Context, h Handle) error
	Fill(ctx context.Context, h Handle, value string) error
	Text(ctx context.Context, h Handle) (string, error)
	OuterHTML(ctx context.Context, h Handle) (string, error)
	PageHTML(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	ScrollToBottom(ctx context.Context) error
}

// ChromeDriver implements Driver over a chromedp browser tab. Every operation
// runs under its own step timeout and passes the shared rate gate first, so
// interaction pacing is uniform across the whole run.
type ChromeDriver struct {
	ctx     context.Context
	timeout time.Duration
	gate    *utils.RateGate
	logger  *utils.Logger
}

// NewBrowserDriver allocates a fresh headless browser and returns a driver
// bound to its first tab. The returned cancel func tears the browser down.
func NewBrowserDriver(parent context.Context, headless bool, timeout time.Duration,
	gate *utils.RateGate, logger *utils.Logger) (*ChromeDriver, context.CancelFunc) {

	allocCtx, cancelAlloc := utils.NewAllocator(parent, headless)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(string, ...interface{}) {}))

	cancel := func() {
		cancelTab()
		cancelAlloc()
	}

	return &ChromeDriver{
		ctx:     tabCtx,
		timeout: timeout,
		gate:    gate,
		logger:  logger,
	}, cancel
}

func (d *ChromeDriver) run(ctx context.Context, actions ...chromedp.Action) error {
	d.gate.Wait()

	// Per-step timeout, reset on every attempt. The tab context carries the
	// browser; the caller context carries run-level cancellation.
	stepCtx, cancel := context.WithTimeout(d.ctx, d.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- chromedp.Run(stepCtx, actions...) }()

	select {
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// matchJS returns a JS expression evaluating to the array of elements the
// handle addresses.
func matchJS(h Handle) string {
	if h.Text == "" {
		return fmt.Sprintf(`Array.from(document.querySelectorAll(%s))`, strconv.Quote(h.CSS))
	}
	if h.Exact {
		return fmt.Sprintf(
			`Array.from(document.querySelectorAll(%s)).filter(function(el){return (el.textContent||'').trim() === %s})`,
			strconv.Quote(h.CSS), strconv.Quote(h.Text))
	}
	return fmt.Sprintf(
		`Array.from(document.querySelectorAll(%s)).filter(function(el){return (el.textContent||'').indexOf(%s) !== -1})`,
		strconv.Quote(h.CSS), strconv.Quote(h.Text))
}

func (d *ChromeDriver) Navigate(ctx context.Context, url string) error {
	return d.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (d *ChromeDriver) Count(ctx context.Context, h Handle) (int, error) {
	var n int
	js := fmt.Sprintf(`(function(){ return %s.length })()`, matchJS(h))
	if err := d.run(ctx, chromedp.Evaluate(js, &n)); err != nil {
		return 0, fmt.Errorf("count %q: %w", h.CSS, err)
	}
	return n, nil
}

func (d *ChromeDriver) Click(ctx context.Context, h Handle) error {
	var ok bool
	js := fmt.Sprintf(`(function(){
		var m = %s;
		if (m.length === 0) return false;
		m[0].scrollIntoView({block:'center'});
		m[0].click();
		return true;
	})()`, matchJS(h))
	if err := d.run(ctx, chromedp.Evaluate(js, &ok)); err != nil {
		return fmt.Errorf("click %q: %w", h.CSS, err)
	}
	if !ok {
		return fmt.Errorf("click %q: no matching element", h.CSS)
	}
	return nil
}

// Fill sets an input's value through the prototype setter and fires the
// framework-visible input/change events; a bare value assignment is invisible
// to the portal's reactive form state.
func (d *ChromeDriver) Fill(ctx context.Context, h Handle, value string) error {
	var ok bool
	js := fmt.Sprintf(`(function(){
		var m = %s;
		if (m.length === 0) return false;
		var el = m[0];
		var desc = Object.getOwnPropertyDescriptor(HTMLInputElement.prototype, 'value');
		if (desc && desc.set) desc.set.call(el, %s); else el.value = %s;
		el.dispatchEvent(new Event('input', {bubbles: true}));
		el.dispatchEvent(new Event('change', {bubbles: true}));
		return true;
	})()`, matchJS(h), strconv.Quote(value), strconv.Quote(value))
	if err := d.run(ctx, chromedp.Evaluate(js, &ok)); err != nil {
		return fmt.Errorf("fill %q: %w", h.CSS, err)
	}
	if !ok {
		return fmt.Errorf("fill %q: no matching element", h.CSS)
	}
	return nil
}

func (d *ChromeDriver) Text(ctx context.Context, h Handle) (string, error) {
	var text string
	js := fmt.Sprintf(`(function(){
		var m = %s;
		return m.length === 0 ? '' : (m[0].textContent || '').trim();
	})()`, matchJS(h))
	if err := d.run(ctx, chromedp.Evaluate(js, &text)); err != nil {
		return "", fmt.Errorf("text %q: %w", h.CSS, err)
	}
	return text, nil
}

func (d *ChromeDriver) OuterHTML(ctx context.Context, h Handle) (string, error) {
	var html string
	js := fmt.Sprintf(`(function(){
		var m = %s;
		return m.length === 0 ? '' : m[0].outerHTML;
	})()`, matchJS(h))
	if err := d.run(ctx, chromedp.Evaluate(js, &html)); err != nil {
		return "", fmt.Errorf("outer html %q: %w", h.CSS, err)
	}
	return html, nil
}

func (d *ChromeDriver) PageHTML(ctx context.Context) (string, error) {
	var html string
	err := d.run(ctx, chromedp.Evaluate(`document.documentElement.outerHTML`, &html))
	if err != nil {
		return "", fmt.Errorf("page html: %w", err)
	}
	return html, nil
}

func (d *ChromeDriver) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := d.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return buf, nil
}

// ScrollToBottom progressively scrolls the page to trigger lazy loading,
// stopping once the document height stabilizes.
func (d *ChromeDriver) ScrollToBottom(ctx context.Context) error {
	lastHeight := -1
	for i := 0; i < 20; i++ {
		var height int
		err := d.run(ctx,
			chromedp.Evaluate(`window.scrollBy(0, 2500)`, nil),
			chromedp.Sleep(400*time.Millisecond),
			chromedp.Evaluate(`document.body.scrollHeight`, &height),
		)
		if err != nil {
			return fmt.Errorf("scroll: %w", err)
		}
		if height == lastHeight {
			return nil
		}
		lastHeight = height
	}
	return nil
}
