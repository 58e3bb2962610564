package portal

import (
	"context"
	"fmt"
	"strings"
)

// fakeDriver simulates the portal's DOM as a table of handle keys. Counts,
// texts and HTML fragments are keyed by CSS selector plus optional text
// filter; hooks let scenario tests mutate the page on clicks.
type fakeDriver struct {
	counts map[string]int
	texts  map[string]string
	htmls  map[string]string

	// flaky maps a key to a number of Count lookups that report 0 before the
	// real count kicks in. Models late-rendering elements.
	flaky map[string]int

	// countErr injects a driver-level failure for a key's Count lookups.
	countErr map[string]error

	navigated []string
	clicked   []string
	countLog  []string

	onClick func(key string)
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		counts:   map[string]int{},
		texts:    map[string]string{},
		htmls:    map[string]string{},
		flaky:    map[string]int{},
		countErr: map[string]error{},
	}
}

func hkey(h Handle) string {
	if h.Text == "" {
		return h.CSS
	}
	sep := "~"
	if h.Exact {
		sep = "="
	}
	return h.CSS + sep + h.Text
}

func (f *fakeDriver) Navigate(_ context.Context, url string) error {
	f.navigated = append(f.navigated, url)
	return nil
}

func (f *fakeDriver) Count(_ context.Context, h Handle) (int, error) {
	k := hkey(h)
	f.countLog = append(f.countLog, k)
	if err, ok := f.countErr[k]; ok {
		return 0, err
	}
	if remaining, ok := f.flaky[k]; ok && remaining > 0 {
		f.flaky[k] = remaining - 1
		return 0, nil
	}
	return f.counts[k], nil
}

func (f *fakeDriver) Click(_ context.Context, h Handle) error {
	k := hkey(h)
	if f.counts[k] == 0 {
		return fmt.Errorf("click %q: no matching element", h.CSS)
	}
	f.clicked = append(f.clicked, k)
	if f.onClick != nil {
		f.onClick(k)
	}
	return nil
}

func (f *fakeDriver) Fill(_ context.Context, h Handle, value string) error {
	k := hkey(h)
	if f.counts[k] == 0 {
		return fmt.Errorf("fill %q: no matching element", h.CSS)
	}
	f.texts[k] = value
	return nil
}

func (f *fakeDriver) Text(_ context.Context, h Handle) (string, error) {
	return f.texts[hkey(h)], nil
}

func (f *fakeDriver) OuterHTML(_ context.Context, h Handle) (string, error) {
	return f.htmls[hkey(h)], nil
}

func (f *fakeDriver) PageHTML(context.Context) (string, error) {
	return "<html><body>fake page</body></html>", nil
}

func (f *fakeDriver) Screenshot(context.Context) ([]byte, error) {
	return []byte("fake-png"), nil
}

func (f *fakeDriver) ScrollToBottom(context.Context) error { return nil }

func (f *fakeDriver) clickedCount(substr string) int {
	n := 0
	for _, k := range f.clicked {
		if strings.Contains(k, substr) {
			n++
		}
	}
	return n
}
