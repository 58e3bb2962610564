package portal

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"clubscan/models"
	"clubscan/utils"
)

// errStalePage marks a pagination click after which the results area never
// re-rendered.
var errStalePage = errors.New("results page did not advance")

// Policies bundles the per-step retry configurations. Form submission
// tolerates more attempts than pagination, which is cheap to abandon.
type Policies struct {
	Login      *utils.RetryPolicy
	Submit     *utils.RetryPolicy
	Results    *utils.RetryPolicy
	Pagination *utils.RetryPolicy
}

// DefaultPolicies builds the step policies around a base attempt budget.
func DefaultPolicies(maxAttempts int, logger *utils.Logger) Policies {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	mk := func(attempts int, base, max time.Duration) *utils.RetryPolicy {
		if attempts < 1 {
			attempts = 1
		}
		return &utils.RetryPolicy{
			MaxAttempts: attempts,
			BaseDelay:   base,
			MaxDelay:    max,
			Retryable:   Retryable,
			Rand:        rng,
			Logger:      logger,
		}
	}
	return Policies{
		Login:      mk(maxAttempts+1, 2*time.Second, 30*time.Second),
		Submit:     mk(maxAttempts+1, 2*time.Second, 30*time.Second),
		Results:    mk(maxAttempts, 3*time.Second, 30*time.Second),
		Pagination: mk(maxAttempts-1, 1*time.Second, 10*time.Second),
	}
}

// Controller drives the portal through its screens as a state machine. It
// performs exactly one transition per Step call; the orchestrator owns the
// loop so pagination can be rate-limited or cancelled externally.
type Controller struct {
	drv      Driver
	res      *Resolver
	extract  *Extractor
	sessions *SessionManager
	diag     *Collector
	logger   *utils.Logger
	policies Policies

	creds      Credentials
	criteria   *models.SearchCriteria
	bookingURL string

	state     models.NavigationState
	session   *Session
	records   []*models.AvailabilityRecord
	rejected  int
	artifacts []models.DiagnosticsArtifact
	page      int
	partial   bool
	reason    string

	// lastPageHTML detects pagination that silently fails to advance: the
	// stale container would otherwise be extracted twice.
	lastPageHTML string
}

// NewController creates a Controller in the Unauthenticated state.
func NewController(drv Driver, res *Resolver, extract *Extractor, sessions *SessionManager,
	diag *Collector, logger *utils.Logger, policies Policies,
	creds Credentials, criteria *models.SearchCriteria, bookingURL string) *Controller {
	return &Controller{
		drv:        drv,
		res:        res,
		extract:    extract,
		sessions:   sessions,
		diag:       diag,
		logger:     logger,
		policies:   policies,
		creds:      creds,
		criteria:   criteria,
		bookingURL: bookingURL,
		state:      models.StateUnauthenticated,
	}
}

// State returns the current navigation state.
func (c *Controller) State() models.NavigationState { return c.state }

// Records returns the accepted records gathered so far, in page order.
func (c *Controller) Records() []*models.AvailabilityRecord { return c.records }

// Rejected returns the per-run rejection tally.
func (c *Controller) Rejected() int { return c.rejected }

// Artifacts returns the diagnostics artifacts captured so far.
func (c *Controller) Artifacts() []models.DiagnosticsArtifact { return c.artifacts }

// Reason returns the human-readable failure reason, if any.
func (c *Controller) Reason() string { return c.reason }

// Status classifies the run once a terminal state is reached.
func (c *Controller) Status() models.RunStatus {
	switch {
	case c.state == models.StateComplete && !c.partial:
		return models.StatusSuccess
	case c.state == models.StateComplete && c.partial:
		return models.StatusPartialSuccess
	default:
		return models.StatusFailed
	}
}

// Cancel forces the run into Failed between steps. Already-gathered records
// are kept for diagnostics but the run is not exportable as partial.
func (c *Controller) Cancel(reason string) {
	if c.state.Terminal() {
		return
	}
	c.reason = reason
	c.state = models.StateFailed
	c.logger.Warn("[navigate] Run cancelled: %s", reason)

	// The run context is usually already done when a cancel arrives; the
	// capture gets its own short deadline against the still-live tab.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	c.capture(ctx, "cancel")
}

// Step performs exactly one state transition. Calling Step in a terminal
// state is a no-op.
func (c *Controller) Step(ctx context.Context) error {
	switch c.state {
	case models.StateUnauthenticated:
		return c.stepAuthenticate(ctx)
	case models.StateOnSearchForm:
		return c.stepSubmitSearch(ctx)
	case models.StateSubmittingSearch:
		return c.stepAwaitResults(ctx)
	case models.StateOnResultsPage:
		return c.stepExtractPage(ctx)
	case models.StatePaginating:
		return c.stepNextPage(ctx)
	default:
		return nil
	}
}

// stepAuthenticate: Unauthenticated -> OnSearchForm | AuthFailed | Failed.
func (c *Controller) stepAuthenticate(ctx context.Context) error {
	sess, err := c.sessions.Establish(ctx, c.creds)
	if err != nil {
		var authErr *AuthError
		if errors.As(err, &authErr) {
			c.failTo(ctx, models.StateAuthFailed, "login", err)
			return nil
		}
		c.failTo(ctx, models.StateFailed, "login", err)
		return nil
	}
	c.session = sess

	if err := c.policies.Login.Do(ctx, "open-search-form", func() error {
		return c.openSearchForm(ctx)
	}); err != nil {
		c.failTo(ctx, models.StateFailed, "open-search-form", err)
		return nil
	}

	c.logger.Info("[navigate] Search form reached")
	c.state = models.StateOnSearchForm
	return nil
}

// stepSubmitSearch: OnSearchForm -> SubmittingSearch | Failed.
func (c *Controller) stepSubmitSearch(ctx context.Context) error {
	if !c.sessions.Verify(ctx, c.session) {
		c.failTo(ctx, models.StateFailed, "session-check", &SessionLostError{})
		return nil
	}

	if err := c.policies.Submit.Do(ctx, "submit-search", func() error {
		return c.fillAndSubmit(ctx)
	}); err != nil {
		c.failTo(ctx, models.StateFailed, "submit-search", err)
		return nil
	}

	c.state = models.StateSubmittingSearch
	return nil
}

// stepAwaitResults: SubmittingSearch -> OnResultsPage | Failed.
func (c *Controller) stepAwaitResults(ctx context.Context) error {
	err := c.policies.Results.Do(ctx, "await-results", func() error {
		_, rerr := c.res.Resolve(ctx, c.drv, RoleResultsContainer)
		return rerr
	})
	if err != nil {
		c.failTo(ctx, models.StateFailed, "await-results",
			&NavigationTimeoutError{Step: "await-results", Err: err})
		return nil
	}

	c.state = models.StateOnResultsPage
	return nil
}

// stepExtractPage: OnResultsPage -> Paginating | Complete | Failed.
// Extraction of page N always completes before navigation to page N+1 begins.
func (c *Controller) stepExtractPage(ctx context.Context) error {
	if err := c.drv.ScrollToBottom(ctx); err != nil {
		c.logger.Warn("[navigate] Lazy-load scroll failed on page %d: %v", c.page+1, err)
	}

	container, err := c.res.Resolve(ctx, c.drv, RoleResultsContainer)
	if err != nil {
		c.failTo(ctx, models.StateFailed, "extract", err)
		return nil
	}
	html, err := c.drv.OuterHTML(ctx, container)
	if err != nil {
		c.failTo(ctx, models.StateFailed, "extract", err)
		return nil
	}

	c.lastPageHTML = html

	records, rejected, err := c.extract.ExtractPage(html, c.criteria)
	if err != nil {
		c.failTo(ctx, models.StateFailed, "extract", err)
		return nil
	}

	c.page++
	c.records = append(c.records, records...)
	c.rejected += rejected
	c.logger.Info("[navigate] Page %d: %d records accepted, %d rejected (total %d)",
		c.page, len(records), rejected, len(c.records))

	_, err = c.res.Resolve(ctx, c.drv, RoleNextPage)
	if err == nil {
		c.state = models.StatePaginating
		return nil
	}
	var notFound *ElementNotFoundError
	if errors.As(err, &notFound) {
		// No pagination control: the snapshot really is complete.
		c.state = models.StateComplete
		return nil
	}

	// A driver failure during the probe leaves it unknown whether more pages
	// exist; claiming a full snapshot here would be wrong.
	c.logger.Warn("[navigate] Pagination probe failed after page %d, keeping partial results: %v",
		c.page, err)
	c.capture(ctx, "next-page-probe")
	c.partial = true
	c.state = models.StateComplete
	return nil
}

// stepNextPage: Paginating -> OnResultsPage | Complete (partial).
// A pagination failure keeps everything gathered so far; the run completes
// as PartialSuccess rather than discarding visited pages.
func (c *Controller) stepNextPage(ctx context.Context) error {
	if !c.sessions.Verify(ctx, c.session) {
		c.failTo(ctx, models.StateFailed, "session-check", &SessionLostError{})
		return nil
	}

	err := c.policies.Pagination.Do(ctx, "next-page", func() error {
		next, rerr := c.res.Resolve(ctx, c.drv, RoleNextPage)
		if rerr != nil {
			return rerr
		}
		if cerr := c.drv.Click(ctx, next); cerr != nil {
			return cerr
		}
		container, rerr := c.res.Resolve(ctx, c.drv, RoleResultsContainer)
		if rerr != nil {
			return rerr
		}
		html, herr := c.drv.OuterHTML(ctx, container)
		if herr != nil {
			return herr
		}
		if html == c.lastPageHTML {
			return &NavigationTimeoutError{Step: "next-page", Err: errStalePage}
		}
		return nil
	})
	if err != nil {
		c.logger.Warn("[navigate] Pagination failed after page %d, keeping partial results: %v",
			c.page, err)
		c.capture(ctx, "next-page")
		c.partial = true
		c.state = models.StateComplete
		return nil
	}

	c.state = models.StateOnResultsPage
	return nil
}

// openSearchForm moves from the logged-in landing page to the booking form.
func (c *Controller) openSearchForm(ctx context.Context) error {
	if c.bookingURL != "" {
		if err := c.drv.Navigate(ctx, c.bookingURL); err != nil {
			return err
		}
	} else {
		cta, err := c.res.Resolve(ctx, c.drv, RoleBookCTA)
		if err != nil {
			return err
		}
		if err := c.drv.Click(ctx, cta); err != nil {
			return err
		}
	}

	c.dismissCookieBanner(ctx)

	_, err := c.res.Resolve(ctx, c.drv, RoleDestinationDropdown)
	return err
}

// fillAndSubmit drives the whole search form and fires the search. It is
// written to be re-runnable: selected options are detected and not re-toggled,
// so a retry after a partial failure converges instead of flapping.
func (c *Controller) fillAndSubmit(ctx context.Context) error {
	if err := c.selectDestination(ctx); err != nil {
		return err
	}
	if err := c.selectUnitSizes(ctx); err != nil {
		return err
	}
	if err := c.setGuestCount(ctx); err != nil {
		return err
	}
	c.fillNights(ctx)
	if err := c.pickDates(ctx); err != nil {
		return err
	}
	return c.submitSearch(ctx)
}

func (c *Controller) selectDestination(ctx context.Context) error {
	if c.criteria.Destination == "" {
		return nil
	}

	dropdown, err := c.res.Resolve(ctx, c.drv, RoleDestinationDropdown)
	if err != nil {
		return err
	}
	if err := c.drv.Click(ctx, dropdown); err != nil {
		return err
	}
	if _, err := c.res.Resolve(ctx, c.drv, RoleDestinationPanel); err != nil {
		return err
	}

	if err := c.toggleOption(ctx, RoleDestinationOption, c.criteria.Destination, false); err != nil {
		return err
	}

	// Collapse the panel so it does not occlude the rest of the form.
	return c.drv.Click(ctx, dropdown)
}

func (c *Controller) selectUnitSizes(ctx context.Context) error {
	dropdown, err := c.res.Resolve(ctx, c.drv, RoleUnitSizeDropdown)
	if err != nil {
		return err
	}
	if err := c.drv.Click(ctx, dropdown); err != nil {
		return err
	}

	for _, size := range c.criteria.UnitSizes {
		if err := c.toggleOption(ctx, RoleUnitSizeOption, size, true); err != nil {
			return fmt.Errorf("unit size %q: %w", size, err)
		}
	}

	return c.drv.Click(ctx, dropdown)
}

// toggleOption clicks a listbox option unless it is already selected.
func (c *Controller) toggleOption(ctx context.Context, role, label string, exact bool) error {
	// Selection state check, scoped by label rather than role: the portal
	// flags chosen options with aria-selected on the option element.
	selected := Handle{CSS: `li[role="option"][aria-selected="true"]`, Text: label, Exact: exact}
	if n, err := c.drv.Count(ctx, selected); err == nil && n >= 1 {
		return nil
	}

	var opt Handle
	var err error
	if exact {
		opt, err = c.res.ResolveExact(ctx, c.drv, role, label)
	} else {
		opt, err = c.res.ResolveText(ctx, c.drv, role, label)
	}
	if err != nil {
		return err
	}
	return c.drv.Click(ctx, opt)
}

func (c *Controller) setGuestCount(ctx context.Context) error {
	counter, err := c.res.Resolve(ctx, c.drv, RoleGuestCount)
	if err != nil {
		return err
	}
	plus, err := c.res.Resolve(ctx, c.drv, RoleGuestPlus)
	if err != nil {
		return err
	}
	minus, err := c.res.Resolve(ctx, c.drv, RoleGuestMinus)
	if err != nil {
		return err
	}

	for tries := 0; tries < 30; tries++ {
		text, terr := c.drv.Text(ctx, counter)
		if terr != nil {
			return terr
		}
		current, _ := strconv.Atoi(text)
		switch {
		case current == c.criteria.Guests:
			return nil
		case current < c.criteria.Guests:
			if cerr := c.drv.Click(ctx, plus); cerr != nil {
				return cerr
			}
		default:
			if cerr := c.drv.Click(ctx, minus); cerr != nil {
				return cerr
			}
		}
	}
	return fmt.Errorf("guest counter did not converge to %d", c.criteria.Guests)
}

// fillNights sets the minimum-nights input when the form renders one.
// Portals without the field derive nights from the date range.
func (c *Controller) fillNights(ctx context.Context) {
	nights, err := c.res.Resolve(ctx, c.drv, RoleNightsInput)
	if err != nil {
		return
	}
	if err := c.drv.Fill(ctx, nights, strconv.Itoa(c.criteria.MinNights)); err != nil {
		c.logger.Warn("[navigate] Nights input rejected value: %v", err)
	}
}

// pickDates opens the calendar, steers it to the check-in month, and selects
// the check-in/check-out range, then finalizes through Done/Confirm.
func (c *Controller) pickDates(ctx context.Context) error {
	picker, err := c.res.Resolve(ctx, c.drv, RoleDatePicker)
	if err != nil {
		return err
	}
	if err := c.drv.Click(ctx, picker); err != nil {
		return err
	}

	c.pickMonthYear(ctx)

	if err := c.clickDay(ctx, c.criteria.CheckIn); err != nil {
		return fmt.Errorf("check-in day: %w", err)
	}

	if c.criteria.CheckOut.Month() != c.criteria.CheckIn.Month() {
		if next, nerr := c.res.Resolve(ctx, c.drv, RoleCalendarNextMonth); nerr == nil {
			if cerr := c.drv.Click(ctx, next); cerr != nil {
				return cerr
			}
		}
	}
	if err := c.clickDay(ctx, c.criteria.CheckOut); err != nil {
		return fmt.Errorf("check-out day: %w", err)
	}

	// Done is part of the calendar overlay on some portal versions only.
	if done, derr := c.res.Resolve(ctx, c.drv, RoleDateDone); derr == nil {
		if err := c.drv.Click(ctx, done); err != nil {
			return err
		}
	}

	confirm, err := c.res.Resolve(ctx, c.drv, RoleDateConfirm)
	if err != nil {
		return err
	}
	return c.drv.Click(ctx, confirm)
}

// pickMonthYear uses the month/year shortcut pickers when present; otherwise
// the calendar is already positioned by the portal.
func (c *Controller) pickMonthYear(ctx context.Context) {
	if picker, err := c.res.Resolve(ctx, c.drv, RoleMonthPicker); err == nil {
		if err := c.drv.Click(ctx, picker); err == nil {
			short := c.criteria.CheckIn.Format("Jan")
			if opt, oerr := c.res.ResolveExact(ctx, c.drv, RoleMonthOption, short); oerr == nil {
				_ = c.drv.Click(ctx, opt)
			}
		}
	}
	if picker, err := c.res.Resolve(ctx, c.drv, RoleYearPicker); err == nil {
		if err := c.drv.Click(ctx, picker); err == nil {
			year := c.criteria.CheckIn.Format("2006")
			if opt, oerr := c.res.ResolveExact(ctx, c.drv, RoleYearOption, year); oerr == nil {
				_ = c.drv.Click(ctx, opt)
			}
		}
	}
}

func (c *Controller) clickDay(ctx context.Context, date time.Time) error {
	day, err := c.res.ResolveExact(ctx, c.drv, RoleCalendarDay, strconv.Itoa(date.Day()))
	if err != nil {
		return err
	}
	return c.drv.Click(ctx, day)
}

// submitSearch fires the search. Some portal versions submit on date
// confirmation and render no separate search button.
func (c *Controller) submitSearch(ctx context.Context) error {
	submit, err := c.res.Resolve(ctx, c.drv, RoleSearchSubmit)
	if err != nil {
		var notFound *ElementNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	return c.drv.Click(ctx, submit)
}

func (c *Controller) dismissCookieBanner(ctx context.Context) {
	banner, err := c.res.Resolve(ctx, c.drv, RoleCookieAccept)
	if err != nil {
		return
	}
	if err := c.drv.Click(ctx, banner); err == nil {
		c.logger.Debug("[navigate] Cookie banner dismissed")
	}
}

// failTo enters a failed terminal state and captures diagnostics.
func (c *Controller) failTo(ctx context.Context, state models.NavigationState, stepID string, cause error) {
	c.reason = cause.Error()
	c.state = state
	c.logger.Error("[navigate] Step %s failed: %v", stepID, cause)
	c.capture(ctx, stepID)
}

func (c *Controller) capture(ctx context.Context, stepID string) {
	artifact, err := c.diag.Capture(ctx, c.drv, stepID)
	if err != nil {
		c.logger.Warn("[navigate] Diagnostics capture for %s failed: %v", stepID, err)
		return
	}
	c.artifacts = append(c.artifacts, artifact)
}
