package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"clubscan/config"
	"clubscan/models"
	"clubscan/scraper/portal"
	"clubscan/storage"
	"clubscan/utils"
)

// RunSpec pairs one SearchCriteria with its export destinations. Concurrent
// runs must not share destination paths.
type RunSpec struct {
	Criteria     *models.SearchCriteria
	Destinations []models.ExportDestination
}

// EngineFactory builds the navigation engine for one run. The default factory
// allocates a fresh headless browser per run; tests substitute a fake-driven
// controller.
type EngineFactory func(ctx context.Context, runID string, criteria *models.SearchCriteria) (*portal.Controller, context.CancelFunc, error)

// Runner orchestrates runs: session, navigation loop, extraction, export.
// It never retries across full runs; a run ends in exactly one RunResult.
type Runner struct {
	cfg      *config.Config
	logger   *utils.Logger
	pipeline *storage.Pipeline
	history  *storage.PostgresWriter
	engine   EngineFactory
}

// NewRunner creates a Runner. history may be nil when the snapshot database
// is not configured.
func NewRunner(cfg *config.Config, logger *utils.Logger, pipeline *storage.Pipeline,
	history *storage.PostgresWriter) *Runner {
	r := &Runner{
		cfg:      cfg,
		logger:   logger,
		pipeline: pipeline,
		history:  history,
	}
	r.engine = r.browserEngine
	return r
}

// browserEngine wires a real chromedp-backed controller for one run.
func (r *Runner) browserEngine(ctx context.Context, runID string, criteria *models.SearchCriteria) (*portal.Controller, context.CancelFunc, error) {
	gate := utils.NewRateGate(r.cfg.InteractionDelayMs)
	drv, cancel := portal.NewBrowserDriver(ctx, r.cfg.Headless, r.cfg.StepTimeout(), gate, r.logger)

	res := portal.NewResolver()
	policies := portal.DefaultPolicies(r.cfg.MaxRetries, r.logger)
	sessions := portal.NewSessionManager(drv, res, r.logger, policies.Login, r.cfg.LoginURL)
	extractor := portal.NewExtractor(res, r.logger)
	diag := portal.NewCollector(r.cfg.DiagnosticsDir, runID, r.logger)
	creds := portal.Credentials{Username: r.cfg.Username, Password: r.cfg.Password}

	ctrl := portal.NewController(drv, res, extractor, sessions, diag, r.logger, policies,
		creds, criteria, r.cfg.BookingURL)
	return ctrl, cancel, nil
}

// Run executes one run to a terminal state and exports the record set. The
// returned error reports an export failure affecting every destination; the
// navigation outcome itself is always carried in the RunResult.
func (r *Runner) Run(ctx context.Context, spec RunSpec) (*models.RunResult, error) {
	runID := uuid.NewString()[:8]
	started := time.Now()

	r.logger.Info("[runner] Run %s starting: destination=%q, units=%v, %s to %s",
		runID, spec.Criteria.Destination, spec.Criteria.UnitSizes,
		spec.Criteria.CheckIn.Format("2006-01-02"), spec.Criteria.CheckOut.Format("2006-01-02"))

	ctrl, cancel, err := r.engine(ctx, runID, spec.Criteria)
	if err != nil {
		return &models.RunResult{
			RunID:      runID,
			Criteria:   spec.Criteria,
			Status:     models.StatusFailed,
			Reason:     fmt.Sprintf("engine start: %v", err),
			StartedAt:  started,
			FinishedAt: time.Now(),
		}, nil
	}
	defer cancel()

	// Cancellation is checked between steps, never mid-step, so the browser
	// is not abandoned halfway through an interaction.
	for !ctrl.State().Terminal() {
		select {
		case <-ctx.Done():
			ctrl.Cancel(fmt.Sprintf("run cancelled: %v", ctx.Err()))
		default:
			if err := ctrl.Step(ctx); err != nil {
				ctrl.Cancel(fmt.Sprintf("step error: %v", err))
			}
		}
	}

	result := &models.RunResult{
		RunID:         runID,
		Criteria:      spec.Criteria,
		Status:        ctrl.Status(),
		TerminalState: ctrl.State(),
		Records:       ctrl.Records(),
		Rejected:      ctrl.Rejected(),
		Artifacts:     ctrl.Artifacts(),
		Reason:        ctrl.Reason(),
		StartedAt:     started,
		FinishedAt:    time.Now(),
	}

	var exportErr error
	if result.Status != models.StatusFailed {
		written, err := r.pipeline.Export(result.Records, spec.Destinations)
		if written == 0 && err != nil {
			exportErr = err
		}
		r.writeHistory(result)
	}

	r.logger.Info("[runner] Run %s finished: %s, %d records, %d rejected, %d diagnostics",
		runID, result.Status, len(result.Records), result.Rejected, len(result.Artifacts))
	return result, exportErr
}

// writeHistory appends the run to the snapshot database, best-effort.
func (r *Runner) writeHistory(result *models.RunResult) {
	if r.history == nil {
		return
	}
	if err := r.history.WriteRun(result.RunID, result.Records); err != nil {
		r.logger.Error("[runner] Snapshot history write failed: %v", err)
	}
}

// RunAll executes independent runs concurrently, bounded by MaxConcurrency.
// Each run owns its session; shared destination paths are rejected up front
// because last-writer-wins between runs is disallowed. Failures stay scoped
// to their own run: one run's export error is reported in the joined error
// but never cancels a sibling, only the caller's context does that.
func (r *Runner) RunAll(ctx context.Context, specs []RunSpec) ([]*models.RunResult, error) {
	seen := map[string]int{}
	for i, spec := range specs {
		for _, d := range spec.Destinations {
			if prev, dup := seen[d.Path]; dup {
				return nil, fmt.Errorf("runner: specs %d and %d share destination path %q", prev, i, d.Path)
			}
			seen[d.Path] = i
		}
	}

	results := make([]*models.RunResult, len(specs))
	runErrs := make([]error, len(specs))

	var g errgroup.Group
	g.SetLimit(r.cfg.MaxConcurrency)

	for i, spec := range specs {
		i, spec := i, spec
		g.Go(func() error {
			results[i], runErrs[i] = r.Run(ctx, spec)
			return nil
		})
	}

	_ = g.Wait()
	return results, errors.Join(runErrs...)
}
