package services

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"clubscan/config"
	"clubscan/models"
	"clubscan/scraper/portal"
	"clubscan/storage"
	"clubscan/utils"
)

// stubDriver reports every element as present and serves one fixed results
// page. Pagination therefore never advances and the controller finishes with
// the first page as a partial result. A non-zero delay slows each lookup so
// tests can keep one run in flight while another finishes.
type stubDriver struct {
	pageHTML string
	delay    time.Duration
}

func (d *stubDriver) Navigate(context.Context, string) error { return nil }

func (d *stubDriver) Count(context.Context, portal.Handle) (int, error) {
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	return 1, nil
}

func (d *stubDriver) Click(context.Context, portal.Handle) error { return nil }

func (d *stubDriver) Fill(context.Context, portal.Handle, string) error { return nil }

func (d *stubDriver) Text(context.Context, portal.Handle) (string, error) { return "2", nil }

func (d *stubDriver) OuterHTML(context.Context, portal.Handle) (string, error) {
	return d.pageHTML, nil
}

func (d *stubDriver) PageHTML(context.Context) (string, error) {
	return "<html><body>stub</body></html>", nil
}

func (d *stubDriver) Screenshot(context.Context) ([]byte, error) { return []byte("png"), nil }

func (d *stubDriver) ScrollToBottom(context.Context) error { return nil }

const stubResultsHTML = `<div data-uitest="availability-results">
<p data-uitest="availability-date-range">Showing availability for June 1 - June 8, 2026</p>
<div data-uitest="availability-result-card">
<h2 data-uitest="resort-name">Orange Lake Resort</h2>
<p data-uitest="resort-location">Orlando, FL</p>
<h3 data-uitest="unit-name">1 Bedroom Villa</h3>
<span>129,000 points</span>
</div>
<div data-uitest="availability-result-card">
<h2 data-uitest="resort-name">Sunset Cove Resort</h2>
<p data-uitest="resort-location">Marco Island, FL</p>
<h3 data-uitest="unit-name">Studio</h3>
<span>85,000 points</span>
</div>
</div>`

func testCriteria() *models.SearchCriteria {
	return &models.SearchCriteria{
		Destination: "Orlando",
		UnitSizes:   []string{"1 Bedroom"},
		Guests:      2,
		CheckIn:     time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		CheckOut:    time.Date(2026, 6, 8, 0, 0, 0, 0, time.UTC),
		MinNights:   5,
	}
}

func readCSVFile(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return rows
}

func newStubRunner(t *testing.T) *Runner {
	t.Helper()
	logger := utils.NewLogger()
	cfg := &config.Config{MaxConcurrency: 2}

	r := NewRunner(cfg, logger, storage.NewPipeline(logger), nil)
	r.engine = func(ctx context.Context, runID string, criteria *models.SearchCriteria) (*portal.Controller, context.CancelFunc, error) {
		drv := &stubDriver{pageHTML: stubResultsHTML}
		if criteria.Destination == "Slowville" {
			drv.delay = 2 * time.Millisecond
		}
		res := portal.NewResolver()

		pol := func(attempts int) *utils.RetryPolicy {
			return &utils.RetryPolicy{
				MaxAttempts: attempts,
				BaseDelay:   time.Millisecond,
				Retryable:   portal.Retryable,
				Sleep:       func(time.Duration) {},
			}
		}
		policies := portal.Policies{
			Login:      pol(2),
			Submit:     pol(2),
			Results:    pol(2),
			Pagination: pol(2),
		}

		sessions := portal.NewSessionManager(drv, res, logger, policies.Login, "https://example.test/login")
		diag := portal.NewCollector(t.TempDir(), runID, logger)
		ctrl := portal.NewController(drv, res, portal.NewExtractor(res, logger), sessions, diag,
			logger, policies, portal.Credentials{Username: "member", Password: "secret"},
			criteria, "https://example.test/book")
		return ctrl, func() {}, nil
	}
	return r
}

func TestRunProducesResultAndArtifacts(t *testing.T) {
	r := newStubRunner(t)
	csvPath := filepath.Join(t.TempDir(), "availability.csv")

	result, err := r.Run(context.Background(), RunSpec{
		Criteria:     testCriteria(),
		Destinations: []models.ExportDestination{{Format: "csv", Path: csvPath}},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// The stub page never advances past page one, so the run completes with
	// what it gathered.
	if result.Status != models.StatusPartialSuccess {
		t.Fatalf("status = %s (reason %q)", result.Status, result.Reason)
	}
	if result.TerminalState != models.StateComplete {
		t.Errorf("terminal state = %s", result.TerminalState)
	}
	if len(result.Records) != 2 {
		t.Errorf("got %d records, want 2", len(result.Records))
	}
	if len(result.RunID) != 8 {
		t.Errorf("run ID = %q, want 8 characters", result.RunID)
	}
	if result.FinishedAt.Before(result.StartedAt) {
		t.Error("finish precedes start")
	}

	rows := readCSVFile(t, csvPath)
	if len(rows) != 3 {
		t.Errorf("exported %d rows, want header + 2", len(rows))
	}
}

func TestRunEngineFailure(t *testing.T) {
	r := newStubRunner(t)
	r.engine = func(context.Context, string, *models.SearchCriteria) (*portal.Controller, context.CancelFunc, error) {
		return nil, nil, errors.New("browser binary missing")
	}

	result, err := r.Run(context.Background(), RunSpec{Criteria: testCriteria()})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Status != models.StatusFailed {
		t.Errorf("status = %s", result.Status)
	}
	if !strings.Contains(result.Reason, "engine start") {
		t.Errorf("reason = %q", result.Reason)
	}
}

func TestRunCancelledContext(t *testing.T) {
	r := newStubRunner(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := r.Run(ctx, RunSpec{
		Criteria:     testCriteria(),
		Destinations: []models.ExportDestination{{Format: "csv", Path: filepath.Join(t.TempDir(), "out.csv")}},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Status != models.StatusFailed {
		t.Errorf("status = %s", result.Status)
	}
	if !strings.Contains(result.Reason, "cancelled") {
		t.Errorf("reason = %q", result.Reason)
	}
	if len(result.Artifacts) != 1 || result.Artifacts[0].StepID != "cancel" {
		t.Errorf("artifacts = %+v, want one tagged cancel", result.Artifacts)
	}
}

func TestRunAllRejectsSharedDestinations(t *testing.T) {
	r := newStubRunner(t)
	shared := filepath.Join(t.TempDir(), "availability.csv")

	specs := []RunSpec{
		{Criteria: testCriteria(), Destinations: []models.ExportDestination{{Format: "csv", Path: shared}}},
		{Criteria: testCriteria(), Destinations: []models.ExportDestination{{Format: "csv", Path: shared}}},
	}

	_, err := r.RunAll(context.Background(), specs)
	if err == nil {
		t.Fatal("expected shared-destination rejection")
	}
	if !strings.Contains(err.Error(), "share destination path") {
		t.Errorf("error = %v", err)
	}
}

func TestRunAllIsolatesExportFailures(t *testing.T) {
	r := newStubRunner(t)
	dir := t.TempDir()
	okPath := filepath.Join(dir, "ok.csv")

	slow := testCriteria()
	slow.Destination = "Slowville"

	specs := []RunSpec{
		{Criteria: testCriteria(), Destinations: []models.ExportDestination{
			{Format: "parquet", Path: filepath.Join(dir, "bad.parquet")}}},
		{Criteria: slow, Destinations: []models.ExportDestination{
			{Format: "csv", Path: okPath}}},
	}

	results, err := r.RunAll(context.Background(), specs)
	if err == nil || !strings.Contains(err.Error(), "unknown format") {
		t.Fatalf("joined error = %v, want the first run's export failure reported", err)
	}

	second := results[1]
	if second.Status != models.StatusPartialSuccess {
		t.Fatalf("sibling status = %s (reason %q), want %s: one run's export failure must not cancel another",
			second.Status, second.Reason, models.StatusPartialSuccess)
	}
	if len(second.Records) != 2 {
		t.Errorf("sibling records = %d, want 2", len(second.Records))
	}
	if rows := readCSVFile(t, okPath); len(rows) != 3 {
		t.Errorf("sibling artifact has %d rows, want header + 2", len(rows))
	}

	// The failed export stays scoped to its destination; the first run's
	// navigation outcome is unaffected.
	if results[0].Status != models.StatusPartialSuccess {
		t.Errorf("first run status = %s", results[0].Status)
	}
}

func TestRunAllIndependentDestinations(t *testing.T) {
	r := newStubRunner(t)
	dir := t.TempDir()

	specs := []RunSpec{
		{Criteria: testCriteria(), Destinations: []models.ExportDestination{{Format: "csv", Path: filepath.Join(dir, "a.csv")}}},
		{Criteria: testCriteria(), Destinations: []models.ExportDestination{{Format: "csv", Path: filepath.Join(dir, "b.csv")}}},
	}

	results, err := r.RunAll(context.Background(), specs)
	if err != nil {
		t.Fatalf("run all: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results", len(results))
	}
	for i, res := range results {
		if res == nil || res.Status != models.StatusPartialSuccess {
			t.Errorf("result %d = %+v", i, res)
		}
	}
}
