package portal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"clubscan/models"
	"clubscan/utils"
)

// Collector captures paired visual/structural snapshots of the current page
// state. Artifacts are write-once: names incorporate run, step and timestamp,
// and existing files are never replaced.
type Collector struct {
	dir    string
	runID  string
	names  *utils.NameSet
	logger *utils.Logger
	now    func() time.Time
}

// NewCollector creates a Collector writing into dir for the given run.
func NewCollector(dir, runID string, logger *utils.Logger) *Collector {
	return &Collector{
		dir:    dir,
		runID:  runID,
		names:  utils.NewNameSet(),
		logger: logger,
		now:    time.Now,
	}
}

// Capture saves a screenshot and an HTML dump for the given step. Capture
// failures are reported but must not mask the navigation failure that
// triggered them; callers log and continue.
func (c *Collector) Capture(ctx context.Context, drv Driver, stepID string) (models.DiagnosticsArtifact, error) {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return models.DiagnosticsArtifact{}, fmt.Errorf("diagnostics: create dir: %w", err)
	}

	capturedAt := c.now().UTC()
	base := c.reserveName(stepID, capturedAt)

	artifact := models.DiagnosticsArtifact{
		RunID:          c.runID,
		StepID:         stepID,
		CapturedAt:     capturedAt,
		ScreenshotPath: filepath.Join(c.dir, base+".png"),
		DumpPath:       filepath.Join(c.dir, base+".html"),
	}

	shot, err := drv.Screenshot(ctx)
	if err != nil {
		return models.DiagnosticsArtifact{}, fmt.Errorf("diagnostics: screenshot: %w", err)
	}
	if err := writeOnce(artifact.ScreenshotPath, shot); err != nil {
		return models.DiagnosticsArtifact{}, err
	}

	html, err := drv.PageHTML(ctx)
	if err != nil {
		return models.DiagnosticsArtifact{}, fmt.Errorf("diagnostics: page dump: %w", err)
	}
	if err := writeOnce(artifact.DumpPath, []byte(html)); err != nil {
		return models.DiagnosticsArtifact{}, err
	}

	c.logger.Info("[diagnostics] Captured %s for step %s", base, stepID)
	return artifact, nil
}

// reserveName produces a unique artifact basename. Two captures of the same
// step within one timestamp tick get a sequence suffix instead of colliding.
func (c *Collector) reserveName(stepID string, ts time.Time) string {
	base := fmt.Sprintf("%s-%s-%s", c.runID, stepID, ts.Format("20060102T150405"))
	if c.names.Add(base) {
		return base
	}
	for seq := 2; ; seq++ {
		candidate := fmt.Sprintf("%s.%d", base, seq)
		if c.names.Add(candidate) {
			return candidate
		}
	}
}

// writeOnce refuses to replace an existing file.
func writeOnce(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("diagnostics: create %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("diagnostics: write %s: %w", path, err)
	}
	return f.Close()
}
