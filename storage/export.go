package storage

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"clubscan/models"
	"clubscan/utils"
)

// Schema is the fixed column set and ordering shared by every export format.
// The same record sequence produces column-equivalent output regardless of
// destination format.
var Schema = []string{
	"resort", "location", "unitType", "checkIn", "checkOut", "nights", "availabilityOrPrice",
}

// Row renders one record in schema order. Dates are ISO-8601.
func Row(r *models.AvailabilityRecord) []string {
	return []string{
		r.Resort,
		r.Location,
		r.UnitType,
		r.CheckIn.Format("2006-01-02"),
		r.CheckOut.Format("2006-01-02"),
		strconv.Itoa(r.Nights),
		r.AvailabilityOrPrice,
	}
}

// Exporter writes a full record set to one destination path. Implementations
// must be atomic: a failure mid-write never leaves a truncated artifact at
// the final path. An empty record set still produces a header-only artifact.
type Exporter interface {
	Export(records []*models.AvailabilityRecord, path string) error
}

// ExportError marks a failure confined to a single destination.
type ExportError struct {
	Format string
	Path   string
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export %s to %s: %v", e.Format, e.Path, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// pathLocks serializes concurrent writes to the same destination path.
// Last-writer-wins between runs is disallowed, so contending writers queue.
var (
	pathMu    sync.Mutex
	pathLocks = map[string]*sync.Mutex{}
)

func lockPath(path string) *sync.Mutex {
	pathMu.Lock()
	defer pathMu.Unlock()
	l, ok := pathLocks[path]
	if !ok {
		l = &sync.Mutex{}
		pathLocks[path] = l
	}
	return l
}

// Pipeline fans one record set out to a set of destinations. Destinations are
// written independently: one failing does not stop the others.
type Pipeline struct {
	logger    *utils.Logger
	exporters map[string]Exporter
}

// NewPipeline creates a Pipeline with the built-in CSV and XLSX exporters.
func NewPipeline(logger *utils.Logger) *Pipeline {
	return &Pipeline{
		logger: logger,
		exporters: map[string]Exporter{
			"csv":  &CSVExporter{},
			"xlsx": &XLSXExporter{},
		},
	}
}

// Export writes records to every destination and returns the number of
// destinations written plus an error joining the per-destination failures.
func (p *Pipeline) Export(records []*models.AvailabilityRecord, dests []models.ExportDestination) (int, error) {
	var errs []error
	written := 0

	for _, d := range dests {
		exp, ok := p.exporters[d.Format]
		if !ok {
			errs = append(errs, &ExportError{Format: d.Format, Path: d.Path,
				Err: fmt.Errorf("unknown format")})
			continue
		}

		l := lockPath(d.Path)
		l.Lock()
		err := exp.Export(records, d.Path)
		l.Unlock()

		if err != nil {
			p.logger.Error("[export] %s destination %s failed: %v", d.Format, d.Path, err)
			errs = append(errs, &ExportError{Format: d.Format, Path: d.Path, Err: err})
			continue
		}
		p.logger.Info("[export] Wrote %d rows to %s (%s)", len(records), d.Path, d.Format)
		written++
	}

	return written, errors.Join(errs...)
}
