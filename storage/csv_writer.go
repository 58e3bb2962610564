package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"clubscan/models"
)

// CSVExporter writes availability records as a CSV artifact. The file is
// assembled in a temporary location and renamed into place so readers never
// observe a partial artifact.
type CSVExporter struct{}

// Export writes the header plus one row per record, in insertion order.
func (e *CSVExporter) Export(records []*models.AvailabilityRecord, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("csv: create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".availability-*.csv")
	if err != nil {
		return fmt.Errorf("csv: create temp file: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	w := csv.NewWriter(tmp)
	if err := w.Write(Schema); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}
	for _, r := range records {
		if err := w.Write(Row(r)); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("csv: flush: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("csv: close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("csv: move into place: %w", err)
	}
	return nil
}
