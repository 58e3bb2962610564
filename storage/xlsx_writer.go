package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"clubscan/models"
)

const xlsxSheet = "Availability"

// XLSXExporter writes availability records as a spreadsheet artifact with the
// same schema as the CSV destination. Writes are atomic via temp file + rename.
type XLSXExporter struct{}

// Export writes the header plus one row per record, in insertion order.
func (e *XLSXExporter) Export(records []*models.AvailabilityRecord, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("xlsx: create output dir: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", xlsxSheet); err != nil {
		return fmt.Errorf("xlsx: name sheet: %w", err)
	}

	header := make([]interface{}, len(Schema))
	for i, col := range Schema {
		header[i] = col
	}
	if err := f.SetSheetRow(xlsxSheet, "A1", &header); err != nil {
		return fmt.Errorf("xlsx: write header: %w", err)
	}

	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("xlsx: cell name: %w", err)
		}
		cols := Row(r)
		row := make([]interface{}, len(cols))
		for j, v := range cols {
			row[j] = v
		}
		if err := f.SetSheetRow(xlsxSheet, cell, &row); err != nil {
			return fmt.Errorf("xlsx: write row %d: %w", i+1, err)
		}
	}

	tmp, err := os.CreateTemp(dir, ".availability-*.xlsx")
	if err != nil {
		return fmt.Errorf("xlsx: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpName)

	if err := f.SaveAs(tmpName); err != nil {
		return fmt.Errorf("xlsx: save: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("xlsx: move into place: %w", err)
	}
	return nil
}
