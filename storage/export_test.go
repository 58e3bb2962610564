package storage

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"clubscan/models"
	"clubscan/utils"
)

func sampleRecords() []*models.AvailabilityRecord {
	checkIn := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	checkOut := time.Date(2026, 6, 8, 0, 0, 0, 0, time.UTC)
	return []*models.AvailabilityRecord{
		{
			Resort: "Orange Lake Resort", Location: "Orlando, FL", UnitType: "1 Bedroom Villa",
			CheckIn: checkIn, CheckOut: checkOut, Nights: 7, AvailabilityOrPrice: "129000",
		},
		{
			Resort: "Sunset Cove Resort", Location: "Marco Island, FL", UnitType: "Studio",
			CheckIn: checkIn, CheckOut: checkOut, Nights: 7,
		},
	}
}

func readCSV(t *testing.T, path string) [][]string {
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

func TestCSVExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "availability.csv")
	if err := (&CSVExporter{}).Export(sampleRecords(), path); err != nil {
		t.Fatalf("export: %v", err)
	}

	rows := readCSV(t, path)
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header + 2", len(rows))
	}
	if rows[0][0] != "resort" || rows[0][6] != "availabilityOrPrice" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][3] != "2026-06-01" || rows[1][4] != "2026-06-08" {
		t.Errorf("dates not ISO-8601: %v", rows[1])
	}
	if rows[2][6] != "" {
		t.Errorf("optional column = %q, want empty", rows[2][6])
	}

	// No temp droppings next to the artifact.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("output dir holds %d entries, want just the artifact", len(entries))
	}
}

func TestCSVExportEmptyRecordSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "availability.csv")
	if err := (&CSVExporter{}).Export(nil, path); err != nil {
		t.Fatalf("export: %v", err)
	}

	rows := readCSV(t, path)
	if len(rows) != 1 {
		t.Fatalf("empty set produced %d rows, want header only", len(rows))
	}
	if len(rows[0]) != len(Schema) {
		t.Errorf("header width = %d, want %d", len(rows[0]), len(Schema))
	}
}

func TestCSVExportDeterministic(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.csv")
	b := filepath.Join(dir, "b.csv")

	exp := &CSVExporter{}
	if err := exp.Export(sampleRecords(), a); err != nil {
		t.Fatal(err)
	}
	if err := exp.Export(sampleRecords(), b); err != nil {
		t.Fatal(err)
	}

	first, err := os.ReadFile(a)
	if err != nil {
		t.Fatal(err)
	}
	second, err := os.ReadFile(b)
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Error("same record set produced different CSV bytes")
	}
}

func TestXLSXExportMatchesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "availability.xlsx")
	if err := (&XLSXExporter{}).Export(sampleRecords(), path); err != nil {
		t.Fatalf("export: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Availability")
	if err != nil {
		t.Fatalf("read sheet: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header + 2", len(rows))
	}
	for i, col := range Schema {
		if rows[0][i] != col {
			t.Errorf("header column %d = %q, want %q", i, rows[0][i], col)
		}
	}
	if rows[1][0] != "Orange Lake Resort" || rows[1][5] != "7" {
		t.Errorf("first data row = %v", rows[1])
	}
}

func TestPipelineContinuesPastFailingDestination(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "availability.csv")

	p := NewPipeline(utils.NewLogger())
	written, err := p.Export(sampleRecords(), []models.ExportDestination{
		{Format: "parquet", Path: filepath.Join(dir, "availability.parquet")},
		{Format: "csv", Path: csvPath},
	})

	if written != 1 {
		t.Errorf("written = %d, want 1", written)
	}
	var expErr *ExportError
	if !errors.As(err, &expErr) {
		t.Fatalf("error = %v, want ExportError for the unknown format", err)
	}
	if expErr.Format != "parquet" {
		t.Errorf("failed format = %q", expErr.Format)
	}
	if rows := readCSV(t, csvPath); len(rows) != 3 {
		t.Errorf("surviving destination has %d rows", len(rows))
	}
}

func TestPipelineAllDestinations(t *testing.T) {
	dir := t.TempDir()
	p := NewPipeline(utils.NewLogger())

	written, err := p.Export(sampleRecords(), []models.ExportDestination{
		{Format: "csv", Path: filepath.Join(dir, "availability.csv")},
		{Format: "xlsx", Path: filepath.Join(dir, "availability.xlsx")},
	})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if written != 2 {
		t.Errorf("written = %d, want 2", written)
	}
}
