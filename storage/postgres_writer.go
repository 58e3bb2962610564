package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"clubscan/models"
)

// PostgresWriter appends each run's accepted records to a snapshot history
// table, keyed by run ID. Unlike the file destinations it accumulates across
// runs; it never participates in the per-run export schema contract.
type PostgresWriter struct {
	db *sql.DB
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(dsn string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pw := &PostgresWriter{db: db}
	if err := pw.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate() error {
	_, err := pw.db.Exec(`
		CREATE TABLE IF NOT EXISTS availability_snapshots (
			id           SERIAL PRIMARY KEY,
			run_id       VARCHAR(64) NOT NULL,
			resort       TEXT        NOT NULL,
			location     TEXT        NOT NULL,
			unit_type    TEXT        NOT NULL,
			check_in     DATE        NOT NULL,
			check_out    DATE        NOT NULL,
			nights       INT         NOT NULL,
			availability TEXT        NOT NULL DEFAULT '',
			scraped_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_snapshots_run_id  ON availability_snapshots(run_id);
		CREATE INDEX IF NOT EXISTS idx_snapshots_resort  ON availability_snapshots(resort);
		CREATE INDEX IF NOT EXISTS idx_snapshots_checkin ON availability_snapshots(check_in);
	`)
	return err
}

// WriteRun batch-inserts one run's records under its run ID.
func (pw *PostgresWriter) WriteRun(runID string, records []*models.AvailabilityRecord) error {
	if len(records) == 0 {
		return nil
	}

	const batchSize = 50
	for i := 0; i < len(records); i += batchSize {
		end := i + batchSize
		if end > len(records) {
			end = len(records)
		}
		if err := pw.insertBatch(runID, records[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (pw *PostgresWriter) insertBatch(runID string, batch []*models.AvailabilityRecord) error {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*8)

	for idx, r := range batch {
		base := idx * 8
		valueStrings = append(valueStrings,
			fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
				base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8))
		valueArgs = append(valueArgs,
			runID, r.Resort, r.Location, r.UnitType, r.CheckIn, r.CheckOut, r.Nights, r.AvailabilityOrPrice)
	}

	query := fmt.Sprintf(`
		INSERT INTO availability_snapshots (run_id, resort, location, unit_type, check_in, check_out, nights, availability)
		VALUES %s
	`, strings.Join(valueStrings, ","))

	_, err := pw.db.Exec(query, valueArgs...)
	return err
}

// Close releases the database connection.
func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}
