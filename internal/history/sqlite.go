// Package history persists generated forecasts for dashboard retrieval.
// Two backends implement domain.HistoryStore: an embedded SQLite store
// (the default, no external services) and PostgreSQL for shared
// deployments. Persistence is best-effort from the compute path's point of
// view; a store failure never fails a forecast request.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/iop-forecast-server/internal/domain"
)

// SQLiteStore implements domain.HistoryStore using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite history store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

// createSchema creates the forecasts table and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS forecasts (
		id TEXT PRIMARY KEY,
		patient_label TEXT DEFAULT '',
		attributes TEXT NOT NULL,
		response TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_forecasts_created_at ON forecasts(created_at);
	CREATE INDEX IF NOT EXISTS idx_forecasts_patient_label ON forecasts(patient_label);
	`

	_, err := db.Exec(schema)
	return err
}

// Save stores a forecast record.
func (s *SQLiteStore) Save(ctx context.Context, record *domain.ForecastRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	attrs, err := json.Marshal(record.Attributes)
	if err != nil {
		return fmt.Errorf("failed to encode attributes: %w", err)
	}
	resp, err := json.Marshal(record.Response)
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO forecasts (id, patient_label, attributes, response, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, record.ID, record.PatientLabel, string(attrs), string(resp), record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save forecast: %w", err)
	}
	return nil
}

// GetByID retrieves a single forecast record.
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (*domain.ForecastRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, patient_label, attributes, response, created_at
		FROM forecasts WHERE id = ?
	`, id)

	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get forecast: %w", err)
	}
	return record, nil
}

// List returns the most recent forecast records, newest first.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]*domain.ForecastRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, patient_label, attributes, response, created_at
		FROM forecasts ORDER BY created_at DESC, id LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list forecasts: %w", err)
	}
	defer rows.Close()

	var records []*domain.ForecastRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan forecast: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// DeleteOlderThan removes records older than the given number of days and
// returns how many were deleted.
func (s *SQLiteStore) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	result, err := s.db.ExecContext(ctx,
		"DELETE FROM forecasts WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old forecasts: %w", err)
	}
	return result.RowsAffected()
}

// Export writes all records as a JSON array, newest first.
func (s *SQLiteStore) Export(ctx context.Context, w io.Writer) error {
	records, err := s.List(ctx, exportLimit)
	if err != nil {
		return err
	}
	return exportJSON(w, records)
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
