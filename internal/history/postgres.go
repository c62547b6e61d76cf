package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	_ "github.com/lib/pq"

	"github.com/iop-forecast-server/internal/domain"
)

// PostgresStore implements domain.HistoryStore using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL history store.
// It expects the schema to already exist (created via migrations).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL history store from a
// connection URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return NewPostgresStore(db)
}

// Save stores a forecast record.
func (s *PostgresStore) Save(ctx context.Context, record *domain.ForecastRecord) error {
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
		VALUES ($1, $2, $3, $4, $5)
	`, record.ID, record.PatientLabel, string(attrs), string(resp), record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save forecast: %w", err)
	}
	return nil
}

// GetByID retrieves a single forecast record.
func (s *PostgresStore) GetByID(ctx context.Context, id string) (*domain.ForecastRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, patient_label, attributes, response, created_at
		FROM forecasts WHERE id = $1
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
func (s *PostgresStore) List(ctx context.Context, limit int) ([]*domain.ForecastRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, patient_label, attributes, response, created_at
		FROM forecasts ORDER BY created_at DESC, id LIMIT $1
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
func (s *PostgresStore) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	result, err := s.db.ExecContext(ctx,
		"DELETE FROM forecasts WHERE created_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old forecasts: %w", err)
	}
	return result.RowsAffected()
}

// Export writes all records as a JSON array, newest first.
func (s *PostgresStore) Export(ctx context.Context, w io.Writer) error {
	records, err := s.List(ctx, exportLimit)
	if err != nil {
		return err
	}
	return exportJSON(w, records)
}

// Close closes the underlying database.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
