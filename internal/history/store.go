package history

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/iop-forecast-server/internal/domain"
)

// exportLimit caps a JSON export; the dashboard never renders more.
const exportLimit = 10000

// scanner is an interface over sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanRecord scans a row into a ForecastRecord, decoding the JSON columns.
func scanRecord(s scanner) (*domain.ForecastRecord, error) {
	record := &domain.ForecastRecord{}
	var attrs, resp string

	if err := s.Scan(&record.ID, &record.PatientLabel, &attrs, &resp, &record.CreatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(attrs), &record.Attributes); err != nil {
		return nil, fmt.Errorf("failed to decode attributes: %w", err)
	}
	if err := json.Unmarshal([]byte(resp), &record.Response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return record, nil
}

// exportJSON streams records as an indented JSON array.
func exportJSON(w io.Writer, records []*domain.ForecastRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if records == nil {
		records = []*domain.ForecastRecord{}
	}
	return enc.Encode(records)
}
