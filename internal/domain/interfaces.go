package domain

import (
	"context"
	"io"
)

// RiskScorer maps a patient attribute snapshot to an instantaneous risk
// assessment. Implementations must be pure and deterministic.
type RiskScorer interface {
	Compute(attrs PatientAttributes) RiskAssessment
	Factors(attrs PatientAttributes) RiskFactors
}

// ForecastEngine maps a patient attribute snapshot to the full 24-hour
// forecast payload. Implementations must be pure and deterministic.
type ForecastEngine interface {
	Compute(attrs PatientAttributes) ForecastResponse
}

// HistoryStore persists generated forecasts for dashboard retrieval.
type HistoryStore interface {
	Save(ctx context.Context, record *ForecastRecord) error
	GetByID(ctx context.Context, id string) (*ForecastRecord, error)
	List(ctx context.Context, limit int) ([]*ForecastRecord, error)
	DeleteOlderThan(ctx context.Context, days int) (int64, error)
	Export(ctx context.Context, w io.Writer) error
	Close() error
}

// ForecastCache is a cache-aside store for computed forecast responses,
// keyed by a digest of the attribute snapshot. A nil result with a nil
// error means a miss.
type ForecastCache interface {
	Get(ctx context.Context, attrs PatientAttributes) (*ForecastResponse, error)
	Set(ctx context.Context, attrs PatientAttributes, resp *ForecastResponse) error
}
