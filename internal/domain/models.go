package domain

import (
	"time"
)

// Core Data Models

// PatientAttributes is the validated lifestyle/clinical snapshot supplied by
// the request layer. It is immutable per request: the scoring and forecast
// functions never mutate it and never read state outside of it.
type PatientAttributes struct {
	Age              int            `json:"age"`
	Gender           Gender         `json:"gender"`
	SleepQuality     int            `json:"sleep_quality"`     // 1-10, 10 = best
	StressLevel      int            `json:"stress_level"`      // 1-10, 10 = most stressed
	PhysicalActivity int            `json:"physical_activity"` // 1-10, 10 = most active
	DiabetesStatus   DiabetesStatus `json:"diabetes_status"`
	BloodSugar       *int           `json:"blood_sugar,omitempty"` // mg/dL, only meaningful with diabetes
	SystolicBP       int            `json:"systolic_bp"`
	DiastolicBP      int            `json:"diastolic_bp"`
	FamilyHistory    FamilyHistory  `json:"family_history"`
	Medication       Medication     `json:"current_medications"`
	LastDropHours    int            `json:"last_drop_hours"` // hours since last dose, >= 0
}

// RiskAssessment is the instantaneous risk evaluation for a patient,
// recomputed on every invocation and never persisted by the core.
type RiskAssessment struct {
	RiskPercentage      float64   `json:"risk_percentage"`
	RiskLevel           RiskLevel `json:"risk_level"`
	AveragePredictedIOP float64   `json:"average_predicted_iop"` // mmHg
	Message             string    `json:"message"`
}

// HourlyPrediction is one point of the 24-hour forecast curve.
type HourlyPrediction struct {
	Hour         int       `json:"hour"` // 0-23
	PredictedIOP float64   `json:"predicted_iop"`
	RiskLevel    RiskLevel `json:"risk_level"` // mmHg taxonomy, not percentage
}

// CircadianAnalysis summarizes the 24-hour curve.
type CircadianAnalysis struct {
	PeakIOP    float64 `json:"peak_iop"`
	TroughIOP  float64 `json:"trough_iop"`
	AverageIOP float64 `json:"average_iop"`
}

// ForecastRiskAssessment is the point-in-time assessment embedded in a
// forecast response. The wire layout differs from the standalone
// RiskAssessment shape: level and message lead, and the average is omitted.
type ForecastRiskAssessment struct {
	Level          RiskLevel `json:"level"`
	Message        string    `json:"message"`
	RiskPercentage float64   `json:"risk_percentage"`
}

// ForecastResponse is the full 24-hour payload returned to callers. The
// field names are the external contract the dashboard relies on.
type ForecastResponse struct {
	Predictions       []HourlyPrediction     `json:"predictions"`
	OptimalDropTime   string                 `json:"optimal_drop_time"`
	CircadianAnalysis CircadianAnalysis      `json:"circadian_analysis"`
	RiskAssessment    ForecastRiskAssessment `json:"risk_assessment"`
}

// RiskFactors is the per-factor contribution breakdown shared between the
// risk scorer and the forecast engine so the instantaneous score and the
// hourly curve describe the same patient on the same day.
type RiskFactors struct {
	Age              float64
	SleepQuality     float64
	StressLevel      float64
	PhysicalActivity float64
	BloodPressure    float64
	Diabetes         float64
	FamilyHistory    float64
	TimeSinceDose    float64
}

// Total returns the raw (unclamped) additive score.
func (f RiskFactors) Total() float64 {
	return f.Age + f.SleepQuality + f.StressLevel + f.PhysicalActivity +
		f.BloodPressure + f.Diabetes + f.FamilyHistory + f.TimeSinceDose
}

// Persistence Models

// ForecastRecord is a stored forecast for later dashboard retrieval. The
// core computes and returns; persistence is best-effort and owned by the
// history store.
type ForecastRecord struct {
	ID           string            `json:"id"`
	PatientLabel string            `json:"patient_label,omitempty"`
	Attributes   PatientAttributes `json:"attributes"`
	Response     ForecastResponse  `json:"response"`
	CreatedAt    time.Time         `json:"created_at"`
}

// Configuration Models

// Config represents the main application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	History  HistoryConfig  `mapstructure:"history"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration.
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
}

// DatabaseConfig represents PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// HistoryConfig selects and configures the forecast history store.
type HistoryConfig struct {
	Backend       string `mapstructure:"backend"` // "sqlite" or "postgres"
	SQLitePath    string `mapstructure:"sqlite_path"`
	RetentionDays int    `mapstructure:"retention_days"` // 0 disables the sweep
}

// CacheConfig represents the forecast cache configuration.
type CacheConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	RedisURL    string        `mapstructure:"redis_url"`
	DefaultTTL  time.Duration `mapstructure:"default_ttl"`
	MaxRetries  int           `mapstructure:"max_retries"`
	PoolSize    int           `mapstructure:"pool_size"`
	PoolTimeout time.Duration `mapstructure:"pool_timeout"`
	LRUSize     int           `mapstructure:"lru_size"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "text"
}
