package cache

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iop-forecast-server/internal/domain"
)

func testCache(t *testing.T, cfg domain.CacheConfig) *ForecastCache {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	fc, err := New(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { fc.Close() })
	return fc
}

func sampleAttrs() domain.PatientAttributes {
	return domain.PatientAttributes{
		Age:              62,
		Gender:           domain.GenderFemale,
		SleepQuality:     5,
		StressLevel:      6,
		PhysicalActivity: 3,
		DiabetesStatus:   domain.DiabetesNone,
		SystolicBP:       138,
		DiastolicBP:      88,
		FamilyHistory:    domain.FamilyHistoryParent,
		Medication:       domain.MedicationLatanoprost,
		LastDropHours:    10,
	}
}

func sampleResponse() *domain.ForecastResponse {
	return &domain.ForecastResponse{
		Predictions: []domain.HourlyPrediction{
			{Hour: 0, PredictedIOP: 16.2, RiskLevel: domain.RiskModerate},
		},
		OptimalDropTime: "18:00",
		CircadianAnalysis: domain.CircadianAnalysis{
			PeakIOP:    18.9,
			TroughIOP:  12.9,
			AverageIOP: 15.9,
		},
		RiskAssessment: domain.ForecastRiskAssessment{
			Level:          domain.RiskModerate,
			Message:        "msg",
			RiskPercentage: 23.0,
		},
	}
}

func TestKeyDeterministic(t *testing.T) {
	a := sampleAttrs()
	b := sampleAttrs()
	assert.Equal(t, Key(a), Key(b))
	assert.Len(t, Key(a), 64)
}

func TestKeyDistinguishesAttributes(t *testing.T) {
	a := sampleAttrs()
	b := sampleAttrs()
	b.StressLevel = 9
	assert.NotEqual(t, Key(a), Key(b))

	sugar := 150
	c := sampleAttrs()
	c.BloodSugar = &sugar
	assert.NotEqual(t, Key(a), Key(c))
}

func TestLRURoundtrip(t *testing.T) {
	fc := testCache(t, domain.CacheConfig{Enabled: true, LRUSize: 8, DefaultTTL: time.Minute})
	ctx := context.Background()
	attrs := sampleAttrs()

	got, err := fc.Get(ctx, attrs)
	require.NoError(t, err)
	assert.Nil(t, got, "expected miss before Set")

	require.NoError(t, fc.Set(ctx, attrs, sampleResponse()))

	got, err = fc.Get(ctx, attrs)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, *sampleResponse(), *got)
}

func TestExpiredEntryIsAMiss(t *testing.T) {
	fc := testCache(t, domain.CacheConfig{Enabled: true, LRUSize: 8, DefaultTTL: time.Minute})
	fc.ttl = -time.Second // entries written already expired

	ctx := context.Background()
	attrs := sampleAttrs()
	require.NoError(t, fc.Set(ctx, attrs, sampleResponse()))

	got, err := fc.Get(ctx, attrs)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLRUEviction(t *testing.T) {
	fc := testCache(t, domain.CacheConfig{Enabled: true, LRUSize: 2, DefaultTTL: time.Minute})
	ctx := context.Background()

	first := sampleAttrs()
	second := sampleAttrs()
	second.Age = 30
	third := sampleAttrs()
	third.Age = 40

	require.NoError(t, fc.Set(ctx, first, sampleResponse()))
	require.NoError(t, fc.Set(ctx, second, sampleResponse()))
	require.NoError(t, fc.Set(ctx, third, sampleResponse()))

	got, err := fc.Get(ctx, first)
	require.NoError(t, err)
	assert.Nil(t, got, "oldest entry should have been evicted")

	got, err = fc.Get(ctx, third)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestGetReturnsCopy(t *testing.T) {
	fc := testCache(t, domain.CacheConfig{Enabled: true, LRUSize: 8, DefaultTTL: time.Minute})
	ctx := context.Background()
	attrs := sampleAttrs()

	require.NoError(t, fc.Set(ctx, attrs, sampleResponse()))

	first, err := fc.Get(ctx, attrs)
	require.NoError(t, err)
	first.OptimalDropTime = "mutated"

	second, err := fc.Get(ctx, attrs)
	require.NoError(t, err)
	assert.Equal(t, "18:00", second.OptimalDropTime)
}
