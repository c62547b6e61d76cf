package service

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iop-forecast-server/internal/domain"
)

func TestAssembleForecast_WireLayout(t *testing.T) {
	assessment := domain.RiskAssessment{
		RiskPercentage:      23.0,
		RiskLevel:           domain.RiskModerate,
		AveragePredictedIOP: 15.9,
		Message:             "Elevated risk detected. Consider adjusting treatment schedule or medication.",
	}
	predictions := []domain.HourlyPrediction{
		{Hour: 0, PredictedIOP: 14.4, RiskLevel: domain.RiskLow},
		{Hour: 1, PredictedIOP: 15.2, RiskLevel: domain.RiskModerate},
	}
	analysis := domain.CircadianAnalysis{PeakIOP: 18.9, TroughIOP: 12.9, AverageIOP: 15.9}

	resp := AssembleForecast(assessment, predictions, analysis, "18:00")

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var wire map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &wire))

	// Top-level contract the dashboard relies on.
	assert.Len(t, wire, 4)
	assert.Contains(t, wire, "predictions")
	assert.Contains(t, wire, "optimal_drop_time")
	assert.Contains(t, wire, "circadian_analysis")
	assert.Contains(t, wire, "risk_assessment")

	var preds []map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(wire["predictions"], &preds))
	require.Len(t, preds, 2)
	assert.Len(t, preds[0], 3)
	assert.Contains(t, preds[0], "hour")
	assert.Contains(t, preds[0], "predicted_iop")
	assert.Contains(t, preds[0], "risk_level")

	var circadian map[string]float64
	require.NoError(t, json.Unmarshal(wire["circadian_analysis"], &circadian))
	assert.Equal(t, map[string]float64{"peak_iop": 18.9, "trough_iop": 12.9, "average_iop": 15.9}, circadian)

	var risk map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(wire["risk_assessment"], &risk))
	assert.Len(t, risk, 3)
	assert.Contains(t, risk, "level")
	assert.Contains(t, risk, "message")
	assert.Contains(t, risk, "risk_percentage")
}

func TestAssembleForecast_NoComputation(t *testing.T) {
	// The assembler composes; it must not reorder, filter or derive.
	assessment := domain.RiskAssessment{RiskLevel: domain.RiskHigh, RiskPercentage: 55.5, Message: "m"}
	predictions := []domain.HourlyPrediction{{Hour: 5, PredictedIOP: 99.9, RiskLevel: domain.RiskCritical}}
	analysis := domain.CircadianAnalysis{PeakIOP: 1, TroughIOP: 2, AverageIOP: 3}

	resp := AssembleForecast(assessment, predictions, analysis, "07:00")

	assert.Equal(t, predictions, resp.Predictions)
	assert.Equal(t, analysis, resp.CircadianAnalysis)
	assert.Equal(t, "07:00", resp.OptimalDropTime)
	assert.Equal(t, domain.RiskHigh, resp.RiskAssessment.Level)
	assert.Equal(t, 55.5, resp.RiskAssessment.RiskPercentage)
	assert.Equal(t, "m", resp.RiskAssessment.Message)
}

func TestRiskAssessment_StandaloneWireLayout(t *testing.T) {
	assessment := domain.RiskAssessment{
		RiskPercentage:      23.0,
		RiskLevel:           domain.RiskModerate,
		AveragePredictedIOP: 15.9,
		Message:             "m",
	}

	data, err := json.Marshal(assessment)
	require.NoError(t, err)

	var wire map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &wire))
	assert.Len(t, wire, 4)
	assert.Contains(t, wire, "risk_percentage")
	assert.Contains(t, wire, "risk_level")
	assert.Contains(t, wire, "average_predicted_iop")
	assert.Contains(t, wire, "message")
}
