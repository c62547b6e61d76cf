package service

import (
	"github.com/iop-forecast-server/internal/domain"
)

// AssembleForecast packages the computed parts into the response contract.
// Pure composition: no computation, no validation. Callers guarantee
// well-formed sub-parts.
func AssembleForecast(
	assessment domain.RiskAssessment,
	predictions []domain.HourlyPrediction,
	analysis domain.CircadianAnalysis,
	optimalDropTime string,
) domain.ForecastResponse {
	return domain.ForecastResponse{
		Predictions:       predictions,
		OptimalDropTime:   optimalDropTime,
		CircadianAnalysis: analysis,
		RiskAssessment: domain.ForecastRiskAssessment{
			Level:          assessment.RiskLevel,
			Message:        assessment.Message,
			RiskPercentage: assessment.RiskPercentage,
		},
	}
}
