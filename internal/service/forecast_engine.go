package service

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/iop-forecast-server/internal/domain"
)

// Circadian and medication constants. IOP follows a diurnal rhythm with a
// single early-morning peak and a late-afternoon trough; topical drops
// lose efficacy over roughly half a day.
const (
	forecastHours = 24

	circadianAmplitude = 3.0 // mmHg swing around the personalized average
	circadianPeakHour  = 6.0 // early-morning peak, trough 12h later

	dropEfficacyHours  = 12.0 // suppression window after a dose
	dropMaxSuppression = 3.0  // mmHg reduction at dose time, decaying to zero
)

// ForecastEngine generates the 24-hour IOP curve and its timing analysis.
// The curve is a fixed cosine circadian baseline centered on the patient's
// personalized average pressure from the risk scorer, modulated by
// medication decay. Pure and deterministic: identical input yields
// bit-identical output.
type ForecastEngine struct {
	scorer *RiskScorer
	logger *logrus.Logger
}

// NewForecastEngine creates a forecast engine backed by the given scorer.
func NewForecastEngine(scorer *RiskScorer, logger *logrus.Logger) *ForecastEngine {
	return &ForecastEngine{scorer: scorer, logger: logger}
}

// Compute produces the full forecast payload for one patient snapshot.
// It always returns exactly 24 hourly entries, hours 0-23 in order.
func (e *ForecastEngine) Compute(attrs domain.PatientAttributes) domain.ForecastResponse {
	assessment := e.scorer.Compute(attrs)

	predictions := make([]domain.HourlyPrediction, 0, forecastHours)
	for hour := 0; hour < forecastHours; hour++ {
		iop := round1(e.hourlyIOP(attrs, assessment.AveragePredictedIOP, hour))
		predictions = append(predictions, domain.HourlyPrediction{
			Hour:         hour,
			PredictedIOP: iop,
			RiskLevel:    domain.RiskLevelFromIOP(iop),
		})
	}

	analysis, troughHour := analyzeCurve(predictions)

	e.logger.WithFields(logrus.Fields{
		"peak_iop":    analysis.PeakIOP,
		"trough_iop":  analysis.TroughIOP,
		"average_iop": analysis.AverageIOP,
		"trough_hour": troughHour,
	}).Debug("Generated 24-hour forecast")

	return AssembleForecast(assessment, predictions, analysis, formatHour(troughHour))
}

// hourlyIOP computes the unrounded pressure for one forecast hour.
func (e *ForecastEngine) hourlyIOP(attrs domain.PatientAttributes, averageIOP float64, hour int) float64 {
	// Cosine with a full 24h period: a 24-sample mean of the cosine term is
	// exactly zero, so the curve mean equals the personalized average.
	iop := averageIOP + circadianAmplitude*math.Cos(2*math.Pi*(float64(hour)-circadianPeakHour)/forecastHours)

	// Drops suppress pressure while still effective; the effect decays
	// linearly with total elapsed time since the last dose. Patients not on
	// medication get no suppression regardless of the reported interval.
	if attrs.Medication != domain.MedicationNone {
		elapsed := float64(attrs.LastDropHours + hour)
		if elapsed < dropEfficacyHours {
			iop -= dropMaxSuppression * (dropEfficacyHours - elapsed) / dropEfficacyHours
		}
	}

	return iop
}

// analyzeCurve derives peak/trough/average over the rounded hourly values
// and the trough hour. Ties on the minimum resolve to the earliest hour.
func analyzeCurve(predictions []domain.HourlyPrediction) (domain.CircadianAnalysis, int) {
	peak := predictions[0].PredictedIOP
	trough := predictions[0].PredictedIOP
	troughHour := predictions[0].Hour
	sum := 0.0

	for _, p := range predictions {
		sum += p.PredictedIOP
		if p.PredictedIOP > peak {
			peak = p.PredictedIOP
		}
		if p.PredictedIOP < trough {
			trough = p.PredictedIOP
			troughHour = p.Hour
		}
	}

	analysis := domain.CircadianAnalysis{
		PeakIOP:    round1(peak),
		TroughIOP:  round1(trough),
		AverageIOP: round1(sum / float64(len(predictions))),
	}
	return analysis, troughHour
}

// formatHour renders an hour index as the dashboard's "HH:00" time string.
// The trough hour is the recommended dosing time: pressure is lowest there,
// leaving the most headroom before the next circadian peak.
func formatHour(hour int) string {
	return fmt.Sprintf("%02d:00", hour)
}
