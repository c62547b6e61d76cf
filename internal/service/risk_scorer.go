package service

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/iop-forecast-server/internal/domain"
)

// Fixed heuristic weights. These encode the additive point model for
// glaucoma progression risk; they are constants of the product, not
// fitted parameters.
const (
	ageOnsetYears    = 40.0 // risk accrues only past this age
	agePointsPerYear = 0.5

	sleepPointsPerStep    = 2.0 // per point of sleep quality below 10
	stressPointsPerStep   = 1.5
	activityPointsPerStep = 1.2 // per point of activity below 10

	bpStage2Points = 8.0 // systolic > 140 or diastolic > 90
	bpStage1Points = 4.0 // systolic > 130 or diastolic > 80

	diabetesPoints    = 12.0 // type 1 or type 2
	prediabetesPoints = 6.0

	familyMultiplePoints = 15.0
	familySinglePoints   = 8.0 // one affected parent or sibling

	doseOverdueAfterHours = 24.0
	doseOverduePerHour    = 0.8

	// BaselineIOP is the population baseline pressure in mmHg around which
	// the personalized average scales.
	baselineIOP = 14.0

	// riskIOPScale maps a 100% risk score to a 60% elevation over baseline.
	riskIOPScale = 0.6
)

// riskMessages are the four advisory templates keyed by level.
var riskMessages = map[domain.RiskLevel]string{
	domain.RiskLow:      "Current treatment appears to be working effectively. Continue current regimen.",
	domain.RiskModerate: "Elevated risk detected. Consider adjusting treatment schedule or medication.",
	domain.RiskHigh:     "High risk of elevated IOP. Recommend immediate consultation with ophthalmologist.",
	domain.RiskCritical: "Critical risk level. Emergency ophthalmology consultation required.",
}

// RiskScorer computes the instantaneous risk assessment from a patient
// attribute snapshot. It is pure and total: any finite in-range input
// yields a valid assessment, out-of-range numbers saturate rather than
// error. Input validation belongs to the request layer.
type RiskScorer struct {
	logger *logrus.Logger
}

// NewRiskScorer creates a new risk scorer.
func NewRiskScorer(logger *logrus.Logger) *RiskScorer {
	return &RiskScorer{logger: logger}
}

// Factors returns the per-factor contribution breakdown. The forecast
// engine shares this sub-score so the hourly curve and the instantaneous
// assessment stay internally consistent for the same patient.
func (s *RiskScorer) Factors(attrs domain.PatientAttributes) domain.RiskFactors {
	f := domain.RiskFactors{
		Age:              math.Max(0, (float64(attrs.Age)-ageOnsetYears)*agePointsPerYear),
		SleepQuality:     (10 - float64(attrs.SleepQuality)) * sleepPointsPerStep,
		StressLevel:      float64(attrs.StressLevel) * stressPointsPerStep,
		PhysicalActivity: (10 - float64(attrs.PhysicalActivity)) * activityPointsPerStep,
	}

	// Mutually exclusive, first match wins.
	switch {
	case attrs.SystolicBP > 140 || attrs.DiastolicBP > 90:
		f.BloodPressure = bpStage2Points
	case attrs.SystolicBP > 130 || attrs.DiastolicBP > 80:
		f.BloodPressure = bpStage1Points
	}

	switch attrs.DiabetesStatus {
	case domain.DiabetesType1, domain.DiabetesType2:
		f.Diabetes = diabetesPoints
	case domain.Prediabetes:
		f.Diabetes = prediabetesPoints
	}

	switch attrs.FamilyHistory {
	case domain.FamilyHistoryMultiple:
		f.FamilyHistory = familyMultiplePoints
	case domain.FamilyHistoryParent, domain.FamilyHistorySibling:
		f.FamilyHistory = familySinglePoints
	}

	if h := float64(attrs.LastDropHours); h > doseOverdueAfterHours {
		f.TimeSinceDose = (h - doseOverdueAfterHours) * doseOverduePerHour
	}

	return f
}

// Compute evaluates the additive risk score and derives the assessment.
func (s *RiskScorer) Compute(attrs domain.PatientAttributes) domain.RiskAssessment {
	factors := s.Factors(attrs)

	pct := round1(clamp(factors.Total(), 0, 100))
	level := domain.RiskLevelFromPercentage(pct)
	avgIOP := round1(baselineIOP * (1 + pct/100*riskIOPScale))

	s.logger.WithFields(logrus.Fields{
		"risk_percentage": pct,
		"risk_level":      level,
		"average_iop":     avgIOP,
	}).Debug("Computed risk assessment")

	return domain.RiskAssessment{
		RiskPercentage:      pct,
		RiskLevel:           level,
		AveragePredictedIOP: avgIOP,
		Message:             riskMessages[level],
	}
}

// round1 rounds to one decimal place, the service-wide display precision.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
