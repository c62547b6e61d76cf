package service

import (
	"github.com/iop-forecast-server/internal/domain"
)

// Defaults applied to omitted request fields, matching the intake form's
// pre-filled values.
const (
	defaultAge              = 50
	defaultSleepQuality     = 7
	defaultStressLevel      = 4
	defaultPhysicalActivity = 5
	defaultLastDropHours    = 24
)

// ForecastRequest is the inbound JSON shape. Numeric fields are pointers so
// omitted values can be defaulted instead of zeroed; enum fields default to
// their "none" member when empty.
type ForecastRequest struct {
	Age              *int                  `json:"age"`
	Gender           domain.Gender         `json:"gender"`
	SleepQuality     *int                  `json:"sleep_quality"`
	StressLevel      *int                  `json:"stress_level"`
	PhysicalActivity *int                  `json:"physical_activity"`
	DiabetesStatus   domain.DiabetesStatus `json:"diabetes_status"`
	BloodSugar       *int                  `json:"blood_sugar"`
	SystolicBP       *int                  `json:"systolic_bp"`
	DiastolicBP      *int                  `json:"diastolic_bp"`
	FamilyHistory    domain.FamilyHistory  `json:"family_history"`
	Medication       domain.Medication     `json:"current_medications"`
	LastDropHours    *int                  `json:"last_drop_hours"`
	PatientLabel     string                `json:"patient_label"`
}

// InputParser validates request payloads and produces the immutable
// attribute snapshot the core consumes. The core itself never re-validates:
// everything past this boundary is in-range by contract.
type InputParser struct{}

// NewInputParser creates a new input parser.
func NewInputParser() *InputParser {
	return &InputParser{}
}

// Parse applies defaults, validates ranges and enum members, and returns
// the attribute snapshot. The first violation is returned as a
// ValidationError wrapping domain.ErrInvalidInput.
func (p *InputParser) Parse(req *ForecastRequest) (domain.PatientAttributes, error) {
	attrs := domain.PatientAttributes{
		Age:              intOr(req.Age, defaultAge),
		Gender:           req.Gender,
		SleepQuality:     intOr(req.SleepQuality, defaultSleepQuality),
		StressLevel:      intOr(req.StressLevel, defaultStressLevel),
		PhysicalActivity: intOr(req.PhysicalActivity, defaultPhysicalActivity),
		DiabetesStatus:   req.DiabetesStatus,
		BloodSugar:       req.BloodSugar,
		SystolicBP:       intOr(req.SystolicBP, 0),
		DiastolicBP:      intOr(req.DiastolicBP, 0),
		FamilyHistory:    req.FamilyHistory,
		Medication:       req.Medication,
		LastDropHours:    intOr(req.LastDropHours, defaultLastDropHours),
	}

	if attrs.Gender == "" {
		attrs.Gender = domain.GenderOther
	}
	if attrs.DiabetesStatus == "" {
		attrs.DiabetesStatus = domain.DiabetesNone
	}
	if attrs.FamilyHistory == "" {
		attrs.FamilyHistory = domain.FamilyHistoryNone
	}
	if attrs.Medication == "" {
		attrs.Medication = domain.MedicationNone
	}

	if err := validate(attrs, req); err != nil {
		return domain.PatientAttributes{}, err
	}
	return attrs, nil
}

func validate(attrs domain.PatientAttributes, req *ForecastRequest) error {
	switch {
	case attrs.Age < 18 || attrs.Age > 100:
		return domain.NewValidationError("age", "must be between 18 and 100", attrs.Age)
	case !attrs.Gender.Valid():
		return domain.NewValidationError("gender", "must be one of male, female, other", string(attrs.Gender))
	case attrs.SleepQuality < 1 || attrs.SleepQuality > 10:
		return domain.NewValidationError("sleep_quality", "must be between 1 and 10", attrs.SleepQuality)
	case attrs.StressLevel < 1 || attrs.StressLevel > 10:
		return domain.NewValidationError("stress_level", "must be between 1 and 10", attrs.StressLevel)
	case attrs.PhysicalActivity < 1 || attrs.PhysicalActivity > 10:
		return domain.NewValidationError("physical_activity", "must be between 1 and 10", attrs.PhysicalActivity)
	case !attrs.DiabetesStatus.Valid():
		return domain.NewValidationError("diabetes_status", "must be one of none, type1, type2, prediabetes", string(attrs.DiabetesStatus))
	case req.SystolicBP == nil:
		return domain.NewValidationError("systolic_bp", "is required", nil)
	case req.DiastolicBP == nil:
		return domain.NewValidationError("diastolic_bp", "is required", nil)
	case attrs.SystolicBP < 60 || attrs.SystolicBP > 260:
		return domain.NewValidationError("systolic_bp", "must be between 60 and 260 mmHg", attrs.SystolicBP)
	case attrs.DiastolicBP < 30 || attrs.DiastolicBP > 160:
		return domain.NewValidationError("diastolic_bp", "must be between 30 and 160 mmHg", attrs.DiastolicBP)
	case !attrs.FamilyHistory.Valid():
		return domain.NewValidationError("family_history", "must be one of none, parent, sibling, multiple", string(attrs.FamilyHistory))
	case !attrs.Medication.Valid():
		return domain.NewValidationError("current_medications", "unknown medication", string(attrs.Medication))
	case attrs.LastDropHours < 0:
		return domain.NewValidationError("last_drop_hours", "must be zero or positive", attrs.LastDropHours)
	}

	// Blood sugar is only meaningful alongside a diabetes diagnosis.
	if attrs.BloodSugar != nil {
		if attrs.DiabetesStatus == domain.DiabetesNone {
			return domain.NewValidationError("blood_sugar", "only valid with a diabetes diagnosis", *attrs.BloodSugar)
		}
		if *attrs.BloodSugar < 20 || *attrs.BloodSugar > 600 {
			return domain.NewValidationError("blood_sugar", "must be between 20 and 600 mg/dL", *attrs.BloodSugar)
		}
	}

	return nil
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}
