// Package domain contains the core business entities and types for
// intraocular pressure (IOP) risk scoring and 24-hour forecasting.
//
// IOP follows a well-documented diurnal rhythm, peaking in the early morning
// hours and troughing in the late afternoon/evening. The types here model a
// single patient's attribute snapshot and the derived risk/forecast outputs.
package domain

// RiskLevel represents a categorical risk classification.
//
// Two distinct taxonomies produce RiskLevel values and they must not be
// unified: the instantaneous assessment derives its level from a 0-100
// risk percentage, while hourly predictions derive theirs from absolute
// pressure in mmHg. See RiskLevelFromPercentage and RiskLevelFromIOP.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Gender represents the patient's reported gender.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// DiabetesStatus represents the patient's diabetes diagnosis.
type DiabetesStatus string

const (
	DiabetesNone  DiabetesStatus = "none"
	DiabetesType1 DiabetesStatus = "type1"
	DiabetesType2 DiabetesStatus = "type2"
	Prediabetes   DiabetesStatus = "prediabetes"
)

// FamilyHistory represents glaucoma occurrence among first-degree relatives.
type FamilyHistory string

const (
	FamilyHistoryNone     FamilyHistory = "none"
	FamilyHistoryParent   FamilyHistory = "parent"
	FamilyHistorySibling  FamilyHistory = "sibling"
	FamilyHistoryMultiple FamilyHistory = "multiple"
)

// Medication represents the patient's current topical glaucoma medication.
type Medication string

const (
	MedicationNone        Medication = "none"
	MedicationTimolol     Medication = "timolol"
	MedicationLatanoprost Medication = "latanoprost"
	MedicationBrimonidine Medication = "brimonidine"
	MedicationDorzolamide Medication = "dorzolamide"
	MedicationCombination Medication = "combination"
)

// Valid reports whether the risk level is a known value.
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskModerate, RiskHigh, RiskCritical:
		return true
	}
	return false
}

// Valid reports whether the gender is a known value.
func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

// Valid reports whether the diabetes status is a known value.
func (d DiabetesStatus) Valid() bool {
	switch d {
	case DiabetesNone, DiabetesType1, DiabetesType2, Prediabetes:
		return true
	}
	return false
}

// Valid reports whether the family history is a known value.
func (f FamilyHistory) Valid() bool {
	switch f {
	case FamilyHistoryNone, FamilyHistoryParent, FamilyHistorySibling, FamilyHistoryMultiple:
		return true
	}
	return false
}

// Valid reports whether the medication is a known value.
func (m Medication) Valid() bool {
	switch m {
	case MedicationNone, MedicationTimolol, MedicationLatanoprost,
		MedicationBrimonidine, MedicationDorzolamide, MedicationCombination:
		return true
	}
	return false
}

// RiskLevelFromPercentage maps an instantaneous risk percentage to its
// categorical level. Thresholds are half-open on the lower bound:
// [0,20) low, [20,40) moderate, [40,70) high, 70 and above critical.
func RiskLevelFromPercentage(pct float64) RiskLevel {
	switch {
	case pct < 20:
		return RiskLow
	case pct < 40:
		return RiskModerate
	case pct < 70:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// RiskLevelFromIOP maps an absolute pressure in mmHg to the per-hour display
// level: <15 low, [15,18) moderate, [18,21) high, 21 and above critical.
// These thresholds are intentionally distinct from the percentage taxonomy.
func RiskLevelFromIOP(iop float64) RiskLevel {
	switch {
	case iop < 15:
		return RiskLow
	case iop < 18:
		return RiskModerate
	case iop < 21:
		return RiskHigh
	default:
		return RiskCritical
	}
}
