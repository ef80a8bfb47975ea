package record

import (
	"fmt"
	"sort"

	"github.com/veridian-health/readmit/pkg/chrono"
)

// Encounter is one clinical visit. Per patient, encounters are totally
// ordered by start time, ties broken by encounter id.
type Encounter struct {
	ID        string
	PatientID string
	Start     chrono.Instant
	Stop      chrono.Instant
	Class     string
}

// Condition is a diagnosed condition instance. It references an encounter
// only indirectly, through patient id and time.
type Condition struct {
	PatientID string
	Code      string
	Onset     chrono.Instant
}

// Medication is a prescribed medication instance.
type Medication struct {
	PatientID string
	Code      string
	Start     chrono.Instant
}

// Label is the 30-day readmission outcome of one encounter. Known is false
// when the outcome cannot be determined: the encounter is the patient's last
// recorded one, or the record ordering is malformed.
type Label struct {
	Readmitted bool
	Known      bool
}

func Readmitted(yes bool) Label {
	return Label{Readmitted: yes, Known: true}
}

func Indeterminate() Label {
	return Label{}
}

// Int returns the label as 0/1, or nil when indeterminate. This is the form
// the dataset sink and the training consumer see.
func (l Label) Int() *int {
	if !l.Known {
		return nil
	}
	v := 0
	if l.Readmitted {
		v = 1
	}
	return &v
}

// FeatureRow is the processed dataset row, one per encounter.
type FeatureRow struct {
	EncounterID          string  `json:"encounter_id"`
	PatientID            string  `json:"patient_id"`
	LengthHours          float64 `json:"encounter_length_hours"`
	Class                string  `json:"encounter_class"`
	Conditions365d       int     `json:"conditions_365d"`
	UniqueConditions365d int     `json:"unique_conditions_365d"`
	Meds365d             int     `json:"meds_365d"`
	UniqueMeds365d       int     `json:"unique_meds_365d"`
	Label                Label   `json:"-"`
}

// InvalidIntervalError reports an encounter whose stop time predates its
// start time. The record is excluded and the fault counted.
type InvalidIntervalError struct {
	EncounterID string
}

func (e *InvalidIntervalError) Error() string {
	return fmt.Sprintf("encounter %s: stop time before start time", e.EncounterID)
}

// SortEncounters establishes the per-patient total order: start time first,
// encounter id as the deterministic tie-break.
func SortEncounters(encounters []Encounter) {
	sort.Slice(encounters, func(i, j int) bool {
		if !encounters[i].Start.Equal(encounters[j].Start) {
			return encounters[i].Start.Before(encounters[j].Start)
		}
		return encounters[i].ID < encounters[j].ID
	})
}

// SortConditions orders condition events by onset time, then code, so window
// scans are deterministic regardless of input row order.
func SortConditions(conditions []Condition) {
	sort.Slice(conditions, func(i, j int) bool {
		if !conditions[i].Onset.Equal(conditions[j].Onset) {
			return conditions[i].Onset.Before(conditions[j].Onset)
		}
		return conditions[i].Code < conditions[j].Code
	})
}

// SortMedications orders medication events by start time, then code.
func SortMedications(medications []Medication) {
	sort.Slice(medications, func(i, j int) bool {
		if !medications[i].Start.Equal(medications[j].Start) {
			return medications[i].Start.Before(medications[j].Start)
		}
		return medications[i].Code < medications[j].Code
	})
}
