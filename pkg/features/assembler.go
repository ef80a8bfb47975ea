package features

import (
	"fmt"

	"github.com/veridian-health/readmit/pkg/history"
	"github.com/veridian-health/readmit/pkg/record"
)

// Assemble joins encounter attributes, labels and historical aggregates into
// one FeatureRow per encounter. The three slices must be aligned by index
// (one patient's encounters in total order, with the outputs of the label
// constructor and the aggregator).
//
// Rows with an indeterminate label are retained: dropping untrainable rows is
// a training-stage decision behind an explicit flag, never done here.
func Assemble(encounters []record.Encounter, labels []record.Label, aggs []history.Aggregates) ([]record.FeatureRow, error) {
	if len(labels) != len(encounters) || len(aggs) != len(encounters) {
		return nil, fmt.Errorf("misaligned inputs: %d encounters, %d labels, %d aggregates",
			len(encounters), len(labels), len(aggs))
	}

	rows := make([]record.FeatureRow, 0, len(encounters))
	for i, enc := range encounters {
		length := enc.Stop.Sub(enc.Start).Hours()
		if length < 0 {
			return nil, &record.InvalidIntervalError{EncounterID: enc.ID}
		}
		rows = append(rows, record.FeatureRow{
			EncounterID:          enc.ID,
			PatientID:            enc.PatientID,
			LengthHours:          length,
			Class:                enc.Class,
			Conditions365d:       aggs[i].Conditions,
			UniqueConditions365d: aggs[i].UniqueConditions,
			Meds365d:             aggs[i].Medications,
			UniqueMeds365d:       aggs[i].UniqueMedications,
			Label:                labels[i],
		})
	}
	return rows, nil
}
