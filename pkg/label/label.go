package label

import (
	"time"

	"github.com/veridian-health/readmit/pkg/common/logger"
	"github.com/veridian-health/readmit/pkg/record"
)

// DefaultWindow is the readmission horizon: another encounter beginning
// within this much of a discharge counts as a readmission.
const DefaultWindow = 30 * 24 * time.Hour

// Assign computes the readmission label for each of one patient's encounters.
// The input must be the patient's full encounter history, already in the
// (start_time, encounter_id) total order; the result is aligned by index.
//
// For encounter e with successor e': gap = e'.start - e.stop. The label is 1
// when 0 <= gap <= window and 0 when gap > window. The last encounter is
// always indeterminate because the observation window is truncated there. A
// negative gap means overlapping or malformed records; rather than fabricate
// a label, the encounter is marked indeterminate and the fault counted.
func Assign(encounters []record.Encounter, window time.Duration, report *record.QualityReport) []record.Label {
	labels := make([]record.Label, len(encounters))
	for i := range encounters {
		if i == len(encounters)-1 {
			labels[i] = record.Indeterminate()
			continue
		}
		gap := encounters[i+1].Start.Sub(encounters[i].Stop)
		switch {
		case gap < 0:
			report.NegativeGaps++
			logger.Log.WithField("encounter_id", encounters[i].ID).
				Warn("next encounter starts before discharge; label withheld")
			labels[i] = record.Indeterminate()
		case gap <= window:
			labels[i] = record.Readmitted(true)
		default:
			labels[i] = record.Readmitted(false)
		}
	}
	return labels
}
