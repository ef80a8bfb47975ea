package training

import (
	"sort"
	"strings"

	"github.com/veridian-health/readmit/pkg/record"
)

// NumericFeatures are the dataset columns fed to the model as-is, in a fixed
// order shared between training and serving.
var NumericFeatures = []string{
	"encounter_length_hours",
	"conditions_365d",
	"unique_conditions_365d",
	"meds_365d",
	"unique_meds_365d",
}

// ClassFeaturePrefix prefixes the one-hot encounter-class features.
const ClassFeaturePrefix = "class_"

// Encoder turns feature rows into dense sample vectors: the numeric columns
// followed by a one-hot encoding of encounter_class. An encounter class not
// seen at fit time encodes as all zeros, so unknown classes degrade gracefully
// instead of being rejected.
type Encoder struct {
	FeatureNames []string
	classIndex   map[string]int
}

// NewEncoder fixes the feature layout from the training rows. Classes are
// sorted so the layout is deterministic.
func NewEncoder(rows []record.FeatureRow) *Encoder {
	classSet := make(map[string]struct{})
	for _, row := range rows {
		classSet[normalizeClass(row.Class)] = struct{}{}
	}
	classes := make([]string, 0, len(classSet))
	for c := range classSet {
		classes = append(classes, c)
	}
	sort.Strings(classes)

	names := make([]string, 0, len(NumericFeatures)+len(classes))
	names = append(names, NumericFeatures...)
	classIndex := make(map[string]int, len(classes))
	for _, c := range classes {
		classIndex[c] = len(names)
		names = append(names, ClassFeaturePrefix+c)
	}
	return &Encoder{FeatureNames: names, classIndex: classIndex}
}

// Encode produces one sample vector.
func (e *Encoder) Encode(row record.FeatureRow) []float64 {
	sample := make([]float64, len(e.FeatureNames))
	sample[0] = row.LengthHours
	sample[1] = float64(row.Conditions365d)
	sample[2] = float64(row.UniqueConditions365d)
	sample[3] = float64(row.Meds365d)
	sample[4] = float64(row.UniqueMeds365d)
	if idx, ok := e.classIndex[normalizeClass(row.Class)]; ok {
		sample[idx] = 1
	}
	return sample
}

// Matrix encodes all rows plus their labels. Rows must all be labeled;
// indeterminate rows are the dataset reader's concern.
func (e *Encoder) Matrix(rows []record.FeatureRow) ([][]float64, []float64) {
	samples := make([][]float64, 0, len(rows))
	labels := make([]float64, 0, len(rows))
	for _, row := range rows {
		if !row.Label.Known {
			continue
		}
		samples = append(samples, e.Encode(row))
		if row.Label.Readmitted {
			labels = append(labels, 1)
		} else {
			labels = append(labels, 0)
		}
	}
	return samples, labels
}

func normalizeClass(class string) string {
	c := strings.ToLower(strings.TrimSpace(class))
	if c == "" {
		return "unknown"
	}
	return c
}
