package training

import (
	"testing"

	"github.com/veridian-health/readmit/pkg/record"
)

func encoderRows() []record.FeatureRow {
	return []record.FeatureRow{
		{EncounterID: "e1", Class: "inpatient", LengthHours: 24, Conditions365d: 2, Label: record.Readmitted(true)},
		{EncounterID: "e2", Class: "Ambulatory", LengthHours: 4, Label: record.Readmitted(false)},
		{EncounterID: "e3", Class: "", LengthHours: 1, Label: record.Indeterminate()},
	}
}

func TestNewEncoderLayout(t *testing.T) {
	enc := NewEncoder(encoderRows())
	want := []string{
		"encounter_length_hours",
		"conditions_365d",
		"unique_conditions_365d",
		"meds_365d",
		"unique_meds_365d",
		"class_ambulatory",
		"class_inpatient",
		"class_unknown",
	}
	if len(enc.FeatureNames) != len(want) {
		t.Fatalf("got %d features: %v", len(enc.FeatureNames), enc.FeatureNames)
	}
	for i, name := range want {
		if enc.FeatureNames[i] != name {
			t.Fatalf("feature %d = %q, want %q", i, enc.FeatureNames[i], name)
		}
	}
}

func TestEncodeOneHot(t *testing.T) {
	enc := NewEncoder(encoderRows())
	sample := enc.Encode(record.FeatureRow{Class: "INPATIENT", LengthHours: 12, Meds365d: 3})
	if sample[0] != 12 || sample[3] != 3 {
		t.Fatalf("numeric slots wrong: %v", sample)
	}
	var hot int
	for i := len(NumericFeatures); i < len(sample); i++ {
		if sample[i] == 1 {
			hot++
			if enc.FeatureNames[i] != "class_inpatient" {
				t.Fatalf("wrong one-hot slot %q", enc.FeatureNames[i])
			}
		}
	}
	if hot != 1 {
		t.Fatalf("%d one-hot slots set, want 1", hot)
	}
}

func TestEncodeUnseenClassAllZeros(t *testing.T) {
	enc := NewEncoder(encoderRows())
	sample := enc.Encode(record.FeatureRow{Class: "hospice"})
	for i := len(NumericFeatures); i < len(sample); i++ {
		if sample[i] != 0 {
			t.Fatalf("unseen class set slot %q", enc.FeatureNames[i])
		}
	}
}

func TestMatrixSkipsIndeterminate(t *testing.T) {
	enc := NewEncoder(encoderRows())
	samples, labels := enc.Matrix(encoderRows())
	if len(samples) != 2 || len(labels) != 2 {
		t.Fatalf("got %d samples, want 2 (indeterminate row excluded)", len(samples))
	}
	if labels[0] != 1 || labels[1] != 0 {
		t.Fatalf("labels = %v", labels)
	}
}
