package features

import (
	"bytes"
	"strings"
	"testing"

	"github.com/veridian-health/readmit/pkg/record"
)

func sampleRows() []record.FeatureRow {
	return []record.FeatureRow{
		{
			EncounterID:          "enc-1",
			PatientID:            "pat-1",
			LengthHours:          4,
			Class:                "ambulatory",
			Conditions365d:       2,
			UniqueConditions365d: 1,
			Meds365d:             3,
			UniqueMeds365d:       2,
			Label:                record.Readmitted(true),
		},
		{
			EncounterID: "enc-2",
			PatientID:   "pat-1",
			LengthHours: 24,
			Class:       "inpatient",
			Label:       record.Indeterminate(),
		},
	}
}

func TestWriteDatasetEmptyLabelField(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteDataset(&buf, sampleRows()); err != nil {
		t.Fatalf("write: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header + 2 rows", len(lines))
	}
	if lines[0] != strings.Join(DatasetColumns, ",") {
		t.Fatalf("header = %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], ",1") {
		t.Fatalf("labeled row should end with ,1: %q", lines[1])
	}
	if !strings.HasSuffix(lines[2], ",") {
		t.Fatalf("indeterminate row should end with an empty field: %q", lines[2])
	}
}

func TestReadDatasetRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteDataset(&buf, sampleRows()); err != nil {
		t.Fatalf("write: %v", err)
	}

	all, err := ReadDataset(bytes.NewReader(buf.Bytes()), false)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d rows, want 2", len(all))
	}
	if !all[0].Label.Known || !all[0].Label.Readmitted {
		t.Fatal("first row label lost in round trip")
	}
	if all[1].Label.Known {
		t.Fatal("second row must stay indeterminate")
	}

	labeled, err := ReadDataset(bytes.NewReader(buf.Bytes()), true)
	if err != nil {
		t.Fatalf("read filtered: %v", err)
	}
	if len(labeled) != 1 || labeled[0].EncounterID != "enc-1" {
		t.Fatalf("filterUnlabeled kept %d rows, want just enc-1", len(labeled))
	}
}

func TestReadDatasetRejectsForeignHeader(t *testing.T) {
	if _, err := ReadDataset(strings.NewReader("a,b,c\n1,2,3\n"), false); err == nil {
		t.Fatal("expected header validation error")
	}
}
