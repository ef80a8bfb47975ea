package features

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/veridian-health/readmit/pkg/record"
)

// DatasetColumns is the exact column order of the processed dataset. The
// label column is empty for indeterminate rows; they are never silently
// dropped by the pipeline.
var DatasetColumns = []string{
	"encounter_id",
	"patient_id",
	"encounter_length_hours",
	"encounter_class",
	"conditions_365d",
	"unique_conditions_365d",
	"meds_365d",
	"unique_meds_365d",
	"label",
}

// WriteDataset emits the feature rows as a flat CSV artifact in the order
// given. Callers are responsible for a deterministic row order.
func WriteDataset(w io.Writer, rows []record.FeatureRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(DatasetColumns); err != nil {
		return err
	}
	for _, row := range rows {
		labelField := ""
		if v := row.Label.Int(); v != nil {
			labelField = strconv.Itoa(*v)
		}
		fields := []string{
			row.EncounterID,
			row.PatientID,
			strconv.FormatFloat(row.LengthHours, 'f', -1, 64),
			row.Class,
			strconv.Itoa(row.Conditions365d),
			strconv.Itoa(row.UniqueConditions365d),
			strconv.Itoa(row.Meds365d),
			strconv.Itoa(row.UniqueMeds365d),
			labelField,
		}
		if err := cw.Write(fields); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadDataset parses a dataset produced by WriteDataset. When filterUnlabeled
// is set, indeterminate-label rows are excluded; the flag is explicit because
// filtering is the training consumer's decision.
func ReadDataset(r io.Reader, filterUnlabeled bool) ([]record.FeatureRow, error) {
	cr := csv.NewReader(r)
	headerRow, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading dataset header: %w", err)
	}
	if len(headerRow) != len(DatasetColumns) {
		return nil, fmt.Errorf("unexpected dataset header width %d", len(headerRow))
	}
	for i, name := range DatasetColumns {
		if headerRow[i] != name {
			return nil, fmt.Errorf("unexpected dataset column %q at position %d", headerRow[i], i)
		}
	}

	var rows []record.FeatureRow
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading dataset row: %w", err)
		}

		length, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("parsing encounter_length_hours: %w", err)
		}
		counts := make([]int, 4)
		for i := 0; i < 4; i++ {
			counts[i], err = strconv.Atoi(fields[4+i])
			if err != nil {
				return nil, fmt.Errorf("parsing %s: %w", DatasetColumns[4+i], err)
			}
		}

		lbl := record.Indeterminate()
		if fields[8] != "" {
			v, err := strconv.Atoi(fields[8])
			if err != nil || (v != 0 && v != 1) {
				return nil, fmt.Errorf("invalid label %q", fields[8])
			}
			lbl = record.Readmitted(v == 1)
		}
		if filterUnlabeled && !lbl.Known {
			continue
		}

		rows = append(rows, record.FeatureRow{
			EncounterID:          fields[0],
			PatientID:            fields[1],
			LengthHours:          length,
			Class:                fields[3],
			Conditions365d:       counts[0],
			UniqueConditions365d: counts[1],
			Meds365d:             counts[2],
			UniqueMeds365d:       counts[3],
			Label:                lbl,
		})
	}
	return rows, nil
}
