package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/veridian-health/readmit/pkg/chrono"
	"github.com/veridian-health/readmit/pkg/common/logger"
	"github.com/veridian-health/readmit/pkg/record"
)

// ErrOrderingAmbiguity marks corrupt input identity: two encounter rows
// sharing the same encounter id. Merge semantics are undefined, so the run
// aborts rather than de-duplicating silently.
var ErrOrderingAmbiguity = errors.New("ambiguous encounter identity")

// Tables holds the three fully loaded, time-normalized input record sets.
// They are read-only facts for the lifetime of one run.
type Tables struct {
	Encounters  []record.Encounter
	Conditions  []record.Condition
	Medications []record.Medication
}

// Load reads the three record sets from CSV files. The medications path may
// be empty; conditions and medications are optional extracts.
func Load(encountersPath, conditionsPath, medicationsPath string, report *record.QualityReport) (*Tables, error) {
	tables := &Tables{}

	encFile, err := os.Open(encountersPath)
	if err != nil {
		return nil, fmt.Errorf("opening encounters: %w", err)
	}
	defer encFile.Close()
	tables.Encounters, err = ReadEncounters(encFile, report)
	if err != nil {
		return nil, fmt.Errorf("encounters: %w", err)
	}

	if conditionsPath != "" {
		condFile, err := os.Open(conditionsPath)
		if err != nil {
			return nil, fmt.Errorf("opening conditions: %w", err)
		}
		defer condFile.Close()
		tables.Conditions, err = ReadConditions(condFile, report)
		if err != nil {
			return nil, fmt.Errorf("conditions: %w", err)
		}
	}

	if medicationsPath != "" {
		medFile, err := os.Open(medicationsPath)
		if err != nil {
			return nil, fmt.Errorf("opening medications: %w", err)
		}
		defer medFile.Close()
		tables.Medications, err = ReadMedications(medFile, report)
		if err != nil {
			return nil, fmt.Errorf("medications: %w", err)
		}
	}

	return tables, nil
}

// header maps lower-cased column names to their position. Extract exporters
// disagree on casing, so the match is case-insensitive; a missing required
// column is a structural fault and aborts the load.
type header struct {
	index map[string]int
}

func readHeader(r *csv.Reader, required []string) (*header, error) {
	row, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header row: %w", err)
	}
	h := &header{index: make(map[string]int, len(row))}
	for i, name := range row {
		h.index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range required {
		if _, ok := h.index[name]; !ok {
			return nil, fmt.Errorf("missing required column %q", name)
		}
	}
	return h, nil
}

func (h *header) get(row []string, name string) string {
	idx, ok := h.index[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// ReadEncounters parses the encounter extract. Per-record faults (bad
// timestamps, stop before start, missing identifiers) are counted and the
// record skipped; a duplicate encounter id is fatal.
func ReadEncounters(src io.Reader, report *record.QualityReport) ([]record.Encounter, error) {
	r := csv.NewReader(src)
	h, err := readHeader(r, []string{"encounter_id", "patient_id", "start_time", "stop_time", "encounter_class"})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var encounters []record.Encounter
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading encounter row: %w", err)
		}

		id := h.get(row, "encounter_id")
		patientID := h.get(row, "patient_id")
		if id == "" || patientID == "" {
			report.MissingIdentifiers++
			continue
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: encounter_id %s appears more than once", ErrOrderingAmbiguity, id)
		}
		seen[id] = struct{}{}

		start, err := chrono.Parse(h.get(row, "start_time"))
		if err != nil {
			report.TimeParseErrors++
			logger.Log.WithField("encounter_id", id).WithError(err).Warn("skipping encounter with unparsable start_time")
			continue
		}
		stop, err := chrono.Parse(h.get(row, "stop_time"))
		if err != nil {
			report.TimeParseErrors++
			logger.Log.WithField("encounter_id", id).WithError(err).Warn("skipping encounter with unparsable stop_time")
			continue
		}
		if stop.Before(start) {
			report.InvalidIntervals++
			logger.Log.WithField("encounter_id", id).Warn("skipping encounter with stop before start")
			continue
		}

		encounters = append(encounters, record.Encounter{
			ID:        id,
			PatientID: patientID,
			Start:     start,
			Stop:      stop,
			Class:     h.get(row, "encounter_class"),
		})
		report.EncountersLoaded++
	}
	return encounters, nil
}

// ReadConditions parses the condition extract.
func ReadConditions(src io.Reader, report *record.QualityReport) ([]record.Condition, error) {
	r := csv.NewReader(src)
	h, err := readHeader(r, []string{"patient_id", "condition_code", "onset_time"})
	if err != nil {
		return nil, err
	}

	var conditions []record.Condition
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading condition row: %w", err)
		}

		patientID := h.get(row, "patient_id")
		code := h.get(row, "condition_code")
		if patientID == "" || code == "" {
			report.MissingIdentifiers++
			continue
		}
		onset, err := chrono.Parse(h.get(row, "onset_time"))
		if err != nil {
			report.TimeParseErrors++
			logger.Log.WithField("patient_id", patientID).WithError(err).Warn("skipping condition with unparsable onset_time")
			continue
		}

		conditions = append(conditions, record.Condition{PatientID: patientID, Code: code, Onset: onset})
		report.ConditionsLoaded++
	}
	return conditions, nil
}

// ReadMedications parses the medication extract.
func ReadMedications(src io.Reader, report *record.QualityReport) ([]record.Medication, error) {
	r := csv.NewReader(src)
	h, err := readHeader(r, []string{"patient_id", "medication_code", "start_time"})
	if err != nil {
		return nil, err
	}

	var medications []record.Medication
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading medication row: %w", err)
		}

		patientID := h.get(row, "patient_id")
		code := h.get(row, "medication_code")
		if patientID == "" || code == "" {
			report.MissingIdentifiers++
			continue
		}
		start, err := chrono.Parse(h.get(row, "start_time"))
		if err != nil {
			report.TimeParseErrors++
			logger.Log.WithField("patient_id", patientID).WithError(err).Warn("skipping medication with unparsable start_time")
			continue
		}

		medications = append(medications, record.Medication{PatientID: patientID, Code: code, Start: start})
		report.MedicationsLoaded++
	}
	return medications, nil
}
