package record

// QualityReport is the end-of-run tally of skipped records per fault kind,
// emitted alongside the dataset so a data-quality regression is visible
// without reading logs line by line.
type QualityReport struct {
	EncountersLoaded   int `json:"encounters_loaded"`
	ConditionsLoaded   int `json:"conditions_loaded"`
	MedicationsLoaded  int `json:"medications_loaded"`
	RowsEmitted        int `json:"rows_emitted"`
	TimeParseErrors    int `json:"time_parse_errors"`
	InvalidIntervals   int `json:"invalid_intervals"`
	MissingIdentifiers int `json:"missing_identifiers"`
	UnknownPatientRefs int `json:"unknown_patient_refs"`
	NegativeGaps       int `json:"negative_gaps"`
}

// Merge folds a worker-local report into the run report.
func (r *QualityReport) Merge(other QualityReport) {
	r.EncountersLoaded += other.EncountersLoaded
	r.ConditionsLoaded += other.ConditionsLoaded
	r.MedicationsLoaded += other.MedicationsLoaded
	r.RowsEmitted += other.RowsEmitted
	r.TimeParseErrors += other.TimeParseErrors
	r.InvalidIntervals += other.InvalidIntervals
	r.MissingIdentifiers += other.MissingIdentifiers
	r.UnknownPatientRefs += other.UnknownPatientRefs
	r.NegativeGaps += other.NegativeGaps
}

// Skipped is the total number of input records excluded for any reason.
func (r *QualityReport) Skipped() int {
	return r.TimeParseErrors + r.InvalidIntervals + r.MissingIdentifiers + r.UnknownPatientRefs
}
