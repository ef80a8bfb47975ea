package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/veridian-health/readmit/pkg/record"
)

var (
	rowsEmitted        atomic.Int64
	timeParseErrors    atomic.Int64
	invalidIntervals   atomic.Int64
	unknownPatientRefs atomic.Int64
	negativeGaps       atomic.Int64
	trainingCompleted  atomic.Int64
	trainingFailed     atomic.Int64
	predictionsServed  atomic.Int64
)

// ObserveRun records the outcome of the latest pipeline run.
func ObserveRun(report record.QualityReport) {
	rowsEmitted.Store(int64(report.RowsEmitted))
	timeParseErrors.Store(int64(report.TimeParseErrors))
	invalidIntervals.Store(int64(report.InvalidIntervals))
	unknownPatientRefs.Store(int64(report.UnknownPatientRefs))
	negativeGaps.Store(int64(report.NegativeGaps))
}

func ObserveTraining(succeeded bool) {
	if succeeded {
		trainingCompleted.Add(1)
	} else {
		trainingFailed.Add(1)
	}
}

func ObservePrediction() {
	predictionsServed.Add(1)
}

// WritePrometheus renders the counters in the Prometheus text format.
func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	fmt.Fprintf(w, "# HELP readmit_pipeline_rows_emitted Feature rows emitted by the latest pipeline run.\n")
	fmt.Fprintf(w, "# TYPE readmit_pipeline_rows_emitted gauge\n")
	fmt.Fprintf(w, "readmit_pipeline_rows_emitted %d\n", rowsEmitted.Load())

	fmt.Fprintf(w, "# HELP readmit_pipeline_time_parse_errors Records skipped for unparsable timestamps in the latest run.\n")
	fmt.Fprintf(w, "# TYPE readmit_pipeline_time_parse_errors gauge\n")
	fmt.Fprintf(w, "readmit_pipeline_time_parse_errors %d\n", timeParseErrors.Load())

	fmt.Fprintf(w, "# HELP readmit_pipeline_invalid_intervals Records skipped for stop-before-start intervals in the latest run.\n")
	fmt.Fprintf(w, "# TYPE readmit_pipeline_invalid_intervals gauge\n")
	fmt.Fprintf(w, "readmit_pipeline_invalid_intervals %d\n", invalidIntervals.Load())

	fmt.Fprintf(w, "# HELP readmit_pipeline_unknown_patient_refs Conditions/medications referencing patients with no encounters in the latest run.\n")
	fmt.Fprintf(w, "# TYPE readmit_pipeline_unknown_patient_refs gauge\n")
	fmt.Fprintf(w, "readmit_pipeline_unknown_patient_refs %d\n", unknownPatientRefs.Load())

	fmt.Fprintf(w, "# HELP readmit_pipeline_negative_gaps Encounters with a successor starting before discharge in the latest run.\n")
	fmt.Fprintf(w, "# TYPE readmit_pipeline_negative_gaps gauge\n")
	fmt.Fprintf(w, "readmit_pipeline_negative_gaps %d\n", negativeGaps.Load())

	fmt.Fprintf(w, "# HELP readmit_training_jobs_completed_total Training jobs completed since process start.\n")
	fmt.Fprintf(w, "# TYPE readmit_training_jobs_completed_total counter\n")
	fmt.Fprintf(w, "readmit_training_jobs_completed_total %d\n", trainingCompleted.Load())

	fmt.Fprintf(w, "# HELP readmit_training_jobs_failed_total Training jobs failed since process start.\n")
	fmt.Fprintf(w, "# TYPE readmit_training_jobs_failed_total counter\n")
	fmt.Fprintf(w, "readmit_training_jobs_failed_total %d\n", trainingFailed.Load())

	fmt.Fprintf(w, "# HELP readmit_predictions_served_total Predictions served since process start.\n")
	fmt.Fprintf(w, "# TYPE readmit_predictions_served_total counter\n")
	fmt.Fprintf(w, "readmit_predictions_served_total %d\n", predictionsServed.Load())
}
