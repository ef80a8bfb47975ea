package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/veridian-health/readmit/pkg/common/kafka"
	"github.com/veridian-health/readmit/pkg/common/logger"
	"github.com/veridian-health/readmit/pkg/features"
	"github.com/veridian-health/readmit/pkg/history"
	"github.com/veridian-health/readmit/pkg/label"
	"github.com/veridian-health/readmit/pkg/loader"
	"github.com/veridian-health/readmit/pkg/observability/metrics"
	"github.com/veridian-health/readmit/pkg/record"
	"github.com/veridian-health/readmit/pkg/storage"
)

// Runner executes one batch run: load, label, aggregate, assemble, emit.
// Sinks other than the CSV artifact are optional and may be nil.
type Runner struct {
	cfg      Config
	dataset  *storage.DatasetStore
	online   *storage.FeatureStore
	producer *kafka.Producer
	quality  *kafka.Producer
}

// Result is everything one run produced. Rows are in the deterministic
// emission order: patients sorted by id, each patient's encounters in their
// total order.
type Result struct {
	RunID  string
	Rows   []record.FeatureRow
	Report record.QualityReport
}

func NewRunner(cfg Config, dataset *storage.DatasetStore, online *storage.FeatureStore, producer, quality *kafka.Producer) *Runner {
	return &Runner{cfg: cfg, dataset: dataset, online: online, producer: producer, quality: quality}
}

// patientData is the per-patient partition of the three input tables. Once
// built it is read-only; workers own disjoint patients, so no locking is
// needed during computation.
type patientData struct {
	encounters  []record.Encounter
	conditions  []record.Condition
	medications []record.Medication
}

// Run executes the pipeline. It either completes deterministically or fails
// fast on a structural fault; per-record faults are isolated and tallied in
// the quality report.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	runID := uuid.New().String()
	started := time.Now().UTC()
	log := logger.WithField("run_id", runID)
	log.Info("Pipeline run started")

	var report record.QualityReport
	tables, err := loader.Load(r.cfg.EncountersPath, r.cfg.ConditionsPath, r.cfg.MedicationsPath, &report)
	if err != nil {
		return nil, err
	}

	patients, patientIDs := partition(tables, &report)

	rows, workerReport, err := r.computeRows(patients, patientIDs)
	if err != nil {
		return nil, err
	}
	report.Merge(workerReport)
	report.RowsEmitted = len(rows)

	if err := r.emit(ctx, runID, rows, report, started); err != nil {
		return nil, err
	}
	metrics.ObserveRun(report)

	log.WithFields(logrus.Fields{
		"rows":     len(rows),
		"patients": len(patientIDs),
		"skipped":  report.Skipped(),
		"duration": time.Since(started).String(),
	}).Info("Pipeline run completed")

	return &Result{RunID: runID, Rows: rows, Report: report}, nil
}

// partition splits the tables by patient. Conditions and medications whose
// patient has no encounters contribute to no aggregate; they are counted as
// unknown-patient references, a warning rather than a fault.
func partition(tables *loader.Tables, report *record.QualityReport) (map[string]*patientData, []string) {
	patients := make(map[string]*patientData)
	for _, enc := range tables.Encounters {
		p, ok := patients[enc.PatientID]
		if !ok {
			p = &patientData{}
			patients[enc.PatientID] = p
		}
		p.encounters = append(p.encounters, enc)
	}

	for _, cond := range tables.Conditions {
		p, ok := patients[cond.PatientID]
		if !ok {
			report.UnknownPatientRefs++
			continue
		}
		p.conditions = append(p.conditions, cond)
	}
	for _, med := range tables.Medications {
		p, ok := patients[med.PatientID]
		if !ok {
			report.UnknownPatientRefs++
			continue
		}
		p.medications = append(p.medications, med)
	}

	if report.UnknownPatientRefs > 0 {
		logger.WithField("count", report.UnknownPatientRefs).
			Warn("conditions/medications reference patients with no encounters")
	}

	patientIDs := make([]string, 0, len(patients))
	for id := range patients {
		patientIDs = append(patientIDs, id)
	}
	sort.Strings(patientIDs)
	return patients, patientIDs
}

// computeRows fans patients out over a worker pool. Each worker writes into
// its own shard keyed by patient, so there is no shared mutable accumulator;
// shards are merged at the end in sorted patient order, which makes reruns
// byte-identical regardless of scheduling.
func (r *Runner) computeRows(patients map[string]*patientData, patientIDs []string) ([]record.FeatureRow, record.QualityReport, error) {
	window := time.Duration(r.cfg.ReadmitWindowDays) * 24 * time.Hour
	lookback := time.Duration(r.cfg.LookbackDays) * 24 * time.Hour

	type shardResult struct {
		rows   map[string][]record.FeatureRow
		report record.QualityReport
		err    error
	}

	workers := r.cfg.Workers
	if workers > len(patientIDs) {
		workers = len(patientIDs)
	}
	if workers < 1 {
		workers = 1
	}

	ids := make(chan string)
	results := make(chan shardResult, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			shard := shardResult{rows: make(map[string][]record.FeatureRow)}
			for id := range ids {
				rows, err := computePatient(patients[id], window, lookback, &shard.report)
				if err != nil {
					shard.err = fmt.Errorf("patient %s: %w", id, err)
					break
				}
				shard.rows[id] = rows
			}
			results <- shard
		}()
	}

	for _, id := range patientIDs {
		ids <- id
	}
	close(ids)
	wg.Wait()
	close(results)

	merged := make(map[string][]record.FeatureRow, len(patientIDs))
	var report record.QualityReport
	for shard := range results {
		if shard.err != nil {
			return nil, report, shard.err
		}
		report.Merge(shard.report)
		for id, rows := range shard.rows {
			merged[id] = rows
		}
	}

	var out []record.FeatureRow
	for _, id := range patientIDs {
		out = append(out, merged[id]...)
	}
	return out, report, nil
}

// computePatient runs the per-patient core: total order, labels, sliding
// window aggregates, assembly.
func computePatient(p *patientData, window, lookback time.Duration, report *record.QualityReport) ([]record.FeatureRow, error) {
	record.SortEncounters(p.encounters)
	record.SortConditions(p.conditions)
	record.SortMedications(p.medications)

	labels := label.Assign(p.encounters, window, report)
	aggs := history.Compute(p.encounters, p.conditions, p.medications, lookback)
	return features.Assemble(p.encounters, labels, aggs)
}

func (r *Runner) emit(ctx context.Context, runID string, rows []record.FeatureRow, report record.QualityReport, started time.Time) error {
	if err := os.MkdirAll(filepath.Dir(r.cfg.OutputPath), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	out, err := os.Create(r.cfg.OutputPath)
	if err != nil {
		return fmt.Errorf("creating dataset artifact: %w", err)
	}
	defer out.Close()
	if err := features.WriteDataset(out, rows); err != nil {
		return fmt.Errorf("writing dataset artifact: %w", err)
	}

	if err := r.writeReport(runID, report, started); err != nil {
		return err
	}

	if r.dataset != nil && r.cfg.Sinks.Lakehouse {
		if err := r.dataset.WriteRun(ctx, runID, rows); err != nil {
			return fmt.Errorf("persisting dataset run: %w", err)
		}
	}
	if r.online != nil && r.cfg.Sinks.FeatureStore {
		if err := r.online.Materialize(ctx, rows, started); err != nil {
			return fmt.Errorf("materializing online features: %w", err)
		}
	}
	if r.producer != nil && r.cfg.Sinks.Events {
		data := map[string]interface{}{
			"run_id":  runID,
			"rows":    len(rows),
			"skipped": report.Skipped(),
			"output":  r.cfg.OutputPath,
		}
		if err := r.producer.PublishEvent(ctx, "dataset-ready", "feature-pipeline", data); err != nil {
			// The artifacts are already on disk; a missed announcement is
			// recoverable by re-publishing, so log and carry on.
			logger.Log.WithError(err).Error("failed to publish dataset-ready event")
		}
	}
	if r.quality != nil && r.cfg.Sinks.Events && report.Skipped() > 0 {
		data := map[string]interface{}{
			"run_id":              runID,
			"time_parse_errors":   report.TimeParseErrors,
			"invalid_intervals":   report.InvalidIntervals,
			"missing_identifiers": report.MissingIdentifiers,
			"unknown_patients":    report.UnknownPatientRefs,
			"negative_gaps":       report.NegativeGaps,
		}
		if err := r.quality.PublishEvent(ctx, "quality-alert", "feature-pipeline", data); err != nil {
			logger.Log.WithError(err).Error("failed to publish quality alert")
		}
	}
	return nil
}

func (r *Runner) writeReport(runID string, report record.QualityReport, started time.Time) error {
	payload := map[string]interface{}{
		"run_id":     runID,
		"started_at": started,
		"report":     report,
	}
	content, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(r.cfg.ReportPath), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	if err := os.WriteFile(r.cfg.ReportPath, content, 0o644); err != nil {
		return fmt.Errorf("writing quality report: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"time_parse_errors":   report.TimeParseErrors,
		"invalid_intervals":   report.InvalidIntervals,
		"missing_identifiers": report.MissingIdentifiers,
		"unknown_patients":    report.UnknownPatientRefs,
		"negative_gaps":       report.NegativeGaps,
	}).Info("Data quality report")
	return nil
}
