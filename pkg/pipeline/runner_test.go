package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func testConfig(t *testing.T, workers int) Config {
	t.Helper()
	dir := t.TempDir()

	encounters := "encounter_id,patient_id,start_time,stop_time,encounter_class\n" +
		"e3,p2,2024-02-01T00:00:00,2024-02-02T00:00:00,inpatient\n" +
		"e1,p1,2024-01-01T10:00:00,2024-01-01T14:00:00,ambulatory\n" +
		"e2,p1,2024-01-20T09:00:00,2024-01-21T09:00:00,inpatient\n" +
		"e4,p3,2024-03-01T00:00:00,2024-03-01T06:00:00,emergency\n"
	conditions := "patient_id,condition_code,onset_time\n" +
		"p1,C-1,2023-08-01\n" +
		"ghost,C-9,2023-08-01\n"
	medications := "patient_id,medication_code,start_time\n" +
		"p1,M-1,2023-12-15T00:00:00\n"

	cfg := Config{
		EncountersPath:  writeFile(t, dir, "encounters.csv", encounters),
		ConditionsPath:  writeFile(t, dir, "conditions.csv", conditions),
		MedicationsPath: writeFile(t, dir, "medications.csv", medications),
		OutputPath:      filepath.Join(dir, "out", "dataset.csv"),
		ReportPath:      filepath.Join(dir, "out", "report.json"),
		Workers:         workers,
	}
	cfg.applyDefaults()
	return cfg
}

func TestRunEndToEnd(t *testing.T) {
	cfg := testConfig(t, 4)
	runner := NewRunner(cfg, nil, nil, nil, nil)
	result, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(result.Rows) != 4 {
		t.Fatalf("got %d rows, want 4", len(result.Rows))
	}
	// Patients sorted by id; p1's encounters in start order.
	wantOrder := []string{"e1", "e2", "e3", "e4"}
	for i, row := range result.Rows {
		if row.EncounterID != wantOrder[i] {
			t.Fatalf("row %d = %s, want %s", i, row.EncounterID, wantOrder[i])
		}
	}

	first := result.Rows[0]
	if v := first.Label.Int(); v == nil || *v != 1 {
		t.Fatalf("e1 label = %v, want 1", v)
	}
	if first.Conditions365d != 1 || first.Meds365d != 1 {
		t.Fatalf("e1 aggregates = %+v", first)
	}
	if result.Rows[1].Label.Int() != nil {
		t.Fatal("e2 is p1's last encounter; label must be indeterminate")
	}

	if result.Report.UnknownPatientRefs != 1 {
		t.Fatalf("UnknownPatientRefs = %d, want 1 (the ghost condition)", result.Report.UnknownPatientRefs)
	}
	if result.Report.RowsEmitted != 4 {
		t.Fatalf("RowsEmitted = %d, want 4", result.Report.RowsEmitted)
	}

	if _, err := os.Stat(cfg.OutputPath); err != nil {
		t.Fatalf("dataset artifact missing: %v", err)
	}
	if _, err := os.Stat(cfg.ReportPath); err != nil {
		t.Fatalf("quality report missing: %v", err)
	}
}

func TestRunDeterministic(t *testing.T) {
	// Same inputs, different worker counts and repeated runs: the CSV
	// artifact must be byte-identical every time.
	var reference []byte
	for _, workers := range []int{1, 3, 8, 3} {
		cfg := testConfig(t, workers)
		runner := NewRunner(cfg, nil, nil, nil, nil)
		if _, err := runner.Run(context.Background()); err != nil {
			t.Fatalf("run with %d workers: %v", workers, err)
		}
		content, err := os.ReadFile(cfg.OutputPath)
		if err != nil {
			t.Fatalf("read artifact: %v", err)
		}
		if reference == nil {
			reference = content
			continue
		}
		if !bytes.Equal(reference, content) {
			t.Fatalf("artifact differs with %d workers", workers)
		}
	}
}

func TestRunFailsOnDuplicateEncounterID(t *testing.T) {
	dir := t.TempDir()
	encounters := "encounter_id,patient_id,start_time,stop_time,encounter_class\n" +
		"e1,p1,2024-01-01T10:00:00,2024-01-01T14:00:00,ambulatory\n" +
		"e1,p1,2024-02-01T10:00:00,2024-02-01T14:00:00,ambulatory\n"
	cfg := Config{
		EncountersPath: writeFile(t, dir, "encounters.csv", encounters),
		OutputPath:     filepath.Join(dir, "dataset.csv"),
		ReportPath:     filepath.Join(dir, "report.json"),
	}
	cfg.applyDefaults()
	runner := NewRunner(cfg, nil, nil, nil, nil)
	if _, err := runner.Run(context.Background()); err == nil {
		t.Fatal("duplicate encounter id must abort the run")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "pipeline.yaml", "encounters: data/encounters.csv\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ReadmitWindowDays != 30 || cfg.LookbackDays != 365 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.Workers < 1 {
		t.Fatalf("workers = %d", cfg.Workers)
	}
}

func TestLoadConfigRequiresEncounters(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "pipeline.yaml", "output: out.csv\n")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("config without encounters path must fail")
	}
}
