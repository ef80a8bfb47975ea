package predictor

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeArtifact(t *testing.T, dir string, bias float64, names []string, coefs []float64) {
	t.Helper()
	artifact := map[string]interface{}{
		"model": map[string]interface{}{
			"type":          "classification",
			"algorithm":     "logistic_regression",
			"feature_names": names,
			"weights": map[string]interface{}{
				"bias":         bias,
				"coefficients": coefs,
			},
		},
	}
	payload, err := json.Marshal(artifact)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "readmission_latest.json"), payload, 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
}

func TestPredict(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, 0.5, []string{"a", "b"}, []float64{1, -2})
	p := NewPredictor(dir)

	score, err := p.Predict("readmission", map[string]float64{"a": 2, "b": 1})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	want := 1 / (1 + math.Exp(-(0.5 + 2 - 2)))
	if math.Abs(score-want) > 1e-12 {
		t.Fatalf("score = %v, want %v", score, want)
	}
}

func TestPredictMissingFeature(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, 0, []string{"a", "b"}, []float64{1, 1})
	p := NewPredictor(dir)
	if _, err := p.Predict("readmission", map[string]float64{"a": 1}); err == nil {
		t.Fatal("expected missing-feature error")
	}
}

func TestPredictWeightMismatch(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, 0, []string{"a", "b"}, []float64{1})
	p := NewPredictor(dir)
	if _, err := p.Predict("readmission", map[string]float64{"a": 1, "b": 1}); err == nil {
		t.Fatal("expected weight/feature mismatch error")
	}
}

func TestPredictorReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, 0, []string{"a"}, []float64{0})
	p := NewPredictor(dir)

	before, err := p.Predict("readmission", map[string]float64{"a": 10})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if before != 0.5 {
		t.Fatalf("zero model should score 0.5, got %v", before)
	}

	// mtime resolution on some filesystems is one second.
	time.Sleep(1100 * time.Millisecond)
	writeArtifact(t, dir, 0, []string{"a"}, []float64{5})

	after, err := p.Predict("readmission", map[string]float64{"a": 10})
	if err != nil {
		t.Fatalf("predict after update: %v", err)
	}
	if after <= 0.9 {
		t.Fatalf("updated model not picked up: %v", after)
	}
}

func TestPredictUnknownModel(t *testing.T) {
	p := NewPredictor(t.TempDir())
	if _, err := p.Predict("nope", map[string]float64{}); err == nil {
		t.Fatal("expected error for missing artifact")
	}
}
