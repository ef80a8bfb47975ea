package training

import (
	"reflect"
	"testing"
)

func TestParseHyperparamsDefaults(t *testing.T) {
	hp := parseHyperparams(nil)
	if hp.Epochs != 2000 || hp.LearningRate != 0.05 || hp.L2 != 0.001 || hp.TestFraction != 0.2 {
		t.Fatalf("defaults = %+v", hp)
	}
}

func TestParseHyperparamsOverrides(t *testing.T) {
	hp := parseHyperparams(map[string]interface{}{
		"epochs":        float64(500), // JSON numbers decode as float64
		"learning_rate": 0.1,
		"l2":            float64(0),
		"test_fraction": 0.3,
	})
	if hp.Epochs != 500 || hp.LearningRate != 0.1 || hp.L2 != 0 || hp.TestFraction != 0.3 {
		t.Fatalf("overrides = %+v", hp)
	}
}

func TestParseHyperparamsIgnoresInvalid(t *testing.T) {
	hp := parseHyperparams(map[string]interface{}{
		"epochs":        -5,
		"test_fraction": 1.5,
		"learning_rate": "fast",
	})
	if hp.Epochs != 2000 || hp.TestFraction != 0.2 || hp.LearningRate != 0.05 {
		t.Fatalf("invalid values should keep defaults, got %+v", hp)
	}
}

func TestSplitDeterministic(t *testing.T) {
	samples := make([][]float64, 20)
	labels := make([]float64, 20)
	for i := range samples {
		samples[i] = []float64{float64(i)}
		labels[i] = float64(i % 2)
	}

	aX, aY, atX, atY := split(samples, labels, 0.2, 42)
	bX, bY, btX, btY := split(samples, labels, 0.2, 42)
	if !reflect.DeepEqual(aX, bX) || !reflect.DeepEqual(aY, bY) ||
		!reflect.DeepEqual(atX, btX) || !reflect.DeepEqual(atY, btY) {
		t.Fatal("same seed must produce the same split")
	}

	if len(atX) != 4 || len(aX) != 16 {
		t.Fatalf("split sizes %d/%d, want 16/4", len(aX), len(atX))
	}

	seen := make(map[float64]bool)
	for _, s := range append(append([][]float64{}, aX...), atX...) {
		if seen[s[0]] {
			t.Fatalf("sample %v appears twice", s[0])
		}
		seen[s[0]] = true
	}
	if len(seen) != 20 {
		t.Fatalf("split lost samples: %d of 20", len(seen))
	}
}

func TestSplitMinimumTestSize(t *testing.T) {
	samples := [][]float64{{1}, {2}, {3}}
	labels := []float64{0, 1, 0}
	_, _, testX, _ := split(samples, labels, 0.1, 1)
	if len(testX) != 1 {
		t.Fatalf("test size = %d, want at least 1", len(testX))
	}
}
