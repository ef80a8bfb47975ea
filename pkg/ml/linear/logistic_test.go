package linear

import (
	"math"
	"testing"
)

func TestTrainLogisticSeparable(t *testing.T) {
	// One feature, perfectly separable at x = 0.
	var samples [][]float64
	var labels []float64
	for i := 0; i < 20; i++ {
		samples = append(samples, []float64{-1 - float64(i)*0.1})
		labels = append(labels, 0)
		samples = append(samples, []float64{1 + float64(i)*0.1})
		labels = append(labels, 1)
	}

	weights := TrainLogistic(samples, labels, Options{Epochs: 3000, LearningRate: 0.5})
	if Predict(weights, []float64{2}) < 0.9 {
		t.Fatalf("positive side scored %v, want > 0.9", Predict(weights, []float64{2}))
	}
	if Predict(weights, []float64{-2}) > 0.1 {
		t.Fatalf("negative side scored %v, want < 0.1", Predict(weights, []float64{-2}))
	}

	eval := Evaluate(weights, samples, labels)
	if eval.Accuracy != 1 {
		t.Fatalf("Accuracy = %v, want 1", eval.Accuracy)
	}
	if eval.ROCAUC != 1 {
		t.Fatalf("ROCAUC = %v, want 1", eval.ROCAUC)
	}
	if eval.AveragePrecision != 1 {
		t.Fatalf("AveragePrecision = %v, want 1", eval.AveragePrecision)
	}
}

func TestTrainLogisticL2ShrinksWeights(t *testing.T) {
	samples := [][]float64{{-2}, {-1}, {1}, {2}}
	labels := []float64{0, 0, 1, 1}
	free := TrainLogistic(samples, labels, Options{Epochs: 1000, LearningRate: 0.5})
	shrunk := TrainLogistic(samples, labels, Options{Epochs: 1000, LearningRate: 0.5, L2: 1})
	if math.Abs(shrunk.Coefficients[0]) >= math.Abs(free.Coefficients[0]) {
		t.Fatalf("L2 did not shrink coefficient: %v vs %v", shrunk.Coefficients[0], free.Coefficients[0])
	}
}

func TestRocAUCKnownValues(t *testing.T) {
	scores := []float64{0.1, 0.4, 0.35, 0.8}
	labels := []float64{0, 0, 1, 1}
	// Pairs: (0.35 vs 0.1) win, (0.35 vs 0.4) loss, (0.8 vs 0.1) win,
	// (0.8 vs 0.4) win. 3 of 4.
	if got := rocAUC(scores, labels); got != 0.75 {
		t.Fatalf("rocAUC = %v, want 0.75", got)
	}
}

func TestRocAUCTies(t *testing.T) {
	scores := []float64{0.5, 0.5}
	labels := []float64{0, 1}
	if got := rocAUC(scores, labels); got != 0.5 {
		t.Fatalf("tied scores should give 0.5, got %v", got)
	}
}

func TestRocAUCDegenerate(t *testing.T) {
	if got := rocAUC([]float64{0.3, 0.6}, []float64{1, 1}); got != 0 {
		t.Fatalf("single-class input should give 0, got %v", got)
	}
}

func TestAveragePrecisionKnownValues(t *testing.T) {
	scores := []float64{0.9, 0.8, 0.7}
	labels := []float64{1, 0, 1}
	// Precision at first positive: 1/1. At second: 2/3. Mean: 5/6.
	want := (1.0 + 2.0/3.0) / 2
	if got := averagePrecision(scores, labels); math.Abs(got-want) > 1e-12 {
		t.Fatalf("averagePrecision = %v, want %v", got, want)
	}
}

func TestEvaluateEmpty(t *testing.T) {
	if m := Evaluate(Weights{}, nil, nil); m != (Metrics{}) {
		t.Fatalf("empty evaluation = %+v, want zero metrics", m)
	}
}
