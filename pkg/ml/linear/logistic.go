package linear

import (
	"math"
	"sort"
)

type Options struct {
	Epochs       int
	LearningRate float64
	L2           float64
}

type Weights struct {
	Bias         float64   `json:"bias"`
	Coefficients []float64 `json:"coefficients"`
}

// Metrics summarize a classifier over one sample set. ROCAUC and
// AveragePrecision are threshold-free; Accuracy uses a 0.5 threshold.
type Metrics struct {
	Loss             float64
	Accuracy         float64
	ROCAUC           float64
	AveragePrecision float64
}

// TrainLogistic fits a logistic regression by batch gradient descent with
// optional L2 regularization (the bias term is not regularized).
func TrainLogistic(samples [][]float64, labels []float64, opts Options) Weights {
	if opts.Epochs <= 0 {
		opts.Epochs = 200
	}
	if opts.LearningRate <= 0 {
		opts.LearningRate = 0.01
	}

	n := len(samples)
	if n == 0 {
		return Weights{}
	}
	featureCount := len(samples[0])
	weights := make([]float64, featureCount)
	var bias float64

	for epoch := 0; epoch < opts.Epochs; epoch++ {
		grad := make([]float64, featureCount)
		var biasGrad float64
		for i, sample := range samples {
			prediction := sigmoid(dot(weights, sample) + bias)
			error := prediction - labels[i]
			for j := 0; j < featureCount; j++ {
				grad[j] += error * sample[j]
			}
			biasGrad += error
		}
		for j := 0; j < featureCount; j++ {
			step := grad[j]/float64(n) + opts.L2*weights[j]
			weights[j] -= opts.LearningRate * step
		}
		bias -= opts.LearningRate * biasGrad / float64(n)
	}

	return Weights{Bias: bias, Coefficients: weights}
}

func Predict(weights Weights, sample []float64) float64 {
	return sigmoid(dot(weights.Coefficients, sample) + weights.Bias)
}

// Evaluate scores the weights on a sample set.
func Evaluate(weights Weights, samples [][]float64, labels []float64) Metrics {
	if len(samples) == 0 {
		return Metrics{}
	}

	scores := make([]float64, len(samples))
	var loss float64
	var correct int
	for i, sample := range samples {
		p := Predict(weights, sample)
		scores[i] = p
		loss += -labels[i]*math.Log(p+1e-9) - (1-labels[i])*math.Log(1-p+1e-9)
		if (p >= 0.5 && labels[i] == 1) || (p < 0.5 && labels[i] == 0) {
			correct++
		}
	}

	return Metrics{
		Loss:             loss / float64(len(samples)),
		Accuracy:         float64(correct) / float64(len(samples)),
		ROCAUC:           rocAUC(scores, labels),
		AveragePrecision: averagePrecision(scores, labels),
	}
}

// rocAUC computes the area under the ROC curve as the rank statistic, with
// tied scores receiving their average rank.
func rocAUC(scores, labels []float64) float64 {
	n := len(scores)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return scores[idx[a]] < scores[idx[b]] })

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && scores[idx[j+1]] == scores[idx[i]] {
			j++
		}
		avgRank := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avgRank
		}
		i = j + 1
	}

	var positives, rankSum float64
	for i, l := range labels {
		if l == 1 {
			positives++
			rankSum += ranks[i]
		}
	}
	negatives := float64(n) - positives
	if positives == 0 || negatives == 0 {
		return 0
	}
	return (rankSum - positives*(positives+1)/2) / (positives * negatives)
}

// averagePrecision is the mean precision at each positive, scores descending.
func averagePrecision(scores, labels []float64) float64 {
	n := len(scores)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		if scores[idx[a]] != scores[idx[b]] {
			return scores[idx[a]] > scores[idx[b]]
		}
		return idx[a] < idx[b]
	})

	var hits, sum float64
	for rank, i := range idx {
		if labels[i] == 1 {
			hits++
			sum += hits / float64(rank+1)
		}
	}
	if hits == 0 {
		return 0
	}
	return sum / hits
}

func dot(weights []float64, sample []float64) float64 {
	var sum float64
	for i := 0; i < len(weights); i++ {
		sum += weights[i] * sample[i]
	}
	return sum
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
