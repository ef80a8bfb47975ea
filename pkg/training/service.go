package training

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/veridian-health/readmit/pkg/common/logger"
	"github.com/veridian-health/readmit/pkg/ml/linear"
	obs "github.com/veridian-health/readmit/pkg/observability/metrics"
	"github.com/veridian-health/readmit/pkg/storage"
	"github.com/veridian-health/readmit/pkg/tracking"
)

// Service executes training jobs: load a dataset run, encode, split, fit,
// evaluate, and publish the weights artifact. Jobs run asynchronously behind
// a worker semaphore.
type Service struct {
	repo        *Repository
	dataset     *storage.DatasetStore
	tracker     *tracking.Repository
	artifactDir string
	modelName   string
	seed        int64
	workerSem   chan struct{}
}

func NewService(repo *Repository, dataset *storage.DatasetStore, tracker *tracking.Repository, artifactDir, modelName string, maxWorkers int, seed int64) (*Service, error) {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	s := &Service{
		repo:        repo,
		dataset:     dataset,
		tracker:     tracker,
		artifactDir: artifactDir,
		modelName:   modelName,
		seed:        seed,
		workerSem:   make(chan struct{}, maxWorkers),
	}
	if err := os.MkdirAll(artifactDir, 0o755); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) Create(ctx context.Context, input CreateJobInput) (*JobModel, error) {
	job := &JobModel{
		ID:           uuid.New(),
		DatasetRunID: input.DatasetRunID,
		Config:       datatypes.JSONMap(input.Config),
		Status:       StatusQueued,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, err
	}
	go s.run(job.ID, input)
	return job, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*JobModel, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, limit int) ([]JobModel, error) {
	return s.repo.List(ctx, limit)
}

func (s *Service) GetArtifact(ctx context.Context, id uuid.UUID) (Artifact, error) {
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		return Artifact{}, err
	}
	metrics := map[string]interface{}{}
	if job.Metrics != nil {
		metrics = map[string]interface{}(job.Metrics)
	}
	return Artifact{JobID: job.ID, Path: job.ArtifactPath, Metrics: metrics}, nil
}

type hyperparams struct {
	Epochs       int
	LearningRate float64
	L2           float64
	TestFraction float64
}

func parseHyperparams(config map[string]interface{}) hyperparams {
	hp := hyperparams{Epochs: 2000, LearningRate: 0.05, L2: 0.001, TestFraction: 0.2}
	if config == nil {
		return hp
	}
	if v, ok := toFloat(config["epochs"]); ok && v > 0 {
		hp.Epochs = int(v)
	}
	if v, ok := toFloat(config["learning_rate"]); ok && v > 0 {
		hp.LearningRate = v
	}
	if v, ok := toFloat(config["l2"]); ok && v >= 0 {
		hp.L2 = v
	}
	if v, ok := toFloat(config["test_fraction"]); ok && v > 0 && v < 1 {
		hp.TestFraction = v
	}
	return hp
}

func (s *Service) run(jobID uuid.UUID, input CreateJobInput) {
	s.workerSem <- struct{}{}
	defer func() { <-s.workerSem }()

	ctx := context.Background()
	start := time.Now().UTC()
	if err := s.repo.UpdateStatus(ctx, jobID, StatusRunning, nil, "", ""); err != nil {
		logger.Log.WithError(err).Error("failed to mark job running")
	}
	if err := s.repo.SetTimestamps(ctx, jobID, &start, nil); err != nil {
		logger.Log.WithError(err).Error("failed to set start timestamp")
	}

	runID := input.DatasetRunID
	if runID == "" {
		latest, err := s.dataset.LatestRunID(ctx)
		if err != nil {
			s.failJob(ctx, jobID, fmt.Errorf("resolving latest dataset run: %w", err))
			return
		}
		runID = latest
	}

	// Indeterminate-label rows are excluded here, explicitly: dropping
	// untrainable rows is this consumer's decision, not the pipeline's.
	rows, err := s.dataset.LoadRun(ctx, runID, true)
	if err != nil {
		s.failJob(ctx, jobID, fmt.Errorf("loading dataset run %s: %w", runID, err))
		return
	}
	if len(rows) < 10 {
		s.failJob(ctx, jobID, fmt.Errorf("dataset run %s has only %d labeled rows", runID, len(rows)))
		return
	}

	hp := parseHyperparams(input.Config)
	encoder := NewEncoder(rows)
	samples, labels := encoder.Matrix(rows)
	trainX, trainY, testX, testY := split(samples, labels, hp.TestFraction, s.seed)

	params := map[string]interface{}{
		"model":          "logistic_regression",
		"dataset_run_id": runID,
		"epochs":         hp.Epochs,
		"learning_rate":  hp.LearningRate,
		"l2":             hp.L2,
		"test_fraction":  hp.TestFraction,
		"rows":           len(rows),
		"features":       len(encoder.FeatureNames),
		"seed":           s.seed,
	}
	trackID, err := s.tracker.Start(ctx, DefaultExperiment, params)
	if err != nil {
		logger.Log.WithError(err).Error("failed to open tracking run")
	}

	weights := linear.TrainLogistic(trainX, trainY, linear.Options{
		Epochs:       hp.Epochs,
		LearningRate: hp.LearningRate,
		L2:           hp.L2,
	})
	eval := linear.Evaluate(weights, testX, testY)

	metrics := map[string]interface{}{
		"loss":             eval.Loss,
		"accuracy":         eval.Accuracy,
		"roc_auc":          eval.ROCAUC,
		"avg_precision":    eval.AveragePrecision,
		"train_samples":    len(trainX),
		"test_samples":     len(testX),
		"duration_seconds": time.Since(start).Seconds(),
	}

	artifactPath, err := s.writeArtifact(jobID, runID, encoder.FeatureNames, weights, metrics)
	if err != nil {
		if trackID != uuid.Nil {
			_ = s.tracker.Finish(ctx, trackID, tracking.StatusFailed, metrics, "")
		}
		s.failJob(ctx, jobID, fmt.Errorf("artifact write failed: %w", err))
		return
	}

	if trackID != uuid.Nil {
		if err := s.tracker.Finish(ctx, trackID, tracking.StatusCompleted, metrics, artifactPath); err != nil {
			logger.Log.WithError(err).Error("failed to close tracking run")
		}
	}
	if err := s.repo.UpdateStatus(ctx, jobID, StatusCompleted, metrics, artifactPath, ""); err != nil {
		logger.Log.WithError(err).Error("failed to mark job complete")
	}
	completed := time.Now().UTC()
	if err := s.repo.SetTimestamps(ctx, jobID, nil, &completed); err != nil {
		logger.Log.WithError(err).Error("failed to set completion timestamp")
	}
	obs.ObserveTraining(true)

	logger.WithFields(map[string]interface{}{
		"job_id":  jobID,
		"roc_auc": eval.ROCAUC,
		"rows":    len(rows),
	}).Info("Training job completed")
}

func (s *Service) failJob(ctx context.Context, jobID uuid.UUID, err error) {
	logger.Log.WithError(err).Error("training job failed")
	_ = s.repo.UpdateStatus(ctx, jobID, StatusFailed, nil, "", err.Error())
	completed := time.Now().UTC()
	_ = s.repo.SetTimestamps(ctx, jobID, nil, &completed)
	obs.ObserveTraining(false)
}

// split shuffles deterministically and carves off the trailing fraction as
// the held-out set. The fixed seed keeps reruns reproducible.
func split(samples [][]float64, labels []float64, testFraction float64, seed int64) (trainX [][]float64, trainY []float64, testX [][]float64, testY []float64) {
	n := len(samples)
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	testSize := int(float64(n) * testFraction)
	if testSize < 1 {
		testSize = 1
	}
	cut := n - testSize
	for i, p := range perm {
		if i < cut {
			trainX = append(trainX, samples[p])
			trainY = append(trainY, labels[p])
		} else {
			testX = append(testX, samples[p])
			testY = append(testY, labels[p])
		}
	}
	return trainX, trainY, testX, testY
}

// writeArtifact persists the model weights twice: once under the job id for
// provenance and once as the "<model>_latest" alias the serving layer loads.
func (s *Service) writeArtifact(jobID uuid.UUID, runID string, featureNames []string, weights linear.Weights, metrics map[string]interface{}) (string, error) {
	artifact := map[string]interface{}{
		"job_id":         jobID.String(),
		"dataset_run_id": runID,
		"created_at":     time.Now().UTC(),
		"metrics":        metrics,
		"model": map[string]interface{}{
			"type":          "classification",
			"algorithm":     "logistic_regression",
			"feature_names": featureNames,
			"weights":       weights,
		},
	}
	payload, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.artifactDir, fmt.Sprintf("%s.json", jobID.String()))
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", err
	}
	latest := filepath.Join(s.artifactDir, fmt.Sprintf("%s_latest.json", s.modelName))
	if err := os.WriteFile(latest, payload, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
