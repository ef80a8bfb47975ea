package tracking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrRunNotFound = errors.New("experiment run not found")

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// RunModel is one experiment-tracking entry: parameters, metrics and the
// artifact location of a single training run, keyed by run id.
type RunModel struct {
	ID           uuid.UUID         `gorm:"type:uuid;primaryKey;column:id"`
	Experiment   string            `gorm:"column:experiment;index"`
	Params       datatypes.JSONMap `gorm:"column:params"`
	Metrics      datatypes.JSONMap `gorm:"column:metrics"`
	ArtifactPath string            `gorm:"column:artifact_path"`
	Status       string            `gorm:"column:status"`
	CreatedAt    time.Time         `gorm:"column:created_at"`
	CompletedAt  *time.Time        `gorm:"column:completed_at"`
}

func (RunModel) TableName() string {
	return "experiment_runs"
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&RunModel{})
}

// Start opens a run with its parameters recorded up front.
func (r *Repository) Start(ctx context.Context, experiment string, params map[string]interface{}) (uuid.UUID, error) {
	run := &RunModel{
		ID:         uuid.New(),
		Experiment: experiment,
		Params:     datatypes.JSONMap(params),
		Status:     StatusRunning,
		CreatedAt:  time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return uuid.Nil, err
	}
	return run.ID, nil
}

// Finish records metrics and the artifact path, closing the run.
func (r *Repository) Finish(ctx context.Context, id uuid.UUID, status string, metrics map[string]interface{}, artifactPath string) error {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":        status,
		"artifact_path": artifactPath,
		"completed_at":  now,
	}
	if metrics != nil {
		updates["metrics"] = datatypes.JSONMap(metrics)
	}
	return r.db.WithContext(ctx).Model(&RunModel{}).Where("id = ?", id).Updates(updates).Error
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*RunModel, error) {
	var run RunModel
	result := r.db.WithContext(ctx).First(&run, "id = ?", id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	return &run, result.Error
}

func (r *Repository) ListByExperiment(ctx context.Context, experiment string, limit int) ([]RunModel, error) {
	if limit <= 0 {
		limit = 50
	}
	var runs []RunModel
	result := r.db.WithContext(ctx).
		Where("experiment = ?", experiment).
		Order("created_at desc").
		Limit(limit).
		Find(&runs)
	return runs, result.Error
}
