package training

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// DefaultExperiment names the tracking experiment training runs log under.
const DefaultExperiment = "readmission-risk"

type JobModel struct {
	ID           uuid.UUID         `gorm:"type:uuid;primaryKey;column:id"`
	DatasetRunID string            `gorm:"column:dataset_run_id"`
	Config       datatypes.JSONMap `gorm:"column:config"`
	Status       string            `gorm:"column:status"`
	Metrics      datatypes.JSONMap `gorm:"column:metrics"`
	ArtifactPath string            `gorm:"column:artifact_path"`
	ErrorMessage string            `gorm:"column:error_message"`
	CreatedAt    time.Time         `gorm:"column:created_at"`
	UpdatedAt    time.Time         `gorm:"column:updated_at"`
	StartedAt    *time.Time        `gorm:"column:started_at"`
	CompletedAt  *time.Time        `gorm:"column:completed_at"`
}

func (JobModel) TableName() string {
	return "training_jobs"
}

// CreateJobInput describes a requested training run. DatasetRunID may be
// empty, in which case the latest persisted dataset run is used.
type CreateJobInput struct {
	DatasetRunID string
	Config       map[string]interface{}
}

type Artifact struct {
	JobID   uuid.UUID              `json:"job_id"`
	Path    string                 `json:"path"`
	Metrics map[string]interface{} `json:"metrics"`
}
