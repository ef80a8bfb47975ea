package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/veridian-health/readmit/pkg/record"
)

var ErrRunNotFound = errors.New("dataset run not found")

// DatasetRow is the persisted form of one FeatureRow, keyed by the pipeline
// run that produced it. Label is nullable: indeterminate rows are stored,
// not dropped.
type DatasetRow struct {
	RunID                string    `gorm:"primaryKey;column:run_id"`
	EncounterID          string    `gorm:"primaryKey;column:encounter_id"`
	PatientID            string    `gorm:"column:patient_id;index"`
	LengthHours          float64   `gorm:"column:encounter_length_hours"`
	Class                string    `gorm:"column:encounter_class"`
	Conditions365d       int       `gorm:"column:conditions_365d"`
	UniqueConditions365d int       `gorm:"column:unique_conditions_365d"`
	Meds365d             int       `gorm:"column:meds_365d"`
	UniqueMeds365d       int       `gorm:"column:unique_meds_365d"`
	Label                *int      `gorm:"column:label"`
	Position             int       `gorm:"column:position"`
	CreatedAt            time.Time `gorm:"column:created_at"`
}

func (DatasetRow) TableName() string {
	return "feature_rows"
}

// DatasetStore persists processed datasets so the training service can load
// a run without re-reading the CSV artifact.
type DatasetStore struct {
	db *gorm.DB
}

func NewDatasetStore(db *gorm.DB) *DatasetStore {
	return &DatasetStore{db: db}
}

func (s *DatasetStore) AutoMigrate() error {
	return s.db.AutoMigrate(&DatasetRow{})
}

// WriteRun stores all rows of one pipeline run. Position preserves the
// deterministic emission order.
func (s *DatasetStore) WriteRun(ctx context.Context, runID string, rows []record.FeatureRow) error {
	now := time.Now().UTC()
	models := make([]DatasetRow, 0, len(rows))
	for i, row := range rows {
		models = append(models, DatasetRow{
			RunID:                runID,
			EncounterID:          row.EncounterID,
			PatientID:            row.PatientID,
			LengthHours:          row.LengthHours,
			Class:                row.Class,
			Conditions365d:       row.Conditions365d,
			UniqueConditions365d: row.UniqueConditions365d,
			Meds365d:             row.Meds365d,
			UniqueMeds365d:       row.UniqueMeds365d,
			Label:                row.Label.Int(),
			Position:             i,
			CreatedAt:            now,
		})
	}
	return s.db.WithContext(ctx).CreateInBatches(models, 500).Error
}

// LoadRun returns the rows of one run in emission order. filterUnlabeled is
// the training consumer's explicit opt-in to drop indeterminate-label rows.
func (s *DatasetStore) LoadRun(ctx context.Context, runID string, filterUnlabeled bool) ([]record.FeatureRow, error) {
	tx := s.db.WithContext(ctx).Where("run_id = ?", runID)
	if filterUnlabeled {
		tx = tx.Where("label IS NOT NULL")
	}
	var models []DatasetRow
	if err := tx.Order("position asc").Find(&models).Error; err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, ErrRunNotFound
	}

	rows := make([]record.FeatureRow, 0, len(models))
	for _, m := range models {
		lbl := record.Indeterminate()
		if m.Label != nil {
			lbl = record.Readmitted(*m.Label == 1)
		}
		rows = append(rows, record.FeatureRow{
			EncounterID:          m.EncounterID,
			PatientID:            m.PatientID,
			LengthHours:          m.LengthHours,
			Class:                m.Class,
			Conditions365d:       m.Conditions365d,
			UniqueConditions365d: m.UniqueConditions365d,
			Meds365d:             m.Meds365d,
			UniqueMeds365d:       m.UniqueMeds365d,
			Label:                lbl,
		})
	}
	return rows, nil
}

// LatestRunID returns the most recently written run.
func (s *DatasetStore) LatestRunID(ctx context.Context) (string, error) {
	var row DatasetRow
	result := s.db.WithContext(ctx).Order("created_at desc").First(&row)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return "", ErrRunNotFound
	}
	return row.RunID, result.Error
}
