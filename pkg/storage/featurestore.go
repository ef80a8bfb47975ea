package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/veridian-health/readmit/pkg/record"
)

// OnlineFeatures are a patient's historical aggregates as of their most
// recent encounter, materialized for low-latency reads at serving time.
// Absent history means zero counts; a cache miss is treated the same way by
// the serving layer.
type OnlineFeatures struct {
	PatientID            string    `json:"patient_id"`
	Conditions365d       int       `json:"conditions_365d"`
	UniqueConditions365d int       `json:"unique_conditions_365d"`
	Meds365d             int       `json:"meds_365d"`
	UniqueMeds365d       int       `json:"unique_meds_365d"`
	AsOf                 time.Time `json:"as_of"`
}

type FeatureStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewFeatureStore(client *redis.Client, prefix string, ttl time.Duration) *FeatureStore {
	return &FeatureStore{client: client, prefix: prefix, ttl: ttl}
}

func (f *FeatureStore) key(patientID string) string {
	return fmt.Sprintf("%s:%s", f.prefix, patientID)
}

// Materialize writes each patient's latest aggregates. Rows must be grouped
// per patient in chronological order; the last row per patient wins.
func (f *FeatureStore) Materialize(ctx context.Context, rows []record.FeatureRow, asOf time.Time) error {
	latest := make(map[string]OnlineFeatures)
	for _, row := range rows {
		latest[row.PatientID] = OnlineFeatures{
			PatientID:            row.PatientID,
			Conditions365d:       row.Conditions365d,
			UniqueConditions365d: row.UniqueConditions365d,
			Meds365d:             row.Meds365d,
			UniqueMeds365d:       row.UniqueMeds365d,
			AsOf:                 asOf,
		}
	}

	pipe := f.client.Pipeline()
	for patientID, features := range latest {
		payload, err := json.Marshal(features)
		if err != nil {
			return fmt.Errorf("marshaling features for %s: %w", patientID, err)
		}
		pipe.Set(ctx, f.key(patientID), payload, f.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Get returns the patient's online features. The second return is false on a
// cache miss; callers default the aggregates to zero in that case.
func (f *FeatureStore) Get(ctx context.Context, patientID string) (OnlineFeatures, bool, error) {
	payload, err := f.client.Get(ctx, f.key(patientID)).Bytes()
	if err == redis.Nil {
		return OnlineFeatures{}, false, nil
	}
	if err != nil {
		return OnlineFeatures{}, false, err
	}
	var features OnlineFeatures
	if err := json.Unmarshal(payload, &features); err != nil {
		return OnlineFeatures{}, false, err
	}
	return features, true, nil
}
