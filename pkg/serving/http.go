package serving

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/veridian-health/readmit/pkg/common/logger"
	"github.com/veridian-health/readmit/pkg/observability/metrics"
	"github.com/veridian-health/readmit/pkg/serving/predictor"
	"github.com/veridian-health/readmit/pkg/storage"
	"github.com/veridian-health/readmit/pkg/training"
)

// PredictRequest carries an inference-time feature vector. The length and
// class are required; the four historical aggregates are optional and
// default to zero — absence of history is a valid feature value, and the
// serving layer mirrors that semantics rather than rejecting the request.
// When a patient id is supplied, omitted aggregates are looked up in the
// online feature store first; a miss still defaults to zero.
type PredictRequest struct {
	PatientID            string   `json:"patient_id,omitempty"`
	LengthHours          *float64 `json:"encounter_length_hours"`
	Class                string   `json:"encounter_class"`
	Conditions365d       *int     `json:"conditions_365d,omitempty"`
	UniqueConditions365d *int     `json:"unique_conditions_365d,omitempty"`
	Meds365d             *int     `json:"meds_365d,omitempty"`
	UniqueMeds365d       *int     `json:"unique_meds_365d,omitempty"`
}

type PredictResponse struct {
	ReadmissionProbability float64 `json:"readmission_probability"`
	Readmitted30d          int     `json:"readmitted_30d"`
	LatencyMs              int64   `json:"latency_ms"`
}

// Threshold converts a probability into the binary readmission call.
const Threshold = 0.5

type Handler struct {
	predictor *predictor.Predictor
	online    *storage.FeatureStore // may be nil
	model     string
}

func NewHandler(p *predictor.Predictor, online *storage.FeatureStore, model string) *Handler {
	return &Handler{predictor: p, online: online, model: model}
}

func (h *Handler) Register(router *mux.Router) {
	router.HandleFunc("/api/v1/predict", h.handlePredict).Methods(http.MethodPost)
}

func (h *Handler) handlePredict(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.LengthHours == nil || *req.LengthHours < 0 {
		http.Error(w, "encounter_length_hours is required and must be non-negative", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Class) == "" {
		http.Error(w, "encounter_class is required", http.StatusBadRequest)
		return
	}

	h.fillFromStore(r, &req)

	names, err := h.predictor.FeatureNames(h.model)
	if err != nil {
		logger.Log.WithError(err).Error("model artifact unavailable")
		http.Error(w, "model unavailable", http.StatusServiceUnavailable)
		return
	}

	features := make(map[string]float64, len(names))
	for _, name := range names {
		features[name] = 0
	}
	features["encounter_length_hours"] = *req.LengthHours
	features["conditions_365d"] = float64(intOrZero(req.Conditions365d))
	features["unique_conditions_365d"] = float64(intOrZero(req.UniqueConditions365d))
	features["meds_365d"] = float64(intOrZero(req.Meds365d))
	features["unique_meds_365d"] = float64(intOrZero(req.UniqueMeds365d))

	// A class unseen at fit time leaves all one-hot slots at zero, matching
	// how the encoder treats unknown classes.
	classFeature := training.ClassFeaturePrefix + strings.ToLower(strings.TrimSpace(req.Class))
	if _, ok := features[classFeature]; ok {
		features[classFeature] = 1
	}

	score, err := h.predictor.Predict(h.model, features)
	if err != nil {
		logger.Log.WithError(err).Error("prediction failed")
		http.Error(w, "prediction failed", http.StatusInternalServerError)
		return
	}

	latency := time.Since(start)
	metrics.ObservePrediction()

	resp := PredictResponse{
		ReadmissionProbability: score,
		LatencyMs:              latency.Milliseconds(),
	}
	if score >= Threshold {
		resp.Readmitted30d = 1
	}

	logger.WithFields(map[string]interface{}{
		"probability": score,
		"latency_ms":  latency.Milliseconds(),
	}).Debug("Prediction served")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// fillFromStore backfills omitted aggregates from the online feature store.
// Failures and misses fall through to the zero default.
func (h *Handler) fillFromStore(r *http.Request, req *PredictRequest) {
	if h.online == nil || req.PatientID == "" {
		return
	}
	if req.Conditions365d != nil && req.UniqueConditions365d != nil &&
		req.Meds365d != nil && req.UniqueMeds365d != nil {
		return
	}
	stored, found, err := h.online.Get(r.Context(), req.PatientID)
	if err != nil {
		logger.Log.WithError(err).Warn("feature store lookup failed; defaulting aggregates to zero")
		return
	}
	if !found {
		return
	}
	if req.Conditions365d == nil {
		req.Conditions365d = &stored.Conditions365d
	}
	if req.UniqueConditions365d == nil {
		req.UniqueConditions365d = &stored.UniqueConditions365d
	}
	if req.Meds365d == nil {
		req.Meds365d = &stored.Meds365d
	}
	if req.UniqueMeds365d == nil {
		req.UniqueMeds365d = &stored.UniqueMeds365d
	}
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
