package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kiranshivaraju/threathunter/internal/api/response"
	"github.com/kiranshivaraju/threathunter/internal/detector"
	"github.com/kiranshivaraju/threathunter/internal/engine"
	"github.com/kiranshivaraju/threathunter/pkg/models"
)

// Trainer defines the training interface the handler depends on.
type Trainer interface {
	TrainAll(ctx context.Context, data models.TrainingData) error
}

// ModelPersister saves and restores detector state on disk.
type ModelPersister interface {
	SaveModels() error
	LoadModels() error
}

// StatusReporter exposes the engine's detector status.
type StatusReporter interface {
	Status() engine.Status
}

// NewTrainHandler returns an http.HandlerFunc for POST /api/v1/admin/train.
func NewTrainHandler(tr Trainer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var data models.TrainingData
		if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		if len(data.Metrics) == 0 && len(data.NormalLogs) == 0 && len(data.UserEvents) == 0 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"at least one of metrics, normal_logs, user_events is required", nil)
			return
		}

		if err := tr.TrainAll(r.Context(), data); err != nil {
			if errors.Is(err, detector.ErrInsufficientData) {
				response.Error(w, http.StatusBadRequest, "INSUFFICIENT_DATA", err.Error(), nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Training failed", nil)
			return
		}

		response.JSON(w, map[string]any{
			"status":      "trained",
			"metrics":     len(data.Metrics),
			"normal_logs": len(data.NormalLogs),
			"user_events": len(data.UserEvents),
		})
	}
}

// NewSaveModelsHandler returns an http.HandlerFunc for POST /api/v1/admin/models/save.
func NewSaveModelsHandler(mp ModelPersister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := mp.SaveModels(); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to save models", nil)
			return
		}
		response.JSON(w, map[string]any{"status": "saved"})
	}
}

// NewLoadModelsHandler returns an http.HandlerFunc for POST /api/v1/admin/models/load.
func NewLoadModelsHandler(mp ModelPersister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := mp.LoadModels(); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load models", nil)
			return
		}
		response.JSON(w, map[string]any{"status": "loaded"})
	}
}

// NewStatusHandler returns an http.HandlerFunc for GET /api/v1/admin/status.
func NewStatusHandler(sr StatusReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, sr.Status())
	}
}
