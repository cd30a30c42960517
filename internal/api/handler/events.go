package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/kiranshivaraju/threathunter/internal/api/response"
	"github.com/kiranshivaraju/threathunter/internal/detector"
	"github.com/kiranshivaraju/threathunter/pkg/models"
)

const maxBatchSize = 10000

// Processor defines the detection interface the handler depends on.
type Processor interface {
	Process(ctx context.Context, events []models.Event) ([]models.AnomalyResult, error)
}

// NewDetectHandler returns an http.HandlerFunc for POST /api/v1/events.
// Detector failures are partial: findings from healthy detectors are returned
// alongside per-detector warnings.
func NewDetectHandler(proc Processor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Events []models.Event `json:"events"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		if len(req.Events) == 0 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "events must not be empty", nil)
			return
		}
		if len(req.Events) > maxBatchSize {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "too many events in one batch", nil)
			return
		}
		for i, ev := range req.Events {
			if ev.Timestamp.IsZero() {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "every event needs a timestamp", map[string]any{"index": i})
				return
			}
		}

		results, err := proc.Process(r.Context(), req.Events)
		if err != nil && len(results) == 0 {
			if errors.Is(err, detector.ErrNotTrained) {
				response.Error(w, http.StatusConflict, "DETECTOR_NOT_TRAINED",
					"No detector able to score this batch has been trained", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Detection failed", nil)
			return
		}

		anomalies := 0
		for _, res := range results {
			if res.IsAnomaly {
				anomalies++
			}
		}

		response.JSON(w, detectResponse{
			Results:        results,
			EventsReceived: len(req.Events),
			AnomaliesFound: anomalies,
			Warnings:       warningsFromErr(err),
		})
	}
}

type detectResponse struct {
	Results        []models.AnomalyResult `json:"results"`
	EventsReceived int                    `json:"events_received"`
	AnomaliesFound int                    `json:"anomalies_found"`
	Warnings       []string               `json:"warnings,omitempty"`
}

// warningsFromErr flattens a joined detector error into one message per line.
func warningsFromErr(err error) []string {
	if err == nil {
		return nil
	}
	return strings.Split(err.Error(), "\n")
}
