package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/kiranshivaraju/threathunter/internal/api/response"
	"github.com/kiranshivaraju/threathunter/pkg/models"
)

// AnomalyLister defines the result store interface the handler depends on.
type AnomalyLister interface {
	ListAnomalies(ctx context.Context, source models.Source, limit int) ([]models.AnomalyResult, error)
}

var validSources = map[models.Source]bool{
	models.SourceTimeSeries: true,
	models.SourceLogs:       true,
	models.SourceBehavioral: true,
}

// NewListAnomaliesHandler returns an http.HandlerFunc for GET /api/v1/anomalies.
func NewListAnomaliesHandler(rs AnomalyLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		source := models.Source(r.URL.Query().Get("source"))
		if source != "" && !validSources[source] {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"source must be one of time_series, log_analysis, behavioral_analysis", nil)
			return
		}

		limit := 100
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a positive integer", nil)
				return
			}
			limit = n
		}
		if limit > 1000 {
			limit = 1000
		}

		anomalies, err := rs.ListAnomalies(r.Context(), source, limit)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to list anomalies", nil)
			return
		}

		response.JSON(w, map[string]any{
			"anomalies": anomalies,
			"count":     len(anomalies),
		})
	}
}
