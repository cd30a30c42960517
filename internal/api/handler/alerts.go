package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/kiranshivaraju/threathunter/internal/api/middleware"
	"github.com/kiranshivaraju/threathunter/internal/api/response"
	"github.com/kiranshivaraju/threathunter/internal/store"
	"github.com/kiranshivaraju/threathunter/pkg/models"
)

// AlertStore defines the alert persistence interface the handlers depend on.
type AlertStore interface {
	CreateAlert(ctx context.Context, alert *models.Alert) error
	GetAlert(ctx context.Context, id uuid.UUID, tenantID uuid.UUID) (*models.Alert, error)
	ListAlerts(ctx context.Context, filter store.AlertFilter) ([]*models.Alert, int, error)
	UpdateAlertStatus(ctx context.Context, id uuid.UUID, tenantID uuid.UUID, status string, opts ...store.AlertUpdateOption) error
}

var validSeverities = map[models.Severity]bool{
	models.SeverityLow:    true,
	models.SeverityMedium: true,
	models.SeverityHigh:   true,
}

var validStatuses = map[string]bool{
	models.AlertStatusOpen:          true,
	models.AlertStatusInvestigating: true,
	models.AlertStatusResolved:      true,
	models.AlertStatusFalsePositive: true,
}

// NewCreateAlertHandler returns an http.HandlerFunc for POST /api/v1/alerts.
func NewCreateAlertHandler(s AlertStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		var req struct {
			Timestamp   time.Time `json:"timestamp"`
			Source      string    `json:"source"`
			Severity    string    `json:"severity"`
			Title       string    `json:"title"`
			Description string    `json:"description"`
			Score       float64   `json:"score"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		if req.Title == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "title is required", nil)
			return
		}
		if !validSources[models.Source(req.Source)] {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"source must be one of time_series, log_analysis, behavioral_analysis", nil)
			return
		}
		if !validSeverities[models.Severity(req.Severity)] {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"severity must be one of low, medium, high", nil)
			return
		}
		ts := req.Timestamp
		if ts.IsZero() {
			ts = time.Now().UTC()
		}

		now := time.Now().UTC()
		alert := &models.Alert{
			ID:          uuid.New(),
			TenantID:    tenantID,
			Timestamp:   ts,
			Source:      models.Source(req.Source),
			Severity:    models.Severity(req.Severity),
			Title:       req.Title,
			Description: req.Description,
			Score:       req.Score,
			Status:      models.AlertStatusOpen,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		if err := s.CreateAlert(r.Context(), alert); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create alert", nil)
			return
		}

		response.Created(w, alert)
	}
}

// NewListAlertsHandler returns an http.HandlerFunc for GET /api/v1/alerts.
func NewListAlertsHandler(s AlertStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		q := r.URL.Query()

		if src := q.Get("source"); src != "" && !validSources[models.Source(src)] {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"source must be one of time_series, log_analysis, behavioral_analysis", nil)
			return
		}
		if sev := q.Get("severity"); sev != "" && !validSeverities[models.Severity(sev)] {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"severity must be one of low, medium, high", nil)
			return
		}
		if st := q.Get("status"); st != "" && !validStatuses[st] {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"status must be one of open, investigating, resolved, false_positive", nil)
			return
		}

		var since time.Time
		if raw := q.Get("since"); raw != "" {
			parsed, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"since must be a valid RFC3339 timestamp", nil)
				return
			}
			since = parsed
		}

		page, _ := strconv.Atoi(q.Get("page"))
		limit, _ := strconv.Atoi(q.Get("limit"))
		if page <= 0 {
			page = 1
		}
		if limit <= 0 {
			limit = 20
		}
		if limit > 100 {
			limit = 100
		}

		alerts, total, err := s.ListAlerts(r.Context(), store.AlertFilter{
			TenantID: tenantID,
			Source:   q.Get("source"),
			Severity: q.Get("severity"),
			Status:   q.Get("status"),
			Since:    since,
			Page:     page,
			Limit:    limit,
		})
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list alerts", nil)
			return
		}
		if alerts == nil {
			alerts = []*models.Alert{}
		}

		response.Collection(w, alerts, response.PaginationMeta{
			Page:    page,
			Limit:   limit,
			Total:   total,
			HasNext: page*limit < total,
		})
	}
}

// NewGetAlertHandler returns an http.HandlerFunc for GET /api/v1/alerts/{alertID}.
func NewGetAlertHandler(s AlertStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		alertID, err := uuid.Parse(chi.URLParam(r, "alertID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "alertID must be a valid UUID", nil)
			return
		}

		alert, err := s.GetAlert(r.Context(), alertID, tenantID)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Alert not found", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get alert", nil)
			return
		}

		response.JSON(w, alert)
	}
}

// NewUpdateAlertStatusHandler returns an http.HandlerFunc for
// PATCH /api/v1/alerts/{alertID}/status.
func NewUpdateAlertStatusHandler(s AlertStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID, ok := mw.GetTenantID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing tenant", nil)
			return
		}

		alertID, err := uuid.Parse(chi.URLParam(r, "alertID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "alertID must be a valid UUID", nil)
			return
		}

		var req struct {
			Status     string  `json:"status"`
			AssignedTo *string `json:"assigned_to"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if !validStatuses[req.Status] {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"status must be one of open, investigating, resolved, false_positive", nil)
			return
		}

		var opts []store.AlertUpdateOption
		if req.AssignedTo != nil {
			opts = append(opts, store.WithAssignee(*req.AssignedTo))
		}

		err = s.UpdateAlertStatus(r.Context(), alertID, tenantID, req.Status, opts...)
		switch {
		case errors.Is(err, store.ErrNotFound):
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Alert not found", nil)
			return
		case errors.Is(err, store.ErrInvalidTransition):
			response.Error(w, http.StatusConflict, "INVALID_TRANSITION", err.Error(), nil)
			return
		case err != nil:
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update alert", nil)
			return
		}

		alert, err := s.GetAlert(r.Context(), alertID, tenantID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get alert", nil)
			return
		}
		response.JSON(w, alert)
	}
}
