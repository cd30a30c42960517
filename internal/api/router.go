package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/kiranshivaraju/threathunter/internal/api/middleware"
	"github.com/kiranshivaraju/threathunter/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler http.HandlerFunc

	DetectHandler        http.HandlerFunc
	ListAnomaliesHandler http.HandlerFunc

	CreateAlertHandler       http.HandlerFunc
	ListAlertsHandler        http.HandlerFunc
	GetAlertHandler          http.HandlerFunc
	UpdateAlertStatusHandler http.HandlerFunc

	TrainHandler      http.HandlerFunc
	SaveModelsHandler http.HandlerFunc
	LoadModelsHandler http.HandlerFunc
	StatusHandler     http.HandlerFunc

	CreateKeyHandler http.HandlerFunc
	ListKeysHandler  http.HandlerFunc
	RevokeKeyHandler http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public health check
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Post("/api/v1/events", orNotImplemented(deps.DetectHandler))
		r.Get("/api/v1/anomalies", orNotImplemented(deps.ListAnomaliesHandler))

		r.Post("/api/v1/alerts", orNotImplemented(deps.CreateAlertHandler))
		r.Get("/api/v1/alerts", orNotImplemented(deps.ListAlertsHandler))
		r.Get("/api/v1/alerts/{alertID}", orNotImplemented(deps.GetAlertHandler))
		r.Patch("/api/v1/alerts/{alertID}/status", orNotImplemented(deps.UpdateAlertStatusHandler))

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope("admin"))

			r.Post("/api/v1/admin/train", orNotImplemented(deps.TrainHandler))
			r.Post("/api/v1/admin/models/save", orNotImplemented(deps.SaveModelsHandler))
			r.Post("/api/v1/admin/models/load", orNotImplemented(deps.LoadModelsHandler))
			r.Get("/api/v1/admin/status", orNotImplemented(deps.StatusHandler))

			r.Post("/api/v1/admin/keys", orNotImplemented(deps.CreateKeyHandler))
			r.Get("/api/v1/admin/keys", orNotImplemented(deps.ListKeysHandler))
			r.Delete("/api/v1/admin/keys/{keyID}", orNotImplemented(deps.RevokeKeyHandler))
		})
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
