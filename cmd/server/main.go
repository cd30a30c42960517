// Package main is the entrypoint for the ThreatHunter API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kiranshivaraju/threathunter/internal/api"
	"github.com/kiranshivaraju/threathunter/internal/api/handler"
	mw "github.com/kiranshivaraju/threathunter/internal/api/middleware"
	"github.com/kiranshivaraju/threathunter/internal/api/response"
	"github.com/kiranshivaraju/threathunter/internal/config"
	"github.com/kiranshivaraju/threathunter/internal/encoder"
	"github.com/kiranshivaraju/threathunter/internal/engine"
	"github.com/kiranshivaraju/threathunter/internal/modelstore"
	"github.com/kiranshivaraju/threathunter/internal/resultstore"
	"github.com/kiranshivaraju/threathunter/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	// 1. Load config — fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "encoder_provider", cfg.Encoder.Provider, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis result store
	results := resultstore.NewRedisStore(cfg.Redis.Addr(), cfg.Redis.DB)
	defer results.Close()

	if err := results.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create log encoder
	enc, err := encoder.NewEncoder(cfg.Encoder)
	if err != nil {
		return fmt.Errorf("create encoder: %w", err)
	}
	slog.Info("encoder initialized", "provider", enc.Name())

	// 6. Create store and detection engine
	pgStore := store.NewPostgresStore(pool)
	artifacts := modelstore.New(cfg.Models.Dir)

	eng := engine.New(engine.FromDetectorsConfig(cfg.Detectors), enc, results, artifacts, logger)
	if err := eng.LoadModels(); err != nil {
		return fmt.Errorf("load models: %w", err)
	}

	// 7. Build router with dependencies
	auth := mw.NewAuth(pgStore)
	rateLimit := mw.NewRateLimit(results, 60)

	deps := api.Dependencies{
		Auth:      auth,
		RateLimit: rateLimit,

		HealthHandler: healthHandler(pgStore, results),

		DetectHandler:        handler.NewDetectHandler(eng),
		ListAnomaliesHandler: handler.NewListAnomaliesHandler(results),

		CreateAlertHandler:       handler.NewCreateAlertHandler(pgStore),
		ListAlertsHandler:        handler.NewListAlertsHandler(pgStore),
		GetAlertHandler:          handler.NewGetAlertHandler(pgStore),
		UpdateAlertStatusHandler: handler.NewUpdateAlertStatusHandler(pgStore),

		TrainHandler:      handler.NewTrainHandler(eng),
		SaveModelsHandler: handler.NewSaveModelsHandler(eng),
		LoadModelsHandler: handler.NewLoadModelsHandler(eng),
		StatusHandler:     handler.NewStatusHandler(eng),

		CreateKeyHandler: handler.NewCreateKeyHandler(pgStore),
		ListKeysHandler:  handler.NewListKeysHandler(pgStore),
		RevokeKeyHandler: handler.NewRevokeKeyHandler(pgStore),
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// healthHandler checks database and result store connectivity.
func healthHandler(s store.Store, rs resultstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database":    "ok",
			"resultstore": "ok",
		}

		if err := s.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := rs.Ping(r.Context()); err != nil {
			checks["resultstore"] = "degraded"
		}

		degraded := checks["database"] != "ok" || checks["resultstore"] != "ok"
		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
