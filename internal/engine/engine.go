// Package engine coordinates the anomaly detectors: it routes incoming
// events to the detectors that can score them, merges their findings, and
// persists flagged results.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kiranshivaraju/threathunter/internal/config"
	"github.com/kiranshivaraju/threathunter/internal/detector"
	"github.com/kiranshivaraju/threathunter/internal/modelstore"
	"github.com/kiranshivaraju/threathunter/internal/resultstore"
	"github.com/kiranshivaraju/threathunter/pkg/models"
)

// Config selects which detectors run and carries their tuning.
type Config struct {
	EnableTimeSeries  bool
	EnableLogAnalysis bool
	EnableBehavioral  bool

	// DetectorTimeout bounds each detector invocation within Process.
	DetectorTimeout time.Duration
	// ResultTTL bounds how long flagged results live in the result store.
	ResultTTL time.Duration

	TimeSeries detector.TimeSeriesConfig
	Log        detector.LogConfig
	Behavioral detector.BehavioralConfig
}

// FromDetectorsConfig maps the flat environment configuration onto the
// engine's per-detector tuning.
func FromDetectorsConfig(dc config.DetectorsConfig) Config {
	return Config{
		EnableTimeSeries:  dc.EnableTimeSeries,
		EnableLogAnalysis: dc.EnableLogAnalysis,
		EnableBehavioral:  dc.EnableBehavioral,
		DetectorTimeout:   dc.Timeout,
		ResultTTL:         dc.ResultTTL,
		TimeSeries: detector.TimeSeriesConfig{
			SequenceLength:      dc.SequenceLength,
			ThresholdPercentile: dc.ThresholdPercentile,
			Epochs:              dc.TrainingEpochs,
		},
		Log: detector.LogConfig{
			Contamination: dc.Contamination,
		},
		Behavioral: detector.BehavioralConfig{
			Contamination: dc.Contamination,
			MinEvents:     dc.MinEntityEvents,
		},
	}
}

// Engine owns the detector set. Detectors are created once at construction;
// disabled detectors are nil and never consulted.
type Engine struct {
	cfg    Config
	logger *slog.Logger

	timeSeries *detector.TimeSeries
	logs       *detector.Log
	behavioral *detector.Behavioral

	results resultstore.Store
	models  *modelstore.Store
}

// New builds an Engine with the enabled detectors wired to the given encoder,
// result store, and model store.
func New(cfg Config, enc models.Encoder, results resultstore.Store, store *modelstore.Store, logger *slog.Logger) *Engine {
	if cfg.DetectorTimeout <= 0 {
		cfg.DetectorTimeout = 60 * time.Second
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}

	e := &Engine{
		cfg:     cfg,
		logger:  logger,
		results: results,
		models:  store,
	}
	if cfg.EnableTimeSeries {
		e.timeSeries = detector.NewTimeSeries(cfg.TimeSeries)
	}
	if cfg.EnableLogAnalysis {
		e.logs = detector.NewLog(cfg.Log, enc)
	}
	if cfg.EnableBehavioral {
		e.behavioral = detector.NewBehavioral(cfg.Behavioral)
	}
	return e
}

// routedBatch is one Process call's input split by detector.
type routedBatch struct {
	metrics   []models.MetricPoint
	logs      []string
	logTimes  []time.Time
	userReady []models.Event
}

// route splits events by field presence. A single event can feed several
// detectors when it carries several of the routing fields.
func route(events []models.Event) routedBatch {
	var b routedBatch
	for _, ev := range events {
		if ev.MetricValue != nil {
			b.metrics = append(b.metrics, models.MetricPoint{
				Timestamp: ev.Timestamp,
				Values:    []float64{*ev.MetricValue},
			})
		}
		if ev.LogMessage != "" {
			b.logs = append(b.logs, ev.LogMessage)
			b.logTimes = append(b.logTimes, ev.Timestamp)
		}
		if ev.UserID != "" {
			b.userReady = append(b.userReady, ev)
		}
	}
	return b
}

// Process routes the batch to every enabled detector with matching input,
// runs the detectors concurrently, and persists flagged results. Detector
// failures are isolated: results from healthy detectors are returned
// alongside the joined error.
//
// Result order is deterministic: time-series findings first, then log, then
// behavioral, each in its detector's own order.
func (e *Engine) Process(ctx context.Context, events []models.Event) ([]models.AnomalyResult, error) {
	batch := route(events)

	var (
		wg sync.WaitGroup

		tsResults, logResults, behavioralResults []models.AnomalyResult
		tsErr, logErr, behavioralErr             error
	)

	if e.timeSeries != nil && len(batch.metrics) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dctx, cancel := context.WithTimeout(ctx, e.cfg.DetectorTimeout)
			defer cancel()
			tsResults, tsErr = e.timeSeries.Detect(dctx, batch.metrics)
		}()
	}
	if e.logs != nil && len(batch.logs) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dctx, cancel := context.WithTimeout(ctx, e.cfg.DetectorTimeout)
			defer cancel()
			logResults, logErr = e.logs.Detect(dctx, batch.logs, batch.logTimes)
		}()
	}
	if e.behavioral != nil && len(batch.userReady) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dctx, cancel := context.WithTimeout(ctx, e.cfg.DetectorTimeout)
			defer cancel()
			behavioralResults, behavioralErr = e.behavioral.Detect(dctx, batch.userReady)
		}()
	}
	wg.Wait()

	results := make([]models.AnomalyResult, 0, len(tsResults)+len(logResults)+len(behavioralResults))
	results = append(results, tsResults...)
	results = append(results, logResults...)
	results = append(results, behavioralResults...)

	e.persist(ctx, results)

	return results, errors.Join(tsErr, logErr, behavioralErr)
}

// persist stores flagged results. Storage failures are logged and swallowed:
// detection output must reach the caller even when Redis is down.
func (e *Engine) persist(ctx context.Context, results []models.AnomalyResult) {
	for _, r := range results {
		if !r.IsAnomaly {
			continue
		}
		if err := e.results.SaveAnomaly(ctx, r, e.cfg.ResultTTL); err != nil {
			e.logger.Warn("failed to persist anomaly",
				"source", r.Source,
				"timestamp", r.Timestamp,
				"error", err)
		}
	}
}

// TrainAll trains each enabled detector that has data, sequentially. An
// empty sub-dataset leaves its detector untrained without error; a training
// failure aborts the run.
func (e *Engine) TrainAll(ctx context.Context, data models.TrainingData) error {
	if e.timeSeries != nil && len(data.Metrics) > 0 {
		if err := e.timeSeries.Train(ctx, data.Metrics); err != nil {
			return fmt.Errorf("training time series detector: %w", err)
		}
		e.logger.Info("time series detector trained", "samples", len(data.Metrics))
	}
	if e.logs != nil && len(data.NormalLogs) > 0 {
		if err := e.logs.Train(ctx, data.NormalLogs); err != nil {
			return fmt.Errorf("training log detector: %w", err)
		}
		e.logger.Info("log detector trained", "samples", len(data.NormalLogs))
	}
	if e.behavioral != nil && len(data.UserEvents) > 0 {
		if err := e.behavioral.Train(ctx, data.UserEvents); err != nil {
			return fmt.Errorf("training behavioral detector: %w", err)
		}
		e.logger.Info("behavioral detector trained", "events", len(data.UserEvents))
	}
	return nil
}

// SaveModels writes every trained detector's artifacts to the model store.
func (e *Engine) SaveModels() error {
	if e.timeSeries != nil {
		if err := e.timeSeries.SaveTo(e.models); err != nil {
			return fmt.Errorf("saving time series model: %w", err)
		}
	}
	if e.logs != nil {
		if err := e.logs.SaveTo(e.models); err != nil {
			return fmt.Errorf("saving log model: %w", err)
		}
	}
	if e.behavioral != nil {
		if err := e.behavioral.SaveTo(e.models); err != nil {
			return fmt.Errorf("saving behavioral models: %w", err)
		}
	}
	return nil
}

// LoadModels restores detector state from the model store. Missing artifacts
// are logged and skipped; the detector stays untrained.
func (e *Engine) LoadModels() error {
	load := func(name string, fn func(*modelstore.Store) error) error {
		err := fn(e.models)
		if errors.Is(err, modelstore.ErrArtifactMissing) {
			e.logger.Warn("model artifact missing, detector stays untrained", "detector", name)
			return nil
		}
		return err
	}

	if e.timeSeries != nil {
		if err := load("time_series", e.timeSeries.LoadFrom); err != nil {
			return fmt.Errorf("loading time series model: %w", err)
		}
	}
	if e.logs != nil {
		if err := load("log_analysis", e.logs.LoadFrom); err != nil {
			return fmt.Errorf("loading log model: %w", err)
		}
	}
	if e.behavioral != nil {
		if err := load("behavioral_analysis", e.behavioral.LoadFrom); err != nil {
			return fmt.Errorf("loading behavioral models: %w", err)
		}
	}
	return nil
}

// Status reports which detectors are enabled and trained.
type Status struct {
	Enabled map[models.Source]bool `json:"enabled"`
	Trained map[models.Source]bool `json:"trained"`
}

func (e *Engine) Status() Status {
	s := Status{
		Enabled: map[models.Source]bool{
			models.SourceTimeSeries: e.timeSeries != nil,
			models.SourceLogs:       e.logs != nil,
			models.SourceBehavioral: e.behavioral != nil,
		},
		Trained: map[models.Source]bool{
			models.SourceTimeSeries: e.timeSeries != nil && e.timeSeries.Trained(),
			models.SourceLogs:       e.logs != nil && e.logs.Trained(),
			models.SourceBehavioral: e.behavioral != nil && e.behavioral.Trained(),
		},
	}
	return s
}
