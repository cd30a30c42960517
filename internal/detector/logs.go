package detector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kiranshivaraju/threathunter/internal/ml/iforest"
	"github.com/kiranshivaraju/threathunter/internal/modelstore"
	"github.com/kiranshivaraju/threathunter/pkg/models"
)

const artifactLogModel = "log_analysis_model"

// LogConfig tunes the log detector.
type LogConfig struct {
	// Contamination is the expected outlier fraction in the training logs.
	Contamination float64
	NumTrees      int
	Seed          int64
}

func (c LogConfig) withDefaults() LogConfig {
	if c.Contamination <= 0 {
		c.Contamination = 0.1
	}
	if c.Seed == 0 {
		c.Seed = 42
	}
	return c
}

// Log flags messages that are stylistically unlike a normal-traffic baseline.
// Messages are embedded through the injected encoder and scored by an
// isolation forest fitted over the baseline embeddings; embeddings are used
// directly, without scaling.
type Log struct {
	cfg     LogConfig
	encoder models.Encoder

	mu      sync.RWMutex
	forest  *iforest.Forest
	trained bool
}

func NewLog(cfg LogConfig, enc models.Encoder) *Log {
	return &Log{cfg: cfg.withDefaults(), encoder: enc}
}

// Trained reports whether the detector has a usable model.
func (d *Log) Trained() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.trained
}

// Train embeds the baseline messages in one batched encoder call and fits
// the outlier model over the embeddings.
func (d *Log) Train(ctx context.Context, normalLogs []string) error {
	if len(normalLogs) == 0 {
		return fmt.Errorf("%w: no baseline log messages", ErrInsufficientData)
	}

	embeddings, err := d.encoder.Encode(ctx, normalLogs)
	if err != nil {
		return fmt.Errorf("embedding training logs: %w", err)
	}

	forest := iforest.New(iforest.Options{
		NumTrees:      d.cfg.NumTrees,
		Contamination: d.cfg.Contamination,
		Seed:          d.cfg.Seed,
	})
	if err := forest.Fit(embeddings); err != nil {
		return fmt.Errorf("fitting log outlier model: %w", err)
	}

	d.mu.Lock()
	d.forest = forest
	d.trained = true
	d.mu.Unlock()
	return nil
}

// Detect scores each message with the outlier model's decision function.
// The anomaly score is the negated decision value, so higher means more
// anomalous; timestamps pair positionally with logs.
func (d *Log) Detect(ctx context.Context, logs []string, timestamps []time.Time) ([]models.AnomalyResult, error) {
	d.mu.RLock()
	forest, trained := d.forest, d.trained
	d.mu.RUnlock()

	if !trained {
		return nil, fmt.Errorf("log detector: %w", ErrNotTrained)
	}
	if len(logs) != len(timestamps) {
		return nil, fmt.Errorf("log detector: %d messages but %d timestamps", len(logs), len(timestamps))
	}
	if len(logs) == 0 {
		return []models.AnomalyResult{}, nil
	}

	embeddings, err := d.encoder.Encode(ctx, logs)
	if err != nil {
		return nil, fmt.Errorf("embedding logs: %w", err)
	}

	decisions, err := forest.DecisionFunction(embeddings)
	if err != nil {
		return nil, fmt.Errorf("scoring logs: %w", err)
	}

	results := make([]models.AnomalyResult, len(logs))
	for i, msg := range logs {
		decision := decisions[i]
		isAnomaly := decision < 0

		confidence := decision
		if confidence < 0 {
			confidence = -confidence
		}

		results[i] = models.AnomalyResult{
			Timestamp:    timestamps[i],
			Source:       models.SourceLogs,
			AnomalyScore: -decision,
			IsAnomaly:    isAnomaly,
			Confidence:   confidence,
			Features: map[string]any{
				"log_message": msg,
				"log_length":  len(msg),
			},
			Explanation: fmt.Sprintf("Log pattern anomaly detected. Score: %.4f", decision),
			Severity:    severityForDecision(decision, isAnomaly),
		}
	}
	return results, nil
}

// SaveTo writes the trained outlier model to the model store.
func (d *Log) SaveTo(store *modelstore.Store) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.trained {
		return nil
	}
	return store.Save(artifactLogModel, d.forest)
}

// LoadFrom restores the trained outlier model from the model store.
func (d *Log) LoadFrom(store *modelstore.Store) error {
	var forest iforest.Forest
	if err := store.Load(artifactLogModel, &forest); err != nil {
		return err
	}

	d.mu.Lock()
	d.forest = &forest
	d.trained = true
	d.mu.Unlock()
	return nil
}
