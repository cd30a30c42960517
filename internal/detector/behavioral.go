package detector

import (
	"context"
	"fmt"
	"sync"

	"github.com/kiranshivaraju/threathunter/internal/ml"
	"github.com/kiranshivaraju/threathunter/internal/ml/iforest"
	"github.com/kiranshivaraju/threathunter/internal/modelstore"
	"github.com/kiranshivaraju/threathunter/pkg/models"
)

const (
	artifactBehavioralModels  = "behavioral_models"
	artifactBehavioralScalers = "behavioral_scalers"
)

// BehavioralConfig tunes the behavioral detector.
type BehavioralConfig struct {
	Contamination float64
	// MinEvents is the minimum per-entity history required to build a
	// baseline; entities below it get no model.
	MinEvents int
	NumTrees  int
	Seed      int64
}

func (c BehavioralConfig) withDefaults() BehavioralConfig {
	if c.Contamination <= 0 {
		c.Contamination = 0.1
	}
	if c.MinEvents <= 0 {
		c.MinEvents = 10
	}
	if c.Seed == 0 {
		c.Seed = 42
	}
	return c
}

// entityModel is one entity's baseline: an outlier model plus the scaler it
// was fitted with. Read-only after training.
type entityModel struct {
	forest *iforest.Forest
	scaler *ml.StandardScaler
}

// Behavioral flags events that are unusual for a specific entity relative to
// that entity's own history. Each entity gets an independent outlier model
// and scaler; the entity map is rebuilt and swapped wholesale on retrain so
// concurrent readers observe either the old or the new set, never a mix.
type Behavioral struct {
	cfg BehavioralConfig

	mu       sync.RWMutex
	entities map[string]*entityModel
	trained  bool
}

func NewBehavioral(cfg BehavioralConfig) *Behavioral {
	return &Behavioral{cfg: cfg.withDefaults()}
}

// Trained reports whether Train has completed at least once.
func (d *Behavioral) Trained() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.trained
}

// Train groups events by entity and fits a scaler and outlier model per
// entity with at least MinEvents of history. Entities below the minimum are
// skipped entirely; that sparse population is deliberate, not an error.
func (d *Behavioral) Train(_ context.Context, events []models.Event) error {
	groups, order := groupByEntity(events)

	entities := make(map[string]*entityModel)
	for _, entityID := range order {
		entityEvents := groups[entityID]
		if len(entityEvents) < d.cfg.MinEvents {
			continue
		}

		scaler := &ml.StandardScaler{}
		scaled := scaler.FitTransform(behavioralFeatures(entityEvents))

		forest := iforest.New(iforest.Options{
			NumTrees:      d.cfg.NumTrees,
			Contamination: d.cfg.Contamination,
			Seed:          d.cfg.Seed,
		})
		if err := forest.Fit(scaled); err != nil {
			return fmt.Errorf("fitting model for entity %s: %w", entityID, err)
		}

		entities[entityID] = &entityModel{forest: forest, scaler: scaler}
	}

	d.mu.Lock()
	d.entities = entities
	d.trained = true
	d.mu.Unlock()
	return nil
}

// Detect scores each entity's events against that entity's own baseline.
// Entities without a model are silently skipped: an unknown entity is a
// distinct, non-alerting condition, not an anomaly and not an error.
func (d *Behavioral) Detect(_ context.Context, events []models.Event) ([]models.AnomalyResult, error) {
	d.mu.RLock()
	entities, trained := d.entities, d.trained
	d.mu.RUnlock()

	if !trained {
		return nil, fmt.Errorf("behavioral detector: %w", ErrNotTrained)
	}

	groups, order := groupByEntity(events)

	results := []models.AnomalyResult{}
	for _, entityID := range order {
		em, ok := entities[entityID]
		if !ok {
			continue
		}

		entityEvents := groups[entityID]
		scaled := em.scaler.Transform(behavioralFeatures(entityEvents))

		decisions, err := em.forest.DecisionFunction(scaled)
		if err != nil {
			return nil, fmt.Errorf("scoring entity %s: %w", entityID, err)
		}

		for i, ev := range entityEvents {
			decision := decisions[i]
			isAnomaly := decision < 0

			confidence := decision
			if confidence < 0 {
				confidence = -confidence
			}

			results = append(results, models.AnomalyResult{
				Timestamp:    ev.Timestamp,
				Source:       models.SourceBehavioral,
				AnomalyScore: -decision,
				IsAnomaly:    isAnomaly,
				Confidence:   confidence,
				Features: map[string]any{
					"user_id":    entityID,
					"event_type": ev.EventType,
					"source_ip":  ev.SourceIP,
				},
				Explanation: fmt.Sprintf("Behavioral anomaly for user %s. Score: %.4f", entityID, decision),
				Severity:    severityForDecision(decision, isAnomaly),
			})
		}
	}
	return results, nil
}

// SaveTo writes the entity model and scaler mappings as two artifacts.
func (d *Behavioral) SaveTo(store *modelstore.Store) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.trained {
		return nil
	}

	forests := make(map[string]*iforest.Forest, len(d.entities))
	scalers := make(map[string]*ml.StandardScaler, len(d.entities))
	for id, em := range d.entities {
		forests[id] = em.forest
		scalers[id] = em.scaler
	}

	if err := store.Save(artifactBehavioralModels, forests); err != nil {
		return err
	}
	return store.Save(artifactBehavioralScalers, scalers)
}

// LoadFrom restores the entity mappings from the model store. Only entities
// present in both artifacts get a model.
func (d *Behavioral) LoadFrom(store *modelstore.Store) error {
	var forests map[string]*iforest.Forest
	if err := store.Load(artifactBehavioralModels, &forests); err != nil {
		return err
	}
	var scalers map[string]*ml.StandardScaler
	if err := store.Load(artifactBehavioralScalers, &scalers); err != nil {
		return err
	}

	entities := make(map[string]*entityModel, len(forests))
	for id, forest := range forests {
		scaler, ok := scalers[id]
		if !ok {
			continue
		}
		entities[id] = &entityModel{forest: forest, scaler: scaler}
	}

	d.mu.Lock()
	d.entities = entities
	d.trained = true
	d.mu.Unlock()
	return nil
}
