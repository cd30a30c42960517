package detector

import (
	"context"
	"fmt"
	"sync"

	"github.com/kiranshivaraju/threathunter/internal/ml"
	"github.com/kiranshivaraju/threathunter/internal/modelstore"
	"github.com/kiranshivaraju/threathunter/pkg/models"
)

// Artifact names for the time-series detector's trained state.
const (
	artifactTimeSeriesModel  = "time_series_model"
	artifactTimeSeriesScaler = "time_series_scaler"
)

// TimeSeriesConfig tunes the time-series detector. Zero values fall back to
// the defaults applied in NewTimeSeries.
type TimeSeriesConfig struct {
	// SequenceLength is the window length L: each window of L samples
	// predicts the sample that follows it.
	SequenceLength int
	// ThresholdPercentile (0-1) picks the anomaly threshold from the
	// distribution of reconstruction errors in the detection batch itself.
	// The threshold therefore depends on batch composition; identical
	// errors can classify differently across batches.
	ThresholdPercentile float64
	Epochs              int
	HiddenSize          int
	LearningRate        float64
	Seed                int64
	// FeatureNames label the explanatory feature map on results. When empty,
	// a single-feature series is labeled "metric_value".
	FeatureNames []string
}

func (c TimeSeriesConfig) withDefaults() TimeSeriesConfig {
	if c.SequenceLength <= 0 {
		c.SequenceLength = 60
	}
	if c.ThresholdPercentile <= 0 {
		c.ThresholdPercentile = 0.95
	}
	if c.Epochs <= 0 {
		c.Epochs = 100
	}
	if c.HiddenSize <= 0 {
		c.HiddenSize = 32
	}
	if c.LearningRate <= 0 {
		c.LearningRate = 0.01
	}
	if c.Seed == 0 {
		c.Seed = 42
	}
	return c
}

// TimeSeries flags points in a numeric multivariate series whose short-term
// dynamics deviate from the learned baseline. Safe for concurrent Detect
// calls; Train must not run concurrently with Detect.
type TimeSeries struct {
	cfg TimeSeriesConfig

	mu      sync.RWMutex
	model   *ml.SequenceModel
	scaler  *ml.StandardScaler
	trained bool
}

func NewTimeSeries(cfg TimeSeriesConfig) *TimeSeries {
	return &TimeSeries{cfg: cfg.withDefaults()}
}

// Trained reports whether the detector has a usable model.
func (d *TimeSeries) Trained() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.trained
}

// Train fits the scaler over the full series and a sequence model over
// overlapping windows of SequenceLength samples, each predicting the next
// sample. Fails with ErrInsufficientData below SequenceLength+1 samples.
func (d *TimeSeries) Train(_ context.Context, series []models.MetricPoint) error {
	seqLen := d.cfg.SequenceLength
	if len(series) < seqLen+1 {
		return fmt.Errorf("%w: time series needs at least %d samples, got %d",
			ErrInsufficientData, seqLen+1, len(series))
	}

	values := metricValues(series)
	scaler := &ml.StandardScaler{}
	scaled := scaler.FitTransform(values)

	windows, targets := ml.BuildWindows(scaled, seqLen)
	model := ml.NewSequenceModel(seqLen, len(values[0]), d.cfg.HiddenSize, d.cfg.Seed)
	model.Fit(windows, targets, d.cfg.Epochs, d.cfg.LearningRate)

	d.mu.Lock()
	d.model = model
	d.scaler = scaler
	d.trained = true
	d.mu.Unlock()
	return nil
}

// Detect scores every window of the series by reconstruction error and flags
// those above the batch percentile threshold. Each result carries the
// timestamp of the window's target sample. A batch shorter than
// SequenceLength+1 yields an empty result list.
func (d *TimeSeries) Detect(_ context.Context, series []models.MetricPoint) ([]models.AnomalyResult, error) {
	d.mu.RLock()
	model, scaler, trained := d.model, d.scaler, d.trained
	d.mu.RUnlock()

	if !trained {
		return nil, fmt.Errorf("time series detector: %w", ErrNotTrained)
	}

	seqLen := d.cfg.SequenceLength
	if len(series) < seqLen+1 {
		return []models.AnomalyResult{}, nil
	}

	scaled := scaler.Transform(metricValues(series))
	windows, targets := ml.BuildWindows(scaled, seqLen)

	errs := make([]float64, len(windows))
	for i, window := range windows {
		errs[i] = ml.MeanSquaredError(targets[i], model.Predict(window))
	}
	threshold := ml.Percentile(errs, d.cfg.ThresholdPercentile*100)

	results := make([]models.AnomalyResult, len(errs))
	for i, errVal := range errs {
		point := series[i+seqLen]
		isAnomaly := errVal > threshold

		results[i] = models.AnomalyResult{
			Timestamp:    point.Timestamp,
			Source:       models.SourceTimeSeries,
			AnomalyScore: errVal,
			IsAnomaly:    isAnomaly,
			Confidence:   reconstructionConfidence(errVal, threshold, isAnomaly),
			Features:     d.featureMap(point.Values),
			Explanation:  fmt.Sprintf("Reconstruction error: %.4f, Threshold: %.4f", errVal, threshold),
			Severity:     severityForScore(errVal, threshold, isAnomaly),
		}
	}
	return results, nil
}

// reconstructionConfidence derives confidence from the error-to-threshold
// ratio: capped at 2 for anomalies, distance from the threshold otherwise.
func reconstructionConfidence(errVal, threshold float64, isAnomaly bool) float64 {
	if threshold == 0 {
		if isAnomaly {
			return 2
		}
		return 1
	}
	ratio := errVal / threshold
	if isAnomaly {
		if ratio > 2 {
			return 2
		}
		return ratio
	}
	return 1 - ratio
}

func (d *TimeSeries) featureMap(values []float64) map[string]any {
	features := make(map[string]any, len(values))
	for j, v := range values {
		switch {
		case j < len(d.cfg.FeatureNames):
			features[d.cfg.FeatureNames[j]] = v
		case len(values) == 1:
			features["metric_value"] = v
		default:
			features[fmt.Sprintf("feature_%d", j)] = v
		}
	}
	return features
}

// SaveTo writes the trained model and scaler to the model store.
func (d *TimeSeries) SaveTo(store *modelstore.Store) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.trained {
		return nil
	}
	if err := store.Save(artifactTimeSeriesModel, d.model); err != nil {
		return err
	}
	return store.Save(artifactTimeSeriesScaler, d.scaler)
}

// LoadFrom restores trained state from the model store. An artifact trained
// with a different window length is rejected: Detect builds windows from
// cfg.SequenceLength, so a mismatched model would score garbage.
func (d *TimeSeries) LoadFrom(store *modelstore.Store) error {
	var model ml.SequenceModel
	if err := store.Load(artifactTimeSeriesModel, &model); err != nil {
		return err
	}
	if model.SeqLen != d.cfg.SequenceLength {
		return fmt.Errorf("loading %s: artifact window length %d does not match configured %d",
			artifactTimeSeriesModel, model.SeqLen, d.cfg.SequenceLength)
	}
	var scaler ml.StandardScaler
	if err := store.Load(artifactTimeSeriesScaler, &scaler); err != nil {
		return err
	}

	d.mu.Lock()
	d.model = &model
	d.scaler = &scaler
	d.trained = true
	d.mu.Unlock()
	return nil
}

func metricValues(series []models.MetricPoint) [][]float64 {
	values := make([][]float64, len(series))
	for i, p := range series {
		values[i] = p.Values
	}
	return values
}
