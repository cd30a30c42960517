package detector_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/kiranshivaraju/threathunter/internal/detector"
	"github.com/kiranshivaraju/threathunter/internal/modelstore"
	"github.com/kiranshivaraju/threathunter/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sineSeries generates n samples of a smooth periodic single-feature series.
func sineSeries(n int, start time.Time) []models.MetricPoint {
	series := make([]models.MetricPoint, n)
	for i := range series {
		series[i] = models.MetricPoint{
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			Values:    []float64{100 + 10*math.Sin(float64(i)/5)},
		}
	}
	return series
}

func newTimeSeries() *detector.TimeSeries {
	return detector.NewTimeSeries(detector.TimeSeriesConfig{
		SequenceLength:      10,
		ThresholdPercentile: 0.95,
		Epochs:              30,
		HiddenSize:          8,
	})
}

func TestTimeSeries_DetectBeforeTrain(t *testing.T) {
	d := newTimeSeries()

	_, err := d.Detect(context.Background(), sineSeries(20, time.Now()))
	assert.ErrorIs(t, err, detector.ErrNotTrained)
	assert.False(t, d.Trained())
}

func TestTimeSeries_TrainInsufficientData(t *testing.T) {
	d := newTimeSeries()

	err := d.Train(context.Background(), sineSeries(10, time.Now()))
	assert.ErrorIs(t, err, detector.ErrInsufficientData)
}

func TestTimeSeries_DetectShortBatch(t *testing.T) {
	d := newTimeSeries()
	require.NoError(t, d.Train(context.Background(), sineSeries(120, time.Now())))

	results, err := d.Detect(context.Background(), sineSeries(5, time.Now()))
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestTimeSeries_FlagsSpike(t *testing.T) {
	start := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	d := newTimeSeries()
	require.NoError(t, d.Train(context.Background(), sineSeries(120, start)))
	require.True(t, d.Trained())

	batch := sineSeries(120, start)
	spikeIdx := 60
	batch[spikeIdx].Values = []float64{500}

	results, err := d.Detect(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, results, 110)

	// The window targeting the spike carries the largest reconstruction error.
	best := results[0]
	for _, r := range results[1:] {
		if r.AnomalyScore > best.AnomalyScore {
			best = r
		}
	}
	assert.True(t, best.IsAnomaly)
	assert.Equal(t, batch[spikeIdx].Timestamp, best.Timestamp)
	assert.Equal(t, models.SourceTimeSeries, best.Source)
	assert.Equal(t, 500.0, best.Features["metric_value"])
	assert.Contains(t, best.Explanation, "Reconstruction error")
}

func TestTimeSeries_ConstantSeriesNoAnomalies(t *testing.T) {
	start := time.Now()
	d := newTimeSeries()
	require.NoError(t, d.Train(context.Background(), sineSeries(120, start)))

	flat := make([]models.MetricPoint, 40)
	for i := range flat {
		flat[i] = models.MetricPoint{
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			Values:    []float64{100},
		}
	}

	// Identical windows produce identical errors; nothing exceeds the batch
	// percentile threshold.
	results, err := d.Detect(context.Background(), flat)
	require.NoError(t, err)
	for _, r := range results {
		assert.False(t, r.IsAnomaly)
		assert.Equal(t, models.SeverityLow, r.Severity)
	}
}

func TestTimeSeries_FeatureNames(t *testing.T) {
	d := detector.NewTimeSeries(detector.TimeSeriesConfig{
		SequenceLength: 3,
		Epochs:         5,
		HiddenSize:     4,
		FeatureNames:   []string{"cpu", "memory"},
	})

	start := time.Now()
	series := make([]models.MetricPoint, 30)
	for i := range series {
		series[i] = models.MetricPoint{
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			Values:    []float64{float64(i % 5), float64(i % 7)},
		}
	}
	require.NoError(t, d.Train(context.Background(), series))

	results, err := d.Detect(context.Background(), series)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Contains(t, results[0].Features, "cpu")
	assert.Contains(t, results[0].Features, "memory")
}

func TestTimeSeries_SaveLoadRoundTrip(t *testing.T) {
	start := time.Now()
	store := modelstore.New(t.TempDir())

	d := newTimeSeries()
	require.NoError(t, d.Train(context.Background(), sineSeries(120, start)))
	require.NoError(t, d.SaveTo(store))

	restored := newTimeSeries()
	require.NoError(t, restored.LoadFrom(store))
	require.True(t, restored.Trained())

	batch := sineSeries(60, start)
	want, err := d.Detect(context.Background(), batch)
	require.NoError(t, err)
	got, err := restored.Detect(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestTimeSeries_LoadRejectsMismatchedWindow(t *testing.T) {
	store := modelstore.New(t.TempDir())

	d := newTimeSeries()
	require.NoError(t, d.Train(context.Background(), sineSeries(120, time.Now())))
	require.NoError(t, d.SaveTo(store))

	restored := detector.NewTimeSeries(detector.TimeSeriesConfig{
		SequenceLength:      20,
		ThresholdPercentile: 0.95,
		Epochs:              30,
		HiddenSize:          8,
	})
	err := restored.LoadFrom(store)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "window length")
	assert.False(t, restored.Trained())
}

func TestTimeSeries_SaveUntrainedIsNoop(t *testing.T) {
	store := modelstore.New(t.TempDir())

	d := newTimeSeries()
	require.NoError(t, d.SaveTo(store))

	restored := newTimeSeries()
	assert.ErrorIs(t, restored.LoadFrom(store), modelstore.ErrArtifactMissing)
}
