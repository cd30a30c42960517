// Package ml implements the small numeric primitives the detectors are built
// on: feature scaling, percentile thresholds, and a sequence reconstruction
// model. Everything here is deterministic under a fixed seed and
// gob-serializable so trained state can round-trip through the model store.
package ml

import (
	"math"
	"sort"
)

// Percentile returns the p-th percentile (0-100) of values using linear
// interpolation between closest ranks, matching numpy's default behavior.
// Returns 0 for an empty slice.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// MeanSquaredError returns the squared deviation between predicted and actual,
// averaged across features.
func MeanSquaredError(actual, predicted []float64) float64 {
	if len(actual) == 0 {
		return 0
	}
	var sum float64
	for i := range actual {
		diff := actual[i] - predicted[i]
		sum += diff * diff
	}
	return sum / float64(len(actual))
}
