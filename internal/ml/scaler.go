package ml

import "math"

// StandardScaler normalizes each feature to zero mean and unit variance.
// A feature with zero variance keeps a scale of 1 so transforming it is a
// no-op shift rather than a division by zero.
type StandardScaler struct {
	Mean  []float64
	Scale []float64
}

// Fit computes per-feature mean and standard deviation over the samples.
func (s *StandardScaler) Fit(samples [][]float64) {
	if len(samples) == 0 {
		s.Mean, s.Scale = nil, nil
		return
	}
	n := float64(len(samples))
	dim := len(samples[0])

	s.Mean = make([]float64, dim)
	s.Scale = make([]float64, dim)

	for _, row := range samples {
		for j, v := range row {
			s.Mean[j] += v
		}
	}
	for j := range s.Mean {
		s.Mean[j] /= n
	}

	for _, row := range samples {
		for j, v := range row {
			diff := v - s.Mean[j]
			s.Scale[j] += diff * diff
		}
	}
	for j := range s.Scale {
		std := math.Sqrt(s.Scale[j] / n)
		if std == 0 {
			std = 1
		}
		s.Scale[j] = std
	}
}

// Transform returns a new slice of normalized samples.
func (s *StandardScaler) Transform(samples [][]float64) [][]float64 {
	out := make([][]float64, len(samples))
	for i, row := range samples {
		scaled := make([]float64, len(row))
		for j, v := range row {
			scaled[j] = (v - s.Mean[j]) / s.Scale[j]
		}
		out[i] = scaled
	}
	return out
}

// FitTransform fits the scaler and transforms the samples in one step.
func (s *StandardScaler) FitTransform(samples [][]float64) [][]float64 {
	s.Fit(samples)
	return s.Transform(samples)
}

// Fitted reports whether Fit has been called with data.
func (s *StandardScaler) Fitted() bool {
	return len(s.Mean) > 0
}
