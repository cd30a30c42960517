// Package detector implements the three anomaly detectors: reconstruction
// scoring over numeric time series, embedding-based log outlier scoring, and
// per-entity behavioral outlier scoring.
package detector

import "errors"

var (
	// ErrNotTrained is returned when detection is attempted before training.
	ErrNotTrained = errors.New("detector not trained")
	// ErrInsufficientData is returned when training data is below the
	// detector's minimum size requirement.
	ErrInsufficientData = errors.New("insufficient training data")
)
