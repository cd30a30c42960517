package models

import (
	"context"
	"errors"
)

// Sentinel errors returned by network-backed Encoder implementations.
var (
	ErrEncoderUnavailable = errors.New("embedding backend unavailable")
	ErrEncodeTimeout      = errors.New("embedding request timeout")
	ErrInvalidResponse    = errors.New("embedding backend returned invalid response")
)

// Encoder turns free-text messages into fixed-size dense vectors. Never call
// a specific embedding backend directly — always inject this interface.
type Encoder interface {
	// Encode embeds each text into a vector of Dim() values. The whole batch
	// goes to the backend in one call wherever the backend allows it.
	Encode(ctx context.Context, texts []string) ([][]float64, error)
	// Dim returns the embedding dimensionality.
	Dim() int
	// Name returns the provider identifier (e.g., "hashing", "ollama").
	Name() string
}
