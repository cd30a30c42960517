package encoder

import (
	"fmt"

	"github.com/kiranshivaraju/threathunter/internal/config"
	"github.com/kiranshivaraju/threathunter/internal/encoder/hashing"
	"github.com/kiranshivaraju/threathunter/internal/encoder/ollama"
	"github.com/kiranshivaraju/threathunter/pkg/models"
)

// NewEncoder constructs the configured text encoder.
// Called once at server startup.
func NewEncoder(cfg config.EncoderConfig) (models.Encoder, error) {
	switch cfg.Provider {
	case "hashing":
		return hashing.NewEncoder(cfg.Hashing), nil
	case "ollama":
		return ollama.NewEncoder(cfg.Ollama, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown encoder provider %q: must be one of hashing, ollama", cfg.Provider)
	}
}
