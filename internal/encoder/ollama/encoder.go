// Package ollama implements models.Encoder against an Ollama embedding model.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/kiranshivaraju/threathunter/internal/config"
	"github.com/kiranshivaraju/threathunter/pkg/models"
)

// Encoder calls Ollama's /api/embed endpoint. The whole batch goes out in a
// single request; per-message round trips are what make naive embedding slow.
type Encoder struct {
	cfg    config.OllamaConfig
	client *http.Client

	// dim is learned from the first successful response.
	dim int
}

func NewEncoder(cfg config.OllamaConfig, timeout time.Duration) *Encoder {
	return &Encoder{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

func (e *Encoder) Name() string { return "ollama" }

func (e *Encoder) Dim() int { return e.dim }

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

func (e *Encoder) Encode(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}

	body, err := json.Marshal(embedRequest{Model: e.cfg.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("encoding embed request: %w", err)
	}

	u := fmt.Sprintf("%s/api/embed", e.cfg.BaseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", models.ErrEncoderUnavailable, resp.StatusCode)
	}

	var embedResp embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidResponse, err)
	}

	if len(embedResp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs",
			models.ErrInvalidResponse, len(embedResp.Embeddings), len(texts))
	}
	if e.dim == 0 && len(embedResp.Embeddings) > 0 {
		e.dim = len(embedResp.Embeddings[0])
	}

	return embedResp.Embeddings, nil
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", models.ErrEncodeTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", models.ErrEncodeTimeout, err)
		}
	}

	return fmt.Errorf("%w: %v", models.ErrEncoderUnavailable, err)
}

var _ models.Encoder = (*Encoder)(nil)
