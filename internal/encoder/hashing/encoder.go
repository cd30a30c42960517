// Package hashing implements a local, deterministic text encoder based on
// token feature hashing. It needs no network backend, which makes it the
// default provider and the one used throughout the test suite.
package hashing

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"

	"github.com/kiranshivaraju/threathunter/internal/config"
	"github.com/kiranshivaraju/threathunter/pkg/models"
)

// Normalization regexes compiled once at package init. Volatile fragments
// (timestamps, addresses, ids, counters) are replaced with stable
// placeholders so that messages differing only in those hash identically.
var (
	reDatetime   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2})?\s*`)
	reHexAddr    = regexp.MustCompile(`0x[0-9a-fA-F]+`)
	reUUID       = regexp.MustCompile(`(?i)[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)
	reIPAddr     = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)
	reNumber     = regexp.MustCompile(`\b\d+\b`)
	reTokenSplit = regexp.MustCompile(`[^a-z0-9_\.]+`)
)

// Encoder hashes normalized tokens and token bigrams into a fixed-dimension
// count vector, then L2-normalizes it.
type Encoder struct {
	dim int
}

func NewEncoder(cfg config.HashingConfig) *Encoder {
	return &Encoder{dim: cfg.Dim}
}

func (e *Encoder) Name() string { return "hashing" }

func (e *Encoder) Dim() int { return e.dim }

func (e *Encoder) Encode(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		out[i] = e.embed(text)
	}
	return out, nil
}

func (e *Encoder) embed(text string) []float64 {
	vec := make([]float64, e.dim)
	tokens := tokenize(text)

	for i, tok := range tokens {
		vec[e.bucket(tok)]++
		if i+1 < len(tokens) {
			vec[e.bucket(tok+" "+tokens[i+1])]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}

func (e *Encoder) bucket(token string) int {
	h := fnv.New32a()
	h.Write([]byte(token))
	return int(h.Sum32() % uint32(e.dim))
}

func tokenize(text string) []string {
	normalized := Normalize(text)
	parts := reTokenSplit.Split(normalized, -1)
	tokens := parts[:0]
	for _, p := range parts {
		if p != "" {
			tokens = append(tokens, p)
		}
	}
	return tokens
}

// Normalize applies all normalization rules to a log message.
func Normalize(msg string) string {
	msg = reDatetime.ReplaceAllString(msg, "")
	msg = reHexAddr.ReplaceAllString(msg, "HEXADDR")
	msg = reUUID.ReplaceAllString(msg, "UUID")
	msg = reIPAddr.ReplaceAllString(msg, "IPADDR")
	msg = reNumber.ReplaceAllString(msg, "NUM")
	msg = strings.ToLower(msg)
	return strings.TrimSpace(msg)
}

var _ models.Encoder = (*Encoder)(nil)
