package hashing_test

import (
	"context"
	"math"
	"testing"

	"github.com/kiranshivaraju/threathunter/internal/config"
	"github.com/kiranshivaraju/threathunter/internal/encoder/hashing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEncoder(dim int) *hashing.Encoder {
	return hashing.NewEncoder(config.HashingConfig{Dim: dim})
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"leading timestamp stripped",
			"2025-03-14T09:26:53Z connection accepted",
			"connection accepted",
		},
		{
			"ip address",
			"login from 192.168.1.100 accepted",
			"login from ipaddr accepted",
		},
		{
			"uuid",
			"request 550e8400-e29b-41d4-a716-446655440000 completed",
			"request uuid completed",
		},
		{
			"hex address",
			"segfault at 0xDEADBEEF",
			"segfault at hexaddr",
		},
		{
			"bare numbers",
			"served 1532 requests in 99 ms",
			"served num requests in num ms",
		},
		{
			"lowercased and trimmed",
			"  ERROR Disk Full  ",
			"error disk full",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hashing.Normalize(tt.in))
		})
	}
}

func TestEncoder_Deterministic(t *testing.T) {
	enc := newEncoder(64)

	a, err := enc.Encode(context.Background(), []string{"user alice logged in"})
	require.NoError(t, err)
	b, err := enc.Encode(context.Background(), []string{"user alice logged in"})
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestEncoder_VolatileFragmentsHashIdentically(t *testing.T) {
	enc := newEncoder(64)

	vecs, err := enc.Encode(context.Background(), []string{
		"login from 10.0.0.1 took 15 ms",
		"login from 203.0.113.9 took 230 ms",
	})
	require.NoError(t, err)
	assert.Equal(t, vecs[0], vecs[1])
}

func TestEncoder_DistinctMessagesDiffer(t *testing.T) {
	enc := newEncoder(64)

	vecs, err := enc.Encode(context.Background(), []string{
		"user logged in",
		"disk write failure on volume",
	})
	require.NoError(t, err)
	assert.NotEqual(t, vecs[0], vecs[1])
}

func TestEncoder_UnitNorm(t *testing.T) {
	enc := newEncoder(32)

	vecs, err := enc.Encode(context.Background(), []string{"authentication failure for root"})
	require.NoError(t, err)
	require.Len(t, vecs, 1)
	require.Len(t, vecs[0], 32)

	var norm float64
	for _, v := range vecs[0] {
		norm += v * v
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-9)
}

func TestEncoder_EmptyMessage(t *testing.T) {
	enc := newEncoder(16)

	vecs, err := enc.Encode(context.Background(), []string{""})
	require.NoError(t, err)
	require.Len(t, vecs, 1)
	for _, v := range vecs[0] {
		assert.Equal(t, 0.0, v)
	}
}

func TestEncoder_Metadata(t *testing.T) {
	enc := newEncoder(128)
	assert.Equal(t, "hashing", enc.Name())
	assert.Equal(t, 128, enc.Dim())
}
