package mock

import (
	"context"

	"github.com/kiranshivaraju/threathunter/pkg/models"
)

// MockEncoder satisfies models.Encoder for testing.
type MockEncoder struct {
	Name_      string
	Dim_       int
	EncodeFunc func(ctx context.Context, texts []string) ([][]float64, error)
}

func (m *MockEncoder) Name() string { return m.Name_ }

func (m *MockEncoder) Dim() int { return m.Dim_ }

func (m *MockEncoder) Encode(ctx context.Context, texts []string) ([][]float64, error) {
	if m.EncodeFunc != nil {
		return m.EncodeFunc(ctx, texts)
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = make([]float64, m.Dim_)
	}
	return out, nil
}

// NewMockEncoder returns a MockEncoder that embeds every text as a vector of
// cheap surface features: component 0 is the text length, component 1 the
// digit count. Two varying components keep outlier-model tests from training
// on a degenerate single axis.
func NewMockEncoder(dim int) *MockEncoder {
	return &MockEncoder{
		Name_: "mock",
		Dim_:  dim,
		EncodeFunc: func(_ context.Context, texts []string) ([][]float64, error) {
			out := make([][]float64, len(texts))
			for i, t := range texts {
				vec := make([]float64, dim)
				vec[0] = float64(len(t))
				if dim > 1 {
					for _, r := range t {
						if r >= '0' && r <= '9' {
							vec[1]++
						}
					}
				}
				out[i] = vec
			}
			return out, nil
		},
	}
}

// NewFailingEncoder returns a MockEncoder that always returns the given error.
func NewFailingEncoder(err error) *MockEncoder {
	return &MockEncoder{
		Name_: "mock-failing",
		EncodeFunc: func(_ context.Context, _ []string) ([][]float64, error) {
			return nil, err
		},
	}
}

// Compile-time check that MockEncoder implements Encoder.
var _ models.Encoder = (*MockEncoder)(nil)
