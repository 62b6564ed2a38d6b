// Package embedding defines the contract for turning attribute text into
// fixed-length vectors.
package embedding

import (
	"context"
	"fmt"
	"math"
)

// Dimension is the default vector length (Cohere embed-multilingual-v3.0).
const Dimension = 1024

// Vector is one embedding.
type Vector []float32

// Provider embeds text. Implementations must be safe for concurrent use and
// must not retry internally.
type Provider interface {
	Embed(ctx context.Context, text string) (Vector, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, text string) (Vector, error)

// Embed calls f.
func (f ProviderFunc) Embed(ctx context.Context, text string) (Vector, error) { return f(ctx, text) }

// Validate checks that vec is usable as a dim-length embedding.
func Validate(vec Vector, dim int) error {
	if len(vec) == 0 {
		return fmt.Errorf("%w: %w: empty vector", ErrEmbeddingUnavailable, ErrDataIntegrity)
	}
	if dim > 0 && len(vec) != dim {
		return fmt.Errorf("%w: %w: dimension %d, want %d", ErrEmbeddingUnavailable, ErrDataIntegrity, len(vec), dim)
	}
	for i, v := range vec {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return fmt.Errorf("%w: %w: non-finite component at %d", ErrEmbeddingUnavailable, ErrDataIntegrity, i)
		}
	}
	return nil
}

// FromFloat64 converts a float64 embedding as returned by HTTP APIs.
func FromFloat64(in []float64) Vector {
	out := make(Vector, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}

// Unavailable wraps an upstream failure as ErrEmbeddingUnavailable.
func Unavailable(provider string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrEmbeddingUnavailable, provider, err)
}
