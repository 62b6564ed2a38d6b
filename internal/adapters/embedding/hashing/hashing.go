// Package hashing implements a deterministic local embedder based on feature
// hashing of word unigrams, word bigrams and character trigrams. It needs no
// network and is the default provider for development and tests.
package hashing

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/cespare/xxhash/v2"

	"github.com/okian/brandmatch/internal/domain/embedding"
	"github.com/okian/brandmatch/pkg/metrics"
)

const providerName = "hashing"

// Option applies a configuration option to the Embedder.
type Option func(*Embedder)

// WithDimension sets the output vector length.
func WithDimension(dim int) Option {
	return func(e *Embedder) {
		if dim > 0 {
			e.dim = dim
		}
	}
}

// Embedder is stateless and safe for concurrent use.
type Embedder struct {
	dim int
}

// New creates a hashing Embedder.
func New(opts ...Option) *Embedder {
	e := &Embedder{dim: embedding.Dimension}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dimension returns the output vector length.
func (e *Embedder) Dimension() int { return e.dim }

// Embed returns the L2-normalized hashed feature vector of text.
func (e *Embedder) Embed(ctx context.Context, text string) (embedding.Vector, error) {
	start := time.Now()
	defer func() { metrics.RecordEmbeddingLatency(providerName, float64(time.Since(start).Microseconds())/1000) }()

	if err := ctx.Err(); err != nil {
		return nil, embedding.Unavailable(providerName, err)
	}

	words := tokenize(text)
	if len(words) == 0 {
		metrics.RecordEmbeddingError(providerName)
		return nil, fmt.Errorf("%w: %w: no tokens in text", embedding.ErrEmbeddingUnavailable, embedding.ErrDataIntegrity)
	}

	vec := make(embedding.Vector, e.dim)
	for i, w := range words {
		e.add(vec, "w:"+w, 1)
		if i > 0 {
			e.add(vec, "b:"+words[i-1]+" "+w, 0.5)
		}
		padded := []rune(" " + w + " ")
		for j := 0; j+3 <= len(padded); j++ {
			e.add(vec, "c:"+string(padded[j:j+3]), 0.25)
		}
	}
	normalize(vec)
	return vec, nil
}

// add hashes feature into a bucket with a hash-derived sign.
func (e *Embedder) add(vec embedding.Vector, feature string, weight float32) {
	h := xxhash.Sum64String(feature)
	idx := h % uint64(e.dim)
	if h>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func normalize(v embedding.Vector) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	n := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= n
	}
}
