// Package scoring rescales one attribute's raw similarity scores onto a
// common bounded scale.
package scoring

import (
	"math"

	"github.com/okian/brandmatch/internal/domain/model"
)

// Default scoring configuration constants.
const (
	DefaultCeiling   = 10.0
	DefaultPrecision = 2
)

// Option applies a configuration option to the Normalizer.
type Option func(*Normalizer)

// WithCeiling sets the upper bound of normalized scores. Non-positive values are ignored.
func WithCeiling(ceiling float64) Option {
	return func(n *Normalizer) {
		if ceiling > 0 {
			n.ceiling = ceiling
		}
	}
}

// WithPrecision sets the number of decimals normalized scores are rounded to.
func WithPrecision(decimals int) Option {
	return func(n *Normalizer) {
		if decimals >= 0 {
			n.precision = decimals
		}
	}
}

// Normalizer performs per-attribute max normalization. It is stateless after
// construction and safe for concurrent use.
type Normalizer struct {
	ceiling   float64
	precision int
}

// NewNormalizer creates a Normalizer with configuration options.
func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{
		ceiling:   DefaultCeiling,
		precision: DefaultPrecision,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Ceiling returns the configured upper bound.
func (n *Normalizer) Ceiling() float64 { return n.ceiling }

// Precision returns the configured rounding precision.
func (n *Normalizer) Precision() int { return n.precision }

// Normalize rescales matches that share one attribute. With max the best raw
// score, each score becomes ceiling*score/max rounded to the configured
// precision, clamped to [0, ceiling]. When max <= 0 every score is 0.
// Empty input yields empty output.
func (n *Normalizer) Normalize(matches []model.RawMatch) []model.NormalizedScore {
	if len(matches) == 0 {
		return []model.NormalizedScore{}
	}

	maxScore := math.Inf(-1)
	for _, m := range matches {
		if m.Score > maxScore {
			maxScore = m.Score
		}
	}

	out := make([]model.NormalizedScore, len(matches))
	for i, m := range matches {
		var s float64
		if maxScore > 0 {
			s = Round(n.ceiling*(m.Score/maxScore), n.precision)
			s = math.Max(0, math.Min(n.ceiling, s))
		}
		out[i] = model.NormalizedScore{
			CandidateID: m.CandidateID,
			Attribute:   m.Attribute,
			Score:       s,
		}
	}
	return out
}

// Round rounds v half away from zero to the given number of decimals.
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
