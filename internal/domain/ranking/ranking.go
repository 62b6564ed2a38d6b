// Package ranking folds per-attribute normalized scores into one ranked
// shortlist of candidates.
package ranking

import (
	"sort"

	"github.com/okian/brandmatch/internal/domain/attribute"
	"github.com/okian/brandmatch/internal/domain/model"
	"github.com/okian/brandmatch/internal/domain/scoring"
)

// DefaultTopK is the shortlist length used when K <= 0.
const DefaultTopK = 3

// SkippedAttribute records an attribute that contributed nothing because its
// fetch failed.
type SkippedAttribute struct {
	Key    attribute.Key
	Reason string
}

// Result is a ranked shortlist, best first.
type Result struct {
	Matches []CandidateAggregate
	// Candidates is the number of distinct candidates aggregated before truncation.
	Candidates int
	Skipped    []SkippedAttribute
}

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithDefaultTopK sets the K used when callers pass K <= 0.
func WithDefaultTopK(k int) Option {
	return func(a *Aggregator) {
		if k > 0 {
			a.defaultK = k
		}
	}
}

// WithPrecision sets the decimals output totals are rounded to.
func WithPrecision(decimals int) Option {
	return func(a *Aggregator) {
		if decimals >= 0 {
			a.precision = decimals
		}
	}
}

// Aggregator is stateless and safe for concurrent use; every call builds its
// aggregates from scratch.
type Aggregator struct {
	defaultK  int
	precision int
}

// NewAggregator creates an Aggregator with configuration options.
func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{defaultK: DefaultTopK, precision: scoring.DefaultPrecision}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// DefaultTopK returns the K used for non-positive requests.
func (a *Aggregator) DefaultTopK() int { return a.defaultK }

// Aggregate sums each candidate's scores over the attributes it was returned
// for, ranks by total desc then candidate id asc, and keeps the top k.
// It fails with ErrNoCandidatesFound when no attribute produced a score.
func (a *Aggregator) Aggregate(per map[attribute.Key][]model.NormalizedScore, k int) (Result, error) {
	if k <= 0 {
		k = a.defaultK
	}

	byID := make(map[string]*CandidateAggregate)
	for _, key := range attribute.All() {
		for _, s := range per[key] {
			agg, ok := byID[s.CandidateID]
			if !ok {
				agg = NewCandidateAggregate(s.CandidateID)
				byID[s.CandidateID] = agg
			}
			// Within one attribute the best score wins.
			if prev, seen := agg.Score(key); seen && prev >= s.Score {
				continue
			}
			agg.Add(key, s.Score)
		}
	}
	if len(byID) == 0 {
		return Result{}, ErrNoCandidatesFound
	}

	ranked := make([]CandidateAggregate, 0, len(byID))
	for _, agg := range byID {
		c := agg.clone()
		c.Total = scoring.Round(c.Total, a.precision)
		ranked = append(ranked, c)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Total != ranked[j].Total {
			return ranked[i].Total > ranked[j].Total
		}
		return ranked[i].CandidateID < ranked[j].CandidateID
	})
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return Result{Matches: ranked, Candidates: len(byID)}, nil
}
