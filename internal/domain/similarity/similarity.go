// Package similarity defines the contract of the vector-similarity backend
// queried once per attribute partition.
package similarity

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/okian/brandmatch/internal/domain/attribute"
	"github.com/okian/brandmatch/internal/domain/embedding"
	"github.com/okian/brandmatch/internal/domain/model"
)

// Client queries the top-N nearest candidates of one partition.
// Implementations must be safe for concurrent use.
type Client interface {
	Query(ctx context.Context, vec embedding.Vector, partition attribute.Partition, topN int) ([]model.RawMatch, error)
}

// Writer stores candidate vectors. One vector exists per candidate and
// partition; Upsert replaces any previous one.
type Writer interface {
	Upsert(ctx context.Context, partition attribute.Partition, candidateID, text string, vec embedding.Vector) error
	Delete(ctx context.Context, partition attribute.Partition, candidateID string) error
}

// Index is a backend that can be both queried and written.
type Index interface {
	Client
	Writer
}

// Sanitize drops matches without a candidate id or with a non-finite score
// and collapses duplicate candidates to their best score. The returned count
// is the number of matches dropped for bad metadata; duplicates are not
// counted. The output is ordered by score desc, candidate id asc.
func Sanitize(matches []model.RawMatch) ([]model.RawMatch, int) {
	dropped := 0
	best := make(map[string]int, len(matches))
	out := make([]model.RawMatch, 0, len(matches))
	for _, m := range matches {
		m.CandidateID = strings.TrimSpace(m.CandidateID)
		if m.CandidateID == "" || math.IsNaN(m.Score) || math.IsInf(m.Score, 0) {
			dropped++
			continue
		}
		if i, ok := best[m.CandidateID]; ok {
			if m.Score > out[i].Score {
				out[i].Score = m.Score
			}
			continue
		}
		best[m.CandidateID] = len(out)
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].CandidateID < out[j].CandidateID
	})
	return out, dropped
}
