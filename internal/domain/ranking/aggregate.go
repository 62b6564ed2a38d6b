package ranking

import (
	"github.com/okian/brandmatch/internal/domain/attribute"
)

// CandidateAggregate accumulates one candidate's normalized scores across
// attributes. Only attributes the candidate was returned for are present;
// Total always equals the sum of Scores.
type CandidateAggregate struct {
	CandidateID string
	Scores      map[attribute.Key]float64
	Total       float64
}

// NewCandidateAggregate returns an empty aggregate for id.
func NewCandidateAggregate(id string) *CandidateAggregate {
	return &CandidateAggregate{
		CandidateID: id,
		Scores:      make(map[attribute.Key]float64, len(attribute.All())),
	}
}

// Add sets the score of key, replacing any previous value, and refreshes Total.
func (a *CandidateAggregate) Add(key attribute.Key, score float64) {
	a.Scores[key] = score
	a.Total = a.sum()
}

// Score returns the score of key and whether the candidate has one.
func (a *CandidateAggregate) Score(key attribute.Key) (float64, bool) {
	s, ok := a.Scores[key]
	return s, ok
}

// sum adds scores in canonical key order so the total does not depend on
// the order attributes arrived in.
func (a *CandidateAggregate) sum() float64 {
	var total float64
	for _, k := range attribute.All() {
		if s, ok := a.Scores[k]; ok {
			total += s
		}
	}
	return total
}

func (a *CandidateAggregate) clone() CandidateAggregate {
	scores := make(map[attribute.Key]float64, len(a.Scores))
	for k, v := range a.Scores {
		scores[k] = v
	}
	return CandidateAggregate{CandidateID: a.CandidateID, Scores: scores, Total: a.Total}
}
