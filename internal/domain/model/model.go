// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/okian/brandmatch/internal/domain/attribute"
)

// RawMatch is one (candidate, attribute) pair surfaced by a partition query.
// Score is in the backend's similarity range.
type RawMatch struct {
	CandidateID string
	Attribute   attribute.Key
	Score       float64
}

// NormalizedScore is a RawMatch rescaled onto [0, ceiling] within its attribute.
type NormalizedScore struct {
	CandidateID string
	Attribute   attribute.Key
	Score       float64
}

// Brand is a brand document as held by the brand store.
type Brand struct {
	Name       string
	Attributes attribute.Texts
	UpdatedAt  time.Time
}

// InfluencerProfile is an influencer's per-partition attribute texts
// submitted for indexing.
type InfluencerProfile struct {
	ID          string
	Texts       map[attribute.Partition]string
	SubmittedAt time.Time
}

// IngestJob wraps a profile travelling through the ingest queue.
type IngestJob struct {
	JobID   string
	Profile InfluencerProfile
}
