// Package seed posts a brand/influencer catalogue to a running brandmatch
// server and prints the rankings of every brand.
package seed

import "time"

// Config holds configuration for a seeding run.
type Config struct {
	BaseURL       string        // Base URL of the service
	CataloguePath string        // YAML catalogue to post
	TopK          int           // Matches requested per brand; 0 uses the server default
	Workers       int           // Concurrent influencer submissions
	Timeout       time.Duration // HTTP request timeout
	Settle        time.Duration // Maximum wait for the ingest queue to drain
	PollInterval  time.Duration // Interval between /stats polls while settling
	Verbose       bool          // Log every submission
}

// Stats holds run statistics.
type Stats struct {
	BrandsPosted         int
	InfluencersSubmitted int
	InfluencersAccepted  int
	InfluencersDuplicate int
	InfluencersFailed    int
	BrandsMatched        int
	MatchFailures        int
	StartTime            time.Time
	EndTime              time.Time
	Duration             time.Duration
}
