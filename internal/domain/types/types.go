// Package types contains wire types shared by the HTTP layer and its clients.
package types

// Match is one ranked influencer. Details holds the per-attribute normalized
// score keyed by brand attribute name; attributes the influencer was not
// returned for are absent.
type Match struct {
	Influencer string             `json:"influencer"`
	TotalScore float64            `json:"total_score"`
	Details    map[string]float64 `json:"details"`
}

// Skipped names an attribute left out of a ranking and why.
type Skipped struct {
	Attribute string `json:"attribute"`
	Reason    string `json:"reason"`
}

// MatchResponse is the body of the match endpoints.
type MatchResponse struct {
	Matches []Match   `json:"matches"`
	Skipped []Skipped `json:"skipped,omitempty"`
}

// MatchBrandRequest ranks influencers for a stored brand.
type MatchBrandRequest struct {
	BrandName string `json:"brand_name"`
	TopK      int    `json:"top_k,omitempty"`
}

// MatchAttributesRequest ranks influencers for ad hoc brand attributes.
type MatchAttributesRequest struct {
	Attributes map[string]string `json:"attributes"`
	TopK       int               `json:"top_k,omitempty"`
}

// Brand is a stored brand document.
type Brand struct {
	Name       string            `json:"name"`
	Attributes map[string]string `json:"attributes"`
	UpdatedAt  string            `json:"updated_at,omitempty"`
}

// InfluencerRequest submits an influencer for indexing. Attributes are keyed
// by partition name (or brand attribute name).
type InfluencerRequest struct {
	Influencer string            `json:"influencer"`
	Attributes map[string]string `json:"attributes"`
}

// InfluencerResponse acknowledges an influencer submission.
type InfluencerResponse struct {
	Status string `json:"status"`
	JobID  string `json:"job_id,omitempty"`
}

// ErrorResponse is the JSON error body. Code is a stable machine-readable
// kind such as bad_request or not_found.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}
