// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/okian/brandmatch/internal/domain/attribute"
	"github.com/okian/brandmatch/internal/domain/model"
	"github.com/okian/brandmatch/internal/domain/ranking"
	"github.com/okian/brandmatch/internal/domain/types"
	"github.com/okian/brandmatch/pkg/logger"
)

const (
	defaultMaxTopK = 50
	maxBodyBytes   = 1 << 20
)

// Matcher ranks influencers for brands.
type Matcher interface {
	RankCandidates(ctx context.Context, brandName string, topK int) (ranking.Result, error)
	RankAttributes(ctx context.Context, texts attribute.Texts, topK int) (ranking.Result, error)
}

// BrandManager reads and writes brand documents.
type BrandManager interface {
	UpsertBrand(ctx context.Context, name string, texts attribute.Texts) (model.Brand, error)
	GetBrand(ctx context.Context, name string) (model.Brand, error)
	ListBrands(ctx context.Context) ([]model.Brand, error)
}

// InfluencerSubmitter accepts influencer profiles for indexing.
type InfluencerSubmitter interface {
	SubmitInfluencer(ctx context.Context, p model.InfluencerProfile) (jobID string, duplicate bool, err error)
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Matcher
	BrandManager
	InfluencerSubmitter
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithMaxTopK rejects requests asking for more than k matches.
func WithMaxTopK(k int) Option {
	return func(s *Server) {
		if k > 0 {
			s.maxTopK = k
		}
	}
}

// WithLogger sets the logger used for server-side failures.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps    Dependencies
	stats   *StatsHandler
	health  *HealthHandler
	maxTopK int
	logger  logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		deps:    deps,
		stats:   NewStatsHandler(statsProvider),
		health:  NewHealthHandler(),
		maxTopK: defaultMaxTopK,
		logger:  logger.NamedOrNop("api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.health.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.stats.HandleStats, "stats"))
	mux.Handle("GET /metrics", s.health.MetricsHandler())

	mux.HandleFunc("POST /api/v1/match-influencers", MetricsMiddleware(s.handleMatchBrand, "match_influencers"))
	mux.HandleFunc("POST /api/v1/match-attributes", MetricsMiddleware(s.handleMatchAttributes, "match_attributes"))
	mux.HandleFunc("GET /api/v1/brands", MetricsMiddleware(s.handleListBrands, "brands"))
	mux.HandleFunc("GET /api/v1/brands/{name}", MetricsMiddleware(s.handleGetBrand, "brand"))
	mux.HandleFunc("PUT /api/v1/brands/{name}", MetricsMiddleware(s.handlePutBrand, "brand"))
	mux.HandleFunc("POST /api/v1/influencers", MetricsMiddleware(s.handlePostInfluencer, "influencers"))
}

func (s *Server) checkTopK(k int) error {
	if k < 0 {
		return fmt.Errorf("%w: top_k must not be negative", ErrBadRequest)
	}
	if k > s.maxTopK {
		return fmt.Errorf("%w: top_k must not exceed %d", ErrBadRequest, s.maxTopK)
	}
	return nil
}

// decode reads a single JSON object from the body, rejecting unknown fields.
func decode(r *http.Request, w http.ResponseWriter, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: trailing data after JSON body", ErrBadRequest)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError classifies err, logs server-side failures and writes the JSON
// error body.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.String("request_id", RequestID(r.Context())),
			logger.Int("status", status),
			logger.Error(err))
	}
	writeJSON(w, status, types.ErrorResponse{
		Code:      code,
		Message:   err.Error(),
		RequestID: RequestID(r.Context()),
	})
}
