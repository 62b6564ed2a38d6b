package api

import (
	"net/http"
	"strings"

	"github.com/okian/brandmatch/internal/domain/attribute"
	"github.com/okian/brandmatch/internal/domain/ranking"
	"github.com/okian/brandmatch/internal/domain/types"
)

// handleMatchBrand handles POST /api/v1/match-influencers.
func (s *Server) handleMatchBrand(w http.ResponseWriter, r *http.Request) {
	const op = "api.match_influencers"
	var req types.MatchBrandRequest
	if err := decode(r, w, &req); err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	if strings.TrimSpace(req.BrandName) == "" {
		s.writeError(w, r, WrapKind(op, ErrBadRequest, errMissing("brand_name")))
		return
	}
	if err := s.checkTopK(req.TopK); err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}

	res, err := s.deps.RankCandidates(r.Context(), req.BrandName, req.TopK)
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, toMatchResponse(res))
}

// handleMatchAttributes handles POST /api/v1/match-attributes.
func (s *Server) handleMatchAttributes(w http.ResponseWriter, r *http.Request) {
	const op = "api.match_attributes"
	var req types.MatchAttributesRequest
	if err := decode(r, w, &req); err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	if err := s.checkTopK(req.TopK); err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	texts, err := attribute.ParseTexts(req.Attributes)
	if err != nil {
		s.writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}

	res, err := s.deps.RankAttributes(r.Context(), texts, req.TopK)
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, toMatchResponse(res))
}

func toMatchResponse(res ranking.Result) types.MatchResponse {
	out := types.MatchResponse{Matches: make([]types.Match, len(res.Matches))}
	for i, m := range res.Matches {
		details := make(map[string]float64, len(m.Scores))
		for k, v := range m.Scores {
			details[string(k)] = v
		}
		out.Matches[i] = types.Match{Influencer: m.CandidateID, TotalScore: m.Total, Details: details}
	}
	for _, sk := range res.Skipped {
		out.Skipped = append(out.Skipped, types.Skipped{Attribute: string(sk.Key), Reason: sk.Reason})
	}
	return out
}
