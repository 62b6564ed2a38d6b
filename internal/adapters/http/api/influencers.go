package api

import (
	"net/http"
	"strings"

	"github.com/okian/brandmatch/internal/domain/attribute"
	"github.com/okian/brandmatch/internal/domain/model"
	"github.com/okian/brandmatch/internal/domain/types"
)

// handlePostInfluencer handles POST /api/v1/influencers. A new profile is
// accepted with 202, an identical resubmission answers 200 and a full ingest
// queue answers 429.
func (s *Server) handlePostInfluencer(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_influencer"
	var req types.InfluencerRequest
	if err := decode(r, w, &req); err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	if strings.TrimSpace(req.Influencer) == "" {
		s.writeError(w, r, WrapKind(op, ErrBadRequest, errMissing("influencer")))
		return
	}

	texts := make(map[attribute.Partition]string, len(req.Attributes))
	for name, text := range req.Attributes {
		p, err := attribute.ParsePartition(name)
		if err != nil {
			s.writeError(w, r, WrapKind(op, ErrBadRequest, err))
			return
		}
		texts[p] = text
	}

	jobID, dup, err := s.deps.SubmitInfluencer(r.Context(), model.InfluencerProfile{ID: req.Influencer, Texts: texts})
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	if dup {
		writeJSON(w, http.StatusOK, types.InfluencerResponse{Status: "duplicate"})
		return
	}
	writeJSON(w, http.StatusAccepted, types.InfluencerResponse{Status: "accepted", JobID: jobID})
}
