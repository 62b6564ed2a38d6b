package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/okian/brandmatch/internal/domain/attribute"
	"github.com/okian/brandmatch/internal/domain/model"
	"github.com/okian/brandmatch/internal/domain/types"
)

type brandBody struct {
	Attributes map[string]string `json:"attributes"`
}

// handlePutBrand handles PUT /api/v1/brands/{name}.
func (s *Server) handlePutBrand(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_brand"
	name := strings.TrimSpace(r.PathValue("name"))
	if name == "" {
		s.writeError(w, r, WrapKind(op, ErrBadRequest, errMissing("name")))
		return
	}
	var body brandBody
	if err := decode(r, w, &body); err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	texts, err := attribute.ParseTexts(body.Attributes)
	if err != nil {
		s.writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}

	b, err := s.deps.UpsertBrand(r.Context(), name, texts)
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, toBrand(b))
}

// handleGetBrand handles GET /api/v1/brands/{name}.
func (s *Server) handleGetBrand(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_brand"
	b, err := s.deps.GetBrand(r.Context(), r.PathValue("name"))
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, toBrand(b))
}

// handleListBrands handles GET /api/v1/brands.
func (s *Server) handleListBrands(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_brands"
	brands, err := s.deps.ListBrands(r.Context())
	if err != nil {
		s.writeError(w, r, Wrap(op, err))
		return
	}
	out := make([]types.Brand, len(brands))
	for i, b := range brands {
		out[i] = toBrand(b)
	}
	writeJSON(w, http.StatusOK, out)
}

func toBrand(b model.Brand) types.Brand {
	out := types.Brand{Name: b.Name, Attributes: b.Attributes.Wire()}
	if !b.UpdatedAt.IsZero() {
		out.UpdatedAt = b.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return out
}
