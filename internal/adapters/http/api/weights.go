package api

import (
	"net/http"

	"github.com/okian/trustscore/internal/domain/scoring"
)

// handleGetWeights handles GET /v1/admin/reputation/weights.
func (s *Server) handleGetWeights(w http.ResponseWriter, r *http.Request) {
	weights, err := s.deps.Weights(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, weights)
}

// handleSetWeights handles PUT /v1/admin/reputation/weights with a partial
// key to multiplier map.
func (s *Server) handleSetWeights(w http.ResponseWriter, r *http.Request) {
	var partial scoring.WeightConfig
	if err := decodeBody(r, &partial, false); err != nil {
		s.fail(w, r, err)
		return
	}
	weights, err := s.deps.SetWeights(r.Context(), partial)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, weights)
}
