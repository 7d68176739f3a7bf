package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/okian/trustscore/internal/domain/model"
)

const maxBodyBytes = 1 << 20

type recalculateRequest struct {
	Reason string `json:"reason"`
}

type triggerRequest struct {
	UserID string `json:"user_id"`
	Reason string `json:"reason"`
}

type triggerResponse struct {
	Status    string `json:"status"`
	RequestID string `json:"request_id"`
}

type verifyResponse struct {
	UserID string `json:"user_id"`
	Valid  bool   `json:"valid"`
	Error  string `json:"error,omitempty"`
}

// handleGetReputation handles GET /v1/users/{userID}/reputation.
func (s *Server) handleGetReputation(w http.ResponseWriter, r *http.Request) {
	rep, err := s.deps.Breakdown(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// handleGetHistory handles GET /v1/users/{userID}/reputation/history.
func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	page, err := s.deps.History(r.Context(), chi.URLParam(r, "userID"), limit, offset)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// handleRecalculate handles POST /v1/users/{userID}/reputation/recalculate.
// An empty body recalculates with the default reason. manual_admin is only
// accepted on the admin route.
func (s *Server) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	var req recalculateRequest
	if err := decodeBody(r, &req, true); err != nil {
		s.fail(w, r, err)
		return
	}
	reason, err := model.ParseReason(req.Reason)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if reason == model.ReasonManualAdmin {
		s.fail(w, r, fmt.Errorf("%w: reason %s is reserved for admin routes", ErrBadRequest, reason))
		return
	}
	s.recalculate(w, r, reason, "http")
}

// handleAdminRecalculate handles POST /v1/admin/users/{userID}/reputation/recalculate.
// An empty reason records the recalculation as manual_admin.
func (s *Server) handleAdminRecalculate(w http.ResponseWriter, r *http.Request) {
	var req recalculateRequest
	if err := decodeBody(r, &req, true); err != nil {
		s.fail(w, r, err)
		return
	}
	reason := model.ReasonManualAdmin
	if strings.TrimSpace(req.Reason) != "" {
		parsed, err := model.ParseReason(req.Reason)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		reason = parsed
	}
	s.recalculate(w, r, reason, "admin")
}

func (s *Server) recalculate(w http.ResponseWriter, r *http.Request, reason model.Reason, source string) {
	extra := map[string]any{"source": source, "request_id": middleware.GetReqID(r.Context())}
	diff, err := s.deps.Recalculate(r.Context(), chi.URLParam(r, "userID"), reason, extra)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, diff)
}

// handleTriggerRecompute handles POST /v1/triggers/recompute.
func (s *Server) handleTriggerRecompute(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if err := decodeBody(r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		s.fail(w, r, fmt.Errorf("%w: missing user_id", ErrBadRequest))
		return
	}
	reason, err := model.ParseReason(req.Reason)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if reason == model.ReasonManualAdmin {
		s.fail(w, r, fmt.Errorf("%w: reason %s is reserved for admin routes", ErrBadRequest, reason))
		return
	}
	id, err := s.deps.RequestRecompute(r.Context(), req.UserID, reason)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, triggerResponse{Status: "accepted", RequestID: id})
}

// handleVerify handles GET /v1/admin/users/{userID}/reputation/verify.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	err := s.deps.Verify(r.Context(), userID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, verifyResponse{UserID: userID, Valid: true})
	case errors.Is(err, model.ErrBrokenChain):
		writeJSON(w, http.StatusOK, verifyResponse{UserID: userID, Error: err.Error()})
	default:
		s.fail(w, r, err)
	}
}

// handleAudit handles GET /v1/admin/users/{userID}/reputation/audit.
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	report, err := s.deps.Audit(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", ErrBadRequest, key)
	}
	return v, nil
}

// decodeBody reads a JSON body into v. Unknown fields are rejected.
func decodeBody(r *http.Request, v any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) && allowEmpty {
			return nil
		}
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}
