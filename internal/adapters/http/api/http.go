// Package api exposes the reputation service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	service "github.com/okian/trustscore/internal/app"
	"github.com/okian/trustscore/internal/domain/model"
	"github.com/okian/trustscore/internal/domain/scoring"
	"github.com/okian/trustscore/internal/domain/types"
	"github.com/okian/trustscore/pkg/logger"
)

// Dependencies are the reputation operations the handlers call.
type Dependencies interface {
	StatsProvider

	Breakdown(ctx context.Context, userID string) (types.Reputation, error)
	Recalculate(ctx context.Context, userID string, reason model.Reason, extra map[string]any) (types.Diff, error)
	History(ctx context.Context, userID string, limit, offset int) (types.HistoryPage, error)
	Verify(ctx context.Context, userID string) error
	Audit(ctx context.Context, userID string) (types.AuditReport, error)
	RequestRecompute(ctx context.Context, userID string, reason model.Reason) (string, error)
	Weights(ctx context.Context) (types.Weights, error)
	SetWeights(ctx context.Context, partial scoring.WeightConfig) (types.Weights, error)
}

// Server wires HTTP routes for the reputation API.
type Server struct {
	deps           Dependencies
	health         *HealthHandler
	stats          *StatsHandler
	adminToken     string
	requestTimeout time.Duration
	logger         logger.Logger
}

// NewServer creates a new API server over deps.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		deps:           deps,
		health:         NewHealthHandler(),
		stats:          NewStatsHandler(deps),
		requestTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("http")
	}
	return s
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.requestTimeout))
	r.Use(metricsMiddleware)

	r.Get("/healthz", s.health.HandleHealth)
	r.Get("/stats", s.stats.HandleStats)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/users/{userID}/reputation", func(r chi.Router) {
			r.Get("/", s.handleGetReputation)
			r.Get("/history", s.handleGetHistory)
			r.Post("/recalculate", s.handleRecalculate)
		})
		r.Post("/triggers/recompute", s.handleTriggerRecompute)

		r.Route("/admin", func(r chi.Router) {
			r.Use(adminOnly(s.adminToken))
			r.Get("/reputation/weights", s.handleGetWeights)
			r.Put("/reputation/weights", s.handleSetWeights)
			r.Get("/users/{userID}/reputation/verify", s.handleVerify)
			r.Get("/users/{userID}/reputation/audit", s.handleAudit)
			r.Post("/users/{userID}/reputation/recalculate", s.handleAdminRecalculate)
		})
	})

	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// fail maps service errors onto status codes.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.String("request_id", middleware.GetReqID(r.Context())),
			logger.Error(err),
		)
	}
	writeError(w, status, code, err)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, model.ErrInvalidWeightConfig),
		errors.Is(err, model.ErrInvalidPage),
		errors.Is(err, model.ErrInvalidReason),
		errors.Is(err, service.ErrInvalidUser):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, model.ErrCollectorUnavailable),
		errors.Is(err, model.ErrConcurrentUpdate),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
