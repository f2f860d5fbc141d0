// Package httpapi exposes the planning service over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dshills/tripgraph/service"
	"github.com/dshills/tripgraph/trip"
)

// Planner is the service surface the handlers call. *service.Service
// implements it.
type Planner interface {
	Start(ctx context.Context, tc trip.Context) (service.Response, error)
	ResumeWithSelections(ctx context.Context, id string, sel trip.Selections) (service.Response, error)
	ResumeWithExtraResearch(ctx context.Context, id string, overrides map[string]trip.CandidateResearch) (service.Response, error)
}

var _ Planner = (*service.Service)(nil)

// ServiceName is reported by GET /health.
const ServiceName = "tripgraph"

// DefaultMaxBodyBytes bounds request bodies.
const DefaultMaxBodyBytes = 1 << 20

// Options configures the handler.
type Options struct {
	// Logger receives one line per request. Defaults to zap.NewNop.
	Logger *zap.Logger

	// Gatherer backs GET /metrics. The route is not mounted when nil.
	Gatherer prometheus.Gatherer

	// MaxBodyBytes defaults to DefaultMaxBodyBytes.
	MaxBodyBytes int64
}

// ResumeFinalRequest is the body of POST /resume_final.
type ResumeFinalRequest struct {
	SessionID  string          `json:"session_id"`
	Selections trip.Selections `json:"selections"`
}

// ExtraResearchRequest is the body of POST /resume_extra_research. The
// overrides are keyed by plan field name or category name.
type ExtraResearchRequest struct {
	SessionID    string                            `json:"session_id"`
	ResearchPlan map[string]trip.CandidateResearch `json:"research_plan"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type server struct {
	planner Planner
	log     *zap.Logger
	limit   int64
}

// NewHandler routes:
//
//	POST /start                   trip.Context                 -> service.Response
//	POST /resume_final            ResumeFinalRequest           -> service.Response
//	POST /resume_extra_research   ExtraResearchRequest         -> service.Response
//	GET  /health                  {"status": "healthy", "service": "tripgraph"}
//	GET  /metrics                 Prometheus exposition
func NewHandler(p Planner, opts Options) http.Handler {
	s := &server{planner: p, log: opts.Logger, limit: opts.MaxBodyBytes}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.limit <= 0 {
		s.limit = DefaultMaxBodyBytes
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Post("/start", s.start)
	r.Post("/resume_final", s.resumeFinal)
	r.Post("/resume_extra_research", s.resumeExtraResearch)
	r.Get("/health", health)
	if opts.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func (s *server) start(w http.ResponseWriter, r *http.Request) {
	var tc trip.Context
	if !s.decode(w, r, &tc) {
		return
	}
	resp, err := s.planner.Start(r.Context(), tc)
	s.reply(w, r, resp, err)
}

func (s *server) resumeFinal(w http.ResponseWriter, r *http.Request) {
	var body ResumeFinalRequest
	if !s.decode(w, r, &body) || !requireSession(w, body.SessionID) {
		return
	}
	resp, err := s.planner.ResumeWithSelections(r.Context(), body.SessionID, body.Selections)
	s.reply(w, r, resp, err)
}

func (s *server) resumeExtraResearch(w http.ResponseWriter, r *http.Request) {
	var body ExtraResearchRequest
	if !s.decode(w, r, &body) || !requireSession(w, body.SessionID) {
		return
	}
	resp, err := s.planner.ResumeWithExtraResearch(r.Context(), body.SessionID, body.ResearchPlan)
	s.reply(w, r, resp, err)
}

func health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": ServiceName})
}

// decode reads a JSON body, rejecting unknown fields. It writes the 400
// itself and reports whether the handler should continue.
func (s *server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.limit))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("invalid request body: %v", err), Code: "invalid_request"})
		return false
	}
	return true
}

func requireSession(w http.ResponseWriter, id string) bool {
	if id == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "session_id is required", Code: "invalid_request"})
		return false
	}
	return true
}

func (s *server) reply(w http.ResponseWriter, r *http.Request, resp service.Response, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, resp)
		return
	}
	status, code := classify(err)
	if status == http.StatusConflict {
		w.Header().Set("Retry-After", "1")
	}
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", r.URL.Path), zap.String("request_id", middleware.GetReqID(r.Context())), zap.Error(err))
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Code: code})
}

// classify maps service errors to HTTP status codes.
func classify(err error) (int, string) {
	var (
		conflict *service.ConflictError
		unknown  *trip.UnknownFieldError
	)
	switch {
	case errors.Is(err, service.ErrSessionExpired):
		return http.StatusNotFound, "session_expired"
	case errors.As(err, &conflict):
		return http.StatusConflict, "conflict"
	case errors.As(err, &unknown):
		return http.StatusBadRequest, "unknown_field"
	case errors.Is(err, trip.ErrInvalid):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, context.Canceled):
		// 499 is the de facto "client closed request" code.
		return 499, "cancelled"
	}
	return http.StatusInternalServerError, "internal_error"
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
