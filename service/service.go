// Package service runs trip planning sessions: it starts the workflow,
// persists interrupted runs in the session registry and resumes them with
// selections or extra research.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/tripgraph/graph"
	"github.com/dshills/tripgraph/graph/emit"
	"github.com/dshills/tripgraph/graph/store"
	"github.com/dshills/tripgraph/trip"
	"github.com/dshills/tripgraph/workflow"
)

// Operation names used in metrics and events.
const (
	OpStart         = "start"
	OpResumeFinal   = "resume_final"
	OpExtraResearch = "resume_extra_research"
)

// DefaultTTL is how long an idle session stays resumable.
const DefaultTTL = 60 * time.Minute

// Config wires a Service.
type Config struct {
	// Engine is the trip graph from workflow.New. Required.
	Engine *graph.Engine[trip.State]

	// Registry stores interrupted sessions. Required.
	Registry store.Registry

	// Emitter receives session events. Defaults to a NullEmitter.
	Emitter emit.Emitter

	// Metrics may be nil.
	Metrics *Metrics

	// TTL bounds how long a session stays resumable. Defaults to DefaultTTL.
	TTL time.Duration

	// Credentials maps each required setting name to its value. A session
	// does not start while any value is empty.
	Credentials map[string]string

	// NewID generates session ids. Defaults to "trip_" plus a random UUID.
	NewID func() string

	// Now replaces time.Now for expiry checks.
	Now func() time.Time
}

// Service is safe for concurrent use.
type Service struct {
	engine   *graph.Engine[trip.State]
	registry store.Registry
	emitter  emit.Emitter
	metrics  *Metrics
	ttl      time.Duration
	creds    map[string]string
	newID    func() string
	now      func() time.Time

	// inflight holds the ids of sessions being resumed in this process.
	inflight sync.Map
}

// New validates cfg and applies defaults.
func New(cfg Config) (*Service, error) {
	if cfg.Engine == nil {
		return nil, errors.New("service: engine is required")
	}
	if cfg.Registry == nil {
		return nil, errors.New("service: registry is required")
	}
	s := &Service{
		engine:   cfg.Engine,
		registry: cfg.Registry,
		emitter:  cfg.Emitter,
		metrics:  cfg.Metrics,
		ttl:      cfg.TTL,
		creds:    cfg.Credentials,
		newID:    cfg.NewID,
		now:      cfg.Now,
	}
	if s.emitter == nil {
		s.emitter = emit.NewNullEmitter()
	}
	if s.ttl <= 0 {
		s.ttl = DefaultTTL
	}
	if s.newID == nil {
		s.newID = func() string { return "trip_" + uuid.NewString() }
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Start opens a session for tc and runs the workflow up to the review
// interrupt.
//
// A missing required credential ends the session at once with StatusNoPlan.
// An invalid context is returned as a *trip.ValidationError and no session
// is created.
func (s *Service) Start(ctx context.Context, tc trip.Context) (Response, error) {
	id := s.newID()
	if err := s.checkCredentials(); err != nil {
		s.event(id, "no_plan", map[string]interface{}{"error": err.Error()})
		return s.done(OpStart, noPlan(id, trip.State{}, OpStart, err)), nil
	}
	tc = tc.WithDefaults()
	if err := tc.Validate(); err != nil {
		return Response{}, err
	}
	s.metrics.sessionStarted()

	initial := trip.State{Context: &tc}
	res, err := s.engine.Run(ctx, id, initial)
	if err != nil {
		return s.failed(ctx, OpStart, id, initial, err, false)
	}
	return s.settle(ctx, OpStart, id, res, nil)
}

// ResumeWithSelections continues a session at the planner.
//
// Selections that match no stored candidate and fail validation are
// rejected before the workflow runs; the session is left untouched.
func (s *Service) ResumeWithSelections(ctx context.Context, id string, sel trip.Selections) (Response, error) {
	if err := s.acquire(id); err != nil {
		return Response{}, err
	}
	defer s.release(id)

	rec, cp, err := s.load(ctx, id)
	if err != nil {
		return Response{}, err
	}
	delta := trip.State{Selections: &sel}
	if _, err := trip.ResolveSelections(trip.Reduce(cp.State, delta)); err != nil {
		return Response{}, err
	}

	res, err := s.engine.Resume(ctx, cp, workflow.ResumeFinal(), delta)
	if err != nil {
		return s.failed(ctx, OpResumeFinal, id, cp.State, err, true)
	}
	return s.settle(ctx, OpResumeFinal, id, res, &rec)
}

// ResumeWithExtraResearch re-runs the research categories named by
// overrides and returns to review.
//
// Keys are plan field names ("food_candidates") or category names ("food").
// Unknown keys are rejected with *trip.UnknownFieldError. An empty map
// returns the stored interrupt payload without running anything.
func (s *Service) ResumeWithExtraResearch(ctx context.Context, id string, overrides map[string]trip.CandidateResearch) (Response, error) {
	if err := s.acquire(id); err != nil {
		return Response{}, err
	}
	defer s.release(id)

	rec, cp, err := s.load(ctx, id)
	if err != nil {
		return Response{}, err
	}
	plan, touched, err := trip.ApplyOverrides(cp.State.ResearchPlan, overrides)
	if err != nil {
		s.event(id, "overrides_rejected", map[string]interface{}{"error": err.Error()})
		return Response{}, err
	}
	if len(touched) == 0 {
		return s.done(OpExtraResearch, respond(id, StatusInterrupt, cp.State)), nil
	}

	res, err := s.engine.Resume(ctx, cp, workflow.ExtraResearch(touched), trip.State{ResearchPlan: plan})
	if err != nil {
		return s.failed(ctx, OpExtraResearch, id, cp.State, err, true)
	}
	return s.settle(ctx, OpExtraResearch, id, res, &rec)
}

// CleanupResult reports a sweep.
type CleanupResult struct {
	Removed int    `json:"removed"`
	Message string `json:"message"`
}

// Cleanup removes sessions idle for longer than ttl. A non-positive ttl
// uses the service TTL.
func (s *Service) Cleanup(ctx context.Context, ttl time.Duration) (CleanupResult, error) {
	if ttl <= 0 {
		ttl = s.ttl
	}
	n, err := s.registry.Sweep(ctx, ttl)
	if err != nil {
		return CleanupResult{}, fmt.Errorf("cleanup: %w", err)
	}
	s.metrics.sessionsSwept(n)
	s.event("", "sweep", map[string]interface{}{"removed": n, "ttl_ms": ttl.Milliseconds()})
	return CleanupResult{Removed: n, Message: fmt.Sprintf("Cleaned up %d sessions", n)}, nil
}

// RunSweeper calls Cleanup every interval until ctx is done. Sweep errors
// are reported as events and do not stop the loop.
func (s *Service) RunSweeper(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Cleanup(ctx, ttl); err != nil && ctx.Err() == nil {
				s.event("", "sweep", map[string]interface{}{"error": err.Error()})
			}
		}
	}
}

func (s *Service) checkCredentials() error {
	var missing []string
	for name, value := range s.creds {
		if value == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return &FatalConfigurationError{Missing: missing}
}

// acquire marks id as being resumed by this process. Resumes in other
// processes are caught by the registry version check instead.
func (s *Service) acquire(id string) error {
	if _, busy := s.inflight.LoadOrStore(id, struct{}{}); busy {
		return s.conflict(id)
	}
	return nil
}

func (s *Service) release(id string) {
	s.inflight.Delete(id)
}

func (s *Service) conflict(id string) error {
	s.metrics.conflict()
	s.event(id, "session_conflict", nil)
	return &ConflictError{SessionID: id}
}

// load fetches and decodes a session. Sessions idle past the TTL that the
// sweeper has not removed yet are expired here.
func (s *Service) load(ctx context.Context, id string) (store.Record, graph.Checkpoint[trip.State], error) {
	rec, err := s.registry.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return rec, graph.Checkpoint[trip.State]{}, s.expired(id, "unknown")
	}
	if err != nil {
		return rec, graph.Checkpoint[trip.State]{}, fmt.Errorf("load session %s: %w", id, err)
	}
	if s.now().Sub(rec.UpdatedAt) > s.ttl {
		if err := s.registry.Delete(ctx, id); err != nil {
			return rec, graph.Checkpoint[trip.State]{}, fmt.Errorf("expire session %s: %w", id, err)
		}
		return rec, graph.Checkpoint[trip.State]{}, s.expired(id, "ttl")
	}
	cp, err := graph.DecodeCheckpoint[trip.State](rec.Checkpoint)
	if err != nil {
		return rec, graph.Checkpoint[trip.State]{}, fmt.Errorf("load session %s: %w", id, err)
	}
	return rec, cp, nil
}

func (s *Service) expired(id, reason string) error {
	s.metrics.sessionExpired()
	s.event(id, "session_expired", map[string]interface{}{"reason": reason})
	return fmt.Errorf("session %s: %w", id, ErrSessionExpired)
}

// settle persists the outcome of a run and builds the response. prev is the
// stored record the run resumed from, nil for a new session.
//
// An interrupted run replaces the stored checkpoint. A completed run closes
// the session, except with StatusNeedsFollowUp, where the previous
// checkpoint is kept so the session can be resumed again.
func (s *Service) settle(ctx context.Context, op, id string, res graph.Result[trip.State], prev *store.Record) (Response, error) {
	var expected int64
	if prev != nil {
		expected = prev.Version
	}

	if res.Status == graph.StatusInterrupted {
		data, err := res.Checkpoint.Encode()
		if err != nil {
			return Response{}, err
		}
		rec := store.Record{ID: id, Checkpoint: data, Position: res.Checkpoint.Position}
		if err := s.put(ctx, id, rec, expected); err != nil {
			return Response{}, err
		}
		return s.done(op, respond(id, StatusInterrupt, res.State)), nil
	}

	status := completion(res.State)
	if prev != nil {
		// Re-putting the previous record claims the version, so only one
		// concurrent resume can close or extend the session.
		if err := s.put(ctx, id, *prev, expected); err != nil {
			return Response{}, err
		}
		if status != StatusNeedsFollowUp {
			if err := s.registry.Delete(ctx, id); err != nil {
				return Response{}, fmt.Errorf("close session %s: %w", id, err)
			}
		}
	}
	return s.done(op, respond(id, status, res.State)), nil
}

func (s *Service) put(ctx context.Context, id string, rec store.Record, expected int64) error {
	version, err := s.registry.Put(ctx, id, rec, expected)
	if errors.Is(err, store.ErrVersionConflict) {
		return s.conflict(id)
	}
	if err != nil {
		return fmt.Errorf("save session %s: %w", id, err)
	}
	s.event(id, "session_saved", map[string]interface{}{"version": version, "position": rec.Position})
	return nil
}

// failed maps an engine error. A no-plan condition becomes a StatusNoPlan
// response and closes the session; anything else is returned as is.
func (s *Service) failed(ctx context.Context, op, id string, last trip.State, err error, stored bool) (Response, error) {
	if !workflow.IsNoPlan(err) {
		return Response{}, fmt.Errorf("%s %s: %w", op, id, err)
	}
	if stored {
		if derr := s.registry.Delete(ctx, id); derr != nil {
			return Response{}, fmt.Errorf("close session %s: %w", id, derr)
		}
	}
	s.event(id, "no_plan", map[string]interface{}{"error": err.Error()})
	return s.done(op, noPlan(id, last, op, err)), nil
}

func (s *Service) done(op string, r Response) Response {
	s.metrics.responded(op, r.Status)
	return r
}

func (s *Service) event(id, msg string, meta map[string]interface{}) {
	s.emitter.Emit(emit.Event{RunID: id, Msg: msg, Meta: meta})
}
