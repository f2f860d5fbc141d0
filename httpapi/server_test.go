package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dshills/tripgraph/service"
	"github.com/dshills/tripgraph/trip"
)

// MockPlanner records the last call and returns Resp and Err.
type MockPlanner struct {
	Resp service.Response
	Err  error

	Context    trip.Context
	SessionID  string
	Selections trip.Selections
	Overrides  map[string]trip.CandidateResearch
	Calls      int
}

func (m *MockPlanner) Start(_ context.Context, tc trip.Context) (service.Response, error) {
	m.Calls++
	m.Context = tc
	return m.Resp, m.Err
}

func (m *MockPlanner) ResumeWithSelections(_ context.Context, id string, sel trip.Selections) (service.Response, error) {
	m.Calls++
	m.SessionID, m.Selections = id, sel
	return m.Resp, m.Err
}

func (m *MockPlanner) ResumeWithExtraResearch(_ context.Context, id string, overrides map[string]trip.CandidateResearch) (service.Response, error) {
	m.Calls++
	m.SessionID, m.Overrides = id, overrides
	return m.Resp, m.Err
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

const startBody = `{"travellers": [{"name": "Ana", "date_of_birth": "1990-03-14"}], "budget": 1500, "currency": "EUR",
	"destination": "Lisbon", "destination_country": "Portugal", "date_from": "2025-10-01", "date_to": "2025-10-05",
	"group_type": "alone"}`

func TestHandler_Start(t *testing.T) {
	m := &MockPlanner{Resp: service.Response{SessionID: "trip_1", Status: service.StatusInterrupt, Messages: []string{}}}
	w := do(t, NewHandler(m, Options{}), http.MethodPost, "/start", startBody)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	if m.Context.Destination != "Lisbon" || m.Context.DaysNumber() != 5 {
		t.Errorf("decoded context = %+v", m.Context)
	}
	var resp service.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.SessionID != "trip_1" || resp.Status != service.StatusInterrupt {
		t.Errorf("response = %+v", resp)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestHandler_ResumeFinal(t *testing.T) {
	m := &MockPlanner{Resp: service.Response{SessionID: "trip_1", Status: service.StatusComplete}}
	body := `{"session_id": "trip_1", "selections": {"lodging": {"id": "h2", "name": "Casa Alfama", "evidence_score": 0}}}`
	w := do(t, NewHandler(m, Options{}), http.MethodPost, "/resume_final", body)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	if m.SessionID != "trip_1" || m.Selections.Lodging == nil || m.Selections.Lodging.ID != "h2" {
		t.Errorf("call = %q %+v", m.SessionID, m.Selections)
	}
}

func TestHandler_ResumeExtraResearch(t *testing.T) {
	m := &MockPlanner{Resp: service.Response{SessionID: "trip_1", Status: service.StatusInterrupt}}
	body := `{"session_id": "trip_1", "research_plan": {"food_candidates": {"candidates_number": 4}}}`
	w := do(t, NewHandler(m, Options{}), http.MethodPost, "/resume_extra_research", body)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body)
	}
	if got := m.Overrides["food_candidates"].CandidatesNumber; got != 4 {
		t.Errorf("food_candidates = %d, want 4", got)
	}
}

func TestHandler_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		path string
		body string
	}{
		{"malformed json", "/start", `{"travellers": [`},
		{"unknown context field", "/start", `{"destination": "Lisbon", "spaceship": true}`},
		{"missing session id", "/resume_final", `{"selections": {}}`},
		{"unknown request field", "/resume_extra_research", `{"session_id": "trip_1", "plan": {}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &MockPlanner{}
			w := do(t, NewHandler(m, Options{}), http.MethodPost, tt.path, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
			if m.Calls != 0 {
				t.Error("planner called for a bad request")
			}
			var e ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil || e.Code != "invalid_request" {
				t.Errorf("error body = %s", w.Body)
			}
		})
	}
}

func TestHandler_BodyLimit(t *testing.T) {
	m := &MockPlanner{}
	body := `{"destination": "` + strings.Repeat("x", 256) + `"}`
	w := do(t, NewHandler(m, Options{MaxBodyBytes: 64}), http.MethodPost, "/start", body)
	if w.Code != http.StatusBadRequest || m.Calls != 0 {
		t.Errorf("status = %d, calls %d", w.Code, m.Calls)
	}
}

func TestHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"expired", fmt.Errorf("session trip_1: %w", service.ErrSessionExpired), http.StatusNotFound, "session_expired"},
		{"conflict", &service.ConflictError{SessionID: "trip_1"}, http.StatusConflict, "conflict"},
		{"unknown field", &trip.UnknownFieldError{Fields: []string{"spa"}}, http.StatusBadRequest, "unknown_field"},
		{"validation", &trip.ValidationError{Field: "selections.lodging.rating", Message: "out of range"}, http.StatusBadRequest, "validation_error"},
		{"timeout", fmt.Errorf("resume_final trip_1: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, "timeout"},
		{"internal", errors.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(&MockPlanner{Err: tt.err}, Options{})
			w := do(t, h, http.MethodPost, "/resume_final", `{"session_id": "trip_1"}`)
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			var e ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if e.Code != tt.code || e.Error != tt.err.Error() {
				t.Errorf("error body = %+v", e)
			}
			if tt.status == http.StatusConflict && w.Header().Get("Retry-After") == "" {
				t.Error("conflict without Retry-After")
			}
		})
	}
}

func TestHandler_Health(t *testing.T) {
	w := do(t, NewHandler(&MockPlanner{}, Options{}), http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "healthy" || body["service"] != ServiceName {
		t.Errorf("body = %v", body)
	}
}

func TestHandler_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	service.NewMetrics(reg)

	w := do(t, NewHandler(&MockPlanner{}, Options{Gatherer: reg}), http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "tripgraph_sessions_started_total") {
		t.Errorf("metrics output missing service counters:\n%s", w.Body)
	}

	w = do(t, NewHandler(&MockPlanner{}, Options{}), http.MethodGet, "/metrics", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("metrics mounted without a gatherer: %d", w.Code)
	}
}

func TestHandler_Logging(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := NewHandler(&MockPlanner{Err: errors.New("boom")}, Options{Logger: zap.New(core)})
	do(t, h, http.MethodPost, "/resume_final", `{"session_id": "trip_1"}`)

	if got := logs.FilterMessage("request failed").Len(); got != 1 {
		t.Errorf("request failed entries = %d, want 1", got)
	}
	entries := logs.FilterMessage("request").All()
	if len(entries) != 1 {
		t.Fatalf("request entries = %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["path"] != "/resume_final" || fields["status"] != int64(http.StatusInternalServerError) {
		t.Errorf("fields = %v", fields)
	}
}
