package service

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dshills/tripgraph/graph"
	"github.com/dshills/tripgraph/graph/emit"
	"github.com/dshills/tripgraph/graph/model"
	"github.com/dshills/tripgraph/graph/store"
	"github.com/dshills/tripgraph/trip"
	"github.com/dshills/tripgraph/workflow"
)

// script answers model requests by Request.Name. Errors take precedence;
// hooks run before the answer is returned.
type script struct {
	mu      sync.Mutex
	answers map[string]string
	errs    map[string]error
	hooks   map[string]func()
	calls   map[string]int
}

func newScript() *script {
	return &script{
		answers: map[string]string{
			workflow.NodeBudgetEstimate: `{"currency": "EUR", "budget_level": "$$", "intercity_transport": 300,
				"local_transport": 100, "food": 300, "activities": 200, "lodging": 600, "other": 0, "total": 1500}`,
			workflow.NodePlanner: plannerJSON(5),
			"lodging": `{"lodging": [{"id": "h1", "name": "Hotel Avenida"}, {"id": "h2", "name": "Casa Alfama"},
				{"id": "h3", "name": "Baixa House"}, {"id": "h4", "name": "Chiado Loft"}]}`,
			"activities":          `{"activities": [{"name": "Tram 28"}, {"name": "Belem Tower"}]}`,
			"food":                `{"food": [{"name": "Time Out Market"}, {"name": "Cervejaria Ramiro"}]}`,
			"intercity_transport": `{"intercity_transport": [{"id": "IB3100", "name": "Iberia MAD-LIS"}]}`,
			"recommendations":     `{"safety_level": "safe"}`,
		},
		errs:  map[string]error{},
		hooks: map[string]func(){},
		calls: map[string]int{},
	}
}

func (s *script) respond(req model.Request) (string, error) {
	s.mu.Lock()
	s.calls[req.Name]++
	hook := s.hooks[req.Name]
	answer, err := s.answers[req.Name], s.errs[req.Name]
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	return answer, err
}

func (s *script) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

func (s *script) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

func plannerJSON(days int) string {
	parts := make([]string, days)
	for i := range parts {
		d := civil.Date{Year: 2025, Month: 10, Day: 1}.AddDays(i)
		parts[i] = fmt.Sprintf(`{"day_number": %d, "day_date": %q, "activities": [], "food": [], "day_budget": 300}`, i+1, d.String())
	}
	return `{"days": [` + strings.Join(parts, ",") + `], "total_budget": 1500, "currency": "EUR"}`
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	svc      *Service
	script   *script
	registry *store.MemRegistry
	emitter  *emit.BufferedEmitter
	clock    *clock
}

func newFixture(t *testing.T, mutate ...func(*Config)) *fixture {
	t.Helper()
	f := &fixture{
		script:  newScript(),
		emitter: emit.NewBufferedEmitter(),
		clock:   &clock{now: time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)},
	}
	f.registry = store.NewMemRegistry(store.WithClock(f.clock.Now))

	engine, err := workflow.New(workflow.Config{Model: &model.MockModel{Respond: f.script.respond}}, f.emitter, graph.WithMaxSteps(20))
	if err != nil {
		t.Fatalf("workflow.New() error = %v", err)
	}
	n := 0
	cfg := Config{
		Engine:   engine,
		Registry: f.registry,
		Emitter:  f.emitter,
		Now:      f.clock.Now,
		NewID: func() string {
			n++
			return fmt.Sprintf("trip_%d", n)
		},
	}
	for _, m := range mutate {
		m(&cfg)
	}
	f.svc, err = New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return f
}

func tripContext(plan *trip.ResearchPlan) trip.Context {
	return trip.Context{
		Travellers: []trip.Traveller{{
			Name:        "Ana",
			DateOfBirth: civil.Date{Year: 1990, Month: 3, Day: 14},
			Nationality: "ES",
		}},
		Budget:             1500,
		Currency:           "EUR",
		Destination:        "Lisbon",
		DestinationCountry: "Portugal",
		DateFrom:           civil.Date{Year: 2025, Month: 10, Day: 1},
		DateTo:             civil.Date{Year: 2025, Month: 10, Day: 5},
		GroupType:          trip.GroupAlone,
		CurrentLocation:    "Madrid",
		ResearchPlan:       plan,
	}
}

func plan(lodging, activities, food, transport int) *trip.ResearchPlan {
	return &trip.ResearchPlan{
		LodgingCandidates:            &trip.CandidateResearch{CandidatesNumber: lodging},
		ActivitiesCandidates:         &trip.CandidateResearch{CandidatesNumber: activities},
		FoodCandidates:               &trip.CandidateResearch{CandidatesNumber: food},
		IntercityTransportCandidates: &trip.CandidateResearch{CandidatesNumber: transport},
	}
}

func hasMessage(msgs []string, substr string) bool {
	for _, m := range msgs {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}
