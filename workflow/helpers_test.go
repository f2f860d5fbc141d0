package workflow

import (
	"fmt"
	"strings"
	"sync"

	"cloud.google.com/go/civil"

	"github.com/dshills/tripgraph/graph/model"
	"github.com/dshills/tripgraph/trip"
)

const budgetJSON = `{"currency": "EUR", "budget_level": "$$", "intercity_transport": 300, "local_transport": 100,
	"food": 300, "activities": 200, "lodging": 600, "other": 0, "total": 1500}`

var candidateJSON = map[string]string{
	"lodging": `{"lodging": [{"id": "h1", "name": "Hotel Avenida"}, {"id": "h2", "name": "Casa Alfama"},
		{"id": "h3", "name": "Baixa House"}, {"id": "h4", "name": "Chiado Loft"}]}`,
	"activities":          `{"activities": [{"name": "Tram 28"}, {"name": "Belem Tower", "open_time": "10:00"}]}`,
	"food":                `{"food": [{"name": "Time Out Market"}, {"name": "Cervejaria Ramiro"}]}`,
	"intercity_transport": `{"intercity_transport": [{"id": "IB3100", "name": "Iberia MAD-LIS"}]}`,
	"recommendations":     `{"safety_level": "safe"}`,
}

// script answers model requests by Request.Name. Errors take precedence.
type script struct {
	mu      sync.Mutex
	answers map[string]string
	errs    map[string]error
	calls   map[string]int
}

func newScript() *script {
	answers := map[string]string{
		NodeBudgetEstimate: budgetJSON,
		NodeResearchPlan:   `{"lodging_candidates": {"candidates_number": 2}, "food_candidates": {"candidates_number": 2}}`,
		NodePlanner:        plannerJSON(5),
	}
	for k, v := range candidateJSON {
		answers[k] = v
	}
	return &script{answers: answers, errs: map[string]error{}, calls: map[string]int{}}
}

func (s *script) respond(req model.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[req.Name]++
	if err := s.errs[req.Name]; err != nil {
		return "", err
	}
	return s.answers[req.Name], nil
}

func (s *script) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

func (s *script) model() *model.MockModel {
	return &model.MockModel{Respond: s.respond}
}

func plannerJSON(days int) string {
	parts := make([]string, days)
	for i := range parts {
		d := civil.Date{Year: 2025, Month: 10, Day: 1}.AddDays(i)
		parts[i] = fmt.Sprintf(`{"day_number": %d, "day_date": %q, "activities": [{"name": "Walk %d"}], "food": [], "day_budget": 100,
			"intracity_moves": [{"mode": "tram", "from_place": "Baixa", "to_place": "Belem", "duration_min": 25}]}`, i+1, d.String(), i+1)
	}
	return `{"days": [` + strings.Join(parts, ",") + `], "total_budget": 1500, "currency": "EUR"}`
}

func tripContext(plan *trip.ResearchPlan) *trip.Context {
	return &trip.Context{
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

func lodgingOnly(n int) *trip.ResearchPlan {
	return &trip.ResearchPlan{
		LodgingCandidates:            &trip.CandidateResearch{CandidatesNumber: n},
		ActivitiesCandidates:         &trip.CandidateResearch{CandidatesNumber: 0},
		FoodCandidates:               &trip.CandidateResearch{CandidatesNumber: 0},
		IntercityTransportCandidates: &trip.CandidateResearch{CandidatesNumber: 0},
	}
}

func fullPlan() *trip.ResearchPlan {
	return &trip.ResearchPlan{
		LodgingCandidates:            &trip.CandidateResearch{CandidatesNumber: 3},
		ActivitiesCandidates:         &trip.CandidateResearch{CandidatesNumber: 3},
		FoodCandidates:               &trip.CandidateResearch{CandidatesNumber: 3},
		IntercityTransportCandidates: &trip.CandidateResearch{CandidatesNumber: 2},
	}
}

func hasMessage(msgs []trip.Message, node, substr string) bool {
	for _, m := range msgs {
		if m.Node == node && strings.Contains(m.Text, substr) {
			return true
		}
	}
	return false
}
