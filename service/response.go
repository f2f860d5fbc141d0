package service

import (
	"errors"

	"github.com/dshills/tripgraph/trip"
	"github.com/dshills/tripgraph/workflow"
)

// Status is the session state reported to the caller.
type Status string

const (
	// StatusInterrupt means the session waits for selections or extra
	// research.
	StatusInterrupt Status = "interrupt"

	// StatusComplete means a final plan was produced and the session is
	// closed.
	StatusComplete Status = "complete"

	// StatusNeedsFollowUp means a final plan was produced but some research
	// degraded or synthesis fell back to a draft. The session stays
	// resumable.
	StatusNeedsFollowUp Status = "needs_follow_up"

	// StatusNoPlan means the session ended without a plan.
	StatusNoPlan Status = "no_plan"
)

// Response is the payload every operation returns.
type Response struct {
	SessionID       string                         `json:"session_id"`
	Status          Status                         `json:"status"`
	Budget          *trip.BudgetEstimate           `json:"budget,omitempty"`
	ResearchPlan    *trip.ResearchPlan             `json:"research_plan,omitempty"`
	Candidates      Candidates                     `json:"candidates"`
	Recommendations *trip.RecommendationsOutput    `json:"recommendations,omitempty"`
	Interrupt       *trip.Review                   `json:"interrupt,omitempty"`
	FinalPlan       *trip.FinalPlan                `json:"final_plan,omitempty"`
	Outcomes        map[trip.Category]trip.Outcome `json:"outcomes,omitempty"`
	Error           string                         `json:"error,omitempty"`
	Messages        []string                       `json:"messages"`
}

// Candidates are the researched lists by category. Lists are never null.
type Candidates struct {
	Lodging            []trip.Lodging            `json:"lodging"`
	Activities         []trip.Activity           `json:"activities"`
	Food               []trip.Food               `json:"food"`
	IntercityTransport []trip.IntercityTransport `json:"intercity_transport"`
}

func respond(id string, status Status, s trip.State) Response {
	r := Response{
		SessionID:       id,
		Status:          status,
		Budget:          s.Budget,
		ResearchPlan:    s.ResearchPlan,
		Recommendations: s.Recommendations,
		FinalPlan:       s.FinalPlan,
		Outcomes:        s.Outcomes,
		Candidates: Candidates{
			Lodging:            nonNil(s.Lodging),
			Activities:         nonNil(s.Activities),
			Food:               nonNil(s.Food),
			IntercityTransport: nonNil(s.IntercityTransport),
		},
		Messages: make([]string, len(s.Messages)),
	}
	if status == StatusInterrupt {
		r.Interrupt = s.Review
	}
	for i, m := range s.Messages {
		r.Messages[i] = m.String()
	}
	return r
}

// noPlan renders a session that ended without a plan. s is the last state
// the session reached; err explains why.
func noPlan(id string, s trip.State, node string, err error) Response {
	var np *workflow.NoPlanError
	if errors.As(err, &np) {
		node = np.Node
	}
	s.Messages = append(s.Messages[:len(s.Messages):len(s.Messages)], trip.NewMessage(node, err.Error()))
	r := respond(id, StatusNoPlan, s)
	r.FinalPlan = nil
	r.Error = err.Error()
	return r
}

// completion picks the status of a finished run.
func completion(s trip.State) Status {
	if s.FinalPlan == nil {
		return StatusNoPlan
	}
	if s.FinalPlan.NeedsFollowUp() {
		return StatusNeedsFollowUp
	}
	return StatusComplete
}

func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
