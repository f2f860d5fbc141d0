package workflow

import (
	"context"
	"math"
	"strings"

	"github.com/dshills/tripgraph/graph"
	"github.com/dshills/tripgraph/graph/model"
	"github.com/dshills/tripgraph/trip"
)

// plannerNode synthesises the final itinerary from the selections.
type plannerNode struct {
	model model.StructuredModel
}

// selection is the planner's prompt view of the resolved choices.
type selection struct {
	Lodging            *trip.Lodging            `json:"lodging,omitempty"`
	IntercityTransport *trip.IntercityTransport `json:"intercity_transport,omitempty"`
	Activities         []trip.Activity          `json:"activities"`
	Food               []trip.Food              `json:"food"`
}

func (n *plannerNode) Run(ctx context.Context, s trip.State) result {
	tc, err := requireContext(NodePlanner, s)
	if err != nil {
		return result{Err: err}
	}
	l := &trace{node: NodePlanner}

	resolved, err := trip.ResolveSelections(s)
	if err != nil {
		return result{Err: err}
	}
	for _, note := range resolved.Notes {
		l.add("%s", note)
	}

	var sb strings.Builder
	sb.WriteString("[TRIP]\n")
	sb.WriteString(mustJSON(tc))
	if s.Budget != nil {
		sb.WriteString("\n[BUDGET]\n")
		sb.WriteString(mustJSON(s.Budget))
	}
	sb.WriteString("\n[SELECTIONS]\n")
	sb.WriteString(mustJSON(selection{
		Lodging:            resolved.Lodging,
		IntercityTransport: resolved.IntercityTransport,
		Activities:         nonNil(resolved.Activities),
		Food:               nonNil(resolved.Food),
	}))
	if s.Recommendations != nil {
		sb.WriteString("\n[RECOMMENDATIONS]\n")
		sb.WriteString(mustJSON(s.Recommendations))
	}
	dates := tc.Dates()
	sb.WriteString("\nPlan exactly these days: ")
	for i, d := range dates {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(d.String())
	}

	req := model.Request{
		Name:   NodePlanner,
		System: plannerSystem,
		Prompt: sb.String(),
		Schema: plannerSchema,
	}
	plan, err := model.Structured(ctx, n.model, req, 2, func(text string) (trip.FinalPlan, error) {
		var p trip.FinalPlan
		if err := model.Decode(text, &p); err != nil {
			return p, err
		}
		p = finish(p, s, tc, resolved)
		return p, p.Validate(tc)
	}, l.observe)
	switch {
	case model.IsFatal(err):
		return fail(NodePlanner, "model unavailable", err, l.msgs)
	case err != nil:
		l.add("synthesis failed, returning a draft plan: %v", err)
		plan = draft(s, tc, resolved)
	}

	if plan.FollowUp != nil {
		l.add("follow-up research suggested for degraded categories")
	}
	l.add("plan ready: %d days, %.2f %s", len(plan.Days), plan.TotalBudget, plan.Currency)
	return result{
		Delta: trip.State{FinalPlan: &plan, Messages: l.msgs},
		Route: graph.Stop(),
	}
}

// finish normalises a synthesised plan: exact day sequence, selections
// forced, snapshots attached.
func finish(p trip.FinalPlan, s trip.State, tc trip.Context, r trip.Resolved) trip.FinalPlan {
	p = p.AlignDays(tc)
	p.Lodging = r.Lodging
	p.IntercityTransport = r.IntercityTransport
	p.Recommendations = s.Recommendations
	p.ResearchPlan = s.ResearchPlan
	p.FollowUp = followUp(s)
	p.Draft = false
	if p.Currency == "" {
		p.Currency = tc.Currency
	}
	if p.TotalBudget == 0 {
		for _, d := range p.Days {
			p.TotalBudget += d.DayBudget
		}
	}
	return p
}

// draft deals the offered activities and food round robin over the trip
// days and splits the budget evenly.
func draft(s trip.State, tc trip.Context, r trip.Resolved) trip.FinalPlan {
	total := tc.Budget
	if s.Budget != nil && s.Budget.Total > 0 {
		total = s.Budget.Total
	}
	days := tc.Dates()
	perDay := 0.0
	if len(days) > 0 {
		perDay = math.Round(total/float64(len(days))*100) / 100
	}

	p := trip.FinalPlan{Days: make([]trip.DayPlan, len(days))}
	for i, d := range days {
		p.Days[i] = trip.DayPlan{
			DayNumber:  i + 1,
			DayDate:    d,
			Activities: []trip.Activity{},
			Food:       []trip.Food{},
			DayBudget:  perDay,
		}
	}
	if len(days) > 0 {
		for i, a := range r.Activities {
			day := &p.Days[i%len(days)]
			day.Activities = append(day.Activities, a)
		}
		for i, f := range r.Food {
			day := &p.Days[i%len(days)]
			day.Food = append(day.Food, f)
		}
	}
	p.TotalBudget = total
	p.Currency = tc.Currency
	p.Lodging = r.Lodging
	p.IntercityTransport = r.IntercityTransport
	p.Recommendations = s.Recommendations
	p.ResearchPlan = s.ResearchPlan
	p.FollowUp = followUp(s)
	p.Draft = true
	return p
}

// followUp repeats the research plan of every degraded category, or
// returns nil when nothing degraded.
func followUp(s trip.State) *trip.ResearchPlan {
	var plan trip.ResearchPlan
	for _, c := range s.Degraded() {
		r := s.ResearchPlan.For(c)
		if r == nil || r.CandidatesNumber == 0 {
			continue
		}
		copied := *r
		plan.Set(c, &copied)
	}
	if plan.Empty() {
		return nil
	}
	return &plan
}
