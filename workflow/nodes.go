package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/tripgraph/graph"
	"github.com/dshills/tripgraph/graph/model"
	"github.com/dshills/tripgraph/graph/tool"
	"github.com/dshills/tripgraph/research"
	"github.com/dshills/tripgraph/trip"
)

type result = graph.NodeResult[trip.State]

// trace collects the messages of one node.
type trace struct {
	node string
	msgs []trip.Message
}

func (l *trace) add(format string, args ...interface{}) {
	l.msgs = append(l.msgs, trip.NewMessage(l.node, fmt.Sprintf(format, args...)))
}

func (l *trace) observe(a model.Attempt) {
	if a.Err != nil {
		l.add("attempt %d failed: %v", a.N, a.Err)
		return
	}
	l.add("attempt %d: model=%s tokens_in=%d tokens_out=%d", a.N, a.Completion.Model, a.Completion.TokensIn, a.Completion.TokensOut)
}

func fail(node, reason string, err error, msgs []trip.Message) result {
	return result{
		Delta: trip.State{Messages: msgs},
		Err:   &NoPlanError{Node: node, Reason: reason, Cause: err},
	}
}

// budgetNode asks the model for the per-category budget split.
type budgetNode struct {
	model model.StructuredModel
}

func (n *budgetNode) Run(ctx context.Context, s trip.State) result {
	tc, err := requireContext(NodeBudgetEstimate, s)
	if err != nil {
		return result{Err: err}
	}
	l := &trace{node: NodeBudgetEstimate}
	req := model.Request{
		Name:   NodeBudgetEstimate,
		System: budgetSystem,
		Prompt: fmt.Sprintf("[TRIP]\n%s\nThe whole trip must fit in %.2f %s over %d days.",
			mustJSON(tc), tc.Budget, tc.Currency, tc.DaysNumber()),
		Schema: budgetSchema,
	}
	est, err := model.Structured(ctx, n.model, req, 2, func(text string) (trip.BudgetEstimate, error) {
		var b trip.BudgetEstimate
		if err := model.Decode(text, &b); err != nil {
			return b, err
		}
		if b.Currency == "" {
			b.Currency = tc.Currency
		}
		b = b.Normalize(tc.DaysNumber())
		return b, b.Validate()
	}, l.observe)
	if err != nil {
		reason := "budget estimate failed"
		if model.IsFatal(err) {
			reason = "model unavailable"
		}
		return fail(NodeBudgetEstimate, reason, err, l.msgs)
	}
	l.add("estimated %.2f %s (%.2f per day)", est.Total, est.Currency, est.BudgetPerDay)
	return result{
		Delta: trip.State{Budget: &est, Messages: l.msgs},
		Route: graph.Goto(NodeResearchPlan),
	}
}

// planNode fixes the per-category candidate counts and geocodes the
// destination, then fans out to the research branches.
type planNode struct {
	model    model.StructuredModel
	geocoder tool.Geocoder
	branches []string
}

func (n *planNode) Run(ctx context.Context, s trip.State) result {
	tc, err := requireContext(NodeResearchPlan, s)
	if err != nil {
		return result{Err: err}
	}
	l := &trace{node: NodeResearchPlan}
	delta := trip.State{}

	switch {
	case s.ResearchPlan != nil && !s.ResearchPlan.Empty():
		l.add("keeping the current research plan")
	case tc.ResearchPlan != nil:
		plan := *tc.ResearchPlan
		delta.ResearchPlan = &plan
		l.add("using the research plan from the request")
	default:
		plan, err := n.askPlan(ctx, tc, s.Budget, l)
		if model.IsFatal(err) {
			return fail(NodeResearchPlan, "model unavailable", err, l.msgs)
		}
		if err != nil {
			plan = trip.DefaultResearchPlan()
			l.add("planning failed, using default counts: %v", err)
		}
		delta.ResearchPlan = &plan
	}
	plan := s.ResearchPlan.Merge(delta.ResearchPlan)
	for _, c := range trip.CandidateCategories {
		if k := plan.Requested(c); k > 0 {
			l.add("%s: %d candidates", c, k)
		} else {
			l.add("%s: skipped", c)
		}
	}

	if n.geocoder != nil && s.Destination == nil {
		loc, err := n.geocoder.Geocode(ctx, tc.Place())
		switch {
		case errors.Is(err, tool.ErrNotFound):
			l.add("destination %q not found by the geocoder", tc.Place())
		case err != nil:
			l.add("geocoding %q failed: %v", tc.Place(), err)
		default:
			delta.Destination = &trip.Coordinates{Lat: loc.Lat, Lon: loc.Lon, DisplayName: loc.DisplayName}
			l.add("destination at %.4f,%.4f", loc.Lat, loc.Lon)
		}
	}

	delta.Messages = l.msgs
	return result{Delta: delta, Route: graph.FanOut(n.branches...)}
}

func (n *planNode) askPlan(ctx context.Context, tc trip.Context, budget *trip.BudgetEstimate, l *trace) (trip.ResearchPlan, error) {
	var sb strings.Builder
	sb.WriteString("[TRIP]\n")
	sb.WriteString(mustJSON(tc))
	if budget != nil {
		sb.WriteString("\n[BUDGET]\n")
		sb.WriteString(mustJSON(budget))
	}
	sb.WriteString("\nDecide what to research for each category and how many candidates to return. " +
		"Use 0 for a category the travellers do not need.")
	req := model.Request{
		Name:   NodeResearchPlan,
		System: planSystem,
		Prompt: sb.String(),
		Schema: planSchema,
	}
	return model.Structured(ctx, n.model, req, 2, func(text string) (trip.ResearchPlan, error) {
		var p trip.ResearchPlan
		if err := model.Decode(text, &p); err != nil {
			return p, err
		}
		if p.Empty() {
			return p, &model.StructuralError{Message: "research plan names no category"}
		}
		for _, c := range trip.CandidateCategories {
			if r := p.For(c); r != nil && r.CandidatesNumber > maxCandidates {
				r.CandidatesNumber = maxCandidates
			}
		}
		return p, p.Validate()
	}, l.observe)
}

// maxCandidates caps model-chosen counts for one category.
const maxCandidates = 10

// researchNode adapts a research.Runner to a fan-out branch.
type researchNode struct {
	runner research.Runner
}

func (n *researchNode) Run(ctx context.Context, s trip.State) result {
	c := n.runner.Category()
	tc, err := requireContext(Branch(c), s)
	if err != nil {
		return result{Err: err}
	}
	delta, err := n.runner.Run(ctx, research.Input{
		Context:     tc,
		Budget:      s.Budget,
		Plan:        s.ResearchPlan.For(c),
		Destination: s.Destination,
	})
	if err != nil && !model.IsFatal(err) && errors.Is(err, context.DeadlineExceeded) {
		delta = timedOut(c, s.ResearchPlan.For(c), delta.Messages)
		err = nil
	}
	if err != nil {
		return fail(Branch(c), "research collaborator unavailable", err, delta.Messages)
	}
	return result{Delta: delta, Route: graph.Goto(NodeReview)}
}

// timedOut is the degraded update of a branch whose runner ran out of time.
func timedOut(c trip.Category, plan *trip.CandidateResearch, msgs []trip.Message) trip.State {
	requested := 0
	if plan != nil {
		requested = plan.CandidatesNumber
	}
	msgs = append(msgs[:len(msgs):len(msgs)], trip.NewMessage(Branch(c), "degraded: timed out"))
	return trip.State{
		Outcomes: map[trip.Category]trip.Outcome{c: {Status: trip.OutcomeDegraded, Requested: requested, Reason: "timed out"}},
		Messages: msgs,
	}
}

// reviewNode builds the interrupt payload from everything researched so far.
func reviewNode(_ context.Context, s trip.State) result {
	l := &trace{node: NodeReview}
	review := trip.Review{
		Task:            reviewTask,
		ResearchPlan:    s.ResearchPlan,
		Recommendations: s.Recommendations,
		Degraded:        s.Degraded(),
	}
	for _, c := range trip.CandidateCategories {
		if s.ResearchPlan.Requested(c) == 0 && s.Count(c) == 0 {
			continue
		}
		review.Selections = append(review.Selections, trip.ReviewSection{
			Type:    c,
			Task:    sectionTasks[c],
			Options: options(s, c),
		})
	}
	for _, c := range review.Degraded {
		o := s.Outcomes[c]
		l.add("%s degraded (%d of %d found): %s", c, o.Found, o.Requested, o.Reason)
	}
	l.add("awaiting selections for %d categories", len(review.Selections))
	return result{
		Delta: trip.State{Review: &review, Messages: l.msgs},
		Route: graph.Interrupt(),
	}
}

var sectionTasks = map[trip.Category]string{
	trip.CategoryLodging:            "Choose one place to stay.",
	trip.CategoryActivities:         "Choose the activities to include. Leave empty to let the planner pick.",
	trip.CategoryFood:               "Choose the places to eat. Leave empty to let the planner pick.",
	trip.CategoryIntercityTransport: "Choose one way to get there and back.",
}

const reviewTask = "Review the researched options and submit your selections, " +
	"or request extra research for any category."

// options encodes the candidate list of c, always as a JSON array.
func options(s trip.State, c trip.Category) json.RawMessage {
	var v interface{}
	switch c {
	case trip.CategoryLodging:
		v = nonNil(s.Lodging)
	case trip.CategoryActivities:
		v = nonNil(s.Activities)
	case trip.CategoryFood:
		v = nonNil(s.Food)
	case trip.CategoryIntercityTransport:
		v = nonNil(s.IntercityTransport)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("[]")
	}
	return data
}

func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}

func mustJSON(v interface{}) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(data)
}
