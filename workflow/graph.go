package workflow

import (
	"fmt"
	"time"

	"github.com/dshills/tripgraph/graph"
	"github.com/dshills/tripgraph/graph/emit"
	"github.com/dshills/tripgraph/graph/model"
	"github.com/dshills/tripgraph/graph/tool"
	"github.com/dshills/tripgraph/research"
	"github.com/dshills/tripgraph/trip"
)

// Node identifiers. Research branches use the category name as their id.
const (
	NodeBudgetEstimate = "budget_estimate"
	NodeResearchPlan   = "research_plan"
	NodeReview         = "combined_human_review"
	NodePlanner        = "planner"
)

// Config wires the collaborators into the graph.
type Config struct {
	// Model serves budget estimation, research planning and final
	// synthesis. Required.
	Model model.StructuredModel

	// Geocoder resolves the destination. Optional.
	Geocoder tool.Geocoder

	// Research configures the default runners. Research.Model defaults to
	// Model.
	Research research.Config

	// Runners replaces the default runners from research.All. Each
	// category may appear at most once.
	Runners []research.Runner

	// Retry re-runs the model-driven nodes (budget, research plan and
	// planner) on transient provider errors. Nil disables node retries.
	Retry *graph.RetryPolicy
}

// RetryTransient retries rate limits, timeouts and 5xx responses with
// exponential backoff.
func RetryTransient(attempts int, base, maxDelay time.Duration) *graph.RetryPolicy {
	return &graph.RetryPolicy{MaxAttempts: attempts, BaseDelay: base, MaxDelay: maxDelay, Retryable: model.IsRetryable}
}

// New builds the trip graph.
//
// Example:
//
//	engine, err := workflow.New(workflow.Config{Model: m, Geocoder: geo}, emitter, graph.WithMaxSteps(100))
//	if err != nil {
//	    return err
//	}
//	res, err := engine.Run(ctx, "trip_123", trip.State{Context: &tc})
//	// res.Status == graph.StatusInterrupted, res.State.Review holds the options
func New(cfg Config, emitter emit.Emitter, opts ...graph.Option) (*graph.Engine[trip.State], error) {
	if cfg.Model == nil {
		return nil, fmt.Errorf("workflow: a model is required")
	}
	runners := cfg.Runners
	if runners == nil {
		rc := cfg.Research
		if rc.Model == nil {
			rc.Model = cfg.Model
		}
		runners = research.All(rc)
	}

	if cfg.Retry != nil {
		if err := cfg.Retry.Validate(); err != nil {
			return nil, fmt.Errorf("workflow: %w", err)
		}
		opts = opts[:len(opts):len(opts)]
		for _, id := range []string{NodeBudgetEstimate, NodeResearchPlan, NodePlanner} {
			opts = append(opts, graph.WithNodePolicy(id, graph.NodePolicy{RetryPolicy: cfg.Retry}))
		}
	}
	engine := graph.New(trip.Reduce, emitter, opts...)

	branches := make([]string, 0, len(runners))
	for _, r := range runners {
		id := Branch(r.Category())
		if err := engine.Add(id, &researchNode{runner: r}); err != nil {
			return nil, err
		}
		branches = append(branches, id)
	}

	nodes := []struct {
		id   string
		node graph.Node[trip.State]
	}{
		{NodeBudgetEstimate, &budgetNode{model: cfg.Model}},
		{NodeResearchPlan, &planNode{model: cfg.Model, geocoder: cfg.Geocoder, branches: branches}},
		{NodeReview, graph.NodeFunc[trip.State](reviewNode)},
		{NodePlanner, &plannerNode{model: cfg.Model}},
	}
	for _, n := range nodes {
		if err := engine.Add(n.id, n.node); err != nil {
			return nil, err
		}
	}
	if err := engine.StartAt(NodeBudgetEstimate); err != nil {
		return nil, err
	}
	return engine, nil
}

// Branch is the node id of a research category.
func Branch(c trip.Category) string {
	return string(c)
}

// ResumeFinal is the route that continues an interrupted run at the planner.
func ResumeFinal() graph.Next {
	return graph.Goto(NodePlanner)
}

// ExtraResearch is the route that re-runs the given research branches and
// returns to review.
func ExtraResearch(categories []trip.Category) graph.Next {
	ids := make([]string, len(categories))
	for i, c := range categories {
		ids[i] = Branch(c)
	}
	return graph.FanOut(ids...)
}
