// Package research implements the five research runners that the trip
// workflow fans out to: lodging, activities, food, intercity transport and
// recommendations.
//
// Every runner follows the same recipe. It gathers evidence from the
// configured collaborators (provider search, forum and web search, the
// knowledge base), asks the model to synthesise candidates from that
// evidence, and validates each returned item before it enters the state.
// Evidence failures are traced and ignored. A synthesis failure is retried
// once with a corrective instruction; a second failure degrades the
// category. Only a fatal provider condition is returned as an error.
package research

import (
	"context"
	"time"

	"github.com/dshills/tripgraph/graph/model"
	"github.com/dshills/tripgraph/graph/tool"
	"github.com/dshills/tripgraph/trip"
)

// Input is what a runner sees of the workflow state.
type Input struct {
	Context     trip.Context
	Budget      *trip.BudgetEstimate
	Plan        *trip.CandidateResearch
	Destination *trip.Coordinates
}

// Runner researches one category and returns its partial state update.
//
// The returned error is non-nil only when the model reports a fatal
// condition; the update then carries the trace collected so far.
type Runner interface {
	Category() trip.Category
	Run(ctx context.Context, in Input) (trip.State, error)
}

// Tools are the optional collaborators a runner draws evidence from. A nil
// field is skipped.
type Tools struct {
	Providers tool.ProviderSearch
	Routes    tool.RouteSearch
	Web       tool.WebSearch
	Forum     tool.WebSearch
	Knowledge tool.KnowledgeBase
}

// Config is shared by every runner.
type Config struct {
	Model model.StructuredModel
	Tools Tools

	// Timeout bounds one runner invocation. Zero means no bound beyond the
	// caller's context. A runner that times out is degraded.
	Timeout time.Duration

	// KnowledgeTopK is the number of knowledge-base documents requested.
	// Defaults to 5.
	KnowledgeTopK int

	// MaxEvidence caps provider results and snippets passed to the model.
	// Defaults to 10.
	MaxEvidence int
}

func (c Config) withDefaults() Config {
	if c.KnowledgeTopK <= 0 {
		c.KnowledgeTopK = 5
	}
	if c.MaxEvidence <= 0 {
		c.MaxEvidence = 10
	}
	return c
}

// All returns one runner per category in listing order.
func All(cfg Config) []Runner {
	return []Runner{
		NewLodgingRunner(cfg),
		NewActivitiesRunner(cfg),
		NewFoodRunner(cfg),
		NewTransportRunner(cfg),
		NewRecommendationsRunner(cfg),
	}
}
