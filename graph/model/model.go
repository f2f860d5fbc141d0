// Package model defines the structured-completion collaborator used by the
// workflow nodes, plus helpers for pulling JSON out of free-form model output.
//
// Every LLM call in the trip workflow asks for a JSON document that matches a
// schema. Providers differ in how hard they enforce that schema, so callers
// always run the returned text through Decode or Collection and validate the
// result themselves.
package model

import (
	"context"
)

// Schema is a JSON Schema document describing the expected output.
type Schema map[string]interface{}

// Request is one structured-completion call.
type Request struct {
	// System is the instruction prompt. Optional.
	System string

	// Prompt is the user content.
	Prompt string

	// Name labels the schema, e.g. "budget_estimate". Some providers
	// require it alongside the schema.
	Name string

	// Schema describes the JSON document the caller expects. Optional.
	Schema Schema
}

// Completion is the provider's answer to a Request.
type Completion struct {
	// Text is the raw text returned by the model.
	Text string

	// Model is the model identifier that produced Text.
	Model string

	TokensIn  int
	TokensOut int

	// CostUSD is filled in by Metered when pricing for Model is known.
	CostUSD float64
}

// StructuredModel produces JSON completions.
//
// Implementations must be safe for concurrent use: the research runners
// call the same model from several goroutines.
type StructuredModel interface {
	Complete(ctx context.Context, req Request) (Completion, error)
}

// Func adapts a function to StructuredModel.
type Func func(ctx context.Context, req Request) (Completion, error)

// Complete calls f.
func (f Func) Complete(ctx context.Context, req Request) (Completion, error) {
	return f(ctx, req)
}
