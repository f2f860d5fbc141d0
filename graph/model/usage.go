package model

import (
	"context"
	"sync"
	"time"
)

// Pricing is the USD price per million tokens for one model.
type Pricing struct {
	InputPer1M  float64
	OutputPer1M float64
}

// DefaultPricing covers the default models of the bundled adapters. Unknown
// models cost zero.
var DefaultPricing = map[string]Pricing{
	"gpt-4o":                     {InputPer1M: 2.50, OutputPer1M: 10.00},
	"gpt-4o-mini":                {InputPer1M: 0.15, OutputPer1M: 0.60},
	"gpt-4.1":                    {InputPer1M: 2.00, OutputPer1M: 8.00},
	"gpt-4.1-mini":               {InputPer1M: 0.40, OutputPer1M: 1.60},
	"claude-3-5-sonnet-20241022": {InputPer1M: 3.00, OutputPer1M: 15.00},
	"claude-3-5-haiku-20241022":  {InputPer1M: 0.80, OutputPer1M: 4.00},
	"claude-sonnet-4-20250514":   {InputPer1M: 3.00, OutputPer1M: 15.00},
	"gemini-1.5-flash":           {InputPer1M: 0.075, OutputPer1M: 0.30},
	"gemini-1.5-pro":             {InputPer1M: 1.25, OutputPer1M: 5.00},
	"gemini-2.5-flash":           {InputPer1M: 0.30, OutputPer1M: 2.50},
}

// Call is one recorded completion.
type Call struct {
	Model     string
	TokensIn  int
	TokensOut int
	CostUSD   float64
	At        time.Time
}

// Tracker accumulates token usage and cost across completions. It is safe
// for concurrent use.
type Tracker struct {
	mu      sync.RWMutex
	pricing map[string]Pricing
	calls   []Call
	byModel map[string]float64
	total   float64
	in, out int64
}

// NewTracker returns a tracker using DefaultPricing.
func NewTracker() *Tracker {
	pricing := make(map[string]Pricing, len(DefaultPricing))
	for k, v := range DefaultPricing {
		pricing[k] = v
	}
	return &Tracker{pricing: pricing, byModel: make(map[string]float64)}
}

// SetPricing overrides the price of one model.
func (t *Tracker) SetPricing(model string, p Pricing) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pricing[model] = p
}

// Record adds one completion and returns its cost.
func (t *Tracker) Record(model string, tokensIn, tokensOut int) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := t.pricing[model]
	cost := float64(tokensIn)/1_000_000*p.InputPer1M + float64(tokensOut)/1_000_000*p.OutputPer1M

	t.calls = append(t.calls, Call{
		Model:     model,
		TokensIn:  tokensIn,
		TokensOut: tokensOut,
		CostUSD:   cost,
		At:        time.Now(),
	})
	t.total += cost
	t.byModel[model] += cost
	t.in += int64(tokensIn)
	t.out += int64(tokensOut)
	return cost
}

// TotalCost returns the accumulated cost in USD.
func (t *Tracker) TotalCost() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.total
}

// CostByModel returns a copy of the per-model costs.
func (t *Tracker) CostByModel() map[string]float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]float64, len(t.byModel))
	for k, v := range t.byModel {
		out[k] = v
	}
	return out
}

// Tokens returns the accumulated input and output token counts.
func (t *Tracker) Tokens() (in, out int64) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.in, t.out
}

// Calls returns a copy of the call history.
func (t *Tracker) Calls() []Call {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Call(nil), t.calls...)
}

// Metered wraps a model so every successful completion is recorded on the
// tracker and carries its cost.
func Metered(m StructuredModel, t *Tracker) StructuredModel {
	return Func(func(ctx context.Context, req Request) (Completion, error) {
		c, err := m.Complete(ctx, req)
		if err != nil {
			return c, err
		}
		c.CostUSD = t.Record(c.Model, c.TokensIn, c.TokensOut)
		return c, nil
	})
}
