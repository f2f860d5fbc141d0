package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/tripgraph/graph/model"
	"github.com/dshills/tripgraph/trip"
)

// spec describes one candidate category.
type spec struct {
	category trip.Category

	// keys are the collection keys accepted in the model's answer.
	keys []string

	// role completes "You are a travel research assistant specializing in ...".
	role string

	// budget picks the category's share of the estimate.
	budget func(b *trip.BudgetEstimate) float64

	// query builds the free-text search used for forum, web and knowledge
	// base evidence.
	query func(in Input) string

	primary primarySearch
	schema  model.Schema
}

// candidateRunner is the shared harness behind the four candidate runners.
type candidateRunner struct {
	cfg  Config
	spec spec
}

func newCandidateRunner(cfg Config, s spec) *candidateRunner {
	return &candidateRunner{cfg: cfg.withDefaults(), spec: s}
}

func (r *candidateRunner) Category() trip.Category { return r.spec.category }

// Run implements Runner.
func (r *candidateRunner) Run(ctx context.Context, in Input) (trip.State, error) {
	c := r.spec.category
	requested := 0
	if in.Plan != nil {
		requested = in.Plan.CandidatesNumber
	}
	if requested <= 0 {
		return skipped(c), nil
	}

	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	tr := newTrace(c)
	query := r.spec.query(in)
	ev, notes, err := gather(ctx, r.cfg, in, query, r.spec.primary)
	tr.addAll(notes)
	if err != nil {
		return trip.State{Messages: tr.msgs}, err
	}
	if ev.empty() {
		tr.add("no external evidence, synthesising from model knowledge")
	}

	req := model.Request{
		Name:   string(c),
		System: r.system(),
		Prompt: r.prompt(in, ev, requested),
		Schema: r.spec.schema,
	}
	items, reason, err := synthesize(ctx, r.cfg.Model, req, tr, func(text string) ([]trip.Candidate, error) {
		return r.parse(text, tr)
	})
	if err != nil {
		return trip.State{Messages: tr.msgs}, err
	}

	out := trip.State{}
	found := assign(&out, c, items, requested)
	outcome := trip.Outcome{Status: trip.OutcomeOK, Requested: requested, Found: found}
	switch {
	case reason != "":
		outcome.Status = trip.OutcomeDegraded
		outcome.Reason = reason
		tr.add("degraded: %s", reason)
	case found < requested:
		tr.add("found %d of %d requested candidates", found, requested)
	default:
		tr.add("found %d candidates", found)
	}
	out.Outcomes = map[trip.Category]trip.Outcome{c: outcome}
	out.Messages = tr.msgs
	return out, nil
}

// synthesize calls the model with one corrective retry. It returns the
// parsed value, or a degradation reason when both attempts fail. The error
// is set only for fatal provider conditions.
func synthesize[T any](ctx context.Context, m model.StructuredModel, req model.Request, tr *trace, parse func(string) (T, error)) (T, string, error) {
	v, err := model.Structured(ctx, m, req, 2, parse, func(a model.Attempt) {
		switch {
		case a.Err == nil:
			tr.add("synthesis attempt %d: model=%s tokens_in=%d tokens_out=%d", a.N, a.Completion.Model, a.Completion.TokensIn, a.Completion.TokensOut)
		case model.IsFatal(a.Err):
			tr.add("synthesis failed: %v", a.Err)
		default:
			tr.add("synthesis attempt %d failed: %v", a.N, a.Err)
		}
	})
	switch {
	case err == nil:
		return v, "", nil
	case model.IsFatal(err):
		return v, "", err
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return v, "timed out", nil
	case ctx.Err() != nil:
		return v, "cancelled", nil
	}
	return v, err.Error(), nil
}

// parse validates every item of the answer. Invalid items are dropped with
// a trace line; an answer whose items are all invalid is rejected.
func (r *candidateRunner) parse(text string, tr *trace) ([]trip.Candidate, error) {
	raw, err := model.Collection(text, r.spec.keys...)
	if err != nil {
		return nil, err
	}
	valid := make([]trip.Candidate, 0, len(raw))
	for i, item := range raw {
		cand, err := trip.ValidateCandidate(r.spec.category, item)
		if err != nil {
			tr.add("skipped item %d: %v", i, err)
			continue
		}
		valid = append(valid, cand)
	}
	if len(raw) > 0 && len(valid) == 0 {
		return nil, &model.StructuralError{Message: fmt.Sprintf("all %d items failed validation", len(raw))}
	}
	return valid, nil
}

// assign stores the de-duplicated candidates, truncated to n, in the typed
// list for category c and returns how many were kept.
func assign(s *trip.State, c trip.Category, items []trip.Candidate, n int) int {
	switch c {
	case trip.CategoryLodging:
		s.Lodging = truncate(trip.MergeCandidates(nil, collect[trip.Lodging](items)), n)
		return len(s.Lodging)
	case trip.CategoryActivities:
		s.Activities = truncate(trip.MergeCandidates(nil, collect[trip.Activity](items)), n)
		return len(s.Activities)
	case trip.CategoryFood:
		s.Food = truncate(trip.MergeCandidates(nil, collect[trip.Food](items)), n)
		return len(s.Food)
	case trip.CategoryIntercityTransport:
		s.IntercityTransport = truncate(trip.MergeCandidates(nil, collect[trip.IntercityTransport](items)), n)
		return len(s.IntercityTransport)
	}
	return 0
}

func collect[T trip.Candidate](items []trip.Candidate) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if v, ok := it.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

func truncate[T any](in []T, n int) []T {
	if len(in) > n {
		return in[:n]
	}
	if len(in) == 0 {
		return nil
	}
	return in
}

func (r *candidateRunner) system() string {
	return "You are a travel research assistant specializing in " + r.spec.role + ".\n" +
		"Use only facts present in the provided evidence and avoid fabricating data. " +
		"When a provider result carries a location_id or id, use it as the candidate 'id'. " +
		"Prices are in the trip currency. Ratings are 0 to 5. Evidence scores are 0 to 1 and " +
		"reflect how well the evidence supports the candidate."
}

func (r *candidateRunner) prompt(in Input, ev evidence, requested int) string {
	var sb strings.Builder
	sb.WriteString("[TRIP CONTEXT]\n")
	writeJSON(&sb, tripSummary(in))
	if r.spec.budget != nil && in.Budget != nil {
		fmt.Fprintf(&sb, "\nBudget (%s total): %.2f %s\n", r.spec.role, r.spec.budget(in.Budget), in.Context.Currency)
	}
	if in.Plan != nil && (in.Plan.Name != "" || in.Plan.Description != "") {
		fmt.Fprintf(&sb, "\nResearch focus: %s. %s\n", in.Plan.Name, in.Plan.Description)
	}
	fmt.Fprintf(&sb, "\nReturn at most %d options as {%q: [...]}.\n", requested, r.spec.keys[0])
	if !ev.empty() {
		sb.WriteString("\n[EVIDENCE]\n")
		writeJSON(&sb, ev)
	}
	return sb.String()
}

type summary struct {
	Destination    string            `json:"destination"`
	Country        string            `json:"country"`
	From           string            `json:"date_from"`
	To             string            `json:"date_to"`
	Days           int               `json:"days"`
	Origin         string            `json:"origin,omitempty"`
	GroupType      string            `json:"group_type"`
	Adults         int               `json:"adults"`
	Children       int               `json:"children"`
	Infants        int               `json:"infants"`
	Interests      []string          `json:"interests,omitempty"`
	Languages      []string          `json:"languages,omitempty"`
	Purpose        string            `json:"purpose,omitempty"`
	Notes          string            `json:"notes,omitempty"`
	Budget         float64           `json:"budget"`
	Currency       string            `json:"currency"`
	DestinationGeo *trip.Coordinates `json:"destination_coordinates,omitempty"`
}

func tripSummary(in Input) summary {
	c := in.Context
	s := summary{
		Destination:    c.Destination,
		Country:        c.DestinationCountry,
		From:           c.DateFrom.String(),
		To:             c.DateTo.String(),
		Days:           c.DaysNumber(),
		Origin:         c.CurrentLocation,
		GroupType:      string(c.GroupType),
		Adults:         c.Adults(),
		Children:       c.Children(),
		Infants:        c.Infants(),
		Purpose:        c.TripPurpose,
		Notes:          c.Notes,
		Budget:         c.Budget,
		Currency:       c.Currency,
		DestinationGeo: in.Destination,
	}
	seenI, seenL := map[string]bool{}, map[string]bool{}
	for _, t := range c.Travellers {
		for _, i := range t.Interests {
			if !seenI[i] {
				seenI[i] = true
				s.Interests = append(s.Interests, i)
			}
		}
		for _, l := range t.SpokenLanguages {
			if !seenL[l] {
				seenL[l] = true
				s.Languages = append(s.Languages, l)
			}
		}
	}
	return s
}

func writeJSON(sb *strings.Builder, v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(sb, "%+v\n", v)
		return
	}
	sb.Write(data)
	sb.WriteByte('\n')
}
