package trip

import (
	"sort"
	"strings"
)

// Reduce folds a partial update into the accumulated state.
//
// Single-writer fields (budget, destination, recommendations, selections,
// final plan, review) take the delta value when it is set. The context is
// write-once. The research plan merges per category. Candidate lists append
// and de-duplicate by identity keeping first-seen order. Outcomes overwrite
// per category and messages append.
//
// Reduce never mutates prev; the returned state shares no slices or maps
// with it.
func Reduce(prev, delta State) State {
	next := prev

	if prev.Context == nil && delta.Context != nil {
		next.Context = delta.Context
	}
	if delta.Budget != nil {
		next.Budget = delta.Budget
	}
	if delta.ResearchPlan != nil {
		next.ResearchPlan = prev.ResearchPlan.Merge(delta.ResearchPlan)
	}
	if delta.Destination != nil {
		next.Destination = delta.Destination
	}
	if delta.Recommendations != nil {
		next.Recommendations = delta.Recommendations
	}
	if delta.Selections != nil {
		next.Selections = delta.Selections
	}
	if delta.FinalPlan != nil {
		next.FinalPlan = delta.FinalPlan
	}
	if delta.Review != nil {
		next.Review = delta.Review
	}

	next.Lodging = MergeCandidates(prev.Lodging, delta.Lodging)
	next.Activities = MergeCandidates(prev.Activities, delta.Activities)
	next.Food = MergeCandidates(prev.Food, delta.Food)
	next.IntercityTransport = MergeCandidates(prev.IntercityTransport, delta.IntercityTransport)

	if len(delta.Outcomes) > 0 {
		outcomes := make(map[Category]Outcome, len(prev.Outcomes)+len(delta.Outcomes))
		for k, v := range prev.Outcomes {
			outcomes[k] = v
		}
		for k, v := range delta.Outcomes {
			outcomes[k] = v
		}
		next.Outcomes = outcomes
	}

	if len(delta.Messages) > 0 {
		next.Messages = append(prev.Messages[:len(prev.Messages):len(prev.Messages)], delta.Messages...)
	}
	return next
}

// MergeCandidates appends incoming to existing and drops every candidate
// that is the same entity as one already kept. First-seen order wins.
func MergeCandidates[T Candidate](existing, incoming []T) []T {
	if len(existing) == 0 && len(incoming) == 0 {
		return existing
	}
	merged := make([]T, 0, len(existing)+len(incoming))
	for _, group := range [][]T{existing, incoming} {
		for _, c := range group {
			if IndexOf(merged, c.Base()) >= 0 {
				continue
			}
			merged = append(merged, c)
		}
	}
	return merged
}

// IndexOf returns the position of the first candidate that is the same
// entity as target, or -1.
func IndexOf[T Candidate](list []T, target CandidateBase) int {
	for i, c := range list {
		if c.Base().SameEntity(target) {
			return i
		}
	}
	return -1
}

// ApplyOverrides overlays research-plan overrides onto plan and returns the
// merged plan together with the categories the overrides touched, in
// listing order.
//
// Keys may be plan field names ("food_candidates") or bare category names
// ("food"). Any other key rejects the whole update with *UnknownFieldError.
func ApplyOverrides(plan *ResearchPlan, overrides map[string]CandidateResearch) (*ResearchPlan, []Category, error) {
	var (
		unknown []string
		touched = make(map[Category]CandidateResearch, len(overrides))
	)
	for key, r := range overrides {
		c, ok := categoryForKey(key)
		if !ok {
			unknown = append(unknown, key)
			continue
		}
		if err := r.Validate(); err != nil {
			return nil, nil, prefixed(c.PlanField(), err)
		}
		touched[c] = r
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, nil, &UnknownFieldError{Fields: unknown}
	}

	var (
		delta      ResearchPlan
		categories []Category
	)
	for _, c := range CandidateCategories {
		if r, ok := touched[c]; ok {
			delta.Set(c, &r)
			categories = append(categories, c)
		}
	}
	if len(categories) == 0 {
		return plan, nil, nil
	}
	return plan.Merge(&delta), categories, nil
}

func categoryForKey(key string) (Category, bool) {
	k := strings.TrimSpace(key)
	for _, c := range CandidateCategories {
		if k == string(c) || k == c.PlanField() {
			return c, true
		}
	}
	return "", false
}
