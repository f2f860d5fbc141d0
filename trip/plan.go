package trip

// Category names one research task. The declaration order of Categories is
// the order used in every user-facing listing.
type Category string

const (
	CategoryLodging            Category = "lodging"
	CategoryActivities         Category = "activities"
	CategoryFood               Category = "food"
	CategoryIntercityTransport Category = "intercity_transport"
	CategoryRecommendations    Category = "recommendations"
)

// Categories is the fixed listing order.
var Categories = []Category{
	CategoryLodging,
	CategoryActivities,
	CategoryFood,
	CategoryIntercityTransport,
	CategoryRecommendations,
}

// CandidateCategories excludes the advisory recommendations category.
var CandidateCategories = Categories[:4]

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// PlanField is the ResearchPlan JSON field for c, e.g. "lodging_candidates".
// Recommendations have no plan field and return "".
func (c Category) PlanField() string {
	if c == CategoryRecommendations || !c.Valid() {
		return ""
	}
	return string(c) + "_candidates"
}

// CandidateResearch describes one category of research: what to look for
// and how many candidates to return. A count of zero means skip.
type CandidateResearch struct {
	Name             string `json:"name,omitempty"`
	Description      string `json:"description,omitempty"`
	CandidatesNumber int    `json:"candidates_number"`
}

// Validate rejects negative counts.
func (r CandidateResearch) Validate() error {
	if r.CandidatesNumber < 0 {
		return invalid("candidates_number", "must be non-negative, got %d", r.CandidatesNumber)
	}
	return nil
}

// ResearchPlan holds an optional sub-plan per candidate category. A nil
// sub-plan means the category is not researched.
type ResearchPlan struct {
	LodgingCandidates            *CandidateResearch `json:"lodging_candidates,omitempty"`
	ActivitiesCandidates         *CandidateResearch `json:"activities_candidates,omitempty"`
	FoodCandidates               *CandidateResearch `json:"food_candidates,omitempty"`
	IntercityTransportCandidates *CandidateResearch `json:"intercity_transport_candidates,omitempty"`
}

// DefaultResearchPlan is used when neither the request nor the planning
// model provide counts.
func DefaultResearchPlan() ResearchPlan {
	return ResearchPlan{
		LodgingCandidates:            &CandidateResearch{Name: "Lodging", CandidatesNumber: 3},
		ActivitiesCandidates:         &CandidateResearch{Name: "Activities", CandidatesNumber: 5},
		FoodCandidates:               &CandidateResearch{Name: "Food", CandidatesNumber: 5},
		IntercityTransportCandidates: &CandidateResearch{Name: "Intercity transport", CandidatesNumber: 3},
	}
}

// For returns the sub-plan of a category, or nil.
func (p *ResearchPlan) For(c Category) *CandidateResearch {
	if p == nil {
		return nil
	}
	switch c {
	case CategoryLodging:
		return p.LodgingCandidates
	case CategoryActivities:
		return p.ActivitiesCandidates
	case CategoryFood:
		return p.FoodCandidates
	case CategoryIntercityTransport:
		return p.IntercityTransportCandidates
	}
	return nil
}

// Set replaces the sub-plan of a category. Unknown categories are ignored.
func (p *ResearchPlan) Set(c Category, r *CandidateResearch) {
	switch c {
	case CategoryLodging:
		p.LodgingCandidates = r
	case CategoryActivities:
		p.ActivitiesCandidates = r
	case CategoryFood:
		p.FoodCandidates = r
	case CategoryIntercityTransport:
		p.IntercityTransportCandidates = r
	}
}

// Requested returns how many candidates to fetch for c. Zero means skip.
func (p *ResearchPlan) Requested(c Category) int {
	r := p.For(c)
	if r == nil {
		return 0
	}
	return r.CandidatesNumber
}

// Empty reports whether no category has a sub-plan.
func (p *ResearchPlan) Empty() bool {
	for _, c := range CandidateCategories {
		if p.For(c) != nil {
			return false
		}
	}
	return true
}

// Validate checks every present sub-plan.
func (p ResearchPlan) Validate() error {
	for _, c := range CandidateCategories {
		if r := p.For(c); r != nil {
			if err := r.Validate(); err != nil {
				return prefixed(c.PlanField(), err)
			}
		}
	}
	return nil
}

// Merge overlays the non-nil sub-plans of other onto a copy of p.
func (p *ResearchPlan) Merge(other *ResearchPlan) *ResearchPlan {
	if other == nil {
		return p
	}
	var merged ResearchPlan
	if p != nil {
		merged = *p
	}
	for _, c := range CandidateCategories {
		if r := other.For(c); r != nil {
			copied := *r
			merged.Set(c, &copied)
		}
	}
	return &merged
}

// Overrides returns the present sub-plans keyed by plan field name, the
// shape ApplyOverrides accepts.
func (p *ResearchPlan) Overrides() map[string]CandidateResearch {
	out := map[string]CandidateResearch{}
	for _, c := range CandidateCategories {
		if r := p.For(c); r != nil {
			out[c.PlanField()] = *r
		}
	}
	return out
}
