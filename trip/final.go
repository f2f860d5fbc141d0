package trip

import (
	"cloud.google.com/go/civil"
)

// DayPlan is one day of the itinerary.
type DayPlan struct {
	DayNumber      int            `json:"day_number"`
	DayDate        civil.Date     `json:"day_date"`
	Activities     []Activity     `json:"activities"`
	Food           []Food         `json:"food"`
	IntracityMoves []IntracityHop `json:"intracity_moves,omitempty"`
	DayBudget      float64        `json:"day_budget"`
	StartTime      string         `json:"start_time,omitempty"`
	EndTime        string         `json:"end_time,omitempty"`
	Notes          string         `json:"notes,omitempty"`
}

// FinalPlan is the synthesized itinerary.
type FinalPlan struct {
	Days               []DayPlan              `json:"days"`
	TotalBudget        float64                `json:"total_budget"`
	Currency           string                 `json:"currency"`
	Lodging            *Lodging               `json:"lodging,omitempty"`
	IntercityTransport *IntercityTransport    `json:"intercity_transport,omitempty"`
	Recommendations    *RecommendationsOutput `json:"recommendations,omitempty"`
	ResearchPlan       *ResearchPlan          `json:"research_plan,omitempty"`

	// FollowUp lists categories the planner suggests researching again
	// before the plan is relied on. Nil when nothing is outstanding.
	FollowUp *ResearchPlan `json:"follow_up,omitempty"`

	// Draft marks a skeleton plan built without the synthesis model.
	Draft bool `json:"draft,omitempty"`
}

// NeedsFollowUp reports whether the plan is a draft or carries a follow-up
// request.
func (p FinalPlan) NeedsFollowUp() bool {
	return p.Draft || (p.FollowUp != nil && !p.FollowUp.Empty())
}

// Validate checks the day sequence against the trip dates and every nested
// record.
func (p FinalPlan) Validate(c Context) error {
	dates := c.Dates()
	if len(p.Days) != len(dates) {
		return invalid("days", "expected %d days, got %d", len(dates), len(p.Days))
	}
	for i, d := range p.Days {
		field := indexed("days", i)
		if d.DayNumber != i+1 {
			return invalid(field+".day_number", "expected %d, got %d", i+1, d.DayNumber)
		}
		if d.DayDate != dates[i] {
			return invalid(field+".day_date", "expected %s, got %s", dates[i], d.DayDate)
		}
		if err := nonNegative(field+".day_budget", d.DayBudget); err != nil {
			return err
		}
		if err := clock(field+".start_time", d.StartTime); err != nil {
			return err
		}
		if err := clock(field+".end_time", d.EndTime); err != nil {
			return err
		}
		for j, a := range d.Activities {
			if err := a.Validate(); err != nil {
				return prefixed(indexed(field+".activities", j), err)
			}
		}
		for j, f := range d.Food {
			if err := f.Validate(); err != nil {
				return prefixed(indexed(field+".food", j), err)
			}
		}
		for j, h := range d.IntracityMoves {
			if err := h.Validate(); err != nil {
				return prefixed(indexed(field+".intracity_moves", j), err)
			}
		}
	}
	if err := nonNegative("total_budget", p.TotalBudget); err != nil {
		return err
	}
	if !currencyPattern.MatchString(p.Currency) {
		return invalid("currency", "must be an ISO 4217 code, got %q", p.Currency)
	}
	return nil
}

// AlignDays rewrites p.Days to exactly one entry per trip day, numbered from
// 1 with the matching calendar date. Producer days are matched by date
// first, then by day number; unmatched trip days are left empty and extra
// producer days are dropped.
func (p FinalPlan) AlignDays(c Context) FinalPlan {
	dates := c.Dates()
	byDate := make(map[civil.Date]DayPlan, len(p.Days))
	byNumber := make(map[int]DayPlan, len(p.Days))
	for _, d := range p.Days {
		if _, seen := byDate[d.DayDate]; !seen && d.DayDate.IsValid() {
			byDate[d.DayDate] = d
		}
		if _, seen := byNumber[d.DayNumber]; !seen {
			byNumber[d.DayNumber] = d
		}
	}

	days := make([]DayPlan, len(dates))
	for i, date := range dates {
		d, ok := byDate[date]
		if !ok {
			d = byNumber[i+1]
		}
		d.DayNumber = i + 1
		d.DayDate = date
		if d.Activities == nil {
			d.Activities = []Activity{}
		}
		if d.Food == nil {
			d.Food = []Food{}
		}
		if d.DayBudget < 0 {
			d.DayBudget = 0
		}
		days[i] = d
	}
	p.Days = days
	return p
}
