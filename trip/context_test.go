package trip

import (
	"errors"
	"testing"

	"cloud.google.com/go/civil"
)

func date(y int, m int, d int) civil.Date {
	return civil.Date{Year: y, Month: timeMonth(m), Day: d}
}

func validContext() Context {
	return Context{
		Travellers: []Traveller{
			{Name: "Ana", DateOfBirth: date(1990, 5, 1)},
		},
		Budget:             2500,
		Currency:           "EUR",
		Destination:        "Lisbon",
		DestinationCountry: "Portugal",
		DateFrom:           date(2025, 10, 1),
		DateTo:             date(2025, 10, 5),
		GroupType:          GroupAlone,
	}
}

func TestContext_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Context)
		wantField string
	}{
		{"valid", func(*Context) {}, ""},
		{"missing destination", func(c *Context) { c.Destination = " " }, "destination"},
		{"missing country", func(c *Context) { c.DestinationCountry = "" }, "destination_country"},
		{"reversed dates", func(c *Context) { c.DateTo = date(2025, 9, 30) }, "date_from"},
		{"same day", func(c *Context) { c.DateTo = c.DateFrom }, ""},
		{"negative budget", func(c *Context) { c.Budget = -1 }, "budget"},
		{"lowercase currency", func(c *Context) { c.Currency = "eur" }, "currency"},
		{"unknown group", func(c *Context) { c.GroupType = "crowd" }, "group_type"},
		{"no travellers", func(c *Context) { c.Travellers = nil }, "travellers"},
		{"unnamed traveller", func(c *Context) { c.Travellers[0].Name = "" }, "travellers[0].name"},
		{"negative plan count", func(c *Context) {
			c.ResearchPlan = &ResearchPlan{FoodCandidates: &CandidateResearch{CandidatesNumber: -2}}
		}, "research_plan.food_candidates.candidates_number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validContext()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Validate() = %v, want *ValidationError", err)
			}
			if ve.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", ve.Field, tt.wantField)
			}
			if !errors.Is(err, ErrInvalid) {
				t.Error("errors.Is(err, ErrInvalid) = false")
			}
		})
	}
}

func TestContext_Derived(t *testing.T) {
	c := validContext()
	c.Travellers = []Traveller{
		{Name: "Parent", DateOfBirth: date(1985, 1, 1)},
		{Name: "Teen", DateOfBirth: date(2008, 10, 2)},  // turns 17 the day after departure
		{Name: "Adult", DateOfBirth: date(2007, 10, 1)}, // turns 18 on departure
		{Name: "Baby", DateOfBirth: date(2024, 3, 1)},
	}

	if got := c.DaysNumber(); got != 5 {
		t.Errorf("DaysNumber() = %d, want 5", got)
	}
	if got := c.Adults(); got != 2 {
		t.Errorf("Adults() = %d, want 2", got)
	}
	if got := c.Children(); got != 1 {
		t.Errorf("Children() = %d, want 1", got)
	}
	if got := c.Infants(); got != 1 {
		t.Errorf("Infants() = %d, want 1", got)
	}

	dates := c.Dates()
	if len(dates) != 5 || dates[0] != date(2025, 10, 1) || dates[4] != date(2025, 10, 5) {
		t.Errorf("Dates() = %v", dates)
	}
}

func TestContext_WithDefaults(t *testing.T) {
	c := Context{}.WithDefaults()
	if c.Budget != DefaultBudget {
		t.Errorf("Budget = %v, want %v", c.Budget, DefaultBudget)
	}
	if c.Currency != DefaultCurrency {
		t.Errorf("Currency = %q, want %q", c.Currency, DefaultCurrency)
	}

	kept := Context{Budget: 10, Currency: "JPY"}.WithDefaults()
	if kept.Budget != 10 || kept.Currency != "JPY" {
		t.Errorf("WithDefaults overwrote explicit values: %+v", kept)
	}
}
