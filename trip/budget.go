package trip

import (
	"math"
	"strconv"
)

// PriceLevel is the qualitative price tier shared by budgets and candidates.
type PriceLevel string

const (
	PriceBudget    PriceLevel = "$"
	PriceModerate  PriceLevel = "$$"
	PriceExpensive PriceLevel = "$$$"
	PriceLuxury    PriceLevel = "$$$$"
)

// Valid reports whether p is empty or one of the four tiers.
func (p PriceLevel) Valid() bool {
	switch p {
	case "", PriceBudget, PriceModerate, PriceExpensive, PriceLuxury:
		return true
	}
	return false
}

// totalTolerance absorbs float rounding in producer-computed totals.
const totalTolerance = 0.01

// BudgetEstimate is the per-category spending breakdown for the trip.
type BudgetEstimate struct {
	BudgetLevel        PriceLevel `json:"budget_level,omitempty"`
	Currency           string     `json:"currency"`
	IntercityTransport float64    `json:"intercity_transport"`
	LocalTransport     float64    `json:"local_transport"`
	Food               float64    `json:"food"`
	Activities         float64    `json:"activities"`
	Lodging            float64    `json:"lodging"`
	Other              float64    `json:"other"`
	Total              float64    `json:"total"`
	BudgetPerDay       float64    `json:"budget_per_day"`
	Notes              string     `json:"notes,omitempty"`
}

// Sum adds the six category amounts.
func (b BudgetEstimate) Sum() float64 {
	return b.IntercityTransport + b.LocalTransport + b.Food + b.Activities + b.Lodging + b.Other
}

// Validate checks amounts are non-negative and that Total matches Sum.
// A zero Total is accepted and treated as "not provided"; use Normalize to
// fill it.
func (b BudgetEstimate) Validate() error {
	if !b.BudgetLevel.Valid() {
		return invalid("budget_level", "unknown level %q", b.BudgetLevel)
	}
	if !currencyPattern.MatchString(b.Currency) {
		return invalid("currency", "must be an ISO 4217 code, got %q", b.Currency)
	}
	amounts := []struct {
		field string
		value float64
	}{
		{"intercity_transport", b.IntercityTransport},
		{"local_transport", b.LocalTransport},
		{"food", b.Food},
		{"activities", b.Activities},
		{"lodging", b.Lodging},
		{"other", b.Other},
		{"total", b.Total},
		{"budget_per_day", b.BudgetPerDay},
	}
	for _, a := range amounts {
		if err := nonNegative(a.field, a.value); err != nil {
			return err
		}
	}
	if b.Total != 0 && math.Abs(b.Total-b.Sum()) > totalTolerance {
		return invalid("total", "%s does not equal the sum of categories %s",
			money(b.Total), money(b.Sum()))
	}
	return nil
}

// Normalize fills a missing Total from the category amounts and a missing
// BudgetPerDay from the trip length.
func (b BudgetEstimate) Normalize(days int) BudgetEstimate {
	if b.Total == 0 {
		b.Total = b.Sum()
	}
	if b.BudgetPerDay == 0 && days > 0 {
		b.BudgetPerDay = math.Round(b.Total/float64(days)*100) / 100
	}
	return b
}

func nonNegative(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return invalid(field, "must be a finite number")
	}
	if v < 0 {
		return invalid(field, "must be non-negative, got %s", money(v))
	}
	return nil
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
