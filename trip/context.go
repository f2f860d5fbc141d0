package trip

import (
	"regexp"
	"strings"

	"cloud.google.com/go/civil"
)

// GroupType classifies who is travelling together.
type GroupType string

const (
	GroupFamily   GroupType = "family"
	GroupCouple   GroupType = "couple"
	GroupAlone    GroupType = "alone"
	GroupFriends  GroupType = "friends"
	GroupBusiness GroupType = "business"
)

// Valid reports whether g is one of the declared group types.
func (g GroupType) Valid() bool {
	switch g {
	case GroupFamily, GroupCouple, GroupAlone, GroupFriends, GroupBusiness:
		return true
	}
	return false
}

// AgeGroup buckets a traveller by age at departure.
type AgeGroup string

const (
	AgeInfant AgeGroup = "infant"
	AgeChild  AgeGroup = "child"
	AgeAdult  AgeGroup = "adult"
)

const (
	// DefaultBudget applies when the request carries no budget.
	DefaultBudget = 1000.0

	// DefaultCurrency applies when the request carries no currency.
	DefaultCurrency = "USD"
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// Traveller is one member of the travelling party.
type Traveller struct {
	Name            string     `json:"name"`
	DateOfBirth     civil.Date `json:"date_of_birth"`
	SpokenLanguages []string   `json:"spoken_languages,omitempty"`
	Interests       []string   `json:"interests,omitempty"`
	Nationality     string     `json:"nationality,omitempty"`
	Notes           string     `json:"notes,omitempty"`
}

// AgeOn returns the traveller's age in whole years on the given day.
func (t Traveller) AgeOn(day civil.Date) int {
	age := day.Year - t.DateOfBirth.Year
	if day.Month < t.DateOfBirth.Month ||
		(day.Month == t.DateOfBirth.Month && day.Day < t.DateOfBirth.Day) {
		age--
	}
	return age
}

// AgeGroupOn classifies the traveller on the given day: under 2 is an
// infant, under 18 a child, otherwise an adult.
func (t Traveller) AgeGroupOn(day civil.Date) AgeGroup {
	switch age := t.AgeOn(day); {
	case age < 2:
		return AgeInfant
	case age < 18:
		return AgeChild
	default:
		return AgeAdult
	}
}

// Context is the immutable trip request. It is built once per session and
// never mutated afterwards; nodes only read it.
type Context struct {
	Travellers         []Traveller   `json:"travellers"`
	Budget             float64       `json:"budget"`
	Currency           string        `json:"currency"`
	Destination        string        `json:"destination"`
	DestinationCountry string        `json:"destination_country"`
	DateFrom           civil.Date    `json:"date_from"`
	DateTo             civil.Date    `json:"date_to"`
	GroupType          GroupType     `json:"group_type"`
	TripPurpose        string        `json:"trip_purpose,omitempty"`
	CurrentLocation    string        `json:"current_location,omitempty"`
	Notes              string        `json:"notes,omitempty"`
	ResearchPlan       *ResearchPlan `json:"research_plan,omitempty"`
}

// WithDefaults fills the budget and currency when the request left them out.
func (c Context) WithDefaults() Context {
	if c.Budget == 0 {
		c.Budget = DefaultBudget
	}
	if c.Currency == "" {
		c.Currency = DefaultCurrency
	}
	return c
}

// Validate checks the request shape. Dates are compared as calendar days.
func (c Context) Validate() error {
	if strings.TrimSpace(c.Destination) == "" {
		return invalid("destination", "is required")
	}
	if strings.TrimSpace(c.DestinationCountry) == "" {
		return invalid("destination_country", "is required")
	}
	if !c.DateFrom.IsValid() {
		return invalid("date_from", "is not a valid date")
	}
	if !c.DateTo.IsValid() {
		return invalid("date_to", "is not a valid date")
	}
	if c.DateTo.Before(c.DateFrom) {
		return invalid("date_from", "must be before or equal to date_to")
	}
	if c.Budget < 0 {
		return invalid("budget", "must be non-negative")
	}
	if !currencyPattern.MatchString(c.Currency) {
		return invalid("currency", "must be an ISO 4217 code, got %q", c.Currency)
	}
	if !c.GroupType.Valid() {
		return invalid("group_type", "unknown group type %q", c.GroupType)
	}
	if len(c.Travellers) == 0 {
		return invalid("travellers", "at least one traveller is required")
	}
	for i, t := range c.Travellers {
		if strings.TrimSpace(t.Name) == "" {
			return invalid(indexed("travellers", i)+".name", "is required")
		}
		if !t.DateOfBirth.IsValid() {
			return invalid(indexed("travellers", i)+".date_of_birth", "is not a valid date")
		}
	}
	if c.ResearchPlan != nil {
		if err := c.ResearchPlan.Validate(); err != nil {
			return prefixed("research_plan", err)
		}
	}
	return nil
}

// DaysNumber is the length of the inclusive date range.
func (c Context) DaysNumber() int {
	return c.DateTo.DaysSince(c.DateFrom) + 1
}

// Dates lists every calendar day of the trip in order.
func (c Context) Dates() []civil.Date {
	n := c.DaysNumber()
	if n <= 0 {
		return nil
	}
	dates := make([]civil.Date, n)
	for i := range dates {
		dates[i] = c.DateFrom.AddDays(i)
	}
	return dates
}

// Adults counts travellers who are adults on the departure day.
func (c Context) Adults() int { return c.count(AgeAdult) }

// Children counts travellers aged 2 to 17 on the departure day.
func (c Context) Children() int { return c.count(AgeChild) }

// Infants counts travellers under 2 on the departure day.
func (c Context) Infants() int { return c.count(AgeInfant) }

func (c Context) count(group AgeGroup) int {
	n := 0
	for _, t := range c.Travellers {
		if t.AgeGroupOn(c.DateFrom) == group {
			n++
		}
	}
	return n
}

// Place is the geocoding query for the destination.
func (c Context) Place() string {
	return c.Destination + ", " + c.DestinationCountry
}
