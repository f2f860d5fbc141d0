package trip

// SafetyLevel is an ordered safety tier.
type SafetyLevel string

const (
	SafetyVerySafe  SafetyLevel = "very_safe"
	SafetySafe      SafetyLevel = "safe"
	SafetyModerate  SafetyLevel = "moderate"
	SafetyRisky     SafetyLevel = "risky"
	SafetyDangerous SafetyLevel = "dangerous"
)

var safetyRank = map[SafetyLevel]int{
	SafetyVerySafe:  1,
	SafetySafe:      2,
	SafetyModerate:  3,
	SafetyRisky:     4,
	SafetyDangerous: 5,
}

// Rank orders levels from 1 (very safe) to 5 (dangerous). Unknown or empty
// levels rank 0.
func (s SafetyLevel) Rank() int { return safetyRank[s] }

// Less reports whether s is strictly safer than other.
func (s SafetyLevel) Less(other SafetyLevel) bool { return s.Rank() < other.Rank() }

// RecommendationsOutput is the advisory output of the recommendations runner.
type RecommendationsOutput struct {
	SafetyLevel                SafetyLevel       `json:"safety_level,omitempty"`
	SafetyNotes                []string          `json:"safety_notes,omitempty"`
	TravelAdvisories           []string          `json:"travel_advisories,omitempty"`
	VisaRequirements           map[string]string `json:"visa_requirements,omitempty"`
	CulturalConsiderations     []string          `json:"cultural_considerations,omitempty"`
	DressCodeRecommendations   []string          `json:"dress_code_recommendations,omitempty"`
	LocalCustoms               []string          `json:"local_customs,omitempty"`
	LanguageBarriers           []string          `json:"language_barriers,omitempty"`
	ChildFriendlyRating        *int              `json:"child_friendly_rating,omitempty"`
	InfantConsiderations       []string          `json:"infant_considerations,omitempty"`
	ElderlyAccessibility       []string          `json:"elderly_accessibility,omitempty"`
	WeatherConditions          string            `json:"weather_conditions,omitempty"`
	SeasonalConsiderations     []string          `json:"seasonal_considerations,omitempty"`
	BestTimeToVisit            string            `json:"best_time_to_visit,omitempty"`
	CurrencyInfo               string            `json:"currency_info,omitempty"`
	PaymentMethods             []string          `json:"payment_methods,omitempty"`
	ReligiousRestrictions      []string          `json:"religious_restrictions,omitempty"`
	DietaryRestrictionsSupport map[string]bool   `json:"dietary_restrictions_support,omitempty"`
}

// Validate checks the enum and the child-friendliness score.
func (r RecommendationsOutput) Validate() error {
	if r.SafetyLevel != "" && r.SafetyLevel.Rank() == 0 {
		return invalid("safety_level", "unknown level %q", r.SafetyLevel)
	}
	if r.ChildFriendlyRating != nil && (*r.ChildFriendlyRating < 1 || *r.ChildFriendlyRating > 5) {
		return invalid("child_friendly_rating", "must be between 1 and 5, got %d", *r.ChildFriendlyRating)
	}
	return nil
}
