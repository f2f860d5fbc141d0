package research

import (
	"context"
	"strings"

	"github.com/dshills/tripgraph/graph/model"
	"github.com/dshills/tripgraph/trip"
)

// recommendationsRunner produces the advisory output. It has no research
// plan slice and always runs.
type recommendationsRunner struct {
	cfg Config
}

// NewRecommendationsRunner returns the advisory runner: safety, visas,
// customs, weather and practicalities for the travelling party.
func NewRecommendationsRunner(cfg Config) Runner {
	return &recommendationsRunner{cfg: cfg.withDefaults()}
}

func (r *recommendationsRunner) Category() trip.Category { return trip.CategoryRecommendations }

// Run implements Runner.
func (r *recommendationsRunner) Run(ctx context.Context, in Input) (trip.State, error) {
	c := trip.CategoryRecommendations
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	tr := newTrace(c)
	query := "travel safety, visa requirements and local customs in " + in.Context.Place()
	ev, notes, err := gather(ctx, r.cfg, in, query, nil)
	tr.addAll(notes)
	if err != nil {
		return trip.State{Messages: tr.msgs}, err
	}

	req := model.Request{
		Name:   string(c),
		System: recommendationsSystem,
		Prompt: r.prompt(in, ev),
		Schema: recommendationsSchema,
	}
	rec, reason, err := synthesize(ctx, r.cfg.Model, req, tr, func(text string) (*trip.RecommendationsOutput, error) {
		var out trip.RecommendationsOutput
		if err := model.Decode(text, &out); err != nil {
			return nil, err
		}
		if err := out.Validate(); err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		return trip.State{Messages: tr.msgs}, err
	}

	out := trip.State{}
	outcome := trip.Outcome{Status: trip.OutcomeOK, Requested: 1}
	if reason != "" {
		outcome.Status = trip.OutcomeDegraded
		outcome.Reason = reason
		tr.add("degraded: %s", reason)
	} else {
		out.Recommendations = rec
		outcome.Found = 1
		level := string(rec.SafetyLevel)
		if level == "" {
			level = "unrated"
		}
		tr.add("recommendations ready (safety: %s)", level)
	}
	out.Outcomes = map[trip.Category]trip.Outcome{c: outcome}
	out.Messages = tr.msgs
	return out, nil
}

const recommendationsSystem = "You are a travel advisor. Give practical, current advice for the " +
	"travelling party: safety, advisories, visa requirements per traveller nationality, cultural " +
	"considerations, dress code, customs, language barriers, family suitability, weather, " +
	"seasonality, money and payments, religious and dietary considerations. Prefer the facts in " +
	"the provided evidence and leave a field out rather than guess."

func (r *recommendationsRunner) prompt(in Input, ev evidence) string {
	var sb strings.Builder
	sb.WriteString("[TRIP CONTEXT]\n")
	writeJSON(&sb, tripSummary(in))

	var nationalities []string
	seen := map[string]bool{}
	for _, t := range in.Context.Travellers {
		if t.Nationality != "" && !seen[t.Nationality] {
			seen[t.Nationality] = true
			nationalities = append(nationalities, t.Nationality)
		}
	}
	if len(nationalities) > 0 {
		sb.WriteString("\nTraveller nationalities: " + strings.Join(nationalities, ", ") + "\n")
	}
	sb.WriteString("\nsafety_level is one of very_safe, safe, moderate, risky, dangerous. " +
		"child_friendly_rating is 1 to 5.\n")
	if !ev.empty() {
		sb.WriteString("\n[EVIDENCE]\n")
		writeJSON(&sb, ev)
	}
	return sb.String()
}

var (
	stringList = model.Schema{"type": "array", "items": model.Schema{"type": "string"}}

	recommendationsSchema = model.Schema{
		"type": "object",
		"properties": model.Schema{
			"safety_level": model.Schema{
				"type": "string",
				"enum": []string{"very_safe", "safe", "moderate", "risky", "dangerous"},
			},
			"safety_notes":                 stringList,
			"travel_advisories":            stringList,
			"visa_requirements":            model.Schema{"type": "object", "description": "nationality to requirement"},
			"cultural_considerations":      stringList,
			"dress_code_recommendations":   stringList,
			"local_customs":                stringList,
			"language_barriers":            stringList,
			"child_friendly_rating":        model.Schema{"type": "integer"},
			"infant_considerations":        stringList,
			"elderly_accessibility":        stringList,
			"weather_conditions":           model.Schema{"type": "string"},
			"seasonal_considerations":      stringList,
			"best_time_to_visit":           model.Schema{"type": "string"},
			"currency_info":                model.Schema{"type": "string"},
			"payment_methods":              stringList,
			"religious_restrictions":       stringList,
			"dietary_restrictions_support": model.Schema{"type": "object", "description": "diet to supported flag"},
		},
	}
)
