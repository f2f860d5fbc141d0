package workflow

import "github.com/dshills/tripgraph/graph/model"

const budgetSystem = "You are a travel budget analyst. Split the trip budget into intercity " +
	"transport, local transport, food, activities, lodging and other. Amounts are in the trip " +
	"currency, non-negative, and total must equal their sum. budget_level is one of $, $$, $$$, $$$$."

const planSystem = "You are a travel research planner. For each category give a short focus " +
	"name, a one-sentence description of what to look for given the travellers, and the number " +
	"of candidates to research (0 to skip, at most 10)."

const plannerSystem = "You are a travel itinerary planner. Build one entry per trip day using " +
	"only the selected lodging and transport and the offered activities and food. Keep each " +
	"day realistic for the travelling party, include intracity moves between places, and keep " +
	"the total within the budget. Times are HH:MM."

var (
	number = model.Schema{"type": "number"}
	text   = model.Schema{"type": "string"}

	budgetSchema = model.Schema{
		"type": "object",
		"properties": model.Schema{
			"budget_level":        model.Schema{"type": "string", "enum": []string{"$", "$$", "$$$", "$$$$"}},
			"currency":            text,
			"intercity_transport": number,
			"local_transport":     number,
			"food":                number,
			"activities":          number,
			"lodging":             number,
			"other":               number,
			"total":               number,
			"budget_per_day":      number,
			"notes":               text,
		},
		"required": []string{"intercity_transport", "local_transport", "food", "activities", "lodging", "other", "total"},
	}

	subPlan = model.Schema{
		"type": "object",
		"properties": model.Schema{
			"name":              text,
			"description":       text,
			"candidates_number": model.Schema{"type": "integer"},
		},
		"required": []string{"candidates_number"},
	}

	planSchema = model.Schema{
		"type": "object",
		"properties": model.Schema{
			"lodging_candidates":             subPlan,
			"activities_candidates":          subPlan,
			"food_candidates":                subPlan,
			"intercity_transport_candidates": subPlan,
		},
	}

	namedPlace = model.Schema{
		"type": "object",
		"properties": model.Schema{
			"id":         text,
			"name":       text,
			"address":    text,
			"open_time":  text,
			"close_time": text,
			"price":      number,
			"notes":      text,
		},
		"required": []string{"name"},
	}

	plannerSchema = model.Schema{
		"type": "object",
		"properties": model.Schema{
			"days": model.Schema{
				"type": "array",
				"items": model.Schema{
					"type": "object",
					"properties": model.Schema{
						"day_number": model.Schema{"type": "integer"},
						"day_date":   model.Schema{"type": "string", "description": "YYYY-MM-DD"},
						"activities": model.Schema{"type": "array", "items": namedPlace},
						"food":       model.Schema{"type": "array", "items": namedPlace},
						"intracity_moves": model.Schema{
							"type": "array",
							"items": model.Schema{
								"type": "object",
								"properties": model.Schema{
									"mode": model.Schema{
										"type": "string",
										"enum": []string{"walk", "bus", "subway", "taxi", "bike", "rideshare", "tram", "ferry"},
									},
									"from_place":   text,
									"to_place":     text,
									"duration_min": model.Schema{"type": "integer"},
								},
								"required": []string{"mode"},
							},
						},
						"day_budget": number,
						"start_time": text,
						"end_time":   text,
						"notes":      text,
					},
					"required": []string{"day_number", "day_date", "activities", "food", "day_budget"},
				},
			},
			"total_budget": number,
			"currency":     text,
		},
		"required": []string{"days", "total_budget", "currency"},
	}
)
