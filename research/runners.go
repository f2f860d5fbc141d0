package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dshills/tripgraph/graph/model"
	"github.com/dshills/tripgraph/graph/tool"
	"github.com/dshills/tripgraph/trip"
)

// NewLodgingRunner researches places to stay through the hotels provider
// category.
func NewLodgingRunner(cfg Config) Runner {
	return newCandidateRunner(cfg, spec{
		category: trip.CategoryLodging,
		keys:     []string{"lodging", "hotels", "candidates"},
		role:     "lodging",
		budget:   func(b *trip.BudgetEstimate) float64 { return b.Lodging },
		query:    focusQuery("where to stay in"),
		primary:  providerSearch(tool.CategoryHotels, "hotels"),
		schema:   listSchema("lodging", lodgingItem),
	})
}

// NewActivitiesRunner researches things to do through the attractions
// provider category.
func NewActivitiesRunner(cfg Config) Runner {
	return newCandidateRunner(cfg, spec{
		category: trip.CategoryActivities,
		keys:     []string{"activities", "attractions", "candidates"},
		role:     "activities and attractions",
		budget:   func(b *trip.BudgetEstimate) float64 { return b.Activities },
		query:    focusQuery("things to do in"),
		primary:  providerSearch(tool.CategoryAttractions, "attractions"),
		schema:   listSchema("activities", activityItem),
	})
}

// NewFoodRunner researches places to eat through the restaurants provider
// category.
func NewFoodRunner(cfg Config) Runner {
	return newCandidateRunner(cfg, spec{
		category: trip.CategoryFood,
		keys:     []string{"food", "restaurants", "candidates"},
		role:     "food and restaurants",
		budget:   func(b *trip.BudgetEstimate) float64 { return b.Food },
		query:    focusQuery("where to eat in"),
		primary:  providerSearch(tool.CategoryRestaurants, "restaurants"),
		schema:   listSchema("food", foodItem),
	})
}

// NewTransportRunner researches getting to the destination and back through
// the route search collaborator.
func NewTransportRunner(cfg Config) Runner {
	return newCandidateRunner(cfg, spec{
		category: trip.CategoryIntercityTransport,
		keys:     []string{"intercity_transport", "transport", "candidates"},
		role:     "intercity transport",
		budget:   func(b *trip.BudgetEstimate) float64 { return b.IntercityTransport },
		query: func(in Input) string {
			if in.Context.CurrentLocation == "" {
				return "how to get to " + in.Context.Place()
			}
			return "how to get from " + in.Context.CurrentLocation + " to " + in.Context.Place()
		},
		primary: routeSearch,
		schema:  listSchema("intercity_transport", transportItem),
	})
}

func focusQuery(prefix string) func(in Input) string {
	return func(in Input) string {
		q := prefix + " " + in.Context.Place()
		if in.Plan != nil && in.Plan.Description != "" {
			q += " " + in.Plan.Description
		}
		return q
	}
}

func providerSearch(category, noun string) primarySearch {
	return func(ctx context.Context, tools Tools, in Input) (string, []json.RawMessage, error) {
		if tools.Providers == nil {
			return "", nil, nil
		}
		q := noun + " in " + in.Context.Place()
		if in.Plan != nil && in.Plan.Name != "" {
			q = in.Plan.Name + " " + q
		}
		filters := tool.Filters{"category": category}
		if in.Destination != nil {
			filters["lat_long"] = strconv.FormatFloat(in.Destination.Lat, 'f', 4, 64) + "," +
				strconv.FormatFloat(in.Destination.Lon, 'f', 4, 64)
		}
		results, err := tools.Providers.Search(ctx, q, filters)
		return fmt.Sprintf("%q", q), results, err
	}
}

func routeSearch(ctx context.Context, tools Tools, in Input) (string, []json.RawMessage, error) {
	c := in.Context
	if tools.Routes == nil || strings.TrimSpace(c.CurrentLocation) == "" {
		return "", nil, nil
	}
	filters := tool.Filters{"currency": c.Currency}
	if n := c.Adults(); n > 0 {
		filters["adults"] = strconv.Itoa(n)
	}
	results, err := tools.Routes.SearchRoutes(ctx, c.CurrentLocation, c.Destination, day(c.DateFrom), day(c.DateTo), filters)
	return fmt.Sprintf("routes %s -> %s", c.CurrentLocation, c.Destination), results, err
}

func day(d civil.Date) time.Time {
	return d.In(time.UTC)
}

var baseItem = model.Schema{
	"id":             model.Schema{"type": "string"},
	"name":           model.Schema{"type": "string"},
	"address":        model.Schema{"type": "string"},
	"price_level":    model.Schema{"type": "string", "enum": []string{"$", "$$", "$$$", "$$$$"}},
	"rating":         model.Schema{"type": "number"},
	"reviews":        model.Schema{"type": "array", "items": model.Schema{"type": "string"}},
	"url":            model.Schema{"type": "string"},
	"lat":            model.Schema{"type": "number"},
	"lon":            model.Schema{"type": "number"},
	"evidence_score": model.Schema{"type": "number"},
	"source_id":      model.Schema{"type": "string"},
	"notes":          model.Schema{"type": "string"},
}

var (
	lodgingItem = model.Schema{
		"area":          model.Schema{"type": "string"},
		"price_night":   model.Schema{"type": "number"},
		"cancel_policy": model.Schema{"type": "string"},
	}
	activityItem = model.Schema{
		"open_time":    model.Schema{"type": "string", "description": "HH:MM"},
		"close_time":   model.Schema{"type": "string", "description": "HH:MM"},
		"duration_min": model.Schema{"type": "integer"},
		"price":        model.Schema{"type": "number"},
		"tags":         model.Schema{"type": "array", "items": model.Schema{"type": "string"}},
	}
	foodItem = model.Schema{
		"open_time":  model.Schema{"type": "string", "description": "HH:MM"},
		"close_time": model.Schema{"type": "string", "description": "HH:MM"},
		"tags":       model.Schema{"type": "array", "items": model.Schema{"type": "string"}},
	}
	transportItem = model.Schema{
		"fare_class": model.Schema{"type": "string"},
		"refundable": model.Schema{"type": "boolean"},
		"price":      model.Schema{"type": "number"},
		"transfer": model.Schema{
			"type": "array",
			"items": model.Schema{
				"type": "object",
				"properties": model.Schema{
					"name":           model.Schema{"type": "string"},
					"place":          model.Schema{"type": "string"},
					"departure_time": model.Schema{"type": "string", "description": "HH:MM"},
					"arrival_time":   model.Schema{"type": "string", "description": "HH:MM"},
					"duration_min":   model.Schema{"type": "integer"},
				},
				"required": []string{"name", "place"},
			},
		},
		"total_duration_min": model.Schema{"type": "integer"},
	}
)

// listSchema wraps the item properties, on top of the shared base, in a
// {key: [...]} object.
func listSchema(key string, extra model.Schema) model.Schema {
	props := make(model.Schema, len(baseItem)+len(extra))
	for k, v := range baseItem {
		props[k] = v
	}
	for k, v := range extra {
		props[k] = v
	}
	return model.Schema{
		"type": "object",
		"properties": model.Schema{
			key: model.Schema{
				"type": "array",
				"items": model.Schema{
					"type":       "object",
					"properties": props,
					"required":   []string{"name"},
				},
			},
		},
		"required": []string{key},
	}
}
