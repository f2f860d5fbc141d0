package tool

import (
	"context"
	"encoding/json"
	"net/url"
)

// TripAdvisorURL is the TripAdvisor Content API base.
const TripAdvisorURL = "https://api.content.tripadvisor.com/api/v1"

// TripAdvisor categories accepted in Filters["category"].
const (
	CategoryHotels      = "hotels"
	CategoryAttractions = "attractions"
	CategoryRestaurants = "restaurants"
)

// TripAdvisor is a ProviderSearch backed by the TripAdvisor location search.
type TripAdvisor struct {
	http   *HTTPClient
	apiKey string
}

// NewTripAdvisor creates a TripAdvisor client.
func NewTripAdvisor(baseURL, apiKey string, opts ...HTTPOption) *TripAdvisor {
	if baseURL == "" {
		baseURL = TripAdvisorURL
	}
	return &TripAdvisor{http: NewHTTPClient("tripadvisor", baseURL, opts...), apiKey: apiKey}
}

// Search returns the raw location objects for query. Recognised filters are
// category, language and lat_long ("lat,lon").
func (t *TripAdvisor) Search(ctx context.Context, query string, filters Filters) ([]json.RawMessage, error) {
	if t.apiKey == "" {
		return nil, missingKey("tripadvisor")
	}
	q := url.Values{"key": {t.apiKey}, "searchQuery": {query}, "language": {"en"}}
	if v := filters["category"]; v != "" {
		q.Set("category", v)
	}
	if v := filters["language"]; v != "" {
		q.Set("language", v)
	}
	if v := filters["lat_long"]; v != "" {
		q.Set("latLong", v)
	}

	var resp struct {
		Data []json.RawMessage `json:"data"`
	}
	if err := t.http.GetJSON(ctx, "/location/search", q, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}
