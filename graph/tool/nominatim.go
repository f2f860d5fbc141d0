package tool

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// NominatimURL is the public OpenStreetMap geocoding endpoint.
const NominatimURL = "https://nominatim.openstreetmap.org"

// Nominatim is a Geocoder backed by the OpenStreetMap Nominatim API.
type Nominatim struct {
	http *HTTPClient
}

// NewNominatim creates a geocoder. Nominatim's usage policy requires an
// identifying User-Agent.
func NewNominatim(baseURL, userAgent string, opts ...HTTPOption) *Nominatim {
	if baseURL == "" {
		baseURL = NominatimURL
	}
	if userAgent == "" {
		userAgent = "tripgraph/1.0"
	}
	opts = append([]HTTPOption{WithHeader("User-Agent", userAgent)}, opts...)
	return &Nominatim{http: NewHTTPClient("nominatim", baseURL, opts...)}
}

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode returns the best match for place.
func (n *Nominatim) Geocode(ctx context.Context, place string) (Location, error) {
	place = strings.TrimSpace(place)
	if place == "" {
		return Location{}, ErrNotFound
	}
	var places []nominatimPlace
	q := url.Values{"q": {place}, "format": {"json"}, "limit": {"1"}}
	if err := n.http.GetJSON(ctx, "/search", q, &places); err != nil {
		return Location{}, err
	}
	if len(places) == 0 {
		return Location{}, fmt.Errorf("geocode %q: %w", place, ErrNotFound)
	}
	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return Location{}, &Error{Tool: "nominatim", Code: CodeDecode, Message: "lat: " + err.Error(), Cause: err}
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return Location{}, &Error{Tool: "nominatim", Code: CodeDecode, Message: "lon: " + err.Error(), Cause: err}
	}
	return Location{Lat: lat, Lon: lon, DisplayName: places[0].DisplayName}, nil
}
