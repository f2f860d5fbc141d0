package tool

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MockSearch is a ProviderSearch for tests. Results keys on
// Filters["category"]; the "" entry is the fallback.
type MockSearch struct {
	Results map[string][]json.RawMessage
	Err     error

	mu    sync.Mutex
	Calls []MockSearchCall
}

// MockSearchCall records one Search call.
type MockSearchCall struct {
	Query   string
	Filters Filters
}

// Search implements ProviderSearch.
func (m *MockSearch) Search(ctx context.Context, query string, filters Filters) ([]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, MockSearchCall{Query: query, Filters: filters})
	if m.Err != nil {
		return nil, m.Err
	}
	if r, ok := m.Results[filters["category"]]; ok {
		return r, nil
	}
	return m.Results[""], nil
}

// CallCount returns the number of Search calls.
func (m *MockSearch) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// MockRoutes is a RouteSearch for tests.
type MockRoutes struct {
	Results []json.RawMessage
	Err     error

	mu    sync.Mutex
	calls int
}

// SearchRoutes implements RouteSearch.
func (m *MockRoutes) SearchRoutes(ctx context.Context, origin, destination string, from, to time.Time, filters Filters) ([]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.Results, m.Err
}

// CallCount returns the number of SearchRoutes calls.
func (m *MockRoutes) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockWeb is a WebSearch for tests.
type MockWeb struct {
	Results []Snippet
	Err     error

	mu      sync.Mutex
	Queries []string
}

// SearchWeb implements WebSearch.
func (m *MockWeb) SearchWeb(ctx context.Context, query string) ([]Snippet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Queries = append(m.Queries, query)
	return m.Results, m.Err
}

// MockGeocoder is a Geocoder for tests. Unknown places return ErrNotFound.
type MockGeocoder struct {
	Places map[string]Location
	Err    error
}

// Geocode implements Geocoder.
func (m *MockGeocoder) Geocode(ctx context.Context, place string) (Location, error) {
	if err := ctx.Err(); err != nil {
		return Location{}, err
	}
	if m.Err != nil {
		return Location{}, m.Err
	}
	if loc, ok := m.Places[place]; ok {
		return loc, nil
	}
	return Location{}, ErrNotFound
}
