// Package tool defines the external data collaborators used by the research
// runners: provider search, route search, web and forum search, geocoding
// and the internal knowledge base. It also ships HTTP clients for the
// public services behind them and in-memory mocks for tests.
package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by a Geocoder when the place has no match.
var ErrNotFound = errors.New("not found")

// Filters narrow a provider search, e.g. {"category": "hotels"}.
type Filters map[string]string

// Snippet is one web or forum search hit.
type Snippet struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score,omitempty"`
	Source  string  `json:"source,omitempty"`
}

// Location is a geocoding result.
type Location struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	DisplayName string  `json:"display_name,omitempty"`
}

// Document is a knowledge-base entry. Score is set on search results.
type Document struct {
	ID      string  `json:"id"`
	Title   string  `json:"title,omitempty"`
	Content string  `json:"content"`
	Source  string  `json:"source,omitempty"`
	Score   float64 `json:"score,omitempty"`
}

// ProviderSearch finds lodging, activity or food candidates. Results are
// provider-shaped JSON objects; the runners normalise them.
type ProviderSearch interface {
	Search(ctx context.Context, query string, filters Filters) ([]json.RawMessage, error)
}

// RouteSearch finds intercity transport options between two places.
type RouteSearch interface {
	SearchRoutes(ctx context.Context, origin, destination string, from, to time.Time, filters Filters) ([]json.RawMessage, error)
}

// WebSearch is a general web or community-forum search.
type WebSearch interface {
	SearchWeb(ctx context.Context, query string) ([]Snippet, error)
}

// Geocoder resolves a place name to coordinates, or ErrNotFound.
type Geocoder interface {
	Geocode(ctx context.Context, place string) (Location, error)
}

// KnowledgeBase is the internal retrieval backend.
type KnowledgeBase interface {
	SearchDB(ctx context.Context, query string, topK int) ([]Document, error)
}

// Error codes reported by the HTTP clients.
const (
	CodeUnauthorized = "unauthorized"
	CodeRateLimited  = "rate_limited"
	CodeNotFound     = "not_found"
	CodeBadRequest   = "bad_request"
	CodeUpstream     = "upstream_error"
	CodeNetwork      = "network_error"
	CodeDecode       = "decode_error"
	CodeMissingKey   = "missing_api_key"
)

// Error is a classified collaborator failure.
type Error struct {
	Tool      string
	Code      string
	Message   string
	Retryable bool
	Fatal     bool
	Cause     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Tool, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is makes not_found errors match ErrNotFound.
func (e *Error) Is(target error) bool {
	return target == ErrNotFound && e.Code == CodeNotFound
}
