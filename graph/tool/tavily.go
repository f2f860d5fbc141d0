package tool

import (
	"context"
	"net/http"
	"regexp"
	"strings"
)

// TavilyURL is the Tavily search API endpoint.
const TavilyURL = "https://api.tavily.com"

// Tavily is a WebSearch backed by the Tavily search API. Restricting
// Domains turns it into a community-forum search.
type Tavily struct {
	http       *HTTPClient
	apiKey     string
	maxResults int
	domains    []string
	source     string
}

// TavilyOption configures a Tavily client.
type TavilyOption func(*Tavily)

// WithDomains restricts results to the given sites.
func WithDomains(domains ...string) TavilyOption {
	return func(t *Tavily) { t.domains = domains }
}

// WithMaxResults caps the number of hits per query. Default 5.
func WithMaxResults(n int) TavilyOption {
	return func(t *Tavily) { t.maxResults = n }
}

// WithSource labels returned snippets, e.g. "forum".
func WithSource(source string) TavilyOption {
	return func(t *Tavily) { t.source = source }
}

// NewTavily creates a Tavily search client.
func NewTavily(baseURL, apiKey string, httpOpts []HTTPOption, opts ...TavilyOption) *Tavily {
	if baseURL == "" {
		baseURL = TavilyURL
	}
	t := &Tavily{
		http:       NewHTTPClient("tavily", baseURL, httpOpts...),
		apiKey:     apiKey,
		maxResults: 5,
		source:     "web",
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ForumDomains are the travel communities searched for first-hand reports.
var ForumDomains = []string{"reddit.com", "tripadvisor.com", "lonelyplanet.com"}

type tavilyRequest struct {
	Query          string   `json:"query"`
	SearchDepth    string   `json:"search_depth"`
	MaxResults     int      `json:"max_results"`
	IncludeDomains []string `json:"include_domains,omitempty"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// SearchWeb implements WebSearch. Snippet content is cleaned of links and
// runs of whitespace; hits with almost no text are dropped.
func (t *Tavily) SearchWeb(ctx context.Context, query string) ([]Snippet, error) {
	if t.apiKey == "" {
		return nil, missingKey("tavily")
	}
	var resp tavilyResponse
	req := tavilyRequest{
		Query:          query,
		SearchDepth:    "basic",
		MaxResults:     t.maxResults,
		IncludeDomains: t.domains,
	}
	header := http.Header{"Authorization": {"Bearer " + t.apiKey}}
	if err := t.http.PostJSON(ctx, "/search", req, &resp, header); err != nil {
		return nil, err
	}

	out := make([]Snippet, 0, len(resp.Results))
	for _, r := range resp.Results {
		content := cleanText(r.Content)
		if len(content) < 50 {
			continue
		}
		out = append(out, Snippet{
			Title:   r.Title,
			URL:     r.URL,
			Content: content,
			Score:   r.Score,
			Source:  t.source,
		})
	}
	return out, nil
}

var (
	linkPattern   = regexp.MustCompile(`(https?://|www\.)\S+`)
	blankLines    = regexp.MustCompile(`\n{2,}`)
	spacesPattern = regexp.MustCompile(`[ \t\x{00a0}]{2,}`)
)

func cleanText(s string) string {
	s = linkPattern.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "\r", "")
	s = blankLines.ReplaceAllString(s, "\n\n")
	s = spacesPattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
