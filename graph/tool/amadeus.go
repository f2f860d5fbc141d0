package tool

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// AmadeusTestURL is the Amadeus self-service test environment.
const AmadeusTestURL = "https://test.api.amadeus.com"

// Amadeus is a RouteSearch backed by the Amadeus flight offers API.
// Origin and destination must be IATA location codes.
type Amadeus struct {
	http         *HTTPClient
	clientID     string
	clientSecret string
	now          func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewAmadeus creates a flight search client using OAuth client credentials.
func NewAmadeus(baseURL, clientID, clientSecret string, opts ...HTTPOption) *Amadeus {
	if baseURL == "" {
		baseURL = AmadeusTestURL
	}
	return &Amadeus{
		http:         NewHTTPClient("amadeus", baseURL, opts...),
		clientID:     clientID,
		clientSecret: clientSecret,
		now:          time.Now,
	}
}

// SearchRoutes returns raw flight offers. Filters: adults (default "1"),
// max (default "5"), travel_class, non_stop, currency.
func (a *Amadeus) SearchRoutes(ctx context.Context, origin, destination string, from, to time.Time, filters Filters) ([]json.RawMessage, error) {
	token, err := a.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	q := url.Values{
		"originLocationCode":      {origin},
		"destinationLocationCode": {destination},
		"departureDate":           {from.Format("2006-01-02")},
		"adults":                  {"1"},
		"max":                     {"5"},
	}
	if !to.IsZero() {
		q.Set("returnDate", to.Format("2006-01-02"))
	}
	params := map[string]string{
		"adults":       "adults",
		"max":          "max",
		"travel_class": "travelClass",
		"non_stop":     "nonStop",
		"currency":     "currencyCode",
	}
	for k, name := range params {
		if v := filters[k]; v != "" {
			q.Set(name, v)
		}
	}

	var resp struct {
		Data []json.RawMessage `json:"data"`
	}
	header := http.Header{"Authorization": {"Bearer " + token}}
	if err := a.getWithHeader(ctx, "/v2/shopping/flight-offers", q, header, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (a *Amadeus) getWithHeader(ctx context.Context, path string, q url.Values, header http.Header, out interface{}) error {
	return a.http.do(ctx, http.MethodGet, a.http.baseURL+path+"?"+q.Encode(), nil, "", header, out)
}

// accessToken returns a cached token, refreshing it a minute before expiry.
func (a *Amadeus) accessToken(ctx context.Context) (string, error) {
	if a.clientID == "" || a.clientSecret == "" {
		return "", missingKey("amadeus")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.token != "" && a.now().Before(a.expires) {
		return a.token, nil
	}

	var resp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {a.clientID},
		"client_secret": {a.clientSecret},
	}
	if err := a.http.PostForm(ctx, "/v1/security/oauth2/token", form, &resp); err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", &Error{Tool: "amadeus", Code: CodeDecode, Message: "token response has no access_token"}
	}
	ttl := time.Duration(resp.ExpiresIn)*time.Second - time.Minute
	if ttl <= 0 {
		ttl = time.Duration(resp.ExpiresIn) * time.Second
	}
	a.token = resp.AccessToken
	a.expires = a.now().Add(ttl)
	return a.token, nil
}

