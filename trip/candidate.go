package trip

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

const (
	maxActivityMinutes = 12 * 60
	maxTransferMinutes = 7 * 24 * 60
	maxHopMinutes      = 24 * 60
)

var clockPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// Candidate is the shared behaviour of every researched option.
type Candidate interface {
	// Base returns the shared fields.
	Base() CandidateBase

	// Validate checks the variant's constraints including the base ones.
	Validate() error
}

// CandidateBase carries the fields common to all candidate variants.
type CandidateBase struct {
	ID            string     `json:"id,omitempty"`
	Name          string     `json:"name"`
	Address       string     `json:"address,omitempty"`
	PriceLevel    PriceLevel `json:"price_level,omitempty"`
	Rating        *float64   `json:"rating,omitempty"`
	Reviews       []string   `json:"reviews,omitempty"`
	Photos        []string   `json:"photos,omitempty"`
	URL           string     `json:"url,omitempty"`
	Lat           *float64   `json:"lat,omitempty"`
	Lon           *float64   `json:"lon,omitempty"`
	EvidenceScore float64    `json:"evidence_score"`
	SourceID      string     `json:"source_id,omitempty"`
	Notes         string     `json:"notes,omitempty"`
}

// Base implements Candidate.
func (b CandidateBase) Base() CandidateBase { return b }

// SameEntity applies the identity rule. When both sides carry an id the ids
// decide. Otherwise two candidates are the same when their trimmed,
// case-folded names match. Candidates with neither are always distinct.
func (b CandidateBase) SameEntity(other CandidateBase) bool {
	if b.ID != "" && other.ID != "" {
		return b.ID == other.ID
	}
	name, otherName := foldName(b.Name), foldName(other.Name)
	return name != "" && name == otherName
}

func foldName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Validate checks the base constraints.
func (b CandidateBase) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return invalid("name", "is required")
	}
	if !b.PriceLevel.Valid() {
		return invalid("price_level", "unknown level %q", b.PriceLevel)
	}
	if b.Rating != nil && (*b.Rating < 0 || *b.Rating > 5) {
		return invalid("rating", "must be between 0 and 5, got %v", *b.Rating)
	}
	if b.Lat != nil && (*b.Lat < -90 || *b.Lat > 90) {
		return invalid("lat", "must be between -90 and 90, got %v", *b.Lat)
	}
	if b.Lon != nil && (*b.Lon < -180 || *b.Lon > 180) {
		return invalid("lon", "must be between -180 and 180, got %v", *b.Lon)
	}
	if b.EvidenceScore < 0 || b.EvidenceScore > 1 {
		return invalid("evidence_score", "must be between 0 and 1, got %v", b.EvidenceScore)
	}
	if b.URL != "" && !httpURL(b.URL) {
		return invalid("url", "must be an http(s) URL")
	}
	for i, p := range b.Photos {
		if !httpURL(p) {
			return invalid(indexed("photos", i), "must be an http(s) URL")
		}
	}
	return nil
}

// Lodging is a place to stay.
type Lodging struct {
	CandidateBase
	Area         string   `json:"area,omitempty"`
	PriceNight   *float64 `json:"price_night,omitempty"`
	CancelPolicy string   `json:"cancel_policy,omitempty"`
}

// Validate implements Candidate.
func (l Lodging) Validate() error {
	if err := l.CandidateBase.Validate(); err != nil {
		return err
	}
	return optionalMoney("price_night", l.PriceNight)
}

// Activity is something to do at the destination.
type Activity struct {
	CandidateBase
	OpenTime    string   `json:"open_time,omitempty"`
	CloseTime   string   `json:"close_time,omitempty"`
	DurationMin *int     `json:"duration_min,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Validate implements Candidate.
func (a Activity) Validate() error {
	if err := a.CandidateBase.Validate(); err != nil {
		return err
	}
	if err := clock("open_time", a.OpenTime); err != nil {
		return err
	}
	if err := clock("close_time", a.CloseTime); err != nil {
		return err
	}
	if err := minutes("duration_min", a.DurationMin, maxActivityMinutes); err != nil {
		return err
	}
	return optionalMoney("price", a.Price)
}

// Food is a place to eat or drink.
type Food struct {
	CandidateBase
	OpenTime  string   `json:"open_time,omitempty"`
	CloseTime string   `json:"close_time,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

// Validate implements Candidate.
func (f Food) Validate() error {
	if err := f.CandidateBase.Validate(); err != nil {
		return err
	}
	if err := clock("open_time", f.OpenTime); err != nil {
		return err
	}
	return clock("close_time", f.CloseTime)
}

// Transfer is one leg of an intercity journey.
type Transfer struct {
	Name          string `json:"name"`
	Place         string `json:"place"`
	DepartureTime string `json:"departure_time,omitempty"`
	ArrivalTime   string `json:"arrival_time,omitempty"`
	DurationMin   *int   `json:"duration_min,omitempty"`
}

// Validate checks the leg constraints.
func (t Transfer) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return invalid("name", "is required")
	}
	if strings.TrimSpace(t.Place) == "" {
		return invalid("place", "is required")
	}
	if err := clock("departure_time", t.DepartureTime); err != nil {
		return err
	}
	if err := clock("arrival_time", t.ArrivalTime); err != nil {
		return err
	}
	return minutes("duration_min", t.DurationMin, maxTransferMinutes)
}

// IntercityTransport is a way to get to the destination and back.
type IntercityTransport struct {
	CandidateBase
	FareClass        string     `json:"fare_class,omitempty"`
	Refundable       *bool      `json:"refundable,omitempty"`
	Price            *float64   `json:"price,omitempty"`
	Transfer         []Transfer `json:"transfer,omitempty"`
	TotalDurationMin *int       `json:"total_duration_min,omitempty"`
}

// Validate implements Candidate.
func (t IntercityTransport) Validate() error {
	if err := t.CandidateBase.Validate(); err != nil {
		return err
	}
	if err := optionalMoney("price", t.Price); err != nil {
		return err
	}
	for i, leg := range t.Transfer {
		if err := leg.Validate(); err != nil {
			return prefixed(indexed("transfer", i), err)
		}
	}
	return minutes("total_duration_min", t.TotalDurationMin, maxTransferMinutes)
}

// HopMode is how a traveller moves within the destination.
type HopMode string

const (
	HopWalk      HopMode = "walk"
	HopBus       HopMode = "bus"
	HopSubway    HopMode = "subway"
	HopTaxi      HopMode = "taxi"
	HopBike      HopMode = "bike"
	HopRideshare HopMode = "rideshare"
	HopTram      HopMode = "tram"
	HopFerry     HopMode = "ferry"
)

func (m HopMode) valid() bool {
	switch m {
	case HopWalk, HopBus, HopSubway, HopTaxi, HopBike, HopRideshare, HopTram, HopFerry:
		return true
	}
	return false
}

// IntracityHop links two places on the same day.
type IntracityHop struct {
	Mode        HopMode `json:"mode"`
	FromPlace   string  `json:"from_place,omitempty"`
	ToPlace     string  `json:"to_place,omitempty"`
	DurationMin *int    `json:"duration_min,omitempty"`
}

// Validate checks the mode and duration.
func (h IntracityHop) Validate() error {
	if !h.Mode.valid() {
		return invalid("mode", "unknown mode %q", h.Mode)
	}
	return minutes("duration_min", h.DurationMin, maxHopMinutes)
}

// ValidateCandidate decodes raw producer output into the variant for
// category and validates it. Unknown JSON fields are ignored; type
// mismatches and constraint violations are reported as *ValidationError.
func ValidateCandidate(category Category, raw json.RawMessage) (Candidate, error) {
	var (
		c   Candidate
		err error
	)
	switch category {
	case CategoryLodging:
		var v Lodging
		err = decodeInto(raw, &v)
		c = v
	case CategoryActivities:
		var v Activity
		err = decodeInto(raw, &v)
		c = v
	case CategoryFood:
		var v Food
		err = decodeInto(raw, &v)
		c = v
	case CategoryIntercityTransport:
		var v IntercityTransport
		err = decodeInto(raw, &v)
		c = v
	default:
		return nil, invalid("", "category %q has no candidate schema", category)
	}
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func decodeInto(raw json.RawMessage, out interface{}) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return invalid("", "expected a JSON object")
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return invalid(typeErr.Field, "expected %s, got %s", typeErr.Type, typeErr.Value)
		}
		return invalid("", "malformed JSON: %v", err)
	}
	return nil
}

func optionalMoney(field string, v *float64) error {
	if v == nil {
		return nil
	}
	return nonNegative(field, *v)
}

func clock(field, v string) error {
	if v == "" || clockPattern.MatchString(v) {
		return nil
	}
	return invalid(field, "must be HH:MM, got %q", v)
}

func minutes(field string, v *int, max int) error {
	if v == nil {
		return nil
	}
	if *v < 0 || *v > max {
		return invalid(field, "must be between 0 and %d, got %d", max, *v)
	}
	return nil
}

func httpURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func indexed(field string, i int) string {
	return field + "[" + strconv.Itoa(i) + "]"
}

// describe renders a candidate for trace messages.
func describe(c CandidateBase) string {
	if c.ID != "" {
		return fmt.Sprintf("%s (%s)", c.Name, c.ID)
	}
	return c.Name
}
