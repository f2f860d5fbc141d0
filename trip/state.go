package trip

import (
	"encoding/json"
	"time"
)

// Coordinates is the resolved destination location.
type Coordinates struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	DisplayName string  `json:"display_name,omitempty"`
}

// OutcomeStatus summarises how a research category finished.
type OutcomeStatus string

const (
	OutcomeOK       OutcomeStatus = "ok"
	OutcomeDegraded OutcomeStatus = "degraded"
	OutcomeSkipped  OutcomeStatus = "skipped"
)

// Outcome records the result of one research category in the latest round.
type Outcome struct {
	Status    OutcomeStatus `json:"status"`
	Requested int           `json:"requested"`
	Found     int           `json:"found"`
	Reason    string        `json:"reason,omitempty"`
}

// Message is one entry of the append-only trace log.
type Message struct {
	Node string    `json:"node"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// NewMessage stamps a trace entry with the current UTC time.
func NewMessage(node, text string) Message {
	return Message{Node: node, Text: text, At: time.Now().UTC()}
}

// String renders the entry as "[node] text".
func (m Message) String() string {
	return "[" + m.Node + "] " + m.Text
}

// Selections are the human choices collected at review.
type Selections struct {
	Lodging            *Lodging            `json:"lodging,omitempty"`
	IntercityTransport *IntercityTransport `json:"intercity_transport,omitempty"`
	Activities         []Activity          `json:"activities,omitempty"`
	Food               []Food              `json:"food,omitempty"`
}

// ReviewSection is the list of options offered for one category.
type ReviewSection struct {
	Type    Category        `json:"type"`
	Task    string          `json:"task"`
	Options json.RawMessage `json:"options"`
}

// Review is the interrupt payload presented to the human reviewer.
type Review struct {
	Task            string                 `json:"task"`
	Selections      []ReviewSection        `json:"selections"`
	ResearchPlan    *ResearchPlan          `json:"research_plan,omitempty"`
	Recommendations *RecommendationsOutput `json:"recommendations,omitempty"`
	Degraded        []Category             `json:"degraded,omitempty"`
}

// State is the workflow state threaded through the graph. Nodes never
// assign to it directly; they return partial States that Reduce folds in.
type State struct {
	Context            *Context               `json:"context,omitempty"`
	Budget             *BudgetEstimate        `json:"budget,omitempty"`
	ResearchPlan       *ResearchPlan          `json:"research_plan,omitempty"`
	Destination        *Coordinates           `json:"destination,omitempty"`
	Lodging            []Lodging              `json:"lodging,omitempty"`
	Activities         []Activity             `json:"activities,omitempty"`
	Food               []Food                 `json:"food,omitempty"`
	IntercityTransport []IntercityTransport   `json:"intercity_transport,omitempty"`
	Recommendations    *RecommendationsOutput `json:"recommendations,omitempty"`
	Selections         *Selections            `json:"selections,omitempty"`
	FinalPlan          *FinalPlan             `json:"final_plan,omitempty"`
	Review             *Review                `json:"review,omitempty"`
	Outcomes           map[Category]Outcome   `json:"outcomes,omitempty"`
	Messages           []Message              `json:"messages,omitempty"`
}

// Count returns the number of stored candidates for a category.
func (s State) Count(c Category) int {
	switch c {
	case CategoryLodging:
		return len(s.Lodging)
	case CategoryActivities:
		return len(s.Activities)
	case CategoryFood:
		return len(s.Food)
	case CategoryIntercityTransport:
		return len(s.IntercityTransport)
	case CategoryRecommendations:
		if s.Recommendations != nil {
			return 1
		}
	}
	return 0
}

// Degraded lists degraded categories in listing order.
func (s State) Degraded() []Category {
	var out []Category
	for _, c := range Categories {
		if o, ok := s.Outcomes[c]; ok && o.Status == OutcomeDegraded {
			out = append(out, c)
		}
	}
	return out
}

// Encode serializes the state. Struct fields encode in declaration order and
// map keys sorted, so equal states always encode to equal bytes.
func (s State) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// DecodeState is the inverse of Encode.
func DecodeState(data []byte) (State, error) {
	var s State
	err := json.Unmarshal(data, &s)
	return s, err
}
