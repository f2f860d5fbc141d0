package research

import (
	"fmt"

	"github.com/dshills/tripgraph/trip"
)

// trace collects the human-readable log lines of one runner invocation.
type trace struct {
	node string
	msgs []trip.Message
}

func newTrace(c trip.Category) *trace {
	return &trace{node: string(c)}
}

func (t *trace) add(format string, args ...interface{}) {
	t.msgs = append(t.msgs, trip.NewMessage(t.node, fmt.Sprintf(format, args...)))
}

func (t *trace) addAll(lines []string) {
	for _, l := range lines {
		t.add("%s", l)
	}
}

func skipped(c trip.Category) trip.State {
	t := newTrace(c)
	t.add("skipped: no candidates requested")
	return trip.State{
		Outcomes: map[trip.Category]trip.Outcome{c: {Status: trip.OutcomeSkipped}},
		Messages: t.msgs,
	}
}
