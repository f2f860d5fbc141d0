package graph

import (
	"context"
	"testing"
	"time"

	"github.com/dshills/tripgraph/graph/emit"
)

type testState struct {
	Value   string   `json:"value,omitempty"`
	Counter int      `json:"counter,omitempty"`
	Visited []string `json:"visited,omitempty"`
}

func testReducer(prev, delta testState) testState {
	if delta.Value != "" {
		prev.Value = delta.Value
	}
	prev.Counter += delta.Counter
	if len(delta.Visited) > 0 {
		visited := make([]string, 0, len(prev.Visited)+len(delta.Visited))
		visited = append(visited, prev.Visited...)
		prev.Visited = append(visited, delta.Visited...)
	}
	return prev
}

// visit records the node id and routes to next.
func visit(id string, next Next) NodeFunc[testState] {
	return func(ctx context.Context, s testState) NodeResult[testState] {
		return NodeResult[testState]{
			Delta: testState{Counter: 1, Visited: []string{id}},
			Route: next,
		}
	}
}

// blockUntilDone waits for the node context and reports its error.
func blockUntilDone() NodeFunc[testState] {
	return func(ctx context.Context, s testState) NodeResult[testState] {
		<-ctx.Done()
		return NodeResult[testState]{Err: ctx.Err()}
	}
}

// sleepThenVisit sleeps d (or until cancelled) before visiting.
func sleepThenVisit(id string, d time.Duration, next Next) NodeFunc[testState] {
	return func(ctx context.Context, s testState) NodeResult[testState] {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return NodeResult[testState]{Err: ctx.Err()}
		}
		return NodeResult[testState]{
			Delta: testState{Counter: 1, Visited: []string{id}},
			Route: next,
		}
	}
}

func mustAdd(t *testing.T, e *Engine[testState], id string, n Node[testState]) {
	t.Helper()
	if err := e.Add(id, n); err != nil {
		t.Fatalf("Add(%q): %v", id, err)
	}
}

func eventMsgs(events []emit.Event) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Msg)
	}
	return out
}
