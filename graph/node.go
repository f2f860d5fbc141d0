package graph

import "context"

// Node represents a processing unit in the workflow graph.
// It receives state of type S, performs computation, and returns a NodeResult.
//
// A node never mutates the state it is given. It describes its changes as a
// partial state in NodeResult.Delta, which the engine folds in with the
// configured Reducer, and it picks the next hop with NodeResult.Route.
//
// Type parameter S is the state type shared across the workflow.
type Node[S any] interface {
	// Run executes the node's logic with the given context and state.
	Run(ctx context.Context, state S) NodeResult[S]
}

// NodeResult represents the output of a node execution.
type NodeResult[S any] struct {
	// Delta is the partial state update produced by this node.
	// It will be merged with the current state using the configured reducer.
	Delta S

	// Route specifies the next step(s) in workflow execution.
	// A zero Route falls back to the edges registered with Connect.
	Route Next

	// Err contains any error that occurred during node execution.
	// Non-nil errors halt the run; Delta is discarded.
	Err error
}

// Next specifies the next step(s) in workflow execution after a node completes.
//
// It supports four routing modes:
//   - Terminal: Stop execution (Terminal = true)
//   - Single: Go to a specific node (To = "nodeID")
//   - Fan-out: Run several nodes concurrently and join (Many = []string{"a", "b"})
//   - Interrupt: Suspend and hand a checkpoint back to the caller (Interrupt = true)
type Next struct {
	// To specifies the next single node to execute.
	To string `json:"to,omitempty"`

	// Many specifies nodes to execute concurrently (fan-out). Every branch
	// must route to the same join node.
	Many []string `json:"many,omitempty"`

	// Terminal indicates workflow execution should stop.
	Terminal bool `json:"terminal,omitempty"`

	// Interrupt suspends the run after this node. The run continues only
	// when Engine.Resume is called with the returned checkpoint.
	Interrupt bool `json:"interrupt,omitempty"`
}

// IsZero reports whether no routing decision was made.
func (n Next) IsZero() bool {
	return n.To == "" && len(n.Many) == 0 && !n.Terminal && !n.Interrupt
}

// Stop returns a Next that terminates workflow execution.
func Stop() Next {
	return Next{Terminal: true}
}

// Goto returns a Next that routes to the specified node.
func Goto(nodeID string) Next {
	return Next{To: nodeID}
}

// FanOut returns a Next that runs the given nodes concurrently.
// With a single node it is equivalent to Goto. With none it is a zero Next.
func FanOut(nodeIDs ...string) Next {
	switch len(nodeIDs) {
	case 0:
		return Next{}
	case 1:
		return Goto(nodeIDs[0])
	}
	return Next{Many: append([]string(nil), nodeIDs...)}
}

// Interrupt returns a Next that suspends execution after the current node.
func Interrupt() Next {
	return Next{Interrupt: true}
}

// NodeFunc is a function adapter that implements the Node interface.
//
// Example:
//
//	review := graph.NodeFunc[trip.State](func(ctx context.Context, s trip.State) graph.NodeResult[trip.State] {
//	    return graph.NodeResult[trip.State]{Route: graph.Interrupt()}
//	})
type NodeFunc[S any] func(ctx context.Context, state S) NodeResult[S]

// Run implements the Node interface for NodeFunc.
func (f NodeFunc[S]) Run(ctx context.Context, state S) NodeResult[S] {
	return f(ctx, state)
}

// NodeError represents an error that occurred during node execution.
// It provides structured error information for better observability and debugging.
type NodeError struct {
	// Message is the human-readable error description.
	Message string

	// Code is a machine-readable error code for programmatic handling.
	Code string

	// NodeID identifies which node produced this error.
	NodeID string

	// Cause is the underlying error that caused this NodeError.
	Cause error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	if e.NodeID != "" {
		return "node " + e.NodeID + ": " + e.Message
	}
	return e.Message
}

// Unwrap returns the underlying cause error for error wrapping support.
func (e *NodeError) Unwrap() error {
	return e.Cause
}
