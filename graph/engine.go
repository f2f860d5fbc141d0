// Package graph provides the core graph execution engine for tripgraph.
package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/tripgraph/graph/emit"
)

// Reducer merges a node's partial update into the accumulated state.
//
// Fan-out branch deltas are applied one after another in the order the
// branches were declared, so a reducer that is commutative for disjoint
// fields yields the same state whatever order the branches finished in.
type Reducer[S any] func(prev, delta S) S

// Engine orchestrates stateful workflow execution.
//
// The Engine is the core runtime that:
//   - Manages workflow graph topology (nodes and edges)
//   - Executes nodes in sequence, or concurrently for fan-outs
//   - Merges state updates via the reducer
//   - Suspends at interrupts and hands back a serializable Checkpoint
//   - Resumes from a Checkpoint, possibly in another process
//   - Emits observability events via the emitter
//   - Enforces execution limits (MaxSteps, timeouts, retries)
//
// An Engine holds no per-run state and is safe for concurrent Run and Resume
// calls once the graph has been built.
//
// Example:
//
//	engine := graph.New(trip.Reduce, emit.NewLogEmitter(os.Stdout, false), graph.WithMaxSteps(100))
//	engine.Add("review", reviewNode)
//	engine.Add("planner", plannerNode)
//	engine.StartAt("review")
//
//	res, err := engine.Run(ctx, "trip_123", initial)
//	// res.Status == graph.StatusInterrupted, res.Checkpoint.Position == "review"
//
//	res, err = engine.Resume(ctx, res.Checkpoint, graph.Goto("planner"), selections)
type Engine[S any] struct {
	mu sync.RWMutex

	// reducer merges partial state updates deterministically
	reducer Reducer[S]

	// nodes maps node IDs to Node implementations
	nodes map[string]Node[S]

	// edges defines conditional transitions between nodes
	edges []Edge[S]

	// startNode is the entry point for workflow execution
	startNode string

	// emitter receives observability events
	emitter emit.Emitter

	// opts contains execution configuration
	opts Options

	// policies holds per-node timeout and retry settings
	policies map[string]NodePolicy

	// configErr is the first error returned by an Option
	configErr error
}

// Result is the outcome of a Run or Resume call that did not fail.
type Result[S any] struct {
	// State is the accumulated state at the stop.
	State S

	// Status tells whether the run completed or is waiting at an interrupt.
	Status RunStatus

	// Checkpoint captures State and the stop position. Pass it to Resume
	// when Status is StatusInterrupted.
	Checkpoint Checkpoint[S]
}

// New creates a new Engine with the given configuration.
//
// Parameters:
//   - reducer: Function to merge partial state updates (required for Run)
//   - emitter: Observability event receiver (optional, can be nil)
//   - options: Functional options (limits, policies, metrics)
//
// Option errors are reported by the first Run or Resume call.
func New[S any](reducer Reducer[S], emitter emit.Emitter, options ...Option) *Engine[S] {
	var cfg engineConfig
	var cfgErr error
	for _, opt := range options {
		if err := opt(&cfg); err != nil && cfgErr == nil {
			cfgErr = err
		}
	}
	if emitter == nil {
		emitter = emit.NewNullEmitter()
	}
	if cfg.policies == nil {
		cfg.policies = make(map[string]NodePolicy)
	}
	return &Engine[S]{
		reducer:   reducer,
		nodes:     make(map[string]Node[S]),
		edges:     make([]Edge[S], 0),
		emitter:   emitter,
		opts:      cfg.opts,
		policies:  cfg.policies,
		configErr: cfgErr,
	}
}

// Add registers a node in the workflow graph.
//
// Returns error if:
//   - nodeID is empty
//   - node is nil
//   - a node with this ID already exists
func (e *Engine[S]) Add(nodeID string, node Node[S]) error {
	if nodeID == "" {
		return &EngineError{Message: "node ID cannot be empty"}
	}
	if node == nil {
		return &EngineError{Message: "node cannot be nil"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.nodes[nodeID]; exists {
		return &EngineError{
			Message: "duplicate node ID: " + nodeID,
			Code:    "DUPLICATE_NODE",
		}
	}

	e.nodes[nodeID] = node
	return nil
}

// StartAt sets the entry point for workflow execution.
// The node must have been registered via Add() before calling StartAt.
func (e *Engine[S]) StartAt(nodeID string) error {
	if nodeID == "" {
		return &EngineError{Message: "start node ID cannot be empty"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.nodes[nodeID]; !exists {
		return &EngineError{
			Message: "start node does not exist: " + nodeID,
			Code:    "NODE_NOT_FOUND",
		}
	}

	e.startNode = nodeID
	return nil
}

// Connect creates an edge between two nodes.
//
// Edges are consulted only when a node returns a zero Route. The first
// registered edge whose predicate matches wins; a nil predicate always
// matches. Node existence is checked lazily at run time.
func (e *Engine[S]) Connect(from, to string, predicate Predicate[S]) error {
	if from == "" {
		return &EngineError{Message: "from node ID cannot be empty"}
	}
	if to == "" {
		return &EngineError{Message: "to node ID cannot be empty"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.edges = append(e.edges, Edge[S]{From: from, To: to, When: predicate})
	return nil
}

// Run executes the workflow from the start node until a node stops it,
// interrupts it, or fails.
//
// Returns a Result for completed and interrupted runs. Node failures are
// returned as *NodeError; limit violations as *EngineError; context
// cancellation as the context's error.
func (e *Engine[S]) Run(ctx context.Context, runID string, initial S) (Result[S], error) {
	if err := e.validate(); err != nil {
		return Result[S]{}, err
	}
	e.mu.RLock()
	start := e.startNode
	e.mu.RUnlock()
	if start == "" {
		return Result[S]{}, &EngineError{
			Message: "start node not set (call StartAt before Run)",
			Code:    "NO_START_NODE",
		}
	}

	e.emit(runID, 0, start, "run_start", nil)
	return e.execute(ctx, runID, initial, Goto(start), "", 0)
}

// Resume continues an interrupted run.
//
// delta is folded into the checkpoint state with the reducer before any
// node runs; it carries whatever the caller collected while the run was
// suspended. next picks where execution continues: a single node, a fan-out,
// or a zero Next to follow the edges of the interrupting node.
func (e *Engine[S]) Resume(ctx context.Context, cp Checkpoint[S], next Next, delta S) (Result[S], error) {
	if err := e.validate(); err != nil {
		return Result[S]{}, err
	}
	if cp.Status != StatusInterrupted {
		return Result[S]{}, fmt.Errorf("resume %s: %w", cp.RunID, ErrNotInterrupted)
	}
	if err := cp.Verify(); err != nil {
		return Result[S]{}, &EngineError{Message: err.Error(), Code: "CHECKPOINT_CORRUPT"}
	}

	state := e.reducer(cp.State, delta)
	if next.IsZero() {
		to := e.evaluateEdges(cp.Position, state)
		if to == "" {
			return Result[S]{}, &EngineError{
				Message: "no valid route from node: " + cp.Position,
				Code:    "NO_ROUTE",
			}
		}
		next = Goto(to)
	}

	e.emit(cp.RunID, cp.Step, cp.Position, "resume", map[string]interface{}{
		"next": describeNext(next),
	})
	return e.execute(ctx, cp.RunID, state, next, cp.Position, cp.Step)
}

func (e *Engine[S]) validate() error {
	if e.configErr != nil {
		return e.configErr
	}
	if e.reducer == nil {
		return &EngineError{
			Message: "reducer is required",
			Code:    "MISSING_REDUCER",
		}
	}
	return nil
}

// execute is the shared loop behind Run and Resume.
func (e *Engine[S]) execute(ctx context.Context, runID string, state S, route Next, last string, step int) (Result[S], error) {
	if e.opts.RunWallClockBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.RunWallClockBudget)
		defer cancel()
	}

	current := route
	first := step
	for {
		if current.Terminal {
			return e.finish(runID, step, state, last, StatusCompleted)
		}
		if current.Interrupt {
			return e.finish(runID, step, state, last, StatusInterrupted)
		}

		step++
		if e.opts.MaxSteps > 0 && step-first > e.opts.MaxSteps {
			return Result[S]{}, &EngineError{
				Message: fmt.Sprintf("workflow exceeded MaxSteps limit of %d", e.opts.MaxSteps),
				Code:    "MAX_STEPS_EXCEEDED",
			}
		}
		if err := ctx.Err(); err != nil {
			return Result[S]{}, err
		}

		var (
			next Next
			err  error
		)
		switch {
		case len(current.Many) > 0:
			state, next, err = e.runFanOut(ctx, runID, step, last, current.Many, state)
		case current.To != "":
			state, next, err = e.runSingle(ctx, runID, step, current.To, state)
			last = current.To
		default:
			err = &EngineError{Message: "no valid route from node: " + last, Code: "NO_ROUTE"}
		}
		if err != nil {
			return Result[S]{}, err
		}
		current = next
	}
}

func (e *Engine[S]) finish(runID string, step int, state S, position string, status RunStatus) (Result[S], error) {
	cp, err := newCheckpoint(runID, step, state, position, status)
	if err != nil {
		return Result[S]{}, &EngineError{Message: "failed to build checkpoint: " + err.Error(), Code: "CHECKPOINT_FAILED"}
	}
	if status == StatusInterrupted {
		e.opts.Metrics.IncrementInterrupts(position)
		e.emit(runID, step, position, "interrupt", nil)
	} else {
		e.emit(runID, step, position, "run_complete", nil)
	}
	return Result[S]{State: state, Status: status, Checkpoint: cp}, nil
}

// runSingle executes one node and resolves its route.
func (e *Engine[S]) runSingle(ctx context.Context, runID string, step int, nodeID string, state S) (S, Next, error) {
	result, err := e.runNode(ctx, runID, step, nodeID, state)
	if err != nil {
		return state, Next{}, err
	}
	state = e.reducer(state, result.Delta)

	next := result.Route
	if next.IsZero() {
		to := e.evaluateEdges(nodeID, state)
		if to == "" {
			return state, Next{}, &EngineError{
				Message: "no valid route from node: " + nodeID,
				Code:    "NO_ROUTE",
			}
		}
		next = Goto(to)
	}
	return state, next, nil
}

type branchResult[S any] struct {
	result NodeResult[S]
	err    error
}

// runFanOut runs every branch concurrently on its own copy of state and
// joins.
//
// All branches always run to completion: a failing branch does not cancel
// its siblings. Once every branch has returned, failures are reported in
// declaration order, otherwise the branch deltas are reduced in declaration
// order. Every branch must route to the same next hop.
func (e *Engine[S]) runFanOut(ctx context.Context, runID string, step int, from string, branches []string, state S) (S, Next, error) {
	seen := make(map[string]bool, len(branches))
	for _, id := range branches {
		if seen[id] {
			return state, Next{}, &EngineError{Message: "duplicate fan-out branch: " + id, Code: "DUPLICATE_BRANCH"}
		}
		seen[id] = true
	}

	e.emit(runID, step, from, "fanout_start", map[string]interface{}{
		"branches": strings.Join(branches, ","),
	})
	e.opts.Metrics.RecordFanOut(from, len(branches))

	results := make([]branchResult[S], len(branches))
	var g errgroup.Group
	if e.opts.MaxConcurrentNodes > 0 {
		g.SetLimit(e.opts.MaxConcurrentNodes)
	}
	for i, id := range branches {
		branchState, err := clone(state)
		if err != nil {
			_ = g.Wait()
			return state, Next{}, &EngineError{Message: "failed to copy state for branch " + id + ": " + err.Error(), Code: "STATE_COPY_FAILED"}
		}
		g.Go(func() error {
			res, err := e.runNode(ctx, runID, step, id, branchState)
			results[i] = branchResult[S]{result: res, err: err}
			return err
		})
	}
	_ = g.Wait()

	for _, r := range results {
		if r.err != nil {
			return state, Next{}, r.err
		}
	}

	merged := state
	for _, r := range results {
		merged = e.reducer(merged, r.result.Delta)
	}

	var join Next
	for i, id := range branches {
		route := results[i].result.Route
		if route.IsZero() {
			to := e.evaluateEdges(id, merged)
			if to == "" {
				return state, Next{}, &EngineError{Message: "no valid route from node: " + id, Code: "NO_ROUTE"}
			}
			route = Goto(to)
		}
		if route.Interrupt || len(route.Many) > 0 {
			return state, Next{}, &EngineError{
				Message: "fan-out branch " + id + " must route to a join node or stop",
				Code:    "FANOUT_UNSUPPORTED_ROUTE",
			}
		}
		if i == 0 {
			join = route
			continue
		}
		if route.To != join.To || route.Terminal != join.Terminal {
			return state, Next{}, &EngineError{
				Message: fmt.Sprintf("fan-out branches diverged: %s routes to %s, %s routes to %s",
					branches[0], describeNext(join), id, describeNext(route)),
				Code: "FANOUT_DIVERGED",
			}
		}
	}

	e.emit(runID, step, join.To, "fanout_join", map[string]interface{}{
		"branches": strings.Join(branches, ","),
	})
	return merged, join, nil
}

// runNode executes a node with its timeout and retry policy and emits the
// node lifecycle events.
func (e *Engine[S]) runNode(ctx context.Context, runID string, step int, nodeID string, state S) (NodeResult[S], error) {
	e.mu.RLock()
	node, exists := e.nodes[nodeID]
	policy, hasPolicy := e.policies[nodeID]
	e.mu.RUnlock()

	if !exists {
		return NodeResult[S]{}, &EngineError{
			Message: "node not found during execution: " + nodeID,
			Code:    "NODE_NOT_FOUND",
		}
	}

	var pol *NodePolicy
	maxAttempts := 1
	if hasPolicy {
		pol = &policy
		if policy.RetryPolicy != nil {
			maxAttempts = policy.RetryPolicy.MaxAttempts
		}
	}

	metrics := e.opts.Metrics
	for attempt := 0; ; attempt++ {
		e.emit(runID, step, nodeID, "node_start", map[string]interface{}{"attempt": attempt})

		started := time.Now()
		metrics.nodeStarted()
		result, err := e.invoke(ctx, node, nodeID, state, pol)
		metrics.nodeFinished()
		elapsed := time.Since(started)

		if err == nil {
			err = result.Err
		}
		if err == nil {
			metrics.RecordStepLatency(nodeID, elapsed, "success")
			e.emit(runID, step, nodeID, "node_end", map[string]interface{}{
				"attempt":     attempt,
				"duration_ms": elapsed.Milliseconds(),
			})
			return result, nil
		}

		status := "error"
		if isTimeout(err) {
			status = "timeout"
		}
		metrics.RecordStepLatency(nodeID, elapsed, status)

		if attempt+1 >= maxAttempts || !pol.RetryPolicy.retryable(err) || ctx.Err() != nil {
			e.emit(runID, step, nodeID, "node_error", map[string]interface{}{
				"attempt": attempt,
				"error":   err.Error(),
			})
			return result, asNodeError(nodeID, err)
		}

		delay := backoff(attempt, pol.RetryPolicy.BaseDelay, pol.RetryPolicy.MaxDelay, nil)
		metrics.IncrementRetries(nodeID, status)
		e.emit(runID, step, nodeID, "node_retry", map[string]interface{}{
			"attempt":  attempt,
			"error":    err.Error(),
			"delay_ms": delay.Milliseconds(),
		})

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, ctx.Err()
		case <-timer.C:
		}
	}
}

// invoke runs the node under its timeout and turns a panic into a NodeError.
func (e *Engine[S]) invoke(ctx context.Context, node Node[S], nodeID string, state S, pol *NodePolicy) (result NodeResult[S], err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &NodeError{NodeID: nodeID, Code: "NODE_PANIC", Message: fmt.Sprintf("panic: %v", r)}
		}
	}()
	return runWithDeadline(ctx, node, nodeID, state, pol, e.opts.DefaultNodeTimeout)
}

func isTimeout(err error) bool {
	return RetryTimeouts(err)
}

// asNodeError attributes err to nodeID, keeping an existing NodeError.
func asNodeError(nodeID string, err error) error {
	var ne *NodeError
	if errors.As(err, &ne) {
		if ne.NodeID == "" {
			copied := *ne
			copied.NodeID = nodeID
			return &copied
		}
		return err
	}
	code := "NODE_ERROR"
	if isTimeout(err) {
		code = "NODE_TIMEOUT"
	}
	return &NodeError{NodeID: nodeID, Code: code, Message: err.Error(), Cause: err}
}

// evaluateEdges finds the first matching edge from the given node.
// Returns empty string if no edges match.
func (e *Engine[S]) evaluateEdges(fromNode string, state S) string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, edge := range e.edges {
		if edge.From != fromNode {
			continue
		}
		if edge.When == nil || edge.When(state) {
			return edge.To
		}
	}
	return ""
}

func (e *Engine[S]) emit(runID string, step int, nodeID, msg string, meta map[string]interface{}) {
	e.emitter.Emit(emit.Event{RunID: runID, Step: step, NodeID: nodeID, Msg: msg, Meta: meta})
}

func describeNext(n Next) string {
	switch {
	case n.Terminal:
		return "stop"
	case n.Interrupt:
		return "interrupt"
	case len(n.Many) > 0:
		return "[" + strings.Join(n.Many, ",") + "]"
	default:
		return n.To
	}
}
