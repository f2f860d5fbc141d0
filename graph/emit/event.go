package emit

// Event is one observability record produced while a workflow runs.
//
// Messages emitted by the engine:
//
//	run_start      a Run call began
//	resume         a Resume call began from an interrupt
//	node_start     a node attempt began (meta: attempt)
//	node_end       a node attempt succeeded (meta: attempt, duration_ms)
//	node_retry     a failed attempt will be retried (meta: attempt, error, delay_ms)
//	node_error     a node failed for good (meta: attempt, error)
//	fanout_start   concurrent branches dispatched (meta: branches)
//	fanout_join    every branch finished and was merged (meta: branches)
//	interrupt      the run suspended and returned a checkpoint
//	run_complete   a node returned Stop
//
// Workflow nodes add their own messages, such as research_degraded or
// overrides_rejected, with the same shape.
type Event struct {
	// RunID identifies the workflow execution (the session id).
	RunID string

	// Step is the engine step number. Zero for run-level events.
	Step int

	// NodeID identifies the node the event concerns. May be empty.
	NodeID string

	// Msg names the event.
	Msg string

	// Meta holds event-specific fields. Values should be JSON-encodable.
	// LLM calls report "model", "tokens_in", "tokens_out" and "cost_usd".
	Meta map[string]interface{}
}
