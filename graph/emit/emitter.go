// Package emit carries workflow execution events to observability backends.
package emit

// Emitter receives observability events from workflow execution.
//
// The engine calls Emit from the goroutine that runs the node, so fan-out
// branches emit concurrently. Implementations must be safe for concurrent
// use, must not block for long, and must never panic.
type Emitter interface {
	Emit(event Event)
}

// MultiEmitter forwards every event to each of its emitters in order.
type MultiEmitter struct {
	emitters []Emitter
}

// NewMultiEmitter combines emitters. Nil entries are dropped.
//
// Example:
//
//	emitter := emit.NewMultiEmitter(
//	    emit.NewZapEmitter(logger),
//	    emit.NewOTelEmitter(otel.Tracer("tripgraph")),
//	)
func NewMultiEmitter(emitters ...Emitter) *MultiEmitter {
	kept := make([]Emitter, 0, len(emitters))
	for _, e := range emitters {
		if e != nil {
			kept = append(kept, e)
		}
	}
	return &MultiEmitter{emitters: kept}
}

// Emit implements Emitter.
func (m *MultiEmitter) Emit(event Event) {
	for _, e := range m.emitters {
		e.Emit(event)
	}
}
