package graph

// Edge is a static transition, used when a node returns no Route. Edges
// leaving the same node are tried in the order they were connected and the
// first whose When matches is taken.
type Edge[S any] struct {
	From string
	To   string

	// When gates the edge. Nil always matches.
	When Predicate[S]
}

// Predicate gates an edge on the merged state. It may be called more than
// once per step and must not have side effects.
type Predicate[S any] func(state S) bool
