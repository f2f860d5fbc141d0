package workflow

import (
	"errors"
	"fmt"

	"github.com/dshills/tripgraph/trip"
)

// NoPlanError means the session cannot produce a plan: a collaborator
// reported a fatal condition, or the budget could not be estimated.
type NoPlanError struct {
	Node   string
	Reason string
	Cause  error
}

func (e *NoPlanError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("no plan at %s: %s: %v", e.Node, e.Reason, e.Cause)
	}
	return fmt.Sprintf("no plan at %s: %s", e.Node, e.Reason)
}

func (e *NoPlanError) Unwrap() error { return e.Cause }

// IsNoPlan reports whether err ends the session without a plan.
func IsNoPlan(err error) bool {
	var np *NoPlanError
	return errors.As(err, &np)
}

var errMissingContext = errors.New("state has no trip context")

func requireContext(node string, s trip.State) (trip.Context, error) {
	if s.Context == nil {
		return trip.Context{}, &NoPlanError{Node: node, Reason: "invalid state", Cause: errMissingContext}
	}
	return *s.Context, nil
}
