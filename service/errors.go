package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/tripgraph/graph/store"
)

// ErrSessionExpired is returned when a session id is unknown or older than
// the TTL. The caller must start a new session.
var ErrSessionExpired = errors.New("session expired or unknown")

// ConflictError means another resume of the same session won the race.
// Retrying after the winner finishes is safe.
type ConflictError struct {
	SessionID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("session %s: concurrent resume in progress", e.SessionID)
}

// Retryable is always true.
func (e *ConflictError) Retryable() bool { return true }

// Is matches store.ErrVersionConflict.
func (e *ConflictError) Is(target error) bool {
	return target == store.ErrVersionConflict
}

// FatalConfigurationError lists required credentials that are not set.
type FatalConfigurationError struct {
	Missing []string
}

func (e *FatalConfigurationError) Error() string {
	return "missing required credentials: " + strings.Join(e.Missing, ", ")
}
