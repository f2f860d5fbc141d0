package graph

import "errors"

// ErrMaxStepsExceeded indicates that the graph execution reached the maximum
// allowed step count without completing. This prevents infinite loops and
// runaway executions.
var ErrMaxStepsExceeded = errors.New("execution exceeded maximum steps limit")

// ErrInvalidRetryPolicy is returned by RetryPolicy.Validate.
var ErrInvalidRetryPolicy = errors.New("invalid retry policy")

// ErrNotInterrupted is returned by Resume when the checkpoint was not taken
// at an interrupt.
var ErrNotInterrupted = errors.New("checkpoint is not at an interrupt")

// EngineError represents an error from Engine operations.
type EngineError struct {
	Message string
	Code    string
}

func (e *EngineError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

// Is matches ErrMaxStepsExceeded for the MAX_STEPS_EXCEEDED code.
func (e *EngineError) Is(target error) bool {
	return target == ErrMaxStepsExceeded && e.Code == "MAX_STEPS_EXCEEDED"
}
