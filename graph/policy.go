package graph

import (
	"errors"
	"math/rand"
	"time"
)

// NodePolicy overrides the engine defaults for one node.
type NodePolicy struct {
	// Timeout bounds one run of the node. Zero falls back to
	// Options.DefaultNodeTimeout.
	Timeout time.Duration

	// RetryPolicy re-runs the node after a retryable failure. Nil runs the
	// node once.
	RetryPolicy *RetryPolicy
}

// RetryPolicy re-runs a failed node with exponential backoff.
//
// The wait before retry n (zero-based) is min(BaseDelay<<n, MaxDelay) plus a
// random jitter in [0, BaseDelay).
type RetryPolicy struct {
	// MaxAttempts counts every run, the first included. At least 1.
	MaxAttempts int

	BaseDelay time.Duration

	// MaxDelay caps the exponential part. Zero leaves it uncapped.
	MaxDelay time.Duration

	// Retryable selects the errors worth another run. Nil retries nothing.
	Retryable func(error) bool
}

// RetryTimeouts is a Retryable predicate matching NODE_TIMEOUT.
func RetryTimeouts(err error) bool {
	var ee *EngineError
	return errors.As(err, &ee) && ee.Code == "NODE_TIMEOUT"
}

// Validate reports ErrInvalidRetryPolicy for fewer than one attempt or a
// cap below the base delay.
func (rp *RetryPolicy) Validate() error {
	switch {
	case rp.MaxAttempts < 1:
		return ErrInvalidRetryPolicy
	case rp.MaxDelay > 0 && rp.MaxDelay < rp.BaseDelay:
		return ErrInvalidRetryPolicy
	}
	return nil
}

func (rp *RetryPolicy) retryable(err error) bool {
	return rp != nil && rp.Retryable != nil && rp.Retryable(err)
}

// backoff is the wait before retry n. jitter draws from the global source
// when nil.
func backoff(n int, base, maxDelay time.Duration, jitter *rand.Rand) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base << n
	if maxDelay > 0 && (d > maxDelay || d <= 0) {
		d = maxDelay
	}
	if jitter == nil {
		return d + time.Duration(rand.Int63n(int64(base))) // #nosec G404 -- retry jitter
	}
	return d + time.Duration(jitter.Int63n(int64(base)))
}
