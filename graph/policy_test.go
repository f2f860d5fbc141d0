package graph

import (
	"errors"
	"math/rand"
	"testing"
	"time"
)

func TestBackoff(t *testing.T) {
	base := 10 * time.Millisecond
	tests := []struct {
		name     string
		attempt  int
		maxDelay time.Duration
		wantMin  time.Duration
		wantMax  time.Duration
	}{
		{name: "first retry", attempt: 0, wantMin: base, wantMax: 2 * base},
		{name: "third retry", attempt: 2, wantMin: 4 * base, wantMax: 5 * base},
		{name: "capped", attempt: 6, maxDelay: 50 * time.Millisecond, wantMin: 50 * time.Millisecond, wantMax: 50*time.Millisecond + base},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng := rand.New(rand.NewSource(42)) // #nosec G404 -- deterministic test jitter
			got := backoff(tt.attempt, base, tt.maxDelay, rng)
			if got < tt.wantMin || got >= tt.wantMax {
				t.Errorf("backoff = %v, want in [%v, %v)", got, tt.wantMin, tt.wantMax)
			}
		})
	}

	t.Run("zero base", func(t *testing.T) {
		if got := backoff(3, 0, time.Second, nil); got != 0 {
			t.Errorf("backoff = %v, want 0", got)
		}
	})

	t.Run("seeded rng is reproducible", func(t *testing.T) {
		a := backoff(1, base, 0, rand.New(rand.NewSource(7))) // #nosec G404
		b := backoff(1, base, 0, rand.New(rand.NewSource(7))) // #nosec G404
		if a != b {
			t.Errorf("%v != %v", a, b)
		}
	})
}

func TestRetryPolicy_Validate(t *testing.T) {
	tests := []struct {
		name    string
		policy  RetryPolicy
		wantErr bool
	}{
		{name: "valid", policy: RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Second}},
		{name: "single attempt", policy: RetryPolicy{MaxAttempts: 1}},
		{name: "no cap", policy: RetryPolicy{MaxAttempts: 2, BaseDelay: time.Second}},
		{name: "zero attempts", policy: RetryPolicy{MaxAttempts: 0}, wantErr: true},
		{name: "max below base", policy: RetryPolicy{MaxAttempts: 2, BaseDelay: time.Second, MaxDelay: time.Millisecond}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidRetryPolicy) {
				t.Errorf("Validate = %v, want ErrInvalidRetryPolicy", err)
			}
		})
	}
}

func TestRetryTimeouts(t *testing.T) {
	timeout := &EngineError{Code: "NODE_TIMEOUT", Message: "slow"}

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "engine timeout", err: timeout, want: true},
		{name: "wrapped timeout", err: &NodeError{NodeID: "a", Cause: timeout}, want: true},
		{name: "other code", err: &EngineError{Code: "NO_ROUTE"}},
		{name: "plain error", err: errors.New("x")},
		{name: "nil", err: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RetryTimeouts(tt.err); got != tt.want {
				t.Errorf("RetryTimeouts = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNodePolicy_Timeout(t *testing.T) {
	tests := []struct {
		name   string
		policy *NodePolicy
		def    time.Duration
		want   time.Duration
	}{
		{name: "policy wins", policy: &NodePolicy{Timeout: time.Second}, def: time.Minute, want: time.Second},
		{name: "default", policy: &NodePolicy{}, def: time.Minute, want: time.Minute},
		{name: "nil policy", def: time.Minute, want: time.Minute},
		{name: "unlimited", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.timeout(tt.def); got != tt.want {
				t.Errorf("timeout = %v, want %v", got, tt.want)
			}
		})
	}
}
