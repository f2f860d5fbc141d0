// Package store provides the session registry: durable storage of
// interrupted workflow checkpoints keyed by session id.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a session id has no entry. It is an expected
// condition (unknown or expired session), not an internal failure.
var ErrNotFound = errors.New("not found")

// ErrVersionConflict is returned by Put when expectedVersion does not match
// the stored version. The caller lost a race and may retry after a Get.
var ErrVersionConflict = errors.New("version conflict")

// ErrClosed is returned by operations on a closed registry.
var ErrClosed = errors.New("registry is closed")

// AnyVersion makes Put overwrite whatever is stored.
const AnyVersion int64 = -1

// Record is one session entry.
type Record struct {
	// ID is the session identifier.
	ID string `json:"id"`

	// Checkpoint is the JSON-encoded engine checkpoint.
	Checkpoint json.RawMessage `json:"checkpoint"`

	// Position is the node the checkpoint is suspended at.
	Position string `json:"position"`

	// Version starts at 1 and increases by one on every Put.
	Version int64 `json:"version"`

	// UpdatedAt is the time of the last Put, in UTC.
	UpdatedAt time.Time `json:"updated_at"`
}

// Registry maps session ids to their latest checkpoint.
//
// Implementations are safe for concurrent use. Operations on different ids
// never block each other on a process-wide lock, and Sweep never removes an
// entry that is being written.
type Registry interface {
	// Put stores rec under id and returns the new version.
	//
	// expectedVersion 0 requires that id does not exist yet; a positive
	// value requires the stored version to match; AnyVersion skips the
	// check. A mismatch returns ErrVersionConflict. rec.Version is ignored
	// and rec.UpdatedAt is set by the registry.
	Put(ctx context.Context, id string, rec Record, expectedVersion int64) (int64, error)

	// Get returns the entry for id, or ErrNotFound.
	Get(ctx context.Context, id string) (Record, error)

	// Delete removes id. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error

	// Sweep removes entries last updated more than ttl ago and returns how
	// many were removed.
	Sweep(ctx context.Context, ttl time.Duration) (int, error)

	// Close releases the backend's resources.
	Close() error
}

// Option configures a registry.
type Option func(*config)

type config struct {
	now    func() time.Time
	prefix string
}

func newConfig(opts []Option) config {
	cfg := config{now: time.Now, prefix: "tripgraph:session:"}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithClock replaces time.Now for UpdatedAt and Sweep. Tests use it to
// expire sessions without sleeping.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}

// WithKeyPrefix sets the key prefix used by the Redis registry.
func WithKeyPrefix(prefix string) Option {
	return func(c *config) {
		c.prefix = prefix
	}
}

// checkVersion applies the Put precondition. current is 0 when the id does
// not exist.
func checkVersion(current, expected int64) error {
	if expected == AnyVersion || expected == current {
		return nil
	}
	return ErrVersionConflict
}
