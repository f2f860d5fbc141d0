package graph

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrCheckpointCorrupt is returned when a decoded checkpoint's idempotency
// key does not match its content.
var ErrCheckpointCorrupt = errors.New("checkpoint corrupt: idempotency key mismatch")

// RunStatus is where a run stopped.
type RunStatus string

const (
	// StatusCompleted means a node returned Stop().
	StatusCompleted RunStatus = "completed"

	// StatusInterrupted means a node returned Interrupt() and the run is
	// waiting for Resume.
	StatusInterrupted RunStatus = "interrupted"
)

// Checkpoint is a serializable continuation of a run: the accumulated state
// plus the node the run stopped at. It carries no references to the engine
// that produced it, so any engine built with the same graph can resume it,
// in another process if need be.
type Checkpoint[S any] struct {
	// RunID identifies the execution this checkpoint belongs to.
	RunID string `json:"run_id"`

	// Step is the number of node executions so far. Fan-out branches count
	// as one step.
	Step int `json:"step"`

	// State is the accumulated state after the last reducer application.
	State S `json:"state"`

	// Position is the node that produced the stop (the interrupting node
	// for StatusInterrupted).
	Position string `json:"position"`

	// Status tells whether the run can be resumed.
	Status RunStatus `json:"status"`

	// IdempotencyKey is "sha256:<hex>" over RunID, Step, Position, Status
	// and State. Resume refuses checkpoints whose key does not match.
	IdempotencyKey string `json:"idempotency_key"`

	// Timestamp records when this checkpoint was created, in UTC.
	Timestamp time.Time `json:"timestamp"`
}

func newCheckpoint[S any](runID string, step int, state S, position string, status RunStatus) (Checkpoint[S], error) {
	key, err := computeIdempotencyKey(runID, step, position, status, state)
	if err != nil {
		return Checkpoint[S]{}, err
	}
	return Checkpoint[S]{
		RunID:          runID,
		Step:           step,
		State:          state,
		Position:       position,
		Status:         status,
		IdempotencyKey: key,
		Timestamp:      time.Now().UTC(),
	}, nil
}

// Encode serializes the checkpoint as JSON. Encoding a decoded checkpoint
// reproduces the original bytes.
func (c Checkpoint[S]) Encode() ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode checkpoint: %w", err)
	}
	return data, nil
}

// Verify recomputes the idempotency key and compares it with the stored one.
func (c Checkpoint[S]) Verify() error {
	key, err := computeIdempotencyKey(c.RunID, c.Step, c.Position, c.Status, c.State)
	if err != nil {
		return err
	}
	if key != c.IdempotencyKey {
		return ErrCheckpointCorrupt
	}
	return nil
}

// DecodeCheckpoint parses bytes produced by Checkpoint.Encode and verifies
// the idempotency key.
func DecodeCheckpoint[S any](data []byte) (Checkpoint[S], error) {
	var c Checkpoint[S]
	if err := json.Unmarshal(data, &c); err != nil {
		return Checkpoint[S]{}, fmt.Errorf("decode checkpoint: %w", err)
	}
	if err := c.Verify(); err != nil {
		return Checkpoint[S]{}, err
	}
	return c, nil
}

// computeIdempotencyKey hashes the identifying fields of a checkpoint.
//
// Layout: runID bytes, step as 8-byte big-endian, position bytes, status
// bytes, then the JSON encoding of state. Strings are NUL-terminated so
// adjacent fields cannot run together.
func computeIdempotencyKey[S any](runID string, step int, position string, status RunStatus, state S) (string, error) {
	h := sha256.New()

	h.Write([]byte(runID))
	h.Write([]byte{0})

	stepBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(stepBytes, uint64(step))
	h.Write(stepBytes)

	h.Write([]byte(position))
	h.Write([]byte{0})
	h.Write([]byte(status))
	h.Write([]byte{0})

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("hash state: %w", err)
	}
	h.Write(stateJSON)

	return "sha256:" + hex.EncodeToString(h.Sum(nil)), nil
}
