package store

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"
)

const memShards = 32

// MemRegistry keeps sessions in process memory.
//
// Ids are spread over a fixed set of shards, each with its own lock, so
// sessions on different shards never contend. Data is lost when the process
// exits.
type MemRegistry struct {
	shards [memShards]memShard
	now    func() time.Time
	closed atomic.Bool
}

type memShard struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemRegistry creates an empty in-memory registry.
func NewMemRegistry(opts ...Option) *MemRegistry {
	cfg := newConfig(opts)
	m := &MemRegistry{now: cfg.now}
	for i := range m.shards {
		m.shards[i].records = make(map[string]Record)
	}
	return m
}

func (m *MemRegistry) shard(id string) *memShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &m.shards[h.Sum32()%memShards]
}

// Put implements Registry.
func (m *MemRegistry) Put(ctx context.Context, id string, rec Record, expectedVersion int64) (int64, error) {
	if m.closed.Load() {
		return 0, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s := m.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.records[id].Version
	if err := checkVersion(current, expectedVersion); err != nil {
		return 0, err
	}

	rec.ID = id
	rec.Version = current + 1
	rec.UpdatedAt = m.now().UTC()
	rec.Checkpoint = append([]byte(nil), rec.Checkpoint...)
	s.records[id] = rec
	return rec.Version, nil
}

// Get implements Registry.
func (m *MemRegistry) Get(ctx context.Context, id string) (Record, error) {
	if m.closed.Load() {
		return Record{}, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	s := m.shard(id)
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	rec.Checkpoint = append([]byte(nil), rec.Checkpoint...)
	return rec, nil
}

// Delete implements Registry.
func (m *MemRegistry) Delete(ctx context.Context, id string) error {
	if m.closed.Load() {
		return ErrClosed
	}
	s := m.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

// Sweep implements Registry. Shards are swept one at a time.
func (m *MemRegistry) Sweep(ctx context.Context, ttl time.Duration) (int, error) {
	if m.closed.Load() {
		return 0, ErrClosed
	}
	cutoff := m.now().UTC().Add(-ttl)

	removed := 0
	for i := range m.shards {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		s := &m.shards[i]
		s.mu.Lock()
		for id, rec := range s.records {
			if rec.UpdatedAt.Before(cutoff) {
				delete(s.records, id)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed, nil
}

// Len returns the number of stored sessions.
func (m *MemRegistry) Len() int {
	n := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.RLock()
		n += len(s.records)
		s.mu.RUnlock()
	}
	return n
}

// Close implements Registry.
func (m *MemRegistry) Close() error {
	m.closed.Store(true)
	return nil
}
