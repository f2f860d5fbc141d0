package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeClock is a settable clock shared by a registry under test.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func checkpointJSON(step int) []byte {
	return []byte(fmt.Sprintf(`{"run_id":"trip_1","step":%d,"status":"interrupted"}`, step))
}

// runRegistryContract exercises behavior every Registry backend must share.
func runRegistryContract(t *testing.T, newRegistry func(t *testing.T, clock *fakeClock) Registry) {
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		reg := newRegistry(t, newFakeClock())
		if _, err := reg.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get = %v, want ErrNotFound", err)
		}
	})

	t.Run("put and get", func(t *testing.T) {
		clock := newFakeClock()
		reg := newRegistry(t, clock)

		v, err := reg.Put(ctx, "s1", Record{Checkpoint: checkpointJSON(2), Position: "combined_human_review"}, 0)
		if err != nil {
			t.Fatalf("Put: %v", err)
		}
		if v != 1 {
			t.Errorf("version = %d, want 1", v)
		}

		rec, err := reg.Get(ctx, "s1")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if rec.ID != "s1" || rec.Version != 1 || rec.Position != "combined_human_review" {
			t.Errorf("Record = %+v", rec)
		}
		if string(rec.Checkpoint) != string(checkpointJSON(2)) {
			t.Errorf("Checkpoint = %s", rec.Checkpoint)
		}
		if !rec.UpdatedAt.Equal(clock.Now()) {
			t.Errorf("UpdatedAt = %v, want %v", rec.UpdatedAt, clock.Now())
		}
	})

	t.Run("version checks", func(t *testing.T) {
		reg := newRegistry(t, newFakeClock())
		rec := Record{Checkpoint: checkpointJSON(1), Position: "p"}

		if _, err := reg.Put(ctx, "s", rec, 0); err != nil {
			t.Fatalf("create: %v", err)
		}
		if _, err := reg.Put(ctx, "s", rec, 0); !errors.Is(err, ErrVersionConflict) {
			t.Errorf("second create = %v, want ErrVersionConflict", err)
		}
		if _, err := reg.Put(ctx, "s", rec, 5); !errors.Is(err, ErrVersionConflict) {
			t.Errorf("stale version = %v, want ErrVersionConflict", err)
		}
		v, err := reg.Put(ctx, "s", rec, 1)
		if err != nil || v != 2 {
			t.Errorf("update = %d, %v; want 2, nil", v, err)
		}
		v, err = reg.Put(ctx, "s", rec, AnyVersion)
		if err != nil || v != 3 {
			t.Errorf("overwrite = %d, %v; want 3, nil", v, err)
		}
		if _, err := reg.Put(ctx, "fresh", rec, 1); !errors.Is(err, ErrVersionConflict) {
			t.Errorf("update of missing = %v, want ErrVersionConflict", err)
		}
		v, err = reg.Put(ctx, "fresh2", rec, AnyVersion)
		if err != nil || v != 1 {
			t.Errorf("overwrite of missing = %d, %v; want 1, nil", v, err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		reg := newRegistry(t, newFakeClock())
		_, _ = reg.Put(ctx, "s", Record{Checkpoint: checkpointJSON(1)}, 0)

		if err := reg.Delete(ctx, "s"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, err := reg.Get(ctx, "s"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get after delete = %v", err)
		}
		if err := reg.Delete(ctx, "s"); err != nil {
			t.Errorf("second Delete = %v", err)
		}
	})

	t.Run("sweep", func(t *testing.T) {
		clock := newFakeClock()
		reg := newRegistry(t, clock)

		_, _ = reg.Put(ctx, "old1", Record{Checkpoint: checkpointJSON(1)}, 0)
		_, _ = reg.Put(ctx, "old2", Record{Checkpoint: checkpointJSON(1)}, 0)
		clock.Advance(45 * time.Minute)
		_, _ = reg.Put(ctx, "recent", Record{Checkpoint: checkpointJSON(1)}, 0)
		_, _ = reg.Put(ctx, "old2", Record{Checkpoint: checkpointJSON(2)}, 1)
		clock.Advance(30 * time.Minute)

		n, err := reg.Sweep(ctx, time.Hour)
		if err != nil {
			t.Fatalf("Sweep: %v", err)
		}
		if n != 1 {
			t.Errorf("swept = %d, want 1", n)
		}
		if _, err := reg.Get(ctx, "old1"); !errors.Is(err, ErrNotFound) {
			t.Errorf("old1 survived sweep: %v", err)
		}
		for _, id := range []string{"old2", "recent"} {
			if _, err := reg.Get(ctx, id); err != nil {
				t.Errorf("%s was swept: %v", id, err)
			}
		}

		n, err = reg.Sweep(ctx, time.Hour)
		if err != nil || n != 0 {
			t.Errorf("second sweep = %d, %v", n, err)
		}
	})

	t.Run("concurrent creates", func(t *testing.T) {
		reg := newRegistry(t, newFakeClock())

		var wins, conflicts atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := reg.Put(ctx, "race", Record{Checkpoint: checkpointJSON(i)}, 0)
				switch {
				case err == nil:
					wins.Add(1)
				case errors.Is(err, ErrVersionConflict):
					conflicts.Add(1)
				default:
					t.Errorf("Put: %v", err)
				}
			}()
		}
		wg.Wait()

		if wins.Load() != 1 {
			t.Errorf("wins = %d, want exactly 1 (conflicts %d)", wins.Load(), conflicts.Load())
		}
	})

	t.Run("independent sessions", func(t *testing.T) {
		reg := newRegistry(t, newFakeClock())

		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				id := fmt.Sprintf("s%d", i)
				for v := int64(0); v < 5; v++ {
					if _, err := reg.Put(ctx, id, Record{Checkpoint: checkpointJSON(int(v))}, v); err != nil {
						t.Errorf("Put(%s, %d): %v", id, v, err)
						return
					}
				}
			}()
		}
		wg.Wait()

		for i := 0; i < 16; i++ {
			rec, err := reg.Get(ctx, fmt.Sprintf("s%d", i))
			if err != nil || rec.Version != 5 {
				t.Errorf("s%d = %+v, %v", i, rec, err)
			}
		}
	})
}
