package store

import (
	"context"
	"errors"
	"testing"
)

func TestMemRegistry_Contract(t *testing.T) {
	runRegistryContract(t, func(t *testing.T, clock *fakeClock) Registry {
		return NewMemRegistry(WithClock(clock.Now))
	})
}

func TestMemRegistry_CopiesCheckpoint(t *testing.T) {
	ctx := context.Background()
	reg := NewMemRegistry()

	cp := []byte(`{"a":1}`)
	_, _ = reg.Put(ctx, "s", Record{Checkpoint: cp}, 0)
	cp[2] = 'b'

	rec, _ := reg.Get(ctx, "s")
	if string(rec.Checkpoint) != `{"a":1}` {
		t.Errorf("stored checkpoint aliases caller buffer: %s", rec.Checkpoint)
	}
	rec.Checkpoint[2] = 'c'
	again, _ := reg.Get(ctx, "s")
	if string(again.Checkpoint) != `{"a":1}` {
		t.Errorf("Get exposes internal buffer: %s", again.Checkpoint)
	}
}

func TestMemRegistry_Len(t *testing.T) {
	ctx := context.Background()
	reg := NewMemRegistry()
	for _, id := range []string{"a", "b", "c"} {
		_, _ = reg.Put(ctx, id, Record{}, 0)
	}
	if reg.Len() != 3 {
		t.Errorf("Len = %d, want 3", reg.Len())
	}
}

func TestMemRegistry_Closed(t *testing.T) {
	ctx := context.Background()
	reg := NewMemRegistry()
	_ = reg.Close()

	if _, err := reg.Put(ctx, "s", Record{}, 0); !errors.Is(err, ErrClosed) {
		t.Errorf("Put = %v, want ErrClosed", err)
	}
	if _, err := reg.Get(ctx, "s"); !errors.Is(err, ErrClosed) {
		t.Errorf("Get = %v, want ErrClosed", err)
	}
	if _, err := reg.Sweep(ctx, 0); !errors.Is(err, ErrClosed) {
		t.Errorf("Sweep = %v, want ErrClosed", err)
	}
}

func TestMemRegistry_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reg := NewMemRegistry()
	if _, err := reg.Put(ctx, "s", Record{}, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("Put = %v, want context.Canceled", err)
	}
}
