package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newTestSQLite(t *testing.T, opts ...Option) *SQLiteRegistry {
	t.Helper()
	reg, err := NewSQLiteRegistry(filepath.Join(t.TempDir(), "sessions.db"), opts...)
	if err != nil {
		t.Fatalf("NewSQLiteRegistry: %v", err)
	}
	t.Cleanup(func() { _ = reg.Close() })
	return reg
}

func TestSQLiteRegistry_Contract(t *testing.T) {
	runRegistryContract(t, func(t *testing.T, clock *fakeClock) Registry {
		return newTestSQLite(t, WithClock(clock.Now))
	})
}

func TestSQLiteRegistry_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sessions.db")

	reg, err := NewSQLiteRegistry(path)
	if err != nil {
		t.Fatalf("NewSQLiteRegistry: %v", err)
	}
	if _, err := reg.Put(ctx, "trip_1", Record{Checkpoint: checkpointJSON(3), Position: "combined_human_review"}, 0); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := reg.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewSQLiteRegistry(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	rec, err := reopened.Get(ctx, "trip_1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Version != 1 || rec.Position != "combined_human_review" || string(rec.Checkpoint) != string(checkpointJSON(3)) {
		t.Errorf("Record = %+v", rec)
	}
	if reopened.Path() != path {
		t.Errorf("Path = %q", reopened.Path())
	}
}

func TestSQLiteRegistry_Closed(t *testing.T) {
	reg := newTestSQLite(t)
	if err := reg.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := reg.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
	if _, err := reg.Get(context.Background(), "s"); !errors.Is(err, ErrClosed) {
		t.Errorf("Get = %v, want ErrClosed", err)
	}
}
