package store

import (
	"context"
	"os"
	"testing"
	"time"
)

// MySQL tests need a reachable server:
//
//	export TEST_MYSQL_DSN="user:password@tcp(localhost:3306)/test_db"
func TestMySQLRegistry_Contract(t *testing.T) {
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("Skipping MySQL tests: set TEST_MYSQL_DSN to run")
	}

	runRegistryContract(t, func(t *testing.T, clock *fakeClock) Registry {
		reg, err := NewMySQLRegistry(context.Background(), dsn, WithClock(clock.Now))
		if err != nil {
			t.Fatalf("NewMySQLRegistry: %v", err)
		}
		// Sessions from earlier subtests must not leak into sweep counts.
		if _, err := reg.db.Exec("DELETE FROM tripgraph_sessions"); err != nil {
			t.Fatalf("reset table: %v", err)
		}
		t.Cleanup(func() { _ = reg.Close() })
		return reg
	})
}

func TestNewMySQLRegistry_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := NewMySQLRegistry(ctx, "user:pass@tcp(127.0.0.1:1)/db?timeout=500ms"); err == nil {
		t.Error("expected error for unreachable server")
	}
}
