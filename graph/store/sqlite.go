package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

var sqliteDialect = dialect{
	name: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS tripgraph_sessions (
			id TEXT PRIMARY KEY,
			checkpoint BLOB NOT NULL,
			position TEXT NOT NULL,
			version INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tripgraph_sessions_updated_at ON tripgraph_sessions(updated_at)`,
	},
	selectForUpdate: `SELECT version FROM tripgraph_sessions WHERE id = ?`,
	insertIfAbsent: `INSERT INTO tripgraph_sessions (id, checkpoint, position, version, updated_at)
		VALUES (?, ?, ?, ?, ?) ON CONFLICT(id) DO NOTHING`,
}

// SQLiteRegistry stores sessions in a single SQLite file.
//
// It suits single-process deployments that must survive restarts. The
// database runs in WAL mode with one connection, which serializes writers
// and makes each Put's read-check-write atomic.
//
// Example:
//
//	reg, err := store.NewSQLiteRegistry("./sessions.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer reg.Close()
type SQLiteRegistry struct {
	*sqlRegistry
	path string
}

// NewSQLiteRegistry opens (creating if needed) the database at path.
// ":memory:" gives a throwaway database.
func NewSQLiteRegistry(path string, opts ...Option) (*SQLiteRegistry, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	reg, err := newSQLRegistry(ctx, db, sqliteDialect, newConfig(opts))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteRegistry{sqlRegistry: reg, path: path}, nil
}

// Path returns the database file path.
func (s *SQLiteRegistry) Path() string {
	return s.path
}
