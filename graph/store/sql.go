package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
)

// dialect holds the statements that differ between SQL backends.
type dialect struct {
	name string

	// schema statements run at open time
	schema []string

	// selectForUpdate reads the current version of one row inside a
	// transaction, locking it where the backend supports row locks.
	selectForUpdate string

	// insertIfAbsent inserts a row and affects zero rows on a key clash.
	insertIfAbsent string
}

// sqlRegistry implements Registry on database/sql. Timestamps are stored as
// Unix nanoseconds so both backends compare them as integers.
type sqlRegistry struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time

	mu     sync.RWMutex
	closed bool
}

func newSQLRegistry(ctx context.Context, db *sql.DB, d dialect, cfg config) (*sqlRegistry, error) {
	for _, stmt := range d.schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("%s: create schema: %w", d.name, err)
		}
	}
	return &sqlRegistry{db: db, dialect: d, now: cfg.now}, nil
}

func (r *sqlRegistry) open() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrClosed
	}
	return nil
}

// Put implements Registry.
func (r *sqlRegistry) Put(ctx context.Context, id string, rec Record, expectedVersion int64) (int64, error) {
	if err := r.open(); err != nil {
		return 0, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: begin: %w", r.dialect.name, err)
	}
	defer func() { _ = tx.Rollback() }()

	var current int64
	err = tx.QueryRowContext(ctx, r.dialect.selectForUpdate, id).Scan(&current)
	exists := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%s: read version: %w", r.dialect.name, err)
	}
	if err := checkVersion(current, expectedVersion); err != nil {
		return 0, err
	}

	cp := []byte(rec.Checkpoint)
	if cp == nil {
		cp = []byte{}
	}
	next := current + 1
	updated := r.now().UTC().UnixNano()

	var res sql.Result
	if exists {
		res, err = tx.ExecContext(ctx,
			`UPDATE tripgraph_sessions SET checkpoint = ?, position = ?, version = ?, updated_at = ? WHERE id = ? AND version = ?`,
			cp, rec.Position, next, updated, id, current)
	} else {
		res, err = tx.ExecContext(ctx, r.dialect.insertIfAbsent,
			id, cp, rec.Position, next, updated)
	}
	if err != nil {
		return 0, fmt.Errorf("%s: write session: %w", r.dialect.name, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return 0, fmt.Errorf("%s: write session: %w", r.dialect.name, err)
	} else if n == 0 {
		return 0, ErrVersionConflict
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s: commit: %w", r.dialect.name, err)
	}
	return next, nil
}

// Get implements Registry.
func (r *sqlRegistry) Get(ctx context.Context, id string) (Record, error) {
	if err := r.open(); err != nil {
		return Record{}, err
	}

	var (
		rec     Record
		cp      []byte
		updated int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT checkpoint, position, version, updated_at FROM tripgraph_sessions WHERE id = ?`, id,
	).Scan(&cp, &rec.Position, &rec.Version, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("%s: get session: %w", r.dialect.name, err)
	}

	rec.ID = id
	rec.Checkpoint = cp
	rec.UpdatedAt = time.Unix(0, updated).UTC()
	return rec, nil
}

// Delete implements Registry.
func (r *sqlRegistry) Delete(ctx context.Context, id string) error {
	if err := r.open(); err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM tripgraph_sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("%s: delete session: %w", r.dialect.name, err)
	}
	return nil
}

// Sweep implements Registry with a single DELETE, so a row being updated
// concurrently is either swept before the update or kept after it.
func (r *sqlRegistry) Sweep(ctx context.Context, ttl time.Duration) (int, error) {
	if err := r.open(); err != nil {
		return 0, err
	}
	cutoff := r.now().UTC().Add(-ttl).UnixNano()

	res, err := r.db.ExecContext(ctx, `DELETE FROM tripgraph_sessions WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%s: sweep: %w", r.dialect.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: sweep: %w", r.dialect.name, err)
	}
	return int(n), nil
}

// Close implements Registry.
func (r *sqlRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.db.Close()
}
