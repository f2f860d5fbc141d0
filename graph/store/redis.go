package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRegistry stores sessions in Redis.
//
// Each session is a JSON value under <prefix><id>. A sorted set
// <prefix>index scores every id by its UpdatedAt in Unix milliseconds, which
// Sweep scans instead of walking the keyspace. Put and Sweep run inside
// WATCH/MULTI transactions, so a version check and its write are atomic and
// a sweep never deletes a session that was rewritten after it was read.
type RedisRegistry struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisRegistry wraps an existing client. The registry owns the client
// and closes it on Close.
//
// Example:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	reg := store.NewRedisRegistry(client)
func NewRedisRegistry(client redis.UniversalClient, opts ...Option) *RedisRegistry {
	cfg := newConfig(opts)
	return &RedisRegistry{client: client, prefix: cfg.prefix, now: cfg.now}
}

func (r *RedisRegistry) key(id string) string {
	return r.prefix + id
}

func (r *RedisRegistry) indexKey() string {
	return r.prefix + "index"
}

// load reads one session through the watching transaction.
func (r *RedisRegistry) load(ctx context.Context, tx *redis.Tx, id string) (Record, bool, error) {
	val, err := tx.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("redis: get session: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(val, &rec); err != nil {
		return Record{}, false, fmt.Errorf("redis: decode session %s: %w", id, err)
	}
	return rec, true, nil
}

// Put implements Registry.
func (r *RedisRegistry) Put(ctx context.Context, id string, rec Record, expectedVersion int64) (int64, error) {
	var next int64
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, _, err := r.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := checkVersion(current.Version, expectedVersion); err != nil {
			return err
		}

		rec.ID = id
		rec.Version = current.Version + 1
		rec.UpdatedAt = r.now().UTC()
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("redis: encode session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, r.key(id), data, 0)
			pipe.ZAdd(ctx, r.indexKey(), redis.Z{
				Score:  float64(rec.UpdatedAt.UnixMilli()),
				Member: id,
			})
			return nil
		})
		if err != nil {
			return err
		}
		next = rec.Version
		return nil
	}, r.key(id))

	if errors.Is(err, redis.TxFailedErr) {
		return 0, ErrVersionConflict
	}
	if err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return 0, err
		}
		return 0, fmt.Errorf("redis: put session: %w", err)
	}
	return next, nil
}

// Get implements Registry.
func (r *RedisRegistry) Get(ctx context.Context, id string) (Record, error) {
	val, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("redis: get session: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(val, &rec); err != nil {
		return Record{}, fmt.Errorf("redis: decode session %s: %w", id, err)
	}
	return rec, nil
}

// Delete implements Registry.
func (r *RedisRegistry) Delete(ctx context.Context, id string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.key(id))
	pipe.ZRem(ctx, r.indexKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: delete session: %w", err)
	}
	return nil
}

// Sweep implements Registry.
//
// Candidates come from the index. Each one is re-read under WATCH and only
// deleted if it is still stale; a session touched concurrently is kept.
func (r *RedisRegistry) Sweep(ctx context.Context, ttl time.Duration) (int, error) {
	cutoff := r.now().UTC().Add(-ttl)

	ids, err := r.client.ZRangeByScore(ctx, r.indexKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: scan index: %w", err)
	}

	removed := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return removed, err
		}

		deleted := false
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			rec, exists, err := r.load(ctx, tx, id)
			if err != nil {
				return err
			}
			if exists && !rec.UpdatedAt.Before(cutoff) {
				return nil
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, r.key(id))
				pipe.ZRem(ctx, r.indexKey(), id)
				return nil
			})
			deleted = err == nil && exists
			return err
		}, r.key(id))

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("redis: sweep %s: %w", id, err)
		}
		if deleted {
			removed++
		}
	}
	return removed, nil
}

// Close implements Registry.
func (r *RedisRegistry) Close() error {
	return r.client.Close()
}
