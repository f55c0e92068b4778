package store

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

// ErrNilClient is returned by NewRedisTable when no client is supplied.
var ErrNilClient = errors.New("redis table: nil client")

// RedisTable keeps the whole table in one Redis hash. Replace stages the new
// contents in a scratch hash and RENAMEs it over the live one, so readers
// see either the old or the new table.
type RedisTable struct {
	rdb     goredis.UniversalClient
	key     string
	scratch string
}

var _ Table = (*RedisTable)(nil)

// NewRedisTable binds a table to the hash named prefix (default "kvcache").
func NewRedisTable(rdb goredis.UniversalClient, prefix string) (*RedisTable, error) {
	if rdb == nil {
		return nil, ErrNilClient
	}
	if prefix == "" {
		prefix = "kvcache"
	}
	return &RedisTable{rdb: rdb, key: prefix + ":table", scratch: prefix + ":restore"}, nil
}

func (t *RedisTable) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := t.rdb.HGet(ctx, t.key, key).Result()
	if err == goredis.Nil {
		return "", false, nil // miss
	}
	if err != nil {
		return "", false, fmt.Errorf("redis hget: %w", err)
	}
	return v, true, nil
}

func (t *RedisTable) Put(ctx context.Context, key, value string) error {
	if err := t.rdb.HSet(ctx, t.key, key, value).Err(); err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}

func (t *RedisTable) Del(ctx context.Context, key string) (bool, error) {
	n, err := t.rdb.HDel(ctx, t.key, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis hdel: %w", err)
	}
	return n > 0, nil
}

func (t *RedisTable) Len(ctx context.Context) (int, error) {
	n, err := t.rdb.HLen(ctx, t.key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis hlen: %w", err)
	}
	return int(n), nil
}

func (t *RedisTable) Records(ctx context.Context) ([]Record, error) {
	all, err := t.rdb.HGetAll(ctx, t.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}
	recs := make([]Record, 0, len(all))
	for k, v := range all {
		recs = append(recs, Record{Key: k, Value: v})
	}
	sortRecords(recs)
	return recs, nil
}

func (t *RedisTable) Replace(ctx context.Context, recs []Record) error {
	if err := t.rdb.Del(ctx, t.scratch).Err(); err != nil {
		return fmt.Errorf("redis del scratch: %w", err)
	}
	if len(recs) == 0 {
		if err := t.rdb.Del(ctx, t.key).Err(); err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
		return nil
	}

	const batch = 512
	for i := 0; i < len(recs); i += batch {
		end := min(i+batch, len(recs))
		args := make([]any, 0, 2*(end-i))
		for _, r := range recs[i:end] {
			args = append(args, r.Key, r.Value)
		}
		if err := t.rdb.HSet(ctx, t.scratch, args...).Err(); err != nil {
			_ = t.rdb.Del(ctx, t.scratch).Err()
			return fmt.Errorf("redis stage: %w", err)
		}
	}
	if err := t.rdb.Rename(ctx, t.scratch, t.key).Err(); err != nil {
		return fmt.Errorf("redis rename: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (t *RedisTable) Close() error {
	if err := t.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
		return err
	}
	return nil
}
