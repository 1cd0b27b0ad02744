// Package results implements the key-value result store holding one entry
// per dispatched item, keyed by "{jobId}-{itemId}", with a fixed TTL. Backed
// by Redis; entries expire server-side, so a missing key at finalize time
// means either an expired record or an item whose worker never succeeded.
package results

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"linkdrain/internal/types"
)

// RedisClient is the subset of the go-redis client used by the store.
type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// Store implements types.ResultStore on Redis.
type Store struct {
	client RedisClient
}

// NewStore creates a result store over the given Redis client.
func NewStore(client RedisClient) *Store {
	return &Store{client: client}
}

// Put writes value under key with the given TTL. Keys are never reused
// across jobs (jobId is a fresh uuid), so concurrent writers are safe.
func (s *Store) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return types.NewAppError(types.ErrCodeInternalResultStore,
			fmt.Sprintf("failed to store result for %s", key), err)
	}
	return nil
}

// Get returns the stored value. An absent or expired key returns ok=false
// with a nil error; absence is an expected condition at finalize time, not
// a store failure.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, types.NewAppError(types.ErrCodeInternalResultStore,
			fmt.Sprintf("failed to read result for %s", key), err)
	}
	return val, true, nil
}
