package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "storefront:"

// DefaultRedisTTL roughly matches how long the gateway keeps an idle cart.
const DefaultRedisTTL = 10 * 24 * time.Hour

// cmdable is the subset of go-redis used here.
type cmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore keeps the record under storefront:<session>:cart. Sessions let
// several devices share one Redis while each keeps its own record.
type RedisStore struct {
	client cmdable
	key    string
	ttl    time.Duration
}

// NewRedisStore returns a store for session. A zero ttl uses DefaultRedisTTL.
func NewRedisStore(client cmdable, session string, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultRedisTTL
	}
	if session == "" {
		session = "default"
	}
	return &RedisStore{
		client: client,
		key:    fmt.Sprintf("%s%s:%s", keyPrefix, session, RecordKey),
		ttl:    ttl,
	}
}

// Key returns the Redis key holding the record.
func (r *RedisStore) Key() string { return r.key }

func (r *RedisStore) Load(ctx context.Context) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

func (r *RedisStore) Save(ctx context.Context, data []byte) error {
	if err := r.client.Set(ctx, r.key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}
