// Package cache fronts the document read paths with a Redis key/value store.
// The cache is never load-bearing for correctness: every operation degrades
// to a miss when the backing store is unreachable.
package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is the cache surface the read paths and the reconciler depend on.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, key string) bool
	Invalidate(ctx context.Context, keys []string) int
}

type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NewRedisStore connects to Redis and verifies the connection with a PING.
// A failed ping is logged, not fatal: the store still works once Redis comes
// back, and every read degrades to a miss until then.
func NewRedisStore(ctx context.Context, opts RedisOptions) *RedisStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		slog.Warn("redis unreachable, cache degrades to miss", "addr", opts.Addr, "error", err)
	}

	return &RedisStore{rdb: rdb, ttl: opts.TTL}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.ErrorContext(ctx, "cache get failed", "key", key, "error", err)
		}
		return nil, false
	}
	return data, true
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.ttl
	}
	if err := s.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		slog.ErrorContext(ctx, "cache set failed", "key", key, "error", err)
	}
}

func (s *RedisStore) Delete(ctx context.Context, key string) bool {
	n, err := s.rdb.Del(ctx, key).Result()
	if err != nil {
		slog.ErrorContext(ctx, "cache delete failed", "key", key, "error", err)
		return false
	}
	return n > 0
}

// Invalidate best-effort deletes every key, returning how many existed.
// A missing key is not an error.
func (s *RedisStore) Invalidate(ctx context.Context, keys []string) int {
	deleted := 0
	for _, key := range keys {
		if s.Delete(ctx, key) {
			deleted++
		}
	}
	return deleted
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
