// Package staging implements the deferred-write store. This file provides
// the Redis-backed KV used when staging state must be shared across
// replicas, selected by configuration (REDIS_URL).
package staging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// OpenRedis creates a Redis client from a URL and verifies connectivity.
func OpenRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// delIfEquals removes KEYS[1] only when it currently holds ARGV[1]. Running
// as a script keeps the compare and the delete atomic, matching the pointer
// equality semantics of the SQLite backend's conditional DELETE.
var delIfEquals = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisKV adapts a go-redis client to the defensive KV contract. TTLs map to
// native Redis expiry so orphaned staged payloads are collected server-side.
type RedisKV struct {
	client *redis.Client
}

// NewRedisKV wraps an existing Redis client.
func NewRedisKV(client *redis.Client) *RedisKV {
	return &RedisKV{client: client}
}

// Get implements KV.
func (s *RedisKV) Get(ctx context.Context, key string) (string, bool) {
	v, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false
	}
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("redis kv get failed")
		return "", false
	}
	return v, true
}

// Set implements KV.
func (s *RedisKV) Set(ctx context.Context, key, value string) bool {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("redis kv set failed")
		return false
	}
	return true
}

// SetTTL implements KV.
func (s *RedisKV) SetTTL(ctx context.Context, key, value string, ttl time.Duration) bool {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("redis kv set with ttl failed")
		return false
	}
	return true
}

// Delete implements KV.
func (s *RedisKV) Delete(ctx context.Context, key string) bool {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("redis kv delete failed")
		return false
	}
	return true
}

// DeleteIfEquals implements KV.
func (s *RedisKV) DeleteIfEquals(ctx context.Context, key, want string) bool {
	n, err := delIfEquals.Run(ctx, s.client, []string{key}, want).Int()
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("redis kv conditional delete failed")
		return false
	}
	return n > 0
}
