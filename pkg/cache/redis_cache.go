// Package cache stores completed generations in Redis so identical prompt
// pairs skip the provider chain.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Entry is one cached completion.
type Entry struct {
	Completion string `json:"completion"`
	Provider   string `json:"provider"`
	Model      string `json:"model"`
}

// RedisCache wraps a Redis client for storing and retrieving completions.
type RedisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NewRedisCache creates a new Redis-backed completion cache.
func NewRedisCache(opts Options) *RedisCache {
	return NewRedisCacheWithClient(redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), opts.TTL)
}

// NewRedisCacheWithClient uses an existing client.
func NewRedisCacheWithClient(client redis.UniversalClient, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Get retrieves a cached entry by key.
// Returns the entry and true if found, or zero value and false if not.
func (r *RedisCache) Get(ctx context.Context, key string) (Entry, bool, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("redis_cache: get: %w", err)
	}

	var e Entry
	if err := json.Unmarshal(val, &e); err != nil {
		return Entry{}, false, fmt.Errorf("redis_cache: unmarshal: %w", err)
	}

	return e, true, nil
}

// Set stores an entry with the configured TTL.
func (r *RedisCache) Set(ctx context.Context, key string, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("redis_cache: marshal: %w", err)
	}

	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis_cache: set: %w", err)
	}

	return nil
}

// Ping checks the Redis connection.
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (r *RedisCache) Close() error {
	return r.client.Close()
}
