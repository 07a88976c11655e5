// Package dedup remembers which chat updates were already handled so a
// redelivered update does not create a second message.
package dedup

import (
	"context"
	"fmt"
	"time"

	"service-desk/backend/pkg/cache"
	"service-desk/backend/shared/redis"
)

// Store records keys the first time they are seen
type Store interface {
	// FirstSeen marks key as seen and reports whether this call was the first.
	FirstSeen(ctx context.Context, key string) (bool, error)
}

// MemoryStore keeps seen keys in process memory
type MemoryStore struct {
	cache *cache.Cache
	ttl   time.Duration
}

func NewMemoryStore(c *cache.Cache, ttl time.Duration) *MemoryStore {
	return &MemoryStore{cache: c, ttl: ttl}
}

func (s *MemoryStore) FirstSeen(_ context.Context, key string) (bool, error) {
	return s.cache.SetIfAbsent(key, struct{}{}, s.ttl), nil
}

// RedisStore keeps seen keys in redis so they survive restarts
type RedisStore struct {
	client *redis.RedisClient
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client *redis.RedisClient, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) FirstSeen(ctx context.Context, key string) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.prefix+key, 1, s.ttl)
	if err != nil {
		return false, fmt.Errorf("dedup %s: %w", key, err)
	}
	return ok, nil
}
