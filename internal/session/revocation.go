// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/storefront/internal/platform/constants"
)

// # Revocations

// Revocations remembers explicitly signed-out session IDs until their cookies expire,
// so a copied cookie cannot be replayed after sign-out.
type Revocations interface {
	Revoke(ctx context.Context, id string, until time.Time) error
	IsRevoked(ctx context.Context, id string) (bool, error)
}

// RedisRevocations stores revoked IDs as expiring Redis keys, shared by every replica.
type RedisRevocations struct {
	client redis.Cmdable
	now    func() time.Time
}

// NewRedisRevocations creates a Redis-backed [Revocations].
func NewRedisRevocations(client redis.Cmdable) *RedisRevocations {
	return &RedisRevocations{client: client, now: time.Now}
}

// Revoke stores id with a TTL ending at until. Past deadlines are a no-op.
func (store *RedisRevocations) Revoke(ctx context.Context, id string, until time.Time) error {
	ttl := until.Sub(store.now())
	if ttl <= 0 {
		return nil
	}
	if err := store.client.Set(ctx, constants.RedisPrefixRevokedSession+id, "1", ttl).Err(); err != nil {
		return fmt.Errorf("redis_session_revoke_failed: %w", err)
	}
	return nil
}

// IsRevoked reports whether id was signed out.
func (store *RedisRevocations) IsRevoked(ctx context.Context, id string) (bool, error) {
	count, err := store.client.Exists(ctx, constants.RedisPrefixRevokedSession+id).Result()
	if err != nil {
		return false, fmt.Errorf("redis_session_revoked_check_failed: %w", err)
	}
	return count > 0, nil
}

// MemoryRevocations is the single-process fallback used when Redis is not configured.
type MemoryRevocations struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryRevocations creates an in-memory [Revocations].
func NewMemoryRevocations(now func() time.Time) *MemoryRevocations {
	if now == nil {
		now = time.Now
	}
	return &MemoryRevocations{entries: make(map[string]time.Time), now: now}
}

// Revoke records id until the deadline. Expired entries are swept on write.
func (store *MemoryRevocations) Revoke(_ context.Context, id string, until time.Time) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	current := store.now()
	for key, deadline := range store.entries {
		if !current.Before(deadline) {
			delete(store.entries, key)
		}
	}
	if current.Before(until) {
		store.entries[id] = until
	}
	return nil
}

// IsRevoked reports whether id is revoked and its deadline has not passed.
func (store *MemoryRevocations) IsRevoked(_ context.Context, id string) (bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	deadline, found := store.entries[id]
	return found && store.now().Before(deadline), nil
}
