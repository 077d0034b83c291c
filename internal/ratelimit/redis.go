// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/storefront/internal/platform/constants"
)

// fixedWindow consumes one unit unless the ceiling is reached.
//
// KEYS[1] counter key, ARGV[1] window in ms, ARGV[2] ceiling.
// Returns {allowed (0|1), count, ttl ms}.
var fixedWindow = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current >= tonumber(ARGV[2]) then
	return {0, current, redis.call('PTTL', KEYS[1])}
end
current = redis.call('INCR', KEYS[1])
if current == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return {1, current, redis.call('PTTL', KEYS[1])}
`)

// RedisLimiter is a fixed-window limiter shared by every replica.
type RedisLimiter struct {
	client redis.Scripter
	scope  string
	max    int
	window time.Duration
	now    func() time.Time
}

// NewRedisLimiter creates a limiter whose keys live under the scope (e.g. "auth").
func NewRedisLimiter(client redis.Scripter, scope string, maxRequests int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, scope: scope, max: maxRequests, window: window, now: time.Now}
}

// Check implements [Checker].
func (limiter *RedisLimiter) Check(ctx context.Context, identifier string) (Decision, error) {
	key := constants.RedisPrefixRateLimit + limiter.scope + ":" + normalize(identifier)

	values, err := fixedWindow.Run(ctx, limiter.client, []string{key}, limiter.window.Milliseconds(), limiter.max).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("redis_ratelimit_check_failed: %w", err)
	}
	if len(values) != 3 {
		return Decision{}, fmt.Errorf("redis_ratelimit_check_failed: unexpected reply %v", values)
	}

	ttl := time.Duration(values[2]) * time.Millisecond
	if ttl < 0 {
		ttl = limiter.window
	}

	return Decision{
		Allowed:   values[0] == 1,
		Remaining: max(0, limiter.max-int(values[1])),
		ResetAt:   limiter.now().Add(ttl),
	}, nil
}
