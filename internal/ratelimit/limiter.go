// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package ratelimit implements fixed-window request limits keyed by caller identity.

Two backends share the [Checker] contract:

  - [Limiter]: in-process counters, used when no Redis is configured and by shopctl.
  - [RedisLimiter]: one counter key per identifier with a TTL equal to the window,
    so every BFF replica enforces the same ceiling.

A record never counts past the ceiling: a rejected request does not extend or
inflate the window. The first request after the window ends starts a new one at 1.
*/
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Anonymous is the identifier used when a caller cannot be identified.
const Anonymous = "anonymous"

// sweepEvery bounds stale records: expired entries are dropped every N new windows.
const sweepEvery = 100

// Decision is the outcome of one [Checker.Check].
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the wait until the window resets, at least one second.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	return max(d.ResetAt.Sub(now), time.Second)
}

// Checker consumes one request from the identifier's budget.
type Checker interface {
	Check(ctx context.Context, identifier string) (Decision, error)
}

// Record is the counter of one identifier.
type Record struct {
	Count   int
	ResetAt time.Time
}

// # In-memory Limiter

// Limiter is a fixed-window limiter over an in-process map.
type Limiter struct {
	mu      sync.Mutex
	records map[string]*Record
	max     int
	window  time.Duration
	now     func() time.Time
	created int
}

// NewLimiter allows maxRequests per window for each identifier. now may be nil.
func NewLimiter(maxRequests int, window time.Duration, now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	return &Limiter{
		records: make(map[string]*Record),
		max:     maxRequests,
		window:  window,
		now:     now,
	}
}

func normalize(identifier string) string {
	if identifier == "" {
		return Anonymous
	}
	return identifier
}

// CheckLimit consumes one request for identifier and reports whether it is allowed.
func (limiter *Limiter) CheckLimit(identifier string) bool {
	decision, _ := limiter.Check(context.Background(), identifier)
	return decision.Allowed
}

// Check implements [Checker]. It never returns an error.
func (limiter *Limiter) Check(_ context.Context, identifier string) (Decision, error) {
	identifier = normalize(identifier)

	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	now := limiter.now()
	record, found := limiter.records[identifier]

	if !found || now.After(record.ResetAt) {
		record = &Record{Count: 1, ResetAt: now.Add(limiter.window)}
		limiter.records[identifier] = record

		limiter.created++
		if limiter.created >= sweepEvery {
			limiter.sweep(now)
			limiter.created = 0
		}
		return Decision{Allowed: true, Remaining: limiter.max - 1, ResetAt: record.ResetAt}, nil
	}

	if record.Count >= limiter.max {
		return Decision{Allowed: false, Remaining: 0, ResetAt: record.ResetAt}, nil
	}

	record.Count++
	return Decision{Allowed: true, Remaining: limiter.max - record.Count, ResetAt: record.ResetAt}, nil
}

// Remaining reports how many requests identifier may still make in its window.
func (limiter *Limiter) Remaining(identifier string) int {
	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	record, found := limiter.records[normalize(identifier)]
	if !found || limiter.now().After(record.ResetAt) {
		return limiter.max
	}
	return max(0, limiter.max-record.Count)
}

// ResetAt reports when identifier's window ends. Unknown identifiers reset now.
func (limiter *Limiter) ResetAt(identifier string) time.Time {
	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	if record, found := limiter.records[normalize(identifier)]; found {
		return record.ResetAt
	}
	return limiter.now()
}

// Snapshot returns a copy of identifier's record, if any.
func (limiter *Limiter) Snapshot(identifier string) (Record, bool) {
	limiter.mu.Lock()
	defer limiter.mu.Unlock()

	record, found := limiter.records[normalize(identifier)]
	if !found {
		return Record{}, false
	}
	return *record, true
}

// sweep drops expired records. Must be called with mu held.
func (limiter *Limiter) sweep(now time.Time) {
	for identifier, record := range limiter.records {
		if now.After(record.ResetAt) {
			delete(limiter.records, identifier)
		}
	}
}
