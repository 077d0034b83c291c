// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package notify

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const defaultDedupSize = 128

// Dedup forwards a notification only if no notification with the same ID was
// forwarded within the window.
type Dedup struct {
	next Notifier

	mu   sync.Mutex
	seen *expirable.LRU[string, struct{}]
}

// NewDedup wraps next with an ID-keyed deduplication window.
func NewDedup(next Notifier, window time.Duration) *Dedup {
	return &Dedup{
		next: next,
		seen: expirable.NewLRU[string, struct{}](defaultDedupSize, nil, window),
	}
}

// Notify forwards notification unless its ID is still inside the window.
// Notifications without an ID are never deduplicated.
func (dedup *Dedup) Notify(ctx context.Context, notification Notification) {
	if notification.ID != "" {
		dedup.mu.Lock()
		if dedup.seen.Contains(notification.ID) {
			dedup.mu.Unlock()
			return
		}
		dedup.seen.Add(notification.ID, struct{}{})
		dedup.mu.Unlock()
	}

	dedup.next.Notify(ctx, notification)
}

