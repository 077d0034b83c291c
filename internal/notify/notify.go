// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package notify delivers user-visible notifications about session and backend failures.

Architecture:

  - Stable IDs: every notification kind has a fixed ID ("session-expired",
    "network-error", ...). The ID is the deduplication key.
  - Sinks: [Log] writes structured events, [Terminal] renders styled lines for shopctl.
  - Dedup: [Dedup] drops repeats of the same ID inside a window, so a burst of
    401s or a retried request produces exactly one notification.
*/
package notify

import (
	"context"
	"time"
)

// Level is the severity shown to the user.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Stable notification IDs.
const (
	IDSessionWarning  = "session-warning"
	IDSessionExpired  = "session-expired"
	IDAccessForbidden = "access-forbidden"
	IDNotFound        = "not-found"
	IDRateLimit       = "rate-limit"
	IDServerError     = "server-error"
	IDNetworkError    = "network-error"
	IDAPIError        = "api-error"
)

// Notification is one user-facing message.
type Notification struct {
	ID       string        `json:"id"`
	Level    Level         `json:"level"`
	Message  string        `json:"message"`
	Duration time.Duration `json:"duration"`
}

// Notifier delivers notifications. Implementations must be safe for concurrent use
// and must not block on user interaction.
type Notifier interface {
	Notify(ctx context.Context, notification Notification)
}

// NotifierFunc adapts a function to [Notifier].
type NotifierFunc func(ctx context.Context, notification Notification)

// Notify calls fn.
func (fn NotifierFunc) Notify(ctx context.Context, notification Notification) {
	fn(ctx, notification)
}

// Discard drops every notification.
var Discard Notifier = NotifierFunc(func(context.Context, Notification) {})

// Fanout delivers every notification to each sink in order.
func Fanout(sinks ...Notifier) Notifier {
	return NotifierFunc(func(ctx context.Context, notification Notification) {
		for _, sink := range sinks {
			sink.Notify(ctx, notification)
		}
	})
}
