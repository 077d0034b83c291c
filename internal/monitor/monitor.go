// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package monitor watches the remaining lifetime of the current session.

State machine:

	Stopped --Start--> Running --Stop / no session / expired--> Stopped

While running, the monitor polls its [Source] on a fixed interval. Each poll, in order:

 1. No session: stop.
 2. Invalid session (expired or marked): notify once, stop, and call the expiry
    handler after a short delay so the notification can render.
 3. Remaining lifetime at or below the warning threshold: warn once per Start.

The expiry check runs before the warning check, so an expired session never also
produces a "near expiry" warning.

A [Monitor] is constructed once by the composition root and handed to consumers.
*/
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/taibuivan/storefront/internal/notify"
	"github.com/taibuivan/storefront/internal/platform/constants"
	"github.com/taibuivan/storefront/internal/session"
)

// # Collaborators

// Source yields the current session snapshot, or nil when signed out.
type Source interface {
	Snapshot(ctx context.Context) *session.Session
}

// SourceFunc adapts a function to [Source].
type SourceFunc func(ctx context.Context) *session.Session

// Snapshot calls fn.
func (fn SourceFunc) Snapshot(ctx context.Context) *session.Session {
	return fn(ctx)
}

// ExpiredHandler runs after the redirect delay once a poll finds the session invalid.
// It typically signs out and sends the user to the sign-in surface.
type ExpiredHandler func(ctx context.Context)

// # Options

// Option configures a [Monitor].
type Option func(*Monitor)

// WithInterval overrides the poll interval. Non-positive values keep the default.
func WithInterval(interval time.Duration) Option {
	return func(monitor *Monitor) { monitor.interval = interval }
}

// WithWarningThreshold overrides the remaining lifetime that triggers the warning.
func WithWarningThreshold(threshold time.Duration) Option {
	return func(monitor *Monitor) { monitor.warnThreshold = threshold }
}

// WithRedirectDelay overrides the pause between the expiry notification and the handler.
func WithRedirectDelay(delay time.Duration) Option {
	return func(monitor *Monitor) { monitor.redirectDelay = delay }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(monitor *Monitor) { monitor.now = now }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(monitor *Monitor) { monitor.logger = logger }
}

// # Monitor

// Monitor is the background session watcher.
type Monitor struct {
	source        Source
	notifier      notify.Notifier
	onExpired     ExpiredHandler
	interval      time.Duration
	warnThreshold time.Duration
	redirectDelay time.Duration
	now           func() time.Time
	logger        *slog.Logger

	// lifecycleMu guards cancel and done.
	lifecycleMu sync.Mutex
	cancel      context.CancelFunc
	done        chan struct{}

	// timerMu guards redirect; it is never held while waiting on the loop.
	timerMu  sync.Mutex
	redirect *time.Timer

	warningShown atomic.Bool
}

// New creates a stopped [Monitor].
func New(source Source, notifier notify.Notifier, onExpired ExpiredHandler, options ...Option) *Monitor {
	monitor := &Monitor{
		source:        source,
		notifier:      notifier,
		onExpired:     onExpired,
		interval:      constants.MonitorPollInterval,
		warnThreshold: constants.MonitorWarningThreshold,
		redirectDelay: constants.MonitorRedirectDelay,
		now:           time.Now,
		logger:        slog.Default(),
	}
	for _, option := range options {
		option(monitor)
	}

	// A ticker cannot run on a non-positive period
	if monitor.interval <= 0 {
		monitor.interval = constants.MonitorPollInterval
	}
	monitor.warnThreshold = max(monitor.warnThreshold, 0)
	monitor.redirectDelay = max(monitor.redirectDelay, 0)
	return monitor
}

// Start begins polling. A running monitor is stopped first, and the per-session
// warning flag is reset.
func (monitor *Monitor) Start(ctx context.Context) {
	monitor.lifecycleMu.Lock()
	defer monitor.lifecycleMu.Unlock()

	monitor.stopLocked()
	monitor.warningShown.Store(false)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	monitor.cancel = cancel
	monitor.done = done

	go monitor.loop(runCtx, done)
}

// Stop cancels polling and any pending expiry redirect.
//
// It is idempotent. When it returns, no poll is running and none will start.
// Stop must not be called from a [notify.Notifier] invoked by this monitor.
func (monitor *Monitor) Stop() {
	monitor.lifecycleMu.Lock()
	defer monitor.lifecycleMu.Unlock()

	monitor.stopLocked()
}

// Running reports whether the poll loop is active.
func (monitor *Monitor) Running() bool {
	monitor.lifecycleMu.Lock()
	defer monitor.lifecycleMu.Unlock()

	if monitor.done == nil {
		return false
	}
	select {
	case <-monitor.done:
		return false
	default:
		return true
	}
}

func (monitor *Monitor) stopLocked() {
	if monitor.cancel != nil {
		monitor.cancel()
		<-monitor.done
		monitor.cancel = nil
		monitor.done = nil
	}

	monitor.timerMu.Lock()
	if monitor.redirect != nil {
		monitor.redirect.Stop()
		monitor.redirect = nil
	}
	monitor.timerMu.Unlock()
}

func (monitor *Monitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(monitor.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// A Stop racing with the tick wins.
			if ctx.Err() != nil {
				return
			}
			if !monitor.poll(ctx) {
				return
			}
		}
	}
}

// poll evaluates one tick. It reports whether monitoring should continue.
func (monitor *Monitor) poll(ctx context.Context) bool {

	// 1. Signed out
	current := monitor.source.Snapshot(ctx)
	if current == nil {
		monitor.logger.InfoContext(ctx, "session_monitor_stopped", slog.String("reason", "no_session"))
		return false
	}

	// 2. Expired or marked: expiry wins over the warning
	now := monitor.now()
	if !current.Valid(now) {
		monitor.handleExpired(ctx, current)
		return false
	}

	// 3. Near expiry, once per Start
	remaining := current.Remaining(now)
	if remaining <= monitor.warnThreshold && monitor.warningShown.CompareAndSwap(false, true) {
		minutes := int(math.Ceil(remaining.Minutes()))
		monitor.logger.InfoContext(ctx, "session_expiry_warning", slog.Duration("remaining", remaining))
		monitor.notifier.Notify(ctx, notify.Notification{
			ID:       notify.IDSessionWarning,
			Level:    notify.LevelWarning,
			Message:  fmt.Sprintf("Your session expires in %d minute(s). Save your work and sign in again.", minutes),
			Duration: 30 * time.Second,
		})
	}

	return true
}

func (monitor *Monitor) handleExpired(ctx context.Context, current *session.Session) {
	monitor.logger.InfoContext(ctx, "session_expired",
		slog.String("session_id", current.ID),
		slog.String("marker", string(current.Error)),
	)

	monitor.notifier.Notify(ctx, notify.Notification{
		ID:       notify.IDSessionExpired,
		Level:    notify.LevelError,
		Message:  "Your session has expired. Please sign in again.",
		Duration: 5 * time.Second,
	})

	if monitor.onExpired == nil {
		return
	}

	handler := monitor.onExpired
	monitor.timerMu.Lock()
	monitor.redirect = time.AfterFunc(monitor.redirectDelay, func() {
		handler(context.WithoutCancel(ctx))
	})
	monitor.timerMu.Unlock()
}
