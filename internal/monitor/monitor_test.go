// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package monitor

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/storefront/internal/notify"
	"github.com/taibuivan/storefront/internal/platform/constants"
	"github.com/taibuivan/storefront/internal/session"
)

var epoch = time.Unix(1_700_000_000, 0)

type recorder struct {
	mu   sync.Mutex
	seen []notify.Notification
}

func (r *recorder) Notify(_ context.Context, notification notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, notification)
}

func (r *recorder) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.seen))
	for _, notification := range r.seen {
		ids = append(ids, notification.ID)
	}
	return ids
}

// fixture builds a monitor over a session expiring at epoch+lifetime with a movable clock.
type fixture struct {
	monitor  *Monitor
	sink     *recorder
	now      atomic.Int64
	expired  atomic.Int32
	snapshot atomic.Pointer[session.Session]
}

func newFixture(t *testing.T, lifetime time.Duration, options ...Option) *fixture {
	t.Helper()
	f := &fixture{sink: &recorder{}}
	f.now.Store(epoch.UnixNano())
	f.snapshot.Store(session.Establish(session.User{ID: "user-1"}, "opaque", epoch, lifetime))

	source := SourceFunc(func(context.Context) *session.Session { return f.snapshot.Load() })
	options = append([]Option{
		WithClock(func() time.Time { return time.Unix(0, f.now.Load()) }),
		WithRedirectDelay(10 * time.Millisecond),
		WithLogger(slog.New(slog.NewJSONHandler(io.Discard, nil))),
	}, options...)

	f.monitor = New(source, f.sink, func(context.Context) { f.expired.Add(1) }, options...)
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now.Add(int64(d))
}

/*
TestPoll_WarnOnceThenExpire walks a session expiring in 4 minutes through three polls.
*/
func TestPoll_WarnOnceThenExpire(t *testing.T) {
	f := newFixture(t, 4*time.Minute)
	ctx := context.Background()

	// 1. First poll: inside the 5 minute threshold, one warning
	assert.True(t, f.monitor.poll(ctx))
	assert.Equal(t, []string{notify.IDSessionWarning}, f.sink.ids())

	// 2. Second poll before expiry: nothing new
	f.advance(30 * time.Second)
	assert.True(t, f.monitor.poll(ctx))
	assert.Equal(t, []string{notify.IDSessionWarning}, f.sink.ids())

	// 3. Poll after expiry: expiry notification, no warning, monitoring stops
	f.advance(4 * time.Minute)
	assert.False(t, f.monitor.poll(ctx))
	assert.Equal(t, []string{notify.IDSessionWarning, notify.IDSessionExpired}, f.sink.ids())

	// 4. Sign-out follows after the redirect delay, exactly once
	assert.Eventually(t, func() bool { return f.expired.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), f.expired.Load())
}

/*
TestPoll_ExpiredNeverWarns verifies that an already-expired session skips the warning.
*/
func TestPoll_ExpiredNeverWarns(t *testing.T) {
	f := newFixture(t, time.Minute)
	f.advance(2 * time.Minute)

	assert.False(t, f.monitor.poll(context.Background()))
	assert.Equal(t, []string{notify.IDSessionExpired}, f.sink.ids())
}

/*
TestPoll_MarkedSessionIsExpired verifies that a backend rejection is treated as expiry.
*/
func TestPoll_MarkedSessionIsExpired(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.snapshot.Store(f.snapshot.Load().WithError(session.ErrRefreshFailed))

	assert.False(t, f.monitor.poll(context.Background()))
	assert.Equal(t, []string{notify.IDSessionExpired}, f.sink.ids())
}

/*
TestPoll_NoSession verifies that a missing session stops monitoring silently.
*/
func TestPoll_NoSession(t *testing.T) {
	f := newFixture(t, time.Hour)
	f.snapshot.Store(nil)

	assert.False(t, f.monitor.poll(context.Background()))
	assert.Empty(t, f.sink.ids())
	assert.Zero(t, f.expired.Load())
}

/*
TestPoll_FarFromExpiry verifies that a long-lived session produces no notification.
*/
func TestPoll_FarFromExpiry(t *testing.T) {
	f := newFixture(t, time.Hour)

	assert.True(t, f.monitor.poll(context.Background()))
	assert.Empty(t, f.sink.ids())
}

/*
TestStartStop verifies the lifecycle: polls happen while running and never after Stop returns.
*/
func TestStartStop(t *testing.T) {
	var polls atomic.Int32
	source := SourceFunc(func(context.Context) *session.Session {
		polls.Add(1)
		return session.Establish(session.User{ID: "user-1"}, "opaque", time.Now(), time.Hour)
	})
	monitor := New(source, notify.Discard, nil,
		WithInterval(2*time.Millisecond),
		WithLogger(slog.New(slog.NewJSONHandler(io.Discard, nil))),
	)

	monitor.Start(context.Background())
	require.Eventually(t, func() bool { return polls.Load() >= 3 }, time.Second, time.Millisecond)
	assert.True(t, monitor.Running())

	monitor.Stop()
	assert.False(t, monitor.Running())
	stoppedAt := polls.Load()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stoppedAt, polls.Load())

	// Idempotent
	assert.NotPanics(t, func() {
		monitor.Stop()
		monitor.Stop()
	})
}

/*
TestStart_ResetsWarning verifies that restarting for a new session allows a new warning.
*/
func TestStart_ResetsWarning(t *testing.T) {
	f := newFixture(t, 4*time.Minute, WithInterval(time.Hour))

	f.monitor.Start(context.Background())
	assert.True(t, f.monitor.poll(context.Background()))
	f.monitor.Stop()

	f.monitor.Start(context.Background())
	assert.True(t, f.monitor.poll(context.Background()))
	f.monitor.Stop()

	assert.Equal(t, []string{notify.IDSessionWarning, notify.IDSessionWarning}, f.sink.ids())
}

/*
TestStop_CancelsPendingRedirect verifies that teardown also cancels the scheduled sign-out.
*/
func TestStop_CancelsPendingRedirect(t *testing.T) {
	f := newFixture(t, time.Minute, WithRedirectDelay(50*time.Millisecond), WithInterval(time.Hour))
	f.advance(2 * time.Minute)

	f.monitor.Start(context.Background())
	assert.False(t, f.monitor.poll(context.Background()))
	f.monitor.Stop()

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, f.expired.Load())
}

/*
TestStart_SelfStopsOnExpiry verifies that the loop ends by itself when the session expires.
*/
func TestStart_SelfStopsOnExpiry(t *testing.T) {
	f := newFixture(t, time.Minute, WithInterval(2*time.Millisecond))
	f.advance(2 * time.Minute)

	f.monitor.Start(context.Background())

	assert.Eventually(t, func() bool { return !f.monitor.Running() }, time.Second, time.Millisecond)
	assert.Eventually(t, func() bool { return f.expired.Load() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{notify.IDSessionExpired}, f.sink.ids())
}

/*
TestNew_NonPositiveDurations verifies that zero and negative settings fall back to
safe values and the loop still starts.
*/
func TestNew_NonPositiveDurations(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
	}{
		{"zero", 0},
		{"negative", -time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, time.Hour,
				WithInterval(tt.interval),
				WithWarningThreshold(-time.Minute),
				WithRedirectDelay(-time.Second),
			)

			assert.Equal(t, constants.MonitorPollInterval, f.monitor.interval)
			assert.Zero(t, f.monitor.warnThreshold)
			assert.Zero(t, f.monitor.redirectDelay)

			assert.NotPanics(t, func() { f.monitor.Start(context.Background()) })
			assert.True(t, f.monitor.Running())
			f.monitor.Stop()
		})
	}
}
