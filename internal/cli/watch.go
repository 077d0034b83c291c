// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/taibuivan/storefront/internal/monitor"
	"github.com/taibuivan/storefront/internal/platform/constants"
	"github.com/taibuivan/storefront/internal/session"
)

// snapshotSource asks the BFF for the current session.
//
// When the BFF cannot answer, the cached snapshot is re-derived against the local
// clock, so an unreachable server never keeps an expired session alive. A BFF
// answer of "signed out" yields nil. Fresh answers update the session file.
// Every yielded snapshot, nil included, is also recorded in last.
func snapshotSource(opts *options, store *SessionFile, saved *Saved, last *atomic.Pointer[session.Session]) monitor.Source {
	bff := opts.BFF()
	logger := opts.Logger()

	var mu sync.Mutex
	cached := saved.Session

	return monitor.SourceFunc(func(ctx context.Context) *session.Session {
		mu.Lock()
		defer mu.Unlock()

		current, err := bff.Session(ctx, saved.Cookie)
		switch {
		case err != nil:
			logger.WarnContext(ctx, "session_poll_failed", slog.String("error", err.Error()))
			current = cached.Refresh(opts.env.Now())
		case current == nil:
			_ = store.Remove()
		default:
			cached = current
			if saveErr := store.Save(&Saved{Cookie: saved.Cookie, Session: current}); saveErr != nil {
				logger.WarnContext(ctx, "session_cache_failed", slog.String("error", saveErr.Error()))
			}
			current = current.Refresh(opts.env.Now())
		}

		if last != nil {
			last.Store(current)
		}
		return current
	})
}

// # watch

type watchFlags struct {
	interval  time.Duration
	threshold time.Duration
	grace     time.Duration
}

func newWatchCommand(opts *options) *cobra.Command {
	flags := watchFlags{}

	command := &cobra.Command{
		Use:   "watch",
		Short: "Watch the session and warn before it expires",
		Long: `Poll the session and print a warning shortly before it expires.

When the session expires or is revoked, the local session is removed and the
command exits with an error.`,
		Args: cobra.NoArgs,
		RunE: func(command *cobra.Command, _ []string) error {
			return runWatch(command.Context(), opts, flags)
		},
	}
	command.Flags().DurationVar(&flags.interval, "interval", constants.MonitorPollInterval, "Poll interval")
	command.Flags().DurationVar(&flags.threshold, "warn-before", constants.MonitorWarningThreshold, "Warn when this much lifetime is left")
	command.Flags().DurationVar(&flags.grace, "grace", constants.MonitorRedirectDelay, "Pause between the expiry notice and exit")
	return command
}

func runWatch(ctx context.Context, opts *options, flags watchFlags) error {
	if flags.interval <= 0 {
		return fmt.Errorf("--interval must be positive, got %s", flags.interval)
	}

	store, err := opts.Store()
	if err != nil {
		return err
	}
	saved, err := store.Load()
	if err != nil {
		return err
	}

	var last atomic.Pointer[session.Session]
	source := snapshotSource(opts, store, saved, &last)

	// First look happens immediately; the monitor's first poll is one interval away
	current := source.Snapshot(ctx)
	if current == nil {
		return ErrSignedOut
	}
	if err := printSession(opts, current); err != nil {
		return err
	}
	if !current.Valid(opts.env.Now()) {
		_ = store.Remove()
		return ErrSessionExpired
	}

	expired := make(chan struct{})
	var once sync.Once
	onExpired := func(context.Context) {
		once.Do(func() {
			_ = store.Remove()
			close(expired)
		})
	}

	watcher := monitor.New(source, terminalNotifier(opts), onExpired,
		monitor.WithInterval(flags.interval),
		monitor.WithWarningThreshold(flags.threshold),
		monitor.WithRedirectDelay(flags.grace),
		monitor.WithClock(opts.env.Now),
		monitor.WithLogger(opts.Logger()),
	)
	watcher.Start(ctx)
	defer watcher.Stop()

	check := time.NewTicker(min(flags.interval, time.Second))
	defer check.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-expired:
			_, _ = fmt.Fprintf(opts.env.Stdout, "Sign in again at %s\n", opts.BFF().SignInURL())
			return ErrSessionExpired
		case <-check.C:
			if watcher.Running() {
				continue
			}
			// Stopped on an invalid snapshot: the expiry handler is still pending
			if seen := last.Load(); seen != nil && !seen.Valid(opts.env.Now()) {
				continue
			}
			_, _ = fmt.Fprintln(opts.env.Stdout, "Signed out.")
			return nil
		}
	}
}
