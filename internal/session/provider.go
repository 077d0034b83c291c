// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// # Holder

// Holder is the shared session handle consumed by the monitor and the outbound pipeline.
type Holder interface {
	// Current returns the latest snapshot, or nil when signed out.
	Current() *Session

	// Fail marks the current session with code. It returns true only for the caller
	// that performed the transition, so concurrent failures collapse into one.
	Fail(code ErrorCode) bool

	// SignOut clears the session. Repeated calls are no-ops.
	SignOut(ctx context.Context) error
}

// SignOutHook runs once when a signed-in [Provider] is signed out.
// It receives the last snapshot, which may carry an error marker.
type SignOutHook func(ctx context.Context, last *Session) error

// ProviderOption configures a [Provider].
type ProviderOption func(*Provider)

// WithSignOutHook appends a hook executed on sign-out.
func WithSignOutHook(hook SignOutHook) ProviderOption {
	return func(provider *Provider) {
		provider.hooks = append(provider.hooks, hook)
	}
}

// WithClock overrides the time source used by [Provider.Current].
func WithClock(now func() time.Time) ProviderOption {
	return func(provider *Provider) {
		provider.now = now
	}
}

// # Provider

// Provider owns a single session slot.
//
// Writes replace the whole snapshot with an atomic swap, so readers never block and
// never see a partially updated session. Only [Provider.SignIn], [Provider.Fail] and
// [Provider.SignOut] write.
type Provider struct {
	current atomic.Pointer[Session]
	now     func() time.Time
	hooks   []SignOutHook

	// signOutMu serializes sign-out so hooks run once per signed-in snapshot.
	signOutMu sync.Mutex
}

// NewProvider creates a provider seeded with initial (which may be nil).
func NewProvider(initial *Session, options ...ProviderOption) *Provider {
	provider := &Provider{now: time.Now}
	for _, option := range options {
		option(provider)
	}
	provider.current.Store(initial)
	return provider
}

// SignIn installs a new snapshot, replacing any previous one.
func (provider *Provider) SignIn(next *Session) {
	provider.current.Store(next)
}

// Current returns the snapshot refreshed against the provider clock.
//
// Reading never writes: an expired session is reported with [ErrExpired] but the
// stored snapshot is left for [Provider.Fail] or [Provider.SignOut] to replace.
func (provider *Provider) Current() *Session {
	return provider.current.Load().Refresh(provider.now())
}

// Fail marks the stored session with code using compare-and-swap.
//
// Exactly one of several concurrent callers observes true. A session that is
// absent or already marked yields false.
func (provider *Provider) Fail(code ErrorCode) bool {
	for {
		stored := provider.current.Load()
		if stored == nil || stored.Error != "" {
			return false
		}
		if provider.current.CompareAndSwap(stored, stored.WithError(code)) {
			return true
		}
	}
}

// SignOut clears the slot and runs the sign-out hooks once.
//
// Hooks see the last snapshot. Hook errors are joined and returned but the slot is
// cleared regardless.
func (provider *Provider) SignOut(ctx context.Context) error {
	provider.signOutMu.Lock()
	defer provider.signOutMu.Unlock()

	last := provider.current.Swap(nil)
	if last == nil {
		return nil
	}

	var errs []error
	for _, hook := range provider.hooks {
		if err := hook(ctx, last); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
