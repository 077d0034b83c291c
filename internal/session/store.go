// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrRevoked is returned for a cookie whose session was explicitly signed out.
var ErrRevoked = errors.New("session: session was signed out")

// # Store

// Store binds the cookie codec to the revocation list for HTTP handlers.
type Store struct {
	codec       *Codec
	revocations Revocations
	now         func() time.Time
}

// NewStore creates a [Store].
func NewStore(codec *Codec, revocations Revocations, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{codec: codec, revocations: revocations, now: now}
}

// Now returns the store clock.
func (store *Store) Now() time.Time {
	return store.now()
}

// Load reads and refreshes the request's session.
//
// Missing, malformed and revoked cookies all yield a nil session with an error
// describing why. A failed revocation lookup also yields nil, so an unavailable
// revocation backend fails closed.
func (store *Store) Load(ctx context.Context, request *http.Request) (*Session, error) {
	stored, err := store.codec.Read(request)
	if err != nil {
		return nil, err
	}

	revoked, err := store.revocations.IsRevoked(ctx, stored.ID)
	if err != nil {
		return nil, fmt.Errorf("session: revocation lookup: %w", err)
	}
	if revoked {
		return nil, ErrRevoked
	}

	return stored.Refresh(store.now()), nil
}

// Save writes the session cookie.
func (store *Store) Save(writer http.ResponseWriter, current *Session) error {
	return store.codec.Write(writer, current)
}

// Destroy revokes the session until its cookie would have expired and clears the cookie.
// The cookie is cleared even when revocation fails.
func (store *Store) Destroy(ctx context.Context, writer http.ResponseWriter, last *Session) error {
	store.codec.Clear(writer)
	if last == nil {
		return nil
	}
	return store.revocations.Revoke(ctx, last.ID, store.codec.CookieExpiry(last))
}

// Bind returns a per-request [Provider] seeded with current whose sign-out destroys
// the cookie on writer.
func (store *Store) Bind(writer http.ResponseWriter, current *Session) *Provider {
	return NewProvider(current,
		WithClock(store.now),
		WithSignOutHook(func(ctx context.Context, last *Session) error {
			return store.Destroy(ctx, writer, last)
		}),
	)
}
