// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package session holds the authoritative "am I signed in, as whom, with what backend
token, until when" state of the storefront.

Architecture:

  - Snapshot: a [Session] is never mutated after construction. Every transition
    (expiry, backend rejection) produces a new value, so concurrent readers can
    never observe a torn session.
  - Fail closed: an undecodable access token gets a short fallback lifetime instead
    of an unlimited one, and an error marker always wins over timestamps.
  - No renewal: an expired access token is not exchanged for a new one. The only
    recovery path is signing in again.
  - Ownership: a [Provider] is the single writer of the current snapshot. The monitor,
    the gate and the outbound pipeline only read it, or request a terminal transition
    through [Holder.Fail].
*/
package session

import (
	"fmt"
	"time"

	"github.com/taibuivan/storefront/internal/platform/sec"
	"github.com/taibuivan/storefront/pkg/uuidv7"
)

// # Error Markers

// ErrorCode is the terminal marker of an invalid session.
type ErrorCode string

const (
	// ErrExpired marks a session whose access token outlived its expiry.
	ErrExpired ErrorCode = "expired"

	// ErrRefreshFailed marks a session whose token the backend rejected (401).
	ErrRefreshFailed ErrorCode = "refresh-failed"
)

// # Session Model

// User is the identity captured at sign-in. It only changes through a new sign-in.
type User struct {
	ID          string       `json:"id"`
	Email       string       `json:"email"`
	DisplayName string       `json:"name"`
	FirstName   string       `json:"firstName,omitempty"`
	LastName    string       `json:"lastName,omitempty"`
	Role        sec.UserRole `json:"role"`
}

// Session is an immutable snapshot of the signed-in state.
type Session struct {
	// ID identifies this sign-in; it becomes the cookie 'jti' and the revocation key.
	ID   string `json:"id"`
	User User   `json:"user"`

	// AccessToken is the backend bearer token. It is never logged.
	AccessToken string `json:"accessToken"`

	// AccessTokenExpires is unix seconds, derived from the token or synthesized.
	AccessTokenExpires int64 `json:"accessTokenExpires"`

	// IssuedAt is the unix second the sign-in happened.
	IssuedAt int64 `json:"issuedAt"`

	Error ErrorCode `json:"error,omitempty"`
}

// Establish wraps a freshly exchanged (user, token) pair into a session.
//
// The expiry comes from the token's 'exp' claim. When the token cannot be decoded,
// or declares no expiry, now+fallback is used. A non-positive fallback still yields
// an already-expired session rather than an unlimited one.
func Establish(user User, accessToken string, now time.Time, fallback time.Duration) *Session {
	expires, ok := sec.ExpiryOf(accessToken)
	if !ok {
		expires = now.Add(max(fallback, 0)).Unix()
	}

	return &Session{
		ID:                 uuidv7.New(),
		User:               user,
		AccessToken:        accessToken,
		AccessTokenExpires: expires,
		IssuedAt:           now.Unix(),
	}
}

// Refresh re-derives validity at now.
//
// A still-valid session is returned unchanged (the same pointer). An expired one is
// returned as a copy carrying [ErrExpired]. A session that already carries a marker
// keeps it. Refresh never contacts the backend.
func (s *Session) Refresh(now time.Time) *Session {
	if s == nil || s.Error != "" {
		return s
	}
	if now.Unix() < s.AccessTokenExpires {
		return s
	}
	return s.WithError(ErrExpired)
}

// WithError returns a copy of the session carrying code.
func (s *Session) WithError(code ErrorCode) *Session {
	if s == nil {
		return nil
	}
	failed := *s
	failed.Error = code
	return &failed
}

// Valid reports whether the session is present, unmarked, and unexpired at now.
func (s *Session) Valid(now time.Time) bool {
	return s != nil && s.Error == "" && now.Unix() < s.AccessTokenExpires
}

// Remaining returns the lifetime left at now, never negative.
// Invalid sessions have no lifetime left.
func (s *Session) Remaining(now time.Time) time.Duration {
	if !s.Valid(now) {
		return 0
	}
	return time.Unix(s.AccessTokenExpires, 0).Sub(now)
}

// ExpiresAt returns the access-token expiry as a time.
func (s *Session) ExpiresAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return time.Unix(s.AccessTokenExpires, 0)
}

// HumanRemaining renders a lifetime as "2h 5m" or "4m".
// Durations under one minute render as "0m" since the UI counts in minutes.
func HumanRemaining(remaining time.Duration) string {
	minutes := int(max(remaining, 0) / time.Minute)
	if hours := minutes / 60; hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes%60)
	}
	return fmt.Sprintf("%dm", minutes)
}
