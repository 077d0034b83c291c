// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// # Token Inspector

// TokenClaims is the decoded, unverified payload of a backend access token.
//
// The backend that issued the token owns signature trust. The BFF only reads
// the payload for expiry bookkeeping and display.
type TokenClaims struct {
	Subject   string
	ExpiresAt int64 // unix seconds, 0 when the token carries no 'exp'
	IssuedAt  int64 // unix seconds, 0 when the token carries no 'iat'

	// Raw holds every claim, including the registered ones above.
	Raw map[string]any
}

// HasExpiry reports whether the token declared an 'exp' claim.
func (c *TokenClaims) HasExpiry() bool {
	return c != nil && c.ExpiresAt > 0
}

var inspector = jwt.NewParser()

// Decode reads the claims of a JWT-shaped bearer token without verifying its signature.
//
// It never panics or returns an error. Malformed input yields nil, which every caller
// must treat as an already-expired token.
func Decode(token string) *TokenClaims {
	if token == "" {
		return nil
	}

	raw := jwt.MapClaims{}
	if _, _, err := inspector.ParseUnverified(token, raw); err != nil {
		return nil
	}

	claims := &TokenClaims{Raw: raw}

	// A wrongly typed registered claim makes the token undecodable.
	expiry, err := raw.GetExpirationTime()
	if err != nil {
		return nil
	}
	if expiry != nil {
		claims.ExpiresAt = expiry.Unix()
	}

	issued, err := raw.GetIssuedAt()
	if err != nil {
		return nil
	}
	if issued != nil {
		claims.IssuedAt = issued.Unix()
	}

	claims.Subject, _ = raw.GetSubject()
	return claims
}

// ExpiryOf returns the token's 'exp' in unix seconds.
// The boolean is false when the token is undecodable or has no expiry.
func ExpiryOf(token string) (int64, bool) {
	claims := Decode(token)
	if !claims.HasExpiry() {
		return 0, false
	}
	return claims.ExpiresAt, true
}

// RemainingSeconds returns max(0, exp - now). Unknown expiry yields 0.
func RemainingSeconds(token string, now time.Time) int64 {
	expiry, ok := ExpiryOf(token)
	if !ok {
		return 0
	}
	return max(0, expiry-now.Unix())
}
