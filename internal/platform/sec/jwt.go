// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sec provides cryptographic primitives and token inspection.
//
// # Architecture
//
// This package isolates security-sensitive code from the domain logic:
//
//   - Token Inspector: unverified decoding of backend access tokens.
//   - Signer: HS256 signing and verification of the BFF's own session cookie.
//   - Roles: the authorization levels carried inside a session.
package sec

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidSecret is returned when the signing secret is empty.
var ErrInvalidSecret = errors.New("sec: signing secret must not be empty")

// Signer signs and verifies session cookies using HS256.
//
// The signed payload is produced and consumed by this server only, so a
// symmetric key derived from SESSION_SECRET is sufficient.
type Signer struct {
	secret []byte
	issuer string
}

// NewSigner creates a new [Signer] bound to a secret and issuer.
func NewSigner(secret, issuer string) (*Signer, error) {
	if secret == "" {
		return nil, ErrInvalidSecret
	}
	return &Signer{secret: []byte(secret), issuer: issuer}, nil
}

// Issuer returns the 'iss' value the signer expects.
func (signer *Signer) Issuer() string {
	return signer.issuer
}

// Sign serializes and signs the claims.
func (signer *Signer) Sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(signer.secret)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign token: %w", err)
	}
	return signedToken, nil
}

// Verify checks the signature, issuer, and time claims, decoding into claims.
// Extra parser options (such as a test clock) are appended to the defaults.
func (signer *Signer) Verify(tokenString string, claims jwt.Claims, options ...jwt.ParserOption) error {
	options = append([]jwt.ParserOption{
		jwt.WithIssuer(signer.issuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}, options...)

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("sec: unexpected signing method: %v", token.Header["alg"])
		}
		return signer.secret, nil
	}, options...)
	if err != nil {
		return fmt.Errorf("sec: invalid token: %w", err)
	}
	if !token.Valid {
		return fmt.Errorf("sec: invalid token claims")
	}
	return nil
}
