// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/taibuivan/storefront/internal/platform/constants"
	"github.com/taibuivan/storefront/internal/platform/sec"
)

var (
	// ErrNoSession is returned when the request carries no session cookie.
	ErrNoSession = errors.New("session: no session cookie")

	// ErrMalformed is returned when the cookie fails signature or claim checks.
	ErrMalformed = errors.New("session: malformed session cookie")
)

// # Cookie Claims

// cookieClaims is the signed payload of the session cookie.
// Field names are abbreviated to keep the cookie small.
type cookieClaims struct {
	jwt.RegisteredClaims

	AccessToken        string `json:"at"`
	AccessTokenExpires int64  `json:"ate"`
	Email              string `json:"em"`
	Name               string `json:"nm,omitempty"`
	FirstName          string `json:"fn,omitempty"`
	LastName           string `json:"ln,omitempty"`
	Role               string `json:"rol"`
	Error              string `json:"err,omitempty"`
}

// # Codec

// Codec turns sessions into signed cookies and back.
type Codec struct {
	signer *sec.Signer
	maxAge time.Duration
	secure bool
	now    func() time.Time
}

// NewCodec creates a [Codec]. secure should be true whenever the app is served over https.
func NewCodec(signer *sec.Signer, maxAge time.Duration, secure bool, now func() time.Time) *Codec {
	if now == nil {
		now = time.Now
	}
	return &Codec{signer: signer, maxAge: maxAge, secure: secure, now: now}
}

// CookieExpiry is the moment a session's cookie stops being accepted.
func (codec *Codec) CookieExpiry(current *Session) time.Time {
	return time.Unix(current.IssuedAt, 0).Add(codec.maxAge)
}

// Encode signs the session. The cookie lifetime is anchored at sign-in time so
// re-encoding a marked session never extends it.
func (codec *Codec) Encode(current *Session) (string, error) {
	if current == nil {
		return "", ErrNoSession
	}

	claims := cookieClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        current.ID,
			Subject:   current.User.ID,
			Issuer:    codec.signer.Issuer(),
			IssuedAt:  jwt.NewNumericDate(time.Unix(current.IssuedAt, 0)),
			ExpiresAt: jwt.NewNumericDate(codec.CookieExpiry(current)),
		},
		AccessToken:        current.AccessToken,
		AccessTokenExpires: current.AccessTokenExpires,
		Email:              current.User.Email,
		Name:               current.User.DisplayName,
		FirstName:          current.User.FirstName,
		LastName:           current.User.LastName,
		Role:               string(current.User.Role),
		Error:              string(current.Error),
	}

	return codec.signer.Sign(claims)
}

// Decode verifies a signed cookie value and rebuilds the stored snapshot.
// The snapshot is returned as stored; callers refresh it.
func (codec *Codec) Decode(value string) (*Session, error) {
	var claims cookieClaims
	if err := codec.signer.Verify(value, &claims, jwt.WithTimeFunc(codec.now), jwt.WithExpirationRequired()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing identifiers", ErrMalformed)
	}

	var issuedAt int64
	if claims.IssuedAt != nil {
		issuedAt = claims.IssuedAt.Unix()
	}

	return &Session{
		ID: claims.ID,
		User: User{
			ID:          claims.Subject,
			Email:       claims.Email,
			DisplayName: claims.Name,
			FirstName:   claims.FirstName,
			LastName:    claims.LastName,
			Role:        sec.ParseRole(claims.Role),
		},
		AccessToken:        claims.AccessToken,
		AccessTokenExpires: claims.AccessTokenExpires,
		IssuedAt:           issuedAt,
		Error:              ErrorCode(claims.Error),
	}, nil
}

// Write sets the signed session cookie on the response.
func (codec *Codec) Write(writer http.ResponseWriter, current *Session) error {
	value, err := codec.Encode(current)
	if err != nil {
		return err
	}

	http.SetCookie(writer, &http.Cookie{
		Name:     constants.SessionCookieName,
		Value:    value,
		Path:     constants.SessionCookiePath,
		Expires:  codec.CookieExpiry(current),
		MaxAge:   int(codec.CookieExpiry(current).Sub(codec.now()).Seconds()),
		HttpOnly: true,
		Secure:   codec.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear expires the session cookie on the client.
func (codec *Codec) Clear(writer http.ResponseWriter) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.SessionCookieName,
		Value:    "",
		Path:     constants.SessionCookiePath,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   codec.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Read decodes the session cookie of request, if any.
func (codec *Codec) Read(request *http.Request) (*Session, error) {
	cookie, err := request.Cookie(constants.SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, ErrNoSession
	}
	return codec.Decode(cookie.Value)
}
