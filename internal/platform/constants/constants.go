// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package constants provides centralized, immutable values for the entire storefront.

It defines default timeouts, rate limits, session lifetimes, and cross-cutting keys
that are shared between different layers of the system.

Categories:

  - Server Timing: Read/Write/Idle timeouts for the HTTP server.
  - Rate Limiting: Burst capacities and IP tracking TTLs.
  - Session: Cookie naming, lifetimes, monitor cadence.
  - Surfaces: The sign-in and error pages the gate redirects to.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "storefront"
	AppVersion = "0.1.0-dev"
)

// # Server Timing

const (
	// DefaultReadTimeout is the maximum duration for reading the entire request.
	DefaultReadTimeout = 5 * time.Second

	// DefaultWriteTimeout is the maximum duration before timing out writes of the response.
	DefaultWriteTimeout = 15 * time.Second

	// DefaultIdleTimeout is the maximum amount of time to wait for the next request.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultReadHeaderTimeout is the amount of time allowed to read request headers.
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout is the deadline for the entire request lifecycle.
	// It must exceed the backend timeout multiplied by the retry budget.
	GlobalRequestTimeout = 45 * time.Second

	// ShutdownTimeout is how long we wait for in-flight requests to complete during shutdown.
	ShutdownTimeout = 15 * time.Second
)

// # Rate Limiting

const (
	// DefaultRateLimitRPS is the requests per second allowed per IP by the flood guard.
	DefaultRateLimitRPS = 50.0

	// DefaultRateLimitBurst is the maximum burst allowed for the flood guard.
	DefaultRateLimitBurst = 100

	// RateLimitCleanupInterval is how often old IP entries are removed from memory.
	RateLimitCleanupInterval = 1 * time.Minute

	// RateLimitClientTTL is how long a client must be idle before its entry is deleted.
	RateLimitClientTTL = 3 * time.Minute
)

// # Session

const (
	// SessionCookieName carries the signed session token.
	SessionCookieName = "storefront.session-token"

	// SessionCookiePath scopes the session cookie to the whole site.
	SessionCookiePath = "/"

	// SessionMaxAge is the lifetime of the signed session cookie.
	SessionMaxAge = 7 * 24 * time.Hour

	// SessionIssuer is the 'iss' claim of session cookies minted by this server.
	SessionIssuer = "storefront"

	// TokenFallbackWindow is applied when the backend access token carries no readable expiry.
	TokenFallbackWindow = 120 * time.Second

	// MonitorPollInterval is how often the client-side monitor re-evaluates the session.
	MonitorPollInterval = 30 * time.Second

	// MonitorWarningThreshold is the remaining lifetime that triggers the one-time warning.
	MonitorWarningThreshold = 5 * time.Minute

	// MonitorRedirectDelay lets the expiry notification render before sign-out.
	MonitorRedirectDelay = 2 * time.Second

	// MinSessionSecretLength is the recommended minimum size of SESSION_SECRET.
	MinSessionSecretLength = 32
)

// # Surfaces

const (
	// SignInPath is where the gate and every forced sign-out send the user.
	SignInPath = "/auth/login"

	// ErrorPath renders identity-provider errors.
	ErrorPath = "/auth/error"

	// DefaultLandingPath is used after sign-in when no callback URL was preserved.
	DefaultLandingPath = "/dashboard"

	// CallbackURLParam preserves the originally requested path across the sign-in redirect.
	CallbackURLParam = "callbackUrl"
)

// # Headers

const (
	HeaderXRequestID     = "X-Request-ID"
	HeaderXRealIP        = "X-Real-IP"
	HeaderXForwardedFor  = "X-Forwarded-For"
	HeaderOrigin         = "Origin"
	HeaderAuthorization  = "Authorization"
	HeaderRetryAfter     = "Retry-After"
	HeaderContentType    = "Content-Type"
	ContentTypeJSON      = "application/json; charset=utf-8"
	AuthorizationPrefix  = "Bearer "
	HeaderXRateRemaining = "X-RateLimit-Remaining"
)

// # JSON Field Identifiers

const (
	FieldData    = "data"
	FieldError   = "error"
	FieldCode    = "code"
	FieldDetails = "details"
	FieldMessage = "message"
	FieldStatus  = "status"
	FieldChecks  = "checks"
)

// # Redis Prefixes (Cache Taxonomy)

const (
	RedisPrefixRevokedSession = "storefront:session:revoked:"
	RedisPrefixRateLimit      = "storefront:ratelimit:"
)
