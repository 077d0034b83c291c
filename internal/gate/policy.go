// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package gate is the request-time authorization layer of the storefront.

Architecture:

  - Classification: a pure function from path to exactly one of Public,
    Protected or AdminOnly.
  - Decision: a pure function of (path, session, now). It never fails; it only
    allows, or denies with a redirect to the sign-in surface that preserves the
    requested path.
  - Headers: every response, allowed or denied, carries the security headers and
    a Content-Security-Policy for the current environment profile.

Public routes include the sign-in pages and the identity-exchange endpoints. Those
must never require a session, otherwise nobody could sign in.
*/
package gate

import (
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/taibuivan/storefront/internal/platform/constants"
	"github.com/taibuivan/storefront/internal/platform/sec"
	"github.com/taibuivan/storefront/internal/session"
)

// # Classification

// Classification is the access class of a route.
type Classification int

const (
	Public Classification = iota
	Protected
	AdminOnly
)

// String returns a metrics-friendly name.
func (c Classification) String() string {
	switch c {
	case Protected:
		return "protected"
	case AdminOnly:
		return "admin_only"
	default:
		return "public"
	}
}

// Policy lists the path prefixes of each class. Unlisted paths are Public.
type Policy struct {
	Public    []string
	AdminOnly []string
	Protected []string
}

// DefaultPolicy is the storefront route table.
func DefaultPolicy() Policy {
	return Policy{
		Public: []string{
			"/auth",
			"/api/auth",
			"/static",
			"/assets",
			"/favicon.ico",
			"/robots.txt",
			"/health",
			"/ready",
			"/metrics",
		},
		AdminOnly: []string{"/admin"},
		Protected: []string{"/dashboard", "/profile", "/orders"},
	}
}

// Classify maps a request path to its class.
//
// Matching is segment-aware: "/admin" covers "/admin" and "/admin/users" but not
// "/administrator". The path is cleaned first so "/x/../admin" is still AdminOnly.
func (policy Policy) Classify(requestPath string) Classification {
	cleaned := cleanPath(requestPath)

	switch {
	case matchesAny(cleaned, policy.Public):
		return Public
	case matchesAny(cleaned, policy.AdminOnly):
		return AdminOnly
	case matchesAny(cleaned, policy.Protected):
		return Protected
	default:
		return Public
	}
}

// # Decision

// Decision is the outcome of evaluating one request.
type Decision struct {
	Allow          bool
	Classification Classification

	// Redirect is the sign-in location for denied requests.
	Redirect string
}

// Decide evaluates the ordered rules for a request. A session that is expired or
// carries an error marker counts as absent.
func (policy Policy) Decide(requestURL *url.URL, current *session.Session, now time.Time) Decision {
	classification := policy.Classify(requestURL.Path)
	signedIn := current.Valid(now)

	var allow bool
	switch classification {
	case AdminOnly:
		allow = signedIn && current.User.Role == sec.RoleAdmin
	case Protected:
		allow = signedIn
	default:
		allow = true
	}

	decision := Decision{Allow: allow, Classification: classification}
	if !allow {
		decision.Redirect = SignInURL(requestURL)
	}
	return decision
}

// SignInURL builds the sign-in location that returns to the requested path afterwards.
func SignInURL(requested *url.URL) string {
	callback := requested.EscapedPath()
	if requested.RawQuery != "" {
		callback += "?" + requested.RawQuery
	}
	return constants.SignInPath + "?" + url.Values{constants.CallbackURLParam: {callback}}.Encode()
}

// SafeCallback returns target if it is a same-site absolute path, else the default landing page.
// It prevents the preserved callback from becoming an open redirect.
func SafeCallback(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.Contains(target, `\`) {
		return constants.DefaultLandingPath
	}
	return target
}

func cleanPath(requestPath string) string {
	if requestPath == "" {
		return "/"
	}
	return path.Clean("/" + requestPath)
}

func matchesAny(cleaned string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if cleaned == prefix || strings.HasPrefix(cleaned, prefix+"/") {
			return true
		}
	}
	return false
}
