// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package gate

import (
	"net/http"
	"strings"
)

// # Security Headers

// Profile selects the Content-Security-Policy variant.
type Profile int

const (
	// Development permits inline scripts, eval and local dev-server connections.
	Development Profile = iota

	// Production disallows inline scripts and every foreign frame.
	Production
)

// ContentSecurityPolicy builds the CSP for profile. apiOrigin is always part of
// connect-src so calls to the configured backend are not blocked.
func ContentSecurityPolicy(profile Profile, apiOrigin string) string {
	connect := []string{"'self'"}
	if apiOrigin != "" {
		connect = append(connect, apiOrigin)
	}

	var directives []string
	switch profile {
	case Production:
		directives = []string{
			"default-src 'self'",
			"script-src 'self'",
			"style-src 'self' 'unsafe-inline'",
			"img-src 'self' data: https:",
			"font-src 'self' data:",
			"connect-src " + strings.Join(connect, " "),
			"frame-src 'none'",
			"frame-ancestors 'none'",
			"object-src 'none'",
			"base-uri 'self'",
			"form-action 'self'",
		}
	default:
		connect = append(connect, "http://localhost:*", "ws://localhost:*")
		directives = []string{
			"default-src 'self'",
			"script-src 'self' 'unsafe-eval' 'unsafe-inline'",
			"style-src 'self' 'unsafe-inline'",
			"img-src 'self' data: https:",
			"font-src 'self' data:",
			"connect-src " + strings.Join(connect, " "),
		}
	}

	return strings.Join(directives, "; ")
}

// ApplySecurityHeaders sets the fixed header set plus csp on header.
func ApplySecurityHeaders(header http.Header, csp string) {
	header.Set("X-Frame-Options", "DENY")
	header.Set("X-Content-Type-Options", "nosniff")
	header.Set("Referrer-Policy", "strict-origin-when-cross-origin")
	header.Set("X-XSS-Protection", "1; mode=block")
	header.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	header.Set("Content-Security-Policy", csp)
}
