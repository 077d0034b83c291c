// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package gate_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/storefront/internal/gate"
	"github.com/taibuivan/storefront/internal/platform/ctxutil"
	"github.com/taibuivan/storefront/internal/platform/sec"
	"github.com/taibuivan/storefront/internal/session"
)

var epoch = time.Unix(1_700_000_000, 0)

func sessionWithRole(role sec.UserRole) *session.Session {
	return session.Establish(session.User{ID: "user-1", Role: role}, "opaque", epoch, time.Hour)
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	return parsed
}

/*
TestClassify verifies that every path maps to exactly one class.
*/
func TestClassify(t *testing.T) {
	policy := gate.DefaultPolicy()

	tests := []struct {
		path     string
		expected gate.Classification
	}{
		{"/", gate.Public},
		{"/products/42", gate.Public},
		{"/auth/login", gate.Public},
		{"/api/auth/login", gate.Public},
		{"/api/auth/google/callback", gate.Public},
		{"/static/app.css", gate.Public},
		{"/metrics", gate.Public},
		{"/admin", gate.AdminOnly},
		{"/admin/x", gate.AdminOnly},
		{"/dashboard/../admin/users", gate.AdminOnly},
		{"/administrator", gate.Public},
		{"/dashboard", gate.Protected},
		{"/dashboard/settings", gate.Protected},
		{"/profile", gate.Protected},
		{"/orders/17", gate.Protected},
		{"//dashboard", gate.Protected},
		{"/auth/../dashboard", gate.Protected},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.expected, policy.Classify(tt.path))
		})
	}
}

/*
TestDecide_Admin verifies the admin rule for anonymous, customer and admin sessions.
*/
func TestDecide_Admin(t *testing.T) {
	policy := gate.DefaultPolicy()
	target := mustURL(t, "/admin/x")

	anonymous := policy.Decide(target, nil, epoch)
	assert.False(t, anonymous.Allow)

	customer := policy.Decide(target, sessionWithRole(sec.RoleUser), epoch)
	assert.False(t, customer.Allow)

	admin := policy.Decide(target, sessionWithRole(sec.RoleAdmin), epoch)
	assert.True(t, admin.Allow)
	assert.Empty(t, admin.Redirect)
}

/*
TestDecide_Protected verifies the dashboard rule and the preserved callback.
*/
func TestDecide_Protected(t *testing.T) {
	policy := gate.DefaultPolicy()
	target := mustURL(t, "/dashboard?tab=orders")

	for _, role := range []sec.UserRole{sec.RoleUser, sec.RoleAdmin} {
		assert.True(t, policy.Decide(target, sessionWithRole(role), epoch).Allow)
	}

	denied := policy.Decide(target, nil, epoch)
	assert.False(t, denied.Allow)
	assert.Equal(t, gate.Protected, denied.Classification)

	redirect := mustURL(t, denied.Redirect)
	assert.Equal(t, "/auth/login", redirect.Path)
	assert.Equal(t, "/dashboard?tab=orders", redirect.Query().Get("callbackUrl"))
}

/*
TestDecide_InvalidSessionsAreAbsent verifies fail-closed handling of expired and marked sessions.
*/
func TestDecide_InvalidSessionsAreAbsent(t *testing.T) {
	policy := gate.DefaultPolicy()
	target := mustURL(t, "/dashboard")

	expired := sessionWithRole(sec.RoleAdmin)
	assert.False(t, policy.Decide(target, expired, epoch.Add(2*time.Hour)).Allow)

	marked := sessionWithRole(sec.RoleAdmin).WithError(session.ErrRefreshFailed)
	assert.False(t, policy.Decide(target, marked, epoch).Allow)

	// Public routes stay reachable regardless
	assert.True(t, policy.Decide(mustURL(t, "/auth/login"), marked, epoch).Allow)
}

/*
TestSafeCallback verifies that only same-site paths are honored.
*/
func TestSafeCallback(t *testing.T) {
	assert.Equal(t, "/orders?page=2", gate.SafeCallback("/orders?page=2"))
	assert.Equal(t, "/dashboard", gate.SafeCallback(""))
	assert.Equal(t, "/dashboard", gate.SafeCallback("https://evil.example"))
	assert.Equal(t, "/dashboard", gate.SafeCallback("//evil.example"))
	assert.Equal(t, "/dashboard", gate.SafeCallback(`/\evil.example`))
}

/*
TestContentSecurityPolicy verifies both profiles.
*/
func TestContentSecurityPolicy(t *testing.T) {
	const api = "https://api.shop.mn"

	development := gate.ContentSecurityPolicy(gate.Development, api)
	assert.Contains(t, development, "'unsafe-inline'")
	assert.Contains(t, development, "http://localhost:*")
	assert.Contains(t, development, "connect-src 'self' "+api)

	production := gate.ContentSecurityPolicy(gate.Production, api)
	assert.Contains(t, production, "script-src 'self';")
	assert.NotContains(t, production, "unsafe-eval")
	assert.NotContains(t, production, "localhost")
	assert.Contains(t, production, "frame-src 'none'")
	assert.Contains(t, production, "connect-src 'self' "+api)
}

type stubLoader struct {
	current *session.Session
	err     error
}

func (loader stubLoader) Load(context.Context, *http.Request) (*session.Session, error) {
	return loader.current, loader.err
}

/*
TestGate_Handler verifies headers, redirects and context propagation end to end.
*/
func TestGate_Handler(t *testing.T) {
	tests := []struct {
		name         string
		path         string
		loader       stubLoader
		wantStatus   int
		wantLocation string
	}{
		{"public_anonymous", "/", stubLoader{err: session.ErrNoSession}, http.StatusOK, ""},
		{"dashboard_anonymous", "/dashboard", stubLoader{err: session.ErrNoSession}, http.StatusFound, "/auth/login?callbackUrl=%2Fdashboard"},
		{"dashboard_signed_in", "/dashboard", stubLoader{current: sessionWithRole(sec.RoleUser)}, http.StatusOK, ""},
		{"admin_customer", "/admin", stubLoader{current: sessionWithRole(sec.RoleUser)}, http.StatusFound, "/auth/login?callbackUrl=%2Fadmin"},
		{"admin_revocation_backend_down", "/admin", stubLoader{err: errors.New("redis down")}, http.StatusFound, "/auth/login?callbackUrl=%2Fadmin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen *session.Session
			next := http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
				seen = ctxutil.GetSession(request.Context())
				writer.WriteHeader(http.StatusOK)
			})

			handler := gate.New(gate.DefaultPolicy(), tt.loader, gate.Options{
				Profile:   gate.Production,
				APIOrigin: "https://api.shop.mn",
				Now:       func() time.Time { return epoch },
			}).Handler(next)

			recorder := httptest.NewRecorder()
			handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.wantStatus, recorder.Code)
			assert.Equal(t, tt.wantLocation, recorder.Header().Get("Location"))
			assert.Equal(t, "DENY", recorder.Header().Get("X-Frame-Options"))
			assert.Equal(t, "nosniff", recorder.Header().Get("X-Content-Type-Options"))
			assert.Contains(t, recorder.Header().Get("Content-Security-Policy"), "https://api.shop.mn")

			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.loader.current, seen)
			}
		})
	}
}
