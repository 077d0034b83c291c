// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/storefront/internal/platform/constants"
	"github.com/taibuivan/storefront/internal/platform/ctxutil"
	"github.com/taibuivan/storefront/internal/platform/middleware"
	"github.com/taibuivan/storefront/pkg/uuidv7"
)

type stubConfig struct {
	development bool
	origins     []string
}

func (c stubConfig) IsDevelopment() bool      { return c.development }
func (c stubConfig) AllowedOrigins() []string { return c.origins }

/*
TestRequestID verifies that a well-formed inbound ID is kept and anything else is replaced.
*/
func TestRequestID(t *testing.T) {
	const inbound = "0192f1a4-7c3e-7d2a-9b61-3f0e8c5d2a10"

	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{"well_formed", inbound, true},
		{"missing", "", false},
		{"malformed", "rid-1", false},
		{"log_injection", "abc\nlevel=ERROR msg=forged", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			handler := middleware.RequestID()(http.HandlerFunc(func(_ http.ResponseWriter, request *http.Request) {
				seen = ctxutil.GetRequestID(request.Context())
			}))

			request := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				request.Header.Set(constants.HeaderXRequestID, tt.header)
			}
			recorder := httptest.NewRecorder()
			handler.ServeHTTP(recorder, request)

			assert.Equal(t, seen, recorder.Header().Get(constants.HeaderXRequestID))
			if tt.keep {
				assert.Equal(t, tt.header, seen)
				return
			}
			assert.NotEqual(t, tt.header, seen)
			assert.True(t, uuidv7.Valid(seen))
		})
	}
}

/*
TestPanicRecovery verifies that a panicking handler yields a JSON 500.
*/
func TestPanicRecovery(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	handler := middleware.PanicRecovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	recorder := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))
	})

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "INTERNAL_SERVER_ERROR")
}

/*
TestCORS verifies allow-list enforcement in production and pre-flight handling.
*/
func TestCORS(t *testing.T) {
	cfg := stubConfig{origins: []string{"https://shop.example.com"}}
	handler := middleware.CORS(cfg)(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name        string
		method      string
		origin      string
		wantAllowed bool
		wantStatus  int
	}{
		{"allowed_origin", http.MethodGet, "https://shop.example.com", true, http.StatusOK},
		{"foreign_origin", http.MethodGet, "https://evil.example.net", false, http.StatusOK},
		{"preflight", http.MethodOptions, "https://shop.example.com", true, http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := httptest.NewRequest(tt.method, "/api/auth/session", nil)
			request.Header.Set(constants.HeaderOrigin, tt.origin)
			recorder := httptest.NewRecorder()

			handler.ServeHTTP(recorder, request)

			assert.Equal(t, tt.wantStatus, recorder.Code)
			if tt.wantAllowed {
				assert.Equal(t, tt.origin, recorder.Header().Get("Access-Control-Allow-Origin"))
			} else {
				assert.Empty(t, recorder.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
}

/*
TestRateLimit verifies that the per-IP bucket eventually rejects a flood.
*/
func TestRateLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := middleware.RateLimit(ctx)(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusOK)
	}))

	rejected := false
	for range constants.DefaultRateLimitBurst + 50 {
		request := httptest.NewRequest(http.MethodGet, "/", nil)
		request.RemoteAddr = "203.0.113.7:4000"
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)
		if recorder.Code == http.StatusTooManyRequests {
			rejected = true
			break
		}
	}
	assert.True(t, rejected)
}

/*
TestRealIP checks proxy header precedence.
*/
func TestRealIP(t *testing.T) {
	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "10.0.0.1", middleware.RealIP(request))

	request.Header.Set(constants.HeaderXForwardedFor, "198.51.100.2, 10.0.0.1")
	assert.Equal(t, "198.51.100.2", middleware.RealIP(request))

	request.Header.Set(constants.HeaderXRealIP, "198.51.100.9")
	assert.Equal(t, "198.51.100.9", middleware.RealIP(request))
}
