// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package gate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/taibuivan/storefront/internal/platform/ctxutil"
	"github.com/taibuivan/storefront/internal/platform/metrics"
	"github.com/taibuivan/storefront/internal/session"
)

// Loader reads the refreshed session of a request.
type Loader interface {
	Load(ctx context.Context, request *http.Request) (*session.Session, error)
}

// Options configures a [Gate].
type Options struct {
	Profile   Profile
	APIOrigin string
	Metrics   *metrics.Metrics
	Now       func() time.Time
}

// Gate is the HTTP middleware form of the policy.
type Gate struct {
	policy  Policy
	loader  Loader
	csp     string
	metrics *metrics.Metrics
	now     func() time.Time
}

// New creates a [Gate].
func New(policy Policy, loader Loader, options Options) *Gate {
	now := options.Now
	if now == nil {
		now = time.Now
	}
	return &Gate{
		policy:  policy,
		loader:  loader,
		csp:     ContentSecurityPolicy(options.Profile, options.APIOrigin),
		metrics: options.Metrics,
		now:     now,
	}
}

// Handler applies headers, attaches the session snapshot to the context and
// enforces the decision.
func (gate *Gate) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		ctx := request.Context()
		logger := ctxutil.GetLogger(ctx)

		// 1. Headers go on every response, including redirects
		ApplySecurityHeaders(writer.Header(), gate.csp)

		// 2. Load the session; any failure reads as signed out
		current, err := gate.loader.Load(ctx, request)
		if err != nil && !errors.Is(err, session.ErrNoSession) {
			logger.WarnContext(ctx, "session_load_failed", slog.String("error", err.Error()))
		}

		now := gate.now()
		if current.Valid(now) {
			logger = logger.With(slog.String("user_id", current.User.ID))
			ctx = ctxutil.WithLogger(ctx, logger)
		}
		ctx = ctxutil.WithSession(ctx, current)

		// 3. Decide
		decision := gate.policy.Decide(request.URL, current, now)
		if !decision.Allow {
			gate.metrics.GateDecision(decision.Classification.String(), "deny")
			logger.InfoContext(ctx, "gate_denied",
				slog.String("classification", decision.Classification.String()),
			)
			http.Redirect(writer, request.WithContext(ctx), decision.Redirect, http.StatusFound)
			return
		}

		gate.metrics.GateDecision(decision.Classification.String(), "allow")
		next.ServeHTTP(writer, request.WithContext(ctx))
	})
}
