// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package api wires together the HTTP router, middleware chain, and all
handlers into a runnable [http.Server].

Architecture:

  - This package is the topmost Presentation layer boundary.
  - It acts as the central composition root for the HTTP transport framework (chi router).
  - The authorization gate runs for every route; rate limits are attached per route group
    so session polling never consumes the strict credential budget.
*/
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/taibuivan/storefront/internal/gate"
	"github.com/taibuivan/storefront/internal/identity"
	"github.com/taibuivan/storefront/internal/platform/config"
	"github.com/taibuivan/storefront/internal/platform/constants"
	"github.com/taibuivan/storefront/internal/platform/metrics"
	"github.com/taibuivan/storefront/internal/platform/middleware"
	"github.com/taibuivan/storefront/internal/ratelimit"
)

// # Server Definitions

// Server wraps the chi router and the [http.Server].
//
// It is constructed once in main.go with all dependencies injected.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        *slog.Logger
}

// # Handler Registry

// Handlers groups the HTTP handler sets and the per-request policies.
type Handlers struct {
	// Liveness is the /health handler. It always returns 200 if the process is alive.
	Liveness http.HandlerFunc

	// Readiness is the /ready handler. It returns 200 when all deps are healthy.
	Readiness http.HandlerFunc

	// Identity serves /api/auth.
	Identity *identity.Handler

	// Gate classifies every request and redirects denied ones to sign-in.
	Gate *gate.Gate

	// AuthLimiter guards credential endpoints; GeneralLimiter everything else.
	AuthLimiter    ratelimit.Checker
	GeneralLimiter ratelimit.Checker

	// Metrics is exposed at /metrics. It may be nil.
	Metrics *metrics.Metrics
}

// # Server Initialization

// NewServer constructs the chi router with the full middleware chain and
// registers all route groups.
func NewServer(context context.Context, cfg *config.Config, log *slog.Logger, h Handlers) *Server {
	r := chi.NewRouter()

	// # Middleware Chain
	// Global middleware applied in order of execution.
	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(log))
	r.Use(middleware.Instrument(h.Metrics))
	r.Use(chimw.Timeout(constants.GlobalRequestTimeout))
	r.Use(middleware.RateLimit(context))
	r.Use(middleware.PanicRecovery(log))
	r.Use(middleware.CORS(cfg))
	r.Use(chimw.CleanPath)
	r.Use(h.Gate.Handler)

	// # Infrastructure Endpoints
	// Health probes and metrics are Public in the gate policy.
	r.Get("/health", h.Liveness)
	r.Get("/ready", h.Readiness)
	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics.Handler())
	}

	authLimit := ratelimit.Middleware(h.AuthLimiter, "auth", h.Metrics)
	generalLimit := ratelimit.Middleware(h.GeneralLimiter, "general", h.Metrics)

	// # Identity API
	r.Route("/api/auth", func(auth chi.Router) {
		auth.Group(func(credentials chi.Router) {
			credentials.Use(authLimit)
			h.Identity.CredentialRoutes(credentials)
		})
		auth.Group(func(sessions chi.Router) {
			sessions.Use(generalLimit)
			h.Identity.SessionRoutes(sessions)
		})
	})

	// # Pages
	// Rendering happens elsewhere; these answer with the signed-in user so the gate
	// can be exercised end to end.
	r.Group(func(pages chi.Router) {
		pages.Use(generalLimit)
		pages.Get("/auth/validate", h.Identity.Validate)
		pages.Get("/dashboard", page("dashboard"))
		pages.Get("/profile", page("profile"))
		pages.Get("/orders", page("orders"))
		pages.Get("/admin", page("admin"))
		pages.Get("/admin/*", page("admin"))
	})

	return &Server{
		router: r,
		log:    log,
		httpServer: &http.Server{
			Addr:              ":" + cfg.ServerPort,
			Handler:           r,
			ReadTimeout:       constants.DefaultReadTimeout,
			WriteTimeout:      constants.DefaultWriteTimeout,
			IdleTimeout:       constants.DefaultIdleTimeout,
			ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
		},
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// # Server Lifecycle

// ListenAndServe starts the HTTP server.
//
// It blocks until the server is closed or an error occurs.
func (s *Server) ListenAndServe() error {
	s.log.Info("server starting", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	context, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(context)
}
