// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the storefront BFF server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load and validate configuration from environment variables.
//  3. Connect to Redis when configured (revocations, shared rate limits).
//  4. Build the session store, backend client and identity exchange.
//  5. Wire the gate, rate limits and HTTP handlers.
//  6. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/taibuivan/storefront/internal/api"
	"github.com/taibuivan/storefront/internal/apiclient"
	"github.com/taibuivan/storefront/internal/gate"
	"github.com/taibuivan/storefront/internal/identity"
	"github.com/taibuivan/storefront/internal/notify"
	"github.com/taibuivan/storefront/internal/platform/config"
	"github.com/taibuivan/storefront/internal/platform/constants"
	"github.com/taibuivan/storefront/internal/platform/metrics"
	redisstore "github.com/taibuivan/storefront/internal/platform/redis"
	"github.com/taibuivan/storefront/internal/platform/sec"
	"github.com/taibuivan/storefront/internal/ratelimit"
	"github.com/taibuivan/storefront/internal/session"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Add global context to all log entries.
	log := rawLog.With(slog.String("app", constants.AppName))
	slog.SetDefault(log)

	log.Info("[Storefront] service_initializing", slog.String("version", constants.AppVersion))

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", constants.AppName))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	warnings, err := cfg.Validate()
	must(log, err, "validate configuration")
	for _, warning := range warnings {
		log.Warn("configuration_warning", slog.String("detail", warning))
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.Bool("google_enabled", cfg.GoogleEnabled()),
		slog.Bool("redis_enabled", cfg.RedisURL != ""),
	)

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// Background work (flood-guard cleanup) stops with this context.
	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	recorder := metrics.New()

	// ── 3. Redis (optional) ───────────────────────────────────────────────
	var rdb *goredis.Client
	if cfg.RedisURL != "" {
		rdb, err = redisstore.NewClient(startupCtx, cfg.RedisURL, log)
		must(log, err, "connect to redis")
		defer func() {
			log.Info("closing redis client")
			if cerr := rdb.Close(); cerr != nil {
				log.Error("redis close error", slog.Any("error", cerr))
			}
		}()
	} else {
		log.Warn("redis_disabled", slog.String("detail", "revocations and rate limits are per-process"))
	}

	// ── 4. Sessions ───────────────────────────────────────────────────────
	signer, err := sec.NewSigner(cfg.SessionSecret, constants.SessionIssuer)
	must(log, err, "initialize session signer")

	secureCookies := strings.HasPrefix(cfg.AppURL, "https://")
	codec := session.NewCodec(signer, cfg.SessionMaxAge, secureCookies, nil)

	var revocations session.Revocations = session.NewMemoryRevocations(nil)
	if rdb != nil {
		revocations = session.NewRedisRevocations(rdb)
	}
	store := session.NewStore(codec, revocations, nil)

	// ── 5. Backend client + identity exchange ─────────────────────────────
	client := apiclient.New(apiclient.Config{
		BaseURL:  cfg.APIBaseURL,
		Timeout:  cfg.APITimeout,
		RetryMax: cfg.APIRetryMax,
		Notifier: notify.NewLog(log),
		Resolver: apiclient.FromContext,
		Metrics:  recorder,
		Logger:   log,
	})

	var google *identity.Google
	if cfg.GoogleEnabled() {
		google = identity.NewGoogle(identity.GoogleConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  strings.TrimRight(cfg.AppURL, "/") + "/api/auth/google/callback",
			Secure:       secureCookies,
		})
	}

	identityHandler := identity.NewHandler(identity.HandlerConfig{
		Exchanger:      identity.NewExchanger(client, recorder),
		Backend:        client,
		Store:          store,
		Google:         google,
		FallbackWindow: cfg.TokenFallbackWindow,
	})

	// ── 6. Gate + rate limits ─────────────────────────────────────────────
	profile := gate.Production
	if cfg.IsDevelopment() {
		profile = gate.Development
	}
	authorizationGate := gate.New(gate.DefaultPolicy(), store, gate.Options{
		Profile:   profile,
		APIOrigin: config.Origin(cfg.APIBaseURL),
		Metrics:   recorder,
	})

	var authLimiter, generalLimiter ratelimit.Checker
	if rdb != nil {
		authLimiter = ratelimit.NewRedisLimiter(rdb, "auth", cfg.AuthRateLimit, cfg.AuthRateWindow)
		generalLimiter = ratelimit.NewRedisLimiter(rdb, "general", cfg.GeneralRateLimit, cfg.GeneralRateWindow)
	} else {
		authLimiter = ratelimit.NewLimiter(cfg.AuthRateLimit, cfg.AuthRateWindow, nil)
		generalLimiter = ratelimit.NewLimiter(cfg.GeneralRateLimit, cfg.GeneralRateWindow, nil)
	}

	// ── 7. Health handlers (wired with real dependency checkers) ──────────
	dependencies := api.HealthDependencies{CheckBackend: client.Ping}
	if rdb != nil {
		dependencies.CheckCache = func(ctx context.Context) error {
			return redisstore.Ping(ctx, rdb)
		}
	}
	liveness, readiness := api.NewHealthHandlers(dependencies, log)

	// ── 8. HTTP Server ────────────────────────────────────────────────────
	server := api.NewServer(appCtx, cfg, log, api.Handlers{
		Liveness:       liveness,
		Readiness:      readiness,
		Identity:       identityHandler,
		Gate:           authorizationGate,
		AuthLimiter:    authLimiter,
		GeneralLimiter: generalLimiter,
		Metrics:        recorder,
	})

	// ── 9. Graceful Shutdown ──────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	// Give in-flight requests enough time to complete.
	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server stopped cleanly")
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
