// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values. A local '.env' file is
loaded first through 'joho/godotenv' when present, so developer machines need no
exported shell state.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (Redis, API client) via constructors.
  - Zero Hidden State: No global variables are used to store config.
  - Validation: [Config.Validate] separates fatal problems from advisory warnings.
*/
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/taibuivan/storefront/internal/platform/constants"
)

// # Configuration Schema

// Config holds all runtime configuration for the storefront BFF server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"3000"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Session signing and public origin
	SessionSecret string        `env:"SESSION_SECRET,required,notEmpty"`
	AppURL        string        `env:"APP_URL,required,notEmpty"`
	SessionMaxAge time.Duration `env:"SESSION_MAX_AGE" envDefault:"168h"`

	// TokenFallbackWindow applies when an access token carries no readable expiry.
	TokenFallbackWindow time.Duration `env:"TOKEN_FALLBACK_WINDOW" envDefault:"120s"`

	// Backend API
	APIBaseURL  string        `env:"API_BASE_URL,required,notEmpty"`
	APITimeout  time.Duration `env:"API_TIMEOUT"   envDefault:"10s"`
	APIRetryMax int           `env:"API_RETRY_MAX" envDefault:"3"`

	// Federated identity (optional; both must be set to enable Google sign-in)
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`

	// Key-Value Cache (Redis). Empty means in-memory revocations and limits.
	RedisURL string `env:"REDIS_URL"`

	// Request limiting
	AuthRateLimit     int           `env:"AUTH_RATE_LIMIT"     envDefault:"5"`
	AuthRateWindow    time.Duration `env:"AUTH_RATE_WINDOW"    envDefault:"5m"`
	GeneralRateLimit  int           `env:"GENERAL_RATE_LIMIT"  envDefault:"60"`
	GeneralRateWindow time.Duration `env:"GENERAL_RATE_WINDOW" envDefault:"1m"`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
//
// A '.env' file in the working directory is merged first. Variables already
// present in the process environment always win.
func Load() (*Config, error) {

	// Optional .env; a missing file is the normal production case
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: failed to read .env: %w", err)
	}

	// Initialize an empty config struct
	cfg := &Config{}

	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	return cfg, nil
}

// # Validation

// Validate checks cross-field rules that struct tags cannot express.
//
// Fatal problems are returned as a joined error. Advisory findings, such as a
// short session secret or half-configured Google credentials, come back as
// warnings for the caller to log.
func (c *Config) Validate() (warnings []string, err error) {
	var problems []error

	for _, field := range []struct{ name, raw string }{{"APP_URL", c.AppURL}, {"API_BASE_URL", c.APIBaseURL}} {
		if !isHTTPURL(field.raw) {
			problems = append(problems, fmt.Errorf("%s must be an absolute http(s) URL, got %q", field.name, field.raw))
		}
	}

	if c.SessionMaxAge <= 0 {
		problems = append(problems, errors.New("SESSION_MAX_AGE must be positive"))
	}
	if c.TokenFallbackWindow <= 0 {
		problems = append(problems, errors.New("TOKEN_FALLBACK_WINDOW must be positive"))
	}
	if c.APIRetryMax < 0 {
		problems = append(problems, errors.New("API_RETRY_MAX must not be negative"))
	}
	if c.AuthRateLimit <= 0 || c.GeneralRateLimit <= 0 {
		problems = append(problems, errors.New("rate limits must be positive"))
	}

	if len(c.SessionSecret) < constants.MinSessionSecretLength {
		warnings = append(warnings, fmt.Sprintf("SESSION_SECRET should be at least %d characters long", constants.MinSessionSecretLength))
	}
	if (c.GoogleClientID == "") != (c.GoogleClientSecret == "") {
		warnings = append(warnings, "GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set together; Google sign-in is disabled")
	}
	if c.IsProduction() && strings.HasPrefix(c.AppURL, "http://") {
		warnings = append(warnings, "APP_URL uses plain http in production; session cookies will not be sent")
	}

	return warnings, errors.Join(problems...)
}

func isHTTPURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return false
	}
	return parsed.Scheme == "http" || parsed.Scheme == "https"
}

// AllowedOrigins returns the CORS allow-list: the public app origin plus EXTRA_ORIGINS.
func (c *Config) AllowedOrigins() []string {
	origins := []string{Origin(c.AppURL)}
	for _, extra := range strings.Split(c.ExtraOrigins, ",") {
		if extra = strings.TrimSpace(extra); extra != "" {
			origins = append(origins, Origin(extra))
		}
	}
	return origins
}

// Origin reduces a URL to scheme://host[:port]. Unparseable input is returned unchanged.
func Origin(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return raw
	}
	return parsed.Scheme + "://" + parsed.Host
}

// GoogleEnabled reports whether both Google OAuth credentials are configured.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
