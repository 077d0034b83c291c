// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/storefront/internal/platform/config"
)

// setRequired exports the three mandatory variables.
func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("SESSION_SECRET", strings.Repeat("s", 40))
	t.Setenv("APP_URL", "https://shop.example.com")
	t.Setenv("API_BASE_URL", "https://api.example.com/v1")
}

/*
TestLoad_Defaults verifies defaults for every tunable.
*/
func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.ServerPort)
	assert.Equal(t, 10*time.Second, cfg.APITimeout)
	assert.Equal(t, 3, cfg.APIRetryMax)
	assert.Equal(t, 168*time.Hour, cfg.SessionMaxAge)
	assert.Equal(t, 120*time.Second, cfg.TokenFallbackWindow)
	assert.Equal(t, 5, cfg.AuthRateLimit)
	assert.Equal(t, 5*time.Minute, cfg.AuthRateWindow)
	assert.Equal(t, 60, cfg.GeneralRateLimit)
	assert.Equal(t, time.Minute, cfg.GeneralRateWindow)
	assert.False(t, cfg.GoogleEnabled())

	warnings, err := cfg.Validate()
	assert.NoError(t, err)
	assert.Empty(t, warnings)
}

/*
TestLoad_MissingRequired verifies that startup fails without the session secret.
*/
func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("APP_URL", "https://shop.example.com")
	t.Setenv("API_BASE_URL", "https://api.example.com")

	_, err := config.Load()
	assert.Error(t, err)
}

/*
TestValidate covers fatal problems and advisory warnings.
*/
func TestValidate(t *testing.T) {
	base := func() *config.Config {
		return &config.Config{
			SessionSecret:       strings.Repeat("s", 32),
			AppURL:              "https://shop.example.com",
			APIBaseURL:          "https://api.example.com",
			SessionMaxAge:       time.Hour,
			TokenFallbackWindow: time.Minute,
			AuthRateLimit:       5,
			GeneralRateLimit:    60,
		}
	}

	tests := []struct {
		name        string
		mutate      func(*config.Config)
		wantErr     string
		wantWarning string
	}{
		{"valid", func(*config.Config) {}, "", ""},
		{"relative_api_url", func(c *config.Config) { c.APIBaseURL = "/api" }, "API_BASE_URL", ""},
		{"ftp_app_url", func(c *config.Config) { c.AppURL = "ftp://shop" }, "APP_URL", ""},
		{"zero_fallback", func(c *config.Config) { c.TokenFallbackWindow = 0 }, "TOKEN_FALLBACK_WINDOW", ""},
		{"short_secret", func(c *config.Config) { c.SessionSecret = "short" }, "", "SESSION_SECRET"},
		{"half_google", func(c *config.Config) { c.GoogleClientID = "id" }, "", "GOOGLE_CLIENT_ID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)

			warnings, err := cfg.Validate()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				assert.NoError(t, err)
			}

			if tt.wantWarning != "" {
				require.Len(t, warnings, 1)
				assert.Contains(t, warnings[0], tt.wantWarning)
			} else {
				assert.Empty(t, warnings)
			}
		})
	}
}

/*
TestAllowedOrigins verifies origin extraction for CORS.
*/
func TestAllowedOrigins(t *testing.T) {
	cfg := &config.Config{
		AppURL:       "https://shop.example.com/some/path",
		ExtraOrigins: " http://localhost:5173 , ,https://admin.example.com/",
	}

	assert.Equal(t, []string{
		"https://shop.example.com",
		"http://localhost:5173",
		"https://admin.example.com",
	}, cfg.AllowedOrigins())
}
