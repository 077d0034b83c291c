// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package cli implements shopctl, the terminal client of the storefront.

shopctl signs in through the BFF, keeps the resulting session cookie and snapshot
in a private file, and runs the same session monitor and outbound pipeline the
browser surface uses.

Environment Variables:

	STOREFRONT_URL      BFF origin (default: http://localhost:3000)
	STOREFRONT_API_URL  Backend API base URL, used by 'profile'
*/
package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/taibuivan/storefront/internal/platform/constants"
)

const (
	defaultURL    = "http://localhost:3000"
	defaultAPIURL = "http://localhost:8000/api"
)

// Environment is everything a command touches outside its flags.
type Environment struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Getenv func(string) string
	Now    func() time.Time
}

// DefaultEnvironment wires the process streams and clock.
func DefaultEnvironment() Environment {
	return Environment{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Getenv: os.Getenv,
		Now:    time.Now,
	}
}

// options holds the persistent flags.
type options struct {
	env Environment

	url         string
	apiURL      string
	sessionFile string
	timeout     time.Duration
	jsonOutput  bool
	verbose     bool
}

// NewRootCommand builds the shopctl command tree.
func NewRootCommand(env Environment) *cobra.Command {
	opts := &options{env: env}

	root := &cobra.Command{
		Use:   "shopctl",
		Short: "Terminal client for the storefront",
		Long: `shopctl signs in to the storefront and watches the session from a terminal.

Environment Variables:
  STOREFRONT_URL      BFF origin (default: ` + defaultURL + `)
  STOREFRONT_API_URL  Backend API base URL (default: ` + defaultAPIURL + `)`,
		Version:       constants.AppVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(env.Stdin)
	root.SetOut(env.Stdout)
	root.SetErr(env.Stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.url, "url", "", "BFF origin (overrides STOREFRONT_URL)")
	flags.StringVar(&opts.apiURL, "api-url", "", "Backend API base URL (overrides STOREFRONT_API_URL)")
	flags.StringVar(&opts.sessionFile, "session-file", "", "Where the session is stored (default: user config dir)")
	flags.DurationVar(&opts.timeout, "timeout", 10*time.Second, "Per-request timeout")
	flags.BoolVar(&opts.jsonOutput, "json", false, "Output JSON instead of human-readable text")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log diagnostics to stderr")

	root.AddCommand(
		newLoginCommand(opts),
		newLogoutCommand(opts),
		newWhoamiCommand(opts),
		newWatchCommand(opts),
		newProfileCommand(opts),
	)
	return root
}

// Execute runs shopctl against the process environment until ctx ends.
func Execute(ctx context.Context) error {
	return NewRootCommand(DefaultEnvironment()).ExecuteContext(ctx)
}

// BFFURL returns the BFF origin from flag, env, or default (in priority order).
func (opts *options) BFFURL() string {
	if opts.url != "" {
		return opts.url
	}
	if fromEnv := opts.env.Getenv("STOREFRONT_URL"); fromEnv != "" {
		return fromEnv
	}
	return defaultURL
}

// APIURL returns the backend base URL from flag, env, or default.
func (opts *options) APIURL() string {
	if opts.apiURL != "" {
		return opts.apiURL
	}
	if fromEnv := opts.env.Getenv("STOREFRONT_API_URL"); fromEnv != "" {
		return fromEnv
	}
	return defaultAPIURL
}

// Store opens the session file.
func (opts *options) Store() (*SessionFile, error) {
	if opts.sessionFile != "" {
		return NewSessionFile(opts.sessionFile), nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil, err
	}
	return NewSessionFile(filepath.Join(dir, "shopctl", "session.json")), nil
}

// Logger writes text diagnostics to stderr in verbose mode and discards them otherwise.
func (opts *options) Logger() *slog.Logger {
	if !opts.verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(opts.env.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func (opts *options) BFF() *BFF {
	return NewBFF(opts.BFFURL(), opts.timeout)
}
