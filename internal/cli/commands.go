// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/taibuivan/storefront/internal/apiclient"
	"github.com/taibuivan/storefront/internal/notify"
	"github.com/taibuivan/storefront/internal/session"
)

// ErrSessionExpired is returned when the stored session is no longer usable.
var ErrSessionExpired = errors.New("session expired; run 'shopctl login'")

// # login

func newLoginCommand(opts *options) *cobra.Command {
	var email string

	command := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Long: `Sign in through the storefront and store the session locally.

The password is read from SHOPCTL_PASSWORD, or from the first line of stdin.`,
		Args: cobra.NoArgs,
		RunE: func(command *cobra.Command, _ []string) error {
			return runLogin(command.Context(), opts, email)
		},
	}
	command.Flags().StringVarP(&email, "email", "e", "", "Account email (prompted when empty)")
	return command
}

func runLogin(ctx context.Context, opts *options, email string) error {
	store, err := opts.Store()
	if err != nil {
		return err
	}

	input := bufio.NewReader(opts.env.Stdin)
	if email == "" {
		if email, err = prompt(input, opts.env.Stderr, "Email: "); err != nil {
			return err
		}
	}
	password := opts.env.Getenv("SHOPCTL_PASSWORD")
	if password == "" {
		if password, err = prompt(input, opts.env.Stderr, "Password: "); err != nil {
			return err
		}
	}

	saved, err := opts.BFF().Login(ctx, email, password)
	if err != nil {
		return describe(err)
	}
	if err := store.Save(saved); err != nil {
		return err
	}

	opts.Logger().DebugContext(ctx, "session_saved", slog.String("path", store.Path()))
	return printSession(opts, saved.Session)
}

func prompt(input *bufio.Reader, out io.Writer, label string) (string, error) {
	_, _ = fmt.Fprint(out, label)
	line, err := input.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", fmt.Errorf("%sa value is required", strings.ToLower(label))
	}
	return line, nil
}

// # logout

func newLogoutCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, _ []string) error {
			return runLogout(command.Context(), opts)
		},
	}
}

func runLogout(ctx context.Context, opts *options) error {
	store, err := opts.Store()
	if err != nil {
		return err
	}

	saved, err := store.Load()
	if errors.Is(err, ErrSignedOut) {
		_, _ = fmt.Fprintln(opts.env.Stdout, "Already signed out.")
		return nil
	}
	if err != nil {
		return err
	}

	// The local copy is dropped even when the BFF cannot be reached
	if err := opts.BFF().Logout(ctx, saved.Cookie); err != nil {
		opts.Logger().WarnContext(ctx, "remote_logout_failed", slog.String("error", err.Error()))
	}
	if err := store.Remove(); err != nil {
		return err
	}

	_, _ = fmt.Fprintln(opts.env.Stdout, "Signed out.")
	return nil
}

// # whoami

func newWhoamiCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user and remaining session lifetime",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, _ []string) error {
			return runWhoami(command.Context(), opts)
		},
	}
}

func runWhoami(ctx context.Context, opts *options) error {
	store, err := opts.Store()
	if err != nil {
		return err
	}
	saved, err := store.Load()
	if err != nil {
		return err
	}

	current := snapshotSource(opts, store, saved, nil).Snapshot(ctx)
	if current == nil {
		return ErrSignedOut
	}
	if err := printSession(opts, current); err != nil {
		return err
	}
	if !current.Valid(opts.env.Now()) {
		return ErrSessionExpired
	}
	return nil
}

// # profile

func newProfileCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Fetch the signed-in user's profile from the backend",
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, _ []string) error {
			return runProfile(command.Context(), opts)
		},
	}
}

func runProfile(ctx context.Context, opts *options) error {
	store, err := opts.Store()
	if err != nil {
		return err
	}
	saved, err := store.Load()
	if err != nil {
		return err
	}

	provider := session.NewProvider(saved.Session,
		session.WithClock(opts.env.Now),
		session.WithSignOutHook(func(context.Context, *session.Session) error {
			return store.Remove()
		}),
	)
	if !provider.Current().Valid(opts.env.Now()) {
		return ErrSessionExpired
	}

	client := apiclient.New(apiclient.Config{
		BaseURL:  opts.APIURL(),
		Timeout:  opts.timeout,
		RetryMax: 2,
		Notifier: terminalNotifier(opts),
		Resolver: apiclient.Static(provider),
		Logger:   opts.Logger(),
	})

	profile, err := client.Profile(ctx)
	if err != nil {
		return describe(err)
	}
	return printProfile(opts, profile)
}

// # Output

type sessionOutput struct {
	User             session.User      `json:"user"`
	ExpiresAt        time.Time         `json:"expiresAt"`
	RemainingSeconds int64             `json:"remainingSeconds"`
	Error            session.ErrorCode `json:"error,omitempty"`
}

func printSession(opts *options, current *session.Session) error {
	now := opts.env.Now()
	remaining := current.Remaining(now)

	if opts.jsonOutput {
		return writeJSON(opts.env.Stdout, sessionOutput{
			User:             current.User,
			ExpiresAt:        current.ExpiresAt().UTC(),
			RemainingSeconds: int64(remaining / time.Second),
			Error:            current.Refresh(now).Error,
		})
	}

	name := current.User.DisplayName
	if name == "" {
		name = current.User.Email
	}
	_, _ = fmt.Fprintf(opts.env.Stdout, "Signed in as %s <%s> (%s)\n", name, current.User.Email, current.User.Role)
	if current.Valid(now) {
		_, _ = fmt.Fprintf(opts.env.Stdout, "Session expires in %s\n", session.HumanRemaining(remaining))
	} else {
		_, _ = fmt.Fprintln(opts.env.Stdout, "Session expired")
	}
	return nil
}

func printProfile(opts *options, profile json.RawMessage) error {
	var fields map[string]any
	if opts.jsonOutput || json.Unmarshal(profile, &fields) != nil {
		var value any
		if err := json.Unmarshal(profile, &value); err != nil {
			return err
		}
		return writeJSON(opts.env.Stdout, value)
	}

	// Unwrap {"data": {...}}
	if inner, ok := fields["data"].(map[string]any); ok && len(fields) == 1 {
		fields = inner
	}
	for _, key := range slices.Sorted(maps.Keys(fields)) {
		_, _ = fmt.Fprintf(opts.env.Stdout, "%-12s %v\n", key+":", fields[key])
	}
	return nil
}

func writeJSON(out io.Writer, value any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

// describe turns a normalized backend failure into its user-facing message.
func describe(err error) error {
	var apiError *apiclient.Error
	if errors.As(err, &apiError) && apiError.Message != "" {
		return errors.New(apiError.Message)
	}
	return err
}

func terminalNotifier(opts *options) notify.Notifier {
	return notify.NewDedup(notify.NewTerminal(opts.env.Stderr), time.Minute)
}
