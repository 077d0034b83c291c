// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/taibuivan/storefront/internal/notify"
	"github.com/taibuivan/storefront/internal/platform/constants"
	"github.com/taibuivan/storefront/internal/platform/metrics"
)

// maxErrorBody bounds how much of a failed response is read for its message.
const maxErrorBody = 16 << 10

// Config wires a [Client].
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	RetryMax int

	Notifier notify.Notifier
	Resolver Resolver
	Metrics  *metrics.Metrics
	Logger   *slog.Logger

	// Transport replaces the retrying transport. Tests use it to stub the backend.
	Transport Doer
}

// Client is the typed backend API.
//
// Protected calls run through bearer injection and auth-failure handling.
// Anonymous calls (login, registration) only normalize network errors,
// so a 401 there means "wrong credentials", never "session lost".
// Recovery calls (forgot and reset password) carry no bearer and never sign out,
// but their failures still reach the notifier.
type Client struct {
	baseURL   string
	protected Doer
	anonymous Doer
	recovery  Doer
}

// New composes the pipelines once.
func New(cfg Config) *Client {
	transport := cfg.Transport
	if transport == nil {
		transport = NewTransport(TransportOptions{Timeout: cfg.Timeout, RetryMax: cfg.RetryMax, Logger: cfg.Logger})
	}
	resolve := cfg.Resolver
	if resolve == nil {
		resolve = FromContext
	}

	failures := AuthFailureOptions{Notifier: cfg.Notifier, Metrics: cfg.Metrics, Logger: cfg.Logger}

	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		protected: Chain(transport, AuthFailure(resolve, failures), BearerToken(resolve)),
		anonymous: Chain(transport, NetworkErrors()),
		recovery:  Chain(transport, AuthFailure(Static(nil), failures)),
	}
}

// # Wire Types

// BackendUser is the user record as the backend reports it.
type BackendUser struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
	Name      string
	Picture   string
	Role      string
}

type wireUser struct {
	ID        json.RawMessage `json:"id"`
	Email     string          `json:"email"`
	FirstName string          `json:"firstname"`
	LastName  string          `json:"lastname"`
	Name      string          `json:"name"`
	Picture   string          `json:"picture"`
	Role      wireRole        `json:"role"`
}

// wireRole accepts both {"name":"admin"} and "admin".
type wireRole string

func (role *wireRole) UnmarshalJSON(raw []byte) error {
	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		*role = wireRole(plain)
		return nil
	}
	var object struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &object); err != nil {
		return err
	}
	*role = wireRole(object.Name)
	return nil
}

func (user wireUser) normalize() BackendUser {
	role := string(user.Role)
	if role == "" {
		role = "user"
	}
	return BackendUser{
		ID:        rawID(user.ID),
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Name:      user.Name,
		Picture:   user.Picture,
		Role:      role,
	}
}

// rawID renders numeric and string identifiers alike.
func rawID(raw json.RawMessage) string {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}
	return strings.TrimSpace(string(raw))
}

type authPayload struct {
	User        *wireUser `json:"user"`
	AccessToken string    `json:"accessToken"`
	Token       string    `json:"token"`
}

// authEnvelope accepts the payload either bare or under "data".
type authEnvelope struct {
	Data *authPayload `json:"data"`
	authPayload
}

// AuthResult is a successful credential exchange.
type AuthResult struct {
	User        BackendUser
	AccessToken string
}

func (envelope authEnvelope) result() (*AuthResult, error) {
	payload := envelope.authPayload
	if envelope.Data != nil {
		payload = *envelope.Data
	}
	token := payload.AccessToken
	if token == "" {
		token = payload.Token
	}
	if payload.User == nil || token == "" {
		return nil, &Error{Status: http.StatusBadGateway, Category: CategoryServer, Message: "Backend returned an incomplete sign-in response."}
	}
	return &AuthResult{User: payload.User.normalize(), AccessToken: token}, nil
}

// Registration is the payload of [Client.Register].
type Registration struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Phone     string
}

// FederatedIdentity is the verified identity asserted by an external provider.
type FederatedIdentity struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	GoogleID string `json:"googleId"`
	Picture  string `json:"picture,omitempty"`
}

// # Endpoints

// Login exchanges email and password for a user and access token.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var envelope authEnvelope
	body := map[string]string{"email": email, "password": password}
	if err := c.call(ctx, c.anonymous, http.MethodPost, "/auth/login", body, &envelope); err != nil {
		return nil, err
	}
	return envelope.result()
}

// Register creates an account. The backend's acknowledgement is returned as-is.
func (c *Client) Register(ctx context.Context, registration Registration) (json.RawMessage, error) {
	body := map[string]string{
		"firstname":             registration.FirstName,
		"lastname":              registration.LastName,
		"email":                 registration.Email,
		"password":              registration.Password,
		"password_confirmation": registration.Password,
		"phone":                 registration.Phone,
	}
	var ack json.RawMessage
	if err := c.call(ctx, c.anonymous, http.MethodPost, "/auth/register", body, &ack); err != nil {
		return nil, err
	}
	return ack, nil
}

// Federated exchanges a verified external identity for a backend user and token.
func (c *Client) Federated(ctx context.Context, identity FederatedIdentity) (*AuthResult, error) {
	var envelope authEnvelope
	if err := c.call(ctx, c.anonymous, http.MethodPost, "/auth/google", identity, &envelope); err != nil {
		return nil, err
	}
	return envelope.result()
}

// Logout tells the backend to drop the token of the session in ctx.
func (c *Client) Logout(ctx context.Context) error {
	return c.call(WithGuard(ctx), c.protected, http.MethodPost, "/auth/logout", nil, nil)
}

// Profile fetches the signed-in user's profile.
func (c *Client) Profile(ctx context.Context) (json.RawMessage, error) {
	var profile json.RawMessage
	if err := c.call(WithGuard(ctx), c.protected, http.MethodGet, "/auth/profile", nil, &profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// UpdateProfile replaces profile fields with update.
func (c *Client) UpdateProfile(ctx context.Context, update json.RawMessage) (json.RawMessage, error) {
	var profile json.RawMessage
	if err := c.call(WithGuard(ctx), c.protected, http.MethodPut, "/auth/profile", update, &profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// ForgotPassword asks the backend to mail a reset link.
func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	return c.call(ctx, c.recovery, http.MethodPost, "/auth/forgot-password", map[string]string{"email": email}, nil)
}

// ResetPassword completes a reset with the mailed token.
func (c *Client) ResetPassword(ctx context.Context, token, password string) error {
	body := map[string]string{"token": token, "password": password}
	return c.call(ctx, c.recovery, http.MethodPost, "/auth/reset-password", body, nil)
}

// Ping reports whether the backend answers at all. Any HTTP status counts.
func (c *Client) Ping(ctx context.Context) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/", nil)
	if err != nil {
		return err
	}
	response, err := c.anonymous.Do(request)
	if err != nil {
		return err
	}
	return response.Body.Close()
}

// # Plumbing

func (c *Client) call(ctx context.Context, doer Doer, method, path string, body, target any) error {
	var reader io.Reader
	if body != nil {
		var payload []byte
		switch typed := body.(type) {
		case json.RawMessage:
			payload = typed
		default:
			encoded, err := json.Marshal(body)
			if err != nil {
				return fmt.Errorf("apiclient: encode %s %s: %w", method, path, err)
			}
			payload = encoded
		}
		reader = bytes.NewReader(payload)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("apiclient: build %s %s: %w", method, path, err)
	}
	request.Header.Set("Accept", "application/json")
	if body != nil {
		request.Header.Set(constants.HeaderContentType, "application/json")
	}

	response, err := doer.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode >= 400 {
		return statusError(response)
	}

	if target == nil || response.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, response.Body)
		return nil
	}
	if err := json.NewDecoder(response.Body).Decode(target); err != nil && err != io.EOF {
		return &Error{Status: http.StatusBadGateway, Category: CategoryServer, Message: "Backend returned an unreadable response.", Err: err}
	}
	return nil
}

// statusError builds an [*Error] from a failed response, keeping only the backend's
// "message" (or "error") string.
func statusError(response *http.Response) error {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(response.Body, maxErrorBody)).Decode(&body)

	message := body.Message
	if message == "" {
		message = body.Error
	}
	if message == "" {
		message = "Something went wrong."
	}
	return &Error{Status: response.StatusCode, Category: CategoryOf(response.StatusCode), Message: message}
}
