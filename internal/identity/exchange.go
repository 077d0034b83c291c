// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package identity exchanges credentials with the backend and serves the /api/auth routes.

Architecture:

  - Exchanger: validates input locally, calls the backend through [apiclient], and maps
    both the backend's user shape and its failures into the storefront's own types.
  - Google: the federated (OIDC) login flow. The verified ID token becomes a provider
    profile, which the backend links or creates an account for.
  - Handler: chi routes for sign-in, sign-out, the session snapshot and the profile proxy.

Passwords are scrubbed from the inbound credentials on every path out of the exchanger.
*/
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/taibuivan/storefront/internal/apiclient"
	"github.com/taibuivan/storefront/internal/platform/apperr"
	"github.com/taibuivan/storefront/internal/platform/metrics"
	"github.com/taibuivan/storefront/internal/platform/sec"
	"github.com/taibuivan/storefront/internal/platform/validate"
	"github.com/taibuivan/storefront/internal/session"
)

// backendCooldownSeconds is reported to the user when the backend rate limits a sign-in.
const backendCooldownSeconds = 60

// Backend is the subset of the API client the exchanger needs.
type Backend interface {
	Login(ctx context.Context, email, password string) (*apiclient.AuthResult, error)
	Federated(ctx context.Context, identity apiclient.FederatedIdentity) (*apiclient.AuthResult, error)
	Register(ctx context.Context, registration apiclient.Registration) (json.RawMessage, error)
	ResetPassword(ctx context.Context, token, password string) error
}

// # Exchange Types

// Credentials is a password sign-in attempt. [Exchanger.PasswordLogin] clears Password.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *Credentials) scrub() {
	if c != nil {
		c.Password = ""
	}
}

// Registration is a sign-up attempt. [Exchanger.Register] clears Password.
type Registration struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Phone     string `json:"phone"`
}

// PasswordReset is a recovery-token redemption. [Exchanger.ResetPassword] clears Password.
type PasswordReset struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (r *PasswordReset) scrub() {
	if r != nil {
		r.Password = ""
	}
}

// maxResetToken bounds the opaque reset token forwarded to the backend.
const maxResetToken = 512

// ProviderProfile is the identity asserted by an external provider.
type ProviderProfile struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

// Result is a successful exchange, ready for [session.Establish].
type Result struct {
	User        session.User
	AccessToken string
}

// # Exchanger

// Exchanger performs the credential exchanges.
type Exchanger struct {
	backend Backend
	metrics *metrics.Metrics
}

// NewExchanger creates an [Exchanger]. metrics may be nil.
func NewExchanger(backend Backend, m *metrics.Metrics) *Exchanger {
	return &Exchanger{backend: backend, metrics: m}
}

// PasswordLogin validates the credentials, exchanges them with the backend and maps the result.
// No network call is made when validation fails.
func (exchanger *Exchanger) PasswordLogin(ctx context.Context, credentials *Credentials) (*Result, error) {
	defer credentials.scrub()

	if credentials == nil {
		return nil, apperr.ValidationError("Email and password are required")
	}

	credentials.Email = strings.TrimSpace(credentials.Email)
	checks := &validate.Validator{}
	checks.Apply("email", validate.KindEmail, credentials.Email)
	checks.Required("password", credentials.Password)
	if err := checks.Err(); err != nil {
		exchanger.metrics.CredentialExchange("password", "invalid")
		return nil, err
	}

	result, err := exchanger.backend.Login(ctx, credentials.Email, credentials.Password)
	if err != nil {
		exchanger.metrics.CredentialExchange("password", outcomeOf(err))
		return nil, mapFailure(err)
	}

	exchanger.metrics.CredentialExchange("password", "success")
	return toResult(result), nil
}

// FederatedLogin exchanges a verified provider profile for a backend session.
// The backend decides whether the profile creates or links an account.
func (exchanger *Exchanger) FederatedLogin(ctx context.Context, profile ProviderProfile) (*Result, error) {
	if profile.Subject == "" || profile.Email == "" {
		exchanger.metrics.CredentialExchange("google", "invalid")
		return nil, apperr.ValidationError("Identity provider returned an incomplete profile")
	}

	result, err := exchanger.backend.Federated(ctx, apiclient.FederatedIdentity{
		Email:    profile.Email,
		Name:     profile.Name,
		GoogleID: profile.Subject,
		Picture:  profile.Picture,
	})
	if err != nil {
		exchanger.metrics.CredentialExchange("google", outcomeOf(err))
		return nil, mapFailure(err)
	}

	exchanger.metrics.CredentialExchange("google", "success")
	return toResult(result), nil
}

// Register validates and forwards a sign-up. It does not sign the user in.
func (exchanger *Exchanger) Register(ctx context.Context, registration *Registration) (json.RawMessage, error) {
	defer func() {
		if registration != nil {
			registration.Password = ""
		}
	}()

	if registration == nil {
		return nil, apperr.ValidationError("Registration details are required")
	}

	registration.FirstName = validate.NormalizeName(registration.FirstName)
	registration.LastName = validate.NormalizeName(registration.LastName)
	registration.Email = strings.TrimSpace(registration.Email)
	registration.Phone = strings.TrimSpace(registration.Phone)

	checks := &validate.Validator{}
	checks.Apply("firstName", validate.KindName, registration.FirstName)
	checks.Apply("lastName", validate.KindName, registration.LastName)
	checks.Apply("email", validate.KindEmail, registration.Email)
	checks.Apply("password", validate.KindPassword, registration.Password)
	checks.Apply("phone", validate.KindPhone, registration.Phone)
	if err := checks.Err(); err != nil {
		exchanger.metrics.CredentialExchange("register", "invalid")
		return nil, err
	}

	ack, err := exchanger.backend.Register(ctx, apiclient.Registration{
		FirstName: registration.FirstName,
		LastName:  registration.LastName,
		Email:     registration.Email,
		Password:  registration.Password,
		Phone:     registration.Phone,
	})
	if err != nil {
		exchanger.metrics.CredentialExchange("register", outcomeOf(err))
		return nil, mapFailure(err)
	}

	exchanger.metrics.CredentialExchange("register", "success")
	return ack, nil
}

// ResetPassword redeems a recovery token with a new password. The new password must
// meet the same strength rules as at registration.
func (exchanger *Exchanger) ResetPassword(ctx context.Context, reset *PasswordReset) error {
	defer reset.scrub()

	if reset == nil {
		return apperr.ValidationError("Reset details are required")
	}

	checks := &validate.Validator{}
	checks.Required("token", reset.Token).MaxLen("token", reset.Token, maxResetToken)
	checks.Apply("password", validate.KindPassword, reset.Password)
	if err := checks.Err(); err != nil {
		exchanger.metrics.CredentialExchange("reset", "invalid")
		return err
	}

	if err := exchanger.backend.ResetPassword(ctx, reset.Token, reset.Password); err != nil {
		exchanger.metrics.CredentialExchange("reset", outcomeOf(err))
		return BackendError(err)
	}

	exchanger.metrics.CredentialExchange("reset", "success")
	return nil
}

// # Mapping

func toResult(result *apiclient.AuthResult) *Result {
	user := result.User
	display := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if display == "" {
		display = user.Name
	}
	return &Result{
		User: session.User{
			ID:          user.ID,
			Email:       user.Email,
			DisplayName: display,
			FirstName:   user.FirstName,
			LastName:    user.LastName,
			Role:        sec.ParseRole(user.Role),
		},
		AccessToken: result.AccessToken,
	}
}

// mapFailure turns a backend failure of an anonymous exchange into an [apperr.AppError].
func mapFailure(err error) error {
	var apiError *apiclient.Error
	if !errors.As(err, &apiError) {
		return apperr.Internal(err)
	}

	switch apiError.Category {
	case apiclient.CategoryUnauthorized:
		return apperr.Unauthorized("Invalid email or password").WithCause(err)
	case apiclient.CategoryRateLimited:
		return apperr.RateLimited(backendCooldownSeconds).WithCause(err)
	case apiclient.CategoryNetwork:
		return apperr.Unreachable("The account service is unreachable. Please try again shortly.").WithCause(err)
	}
	return BackendError(err)
}

// BackendError maps a failed backend call to an [apperr.AppError], keeping the
// backend's message when it sent one.
func BackendError(err error) error {
	var apiError *apiclient.Error
	if !errors.As(err, &apiError) {
		return apperr.Internal(err)
	}

	message := apiError.Message
	if message == "" {
		message = "Something went wrong. Please try again."
	}

	switch apiError.Category {
	case apiclient.CategoryUnauthorized:
		return apperr.Unauthorized("Your session has expired. Please sign in again.").WithCause(err)
	case apiclient.CategoryForbidden:
		return apperr.Forbidden("You do not have permission to perform this action.").WithCause(err)
	case apiclient.CategoryNotFound:
		return apperr.NotFound("Resource").WithCause(err)
	case apiclient.CategoryRateLimited:
		return apperr.RateLimited(backendCooldownSeconds).WithCause(err)
	case apiclient.CategoryNetwork:
		return apperr.Unreachable("The account service is unreachable. Please try again shortly.").WithCause(err)
	case apiclient.CategoryServer:
		return apperr.BadGateway(message).WithCause(err)
	}

	if apiError.Status == http.StatusConflict {
		return apperr.Conflict(message).WithCause(err)
	}
	return apperr.ValidationError(message).WithCause(err)
}

func outcomeOf(err error) string {
	switch {
	case apiclient.IsCategory(err, apiclient.CategoryUnauthorized):
		return "rejected"
	case apiclient.IsCategory(err, apiclient.CategoryNetwork):
		return "unreachable"
	default:
		return "error"
	}
}
