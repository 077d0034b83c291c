// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package identity

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/storefront/internal/apiclient"
	"github.com/taibuivan/storefront/internal/platform/apperr"
	"github.com/taibuivan/storefront/internal/platform/constants"
	"github.com/taibuivan/storefront/internal/platform/ctxutil"
	requestutil "github.com/taibuivan/storefront/internal/platform/request"
	"github.com/taibuivan/storefront/internal/platform/respond"
	"github.com/taibuivan/storefront/internal/platform/validate"
	"github.com/taibuivan/storefront/internal/session"
)

// Protected is the slice of the API client used on behalf of a signed-in user.
type Protected interface {
	Logout(ctx context.Context) error
	Profile(ctx context.Context) (json.RawMessage, error)
	UpdateProfile(ctx context.Context, update json.RawMessage) (json.RawMessage, error)
	ForgotPassword(ctx context.Context, email string) error
}

// HandlerConfig wires a [Handler].
type HandlerConfig struct {
	Exchanger *Exchanger
	Backend   Protected
	Store     *session.Store

	// Google is nil when federated sign-in is not configured.
	Google *Google

	// FallbackWindow is the lifetime given to tokens without a readable expiry.
	FallbackWindow time.Duration
}

// Handler implements the /api/auth endpoints.
//
// # Scope
//
// It owns every transition of the session cookie: sign-in writes it, sign-out
// revokes and clears it, and a backend 401 on a proxied call destroys it through
// the per-request provider.
type Handler struct {
	exchanger *Exchanger
	backend   Protected
	store     *session.Store
	google    *Google
	fallback  time.Duration
}

// NewHandler constructs a [Handler].
func NewHandler(cfg HandlerConfig) *Handler {
	fallback := cfg.FallbackWindow
	if fallback <= 0 {
		fallback = constants.TokenFallbackWindow
	}
	return &Handler{
		exchanger: cfg.Exchanger,
		backend:   cfg.Backend,
		store:     cfg.Store,
		google:    cfg.Google,
		fallback:  fallback,
	}
}

// CredentialRoutes are the endpoints that accept credentials. They sit behind the
// strict authentication rate limit.
//
// # Endpoints
//   - POST /login           : Password sign-in, sets the session cookie.
//   - POST /register        : Creates an account (no sign-in).
//   - POST /forgot-password : Requests a reset link.
//   - POST /reset-password  : Completes a reset.
//   - GET  /google          : Starts federated sign-in.
//   - GET  /google/callback : Completes federated sign-in.
func (handler *Handler) CredentialRoutes(router chi.Router) {
	router.Post("/login", handler.login)
	router.Post("/register", handler.register)
	router.Post("/forgot-password", handler.forgotPassword)
	router.Post("/reset-password", handler.resetPassword)
	router.Get("/google", handler.googleBegin)
	router.Get("/google/callback", handler.googleCallback)
}

// SessionRoutes are the endpoints that act on an existing session.
//
// # Endpoints
//   - POST /logout   : Signs out (?redirect=1 answers 303 to the sign-in page).
//   - GET  /session  : The refreshed session snapshot, or {} when signed out.
//   - GET  /validate : 401 {error} or {valid, user}.
//   - GET  /profile  : Proxies the backend profile.
//   - PUT  /profile  : Proxies a profile update.
func (handler *Handler) SessionRoutes(router chi.Router) {
	router.Post("/logout", handler.logout)
	router.Get("/session", handler.currentSession)
	router.Get("/validate", handler.Validate)
	router.Get("/profile", handler.profile)
	router.Put("/profile", handler.updateProfile)
}

// # Sign-in

// login handles POST /api/auth/login.
//
// # Returns
//   - 200 with the session view and the session cookie.
//   - 400 for malformed input, 401 for bad credentials, 429 or 503 for backend trouble.
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input Credentials
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.exchanger.PasswordLogin(request.Context(), &input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	current, err := handler.establish(writer, request, result, "password")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	// Same shape as GET /session
	respond.JSON(writer, http.StatusOK, handler.view(current))
}

// register handles POST /api/auth/register.
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	var input Registration
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	ack, err := handler.exchanger.Register(request.Context(), &input)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if len(ack) == 0 {
		ack = json.RawMessage(`{}`)
	}
	respond.Created(writer, ack)
}

// establish turns an exchange result into a session and writes its cookie.
func (handler *Handler) establish(writer http.ResponseWriter, request *http.Request, result *Result, method string) (*session.Session, error) {
	current := session.Establish(result.User, result.AccessToken, handler.store.Now(), handler.fallback)
	if err := handler.store.Save(writer, current); err != nil {
		return nil, apperr.Internal(err)
	}

	ctxutil.GetLogger(request.Context()).InfoContext(request.Context(), "session_established",
		slog.String("user_id", current.User.ID),
		slog.String("method", method),
		slog.Int64("access_token_expires", current.AccessTokenExpires),
	)
	return current, nil
}

// # Federated Sign-in

func (handler *Handler) googleBegin(writer http.ResponseWriter, request *http.Request) {
	if handler.google == nil {
		respond.Error(writer, request, apperr.ServiceUnavailable("Google sign-in is not configured"))
		return
	}

	target, err := handler.google.Begin(request.Context(), writer, request.URL.Query().Get(constants.CallbackURLParam))
	if err != nil {
		ctxutil.GetLogger(request.Context()).ErrorContext(request.Context(), "oidc_begin_failed", slog.String("error", err.Error()))
		http.Redirect(writer, request, errorPage("Configuration"), http.StatusFound)
		return
	}

	http.Redirect(writer, request, target, http.StatusFound)
}

func (handler *Handler) googleCallback(writer http.ResponseWriter, request *http.Request) {
	if handler.google == nil {
		respond.Error(writer, request, apperr.ServiceUnavailable("Google sign-in is not configured"))
		return
	}

	ctx := request.Context()
	logger := ctxutil.GetLogger(ctx)

	profile, returnTo, err := handler.google.Complete(ctx, writer, request)
	if err != nil {
		logger.WarnContext(ctx, "oidc_callback_failed", slog.String("error", err.Error()))
		code := "OAuthCallback"
		if errors.Is(err, ErrProviderDenied) || errors.Is(err, ErrUnverifiedEmail) {
			code = "AccessDenied"
		}
		http.Redirect(writer, request, errorPage(code), http.StatusFound)
		return
	}

	result, err := handler.exchanger.FederatedLogin(ctx, profile)
	if err != nil {
		logger.WarnContext(ctx, "federated_exchange_failed", slog.String("error", err.Error()))
		http.Redirect(writer, request, errorPage("AccessDenied"), http.StatusFound)
		return
	}

	if _, err := handler.establish(writer, request, result, "google"); err != nil {
		respond.Error(writer, request, err)
		return
	}
	http.Redirect(writer, request, returnTo, http.StatusFound)
}

func errorPage(code string) string {
	return constants.ErrorPath + "?" + url.Values{"error": {code}}.Encode()
}

// # Sign-out

// logout handles POST /api/auth/logout.
//
// The backend is told first, best effort. The session is then revoked and the
// cookie cleared even when the backend call failed.
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	ctx := request.Context()
	logger := ctxutil.GetLogger(ctx)

	current := requestutil.Session(request)
	provider := handler.store.Bind(writer, current)

	if current != nil && current.Error == "" {
		if err := handler.backend.Logout(apiclient.WithHolder(ctx, provider)); err != nil {
			logger.WarnContext(ctx, "backend_logout_failed", slog.String("error", err.Error()))
		}
	}

	if current == nil {
		_ = handler.store.Destroy(ctx, writer, nil)
	} else if err := provider.SignOut(ctx); err != nil {
		logger.ErrorContext(ctx, "session_revoke_failed", slog.String("error", err.Error()))
	}

	logger.InfoContext(ctx, "session_signed_out")

	if request.URL.Query().Get("redirect") == "1" {
		http.Redirect(writer, request, constants.SignInPath, http.StatusSeeOther)
		return
	}
	respond.NoContent(writer)
}

// # Session Introspection

type userView struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role,omitempty"`
}

type sessionView struct {
	User               userView          `json:"user"`
	AccessToken        string            `json:"accessToken,omitempty"`
	AccessTokenExpires int64             `json:"accessTokenExpires"`
	Expires            time.Time         `json:"expires"`
	Error              session.ErrorCode `json:"error,omitempty"`
}

func toUserView(user session.User) userView {
	return userView{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.DisplayName,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      string(user.Role),
	}
}

func (handler *Handler) view(current *session.Session) sessionView {
	view := sessionView{
		User:               toUserView(current.User),
		AccessTokenExpires: current.AccessTokenExpires,
		Expires:            current.ExpiresAt().UTC(),
		Error:              current.Error,
	}
	if current.Error == "" {
		view.AccessToken = current.AccessToken
	}
	return view
}

// currentSession handles GET /api/auth/session. Signed-out callers get {}.
func (handler *Handler) currentSession(writer http.ResponseWriter, request *http.Request) {
	current := requestutil.Session(request)
	if current == nil {
		respond.JSON(writer, http.StatusOK, struct{}{})
		return
	}
	respond.JSON(writer, http.StatusOK, handler.view(current))
}

// Validate handles GET /api/auth/validate (also mounted at /auth/validate).
//
// # Returns
//   - 401 {error} when the session is absent, expired, or rejected.
//   - 200 {valid: true, user}.
func (handler *Handler) Validate(writer http.ResponseWriter, request *http.Request) {
	current := requestutil.Session(request)

	switch {
	case current == nil:
		respond.JSON(writer, http.StatusUnauthorized, map[string]string{constants.FieldError: "No session"})
		return
	case !current.Valid(handler.store.Now()):
		respond.JSON(writer, http.StatusUnauthorized, map[string]string{constants.FieldError: "Session expired"})
		return
	}

	respond.JSON(writer, http.StatusOK, map[string]any{
		"valid": true,
		"user":  toUserView(current.User),
	})
}

// # Profile Proxy

// withProvider binds the request session so a backend 401 signs it out.
func (handler *Handler) withProvider(writer http.ResponseWriter, request *http.Request) (context.Context, error) {
	current, err := requestutil.RequiredSession(request, handler.store.Now())
	if err != nil {
		return nil, err
	}
	return apiclient.WithHolder(request.Context(), handler.store.Bind(writer, current)), nil
}

func (handler *Handler) profile(writer http.ResponseWriter, request *http.Request) {
	ctx, err := handler.withProvider(writer, request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	profile, err := handler.backend.Profile(ctx)
	if err != nil {
		respond.Error(writer, request, BackendError(err))
		return
	}
	respond.OK(writer, profile)
}

func (handler *Handler) updateProfile(writer http.ResponseWriter, request *http.Request) {
	ctx, err := handler.withProvider(writer, request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var fields map[string]json.RawMessage
	if err := requestutil.DecodeJSON(writer, request, &fields); err != nil {
		respond.Error(writer, request, err)
		return
	}
	if err := checkProfileUpdate(fields); err != nil {
		respond.Error(writer, request, err)
		return
	}

	update, err := json.Marshal(fields)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	profile, err := handler.backend.UpdateProfile(ctx, update)
	if err != nil {
		respond.Error(writer, request, BackendError(err))
		return
	}
	respond.OK(writer, profile)
}

// profileKinds are the profile fields with a dedicated validation strategy.
var profileKinds = map[string]validate.Kind{
	"firstName": validate.KindName,
	"lastName":  validate.KindName,
	"email":     validate.KindEmail,
	"phone":     validate.KindPhone,
}

// maxProfileText caps free-text profile fields (bio, address, ...).
const maxProfileText = 500

// checkProfileUpdate rejects empty updates and malformed string fields.
// Non-string values are forwarded for the backend to judge.
func checkProfileUpdate(fields map[string]json.RawMessage) error {
	checks := &validate.Validator{}
	checks.Custom("profile", len(fields) == 0, "At least one field is required")

	for _, field := range slices.Sorted(maps.Keys(fields)) {
		var value string
		if json.Unmarshal(fields[field], &value) != nil {
			continue
		}
		if kind, found := profileKinds[field]; found {
			checks.Apply(field, kind, value)
			continue
		}
		checks.MaxLen(field, value, maxProfileText)
	}
	return checks.Err()
}

// # Password Recovery

func (handler *Handler) forgotPassword(writer http.ResponseWriter, request *http.Request) {
	var input struct {
		Email string `json:"email"`
	}
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	checks := &validate.Validator{}
	if err := checks.Apply("email", validate.KindEmail, input.Email).Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.backend.ForgotPassword(request.Context(), input.Email); err != nil {
		respond.Error(writer, request, BackendError(err))
		return
	}
	respond.OK(writer, map[string]string{constants.FieldMessage: "If the address is registered, a reset link is on its way."})
}

func (handler *Handler) resetPassword(writer http.ResponseWriter, request *http.Request) {
	var input PasswordReset
	defer input.scrub()
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.exchanger.ResetPassword(request.Context(), &input); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, map[string]string{constants.FieldMessage: "Your password has been reset. You can now sign in."})
}
