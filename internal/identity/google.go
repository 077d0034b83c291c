// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package identity

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/taibuivan/storefront/internal/gate"
)

// GoogleIssuer is the OIDC issuer used when none is configured.
const GoogleIssuer = "https://accounts.google.com"

const (
	stateCookieName    = "storefront.oauth-state"
	verifierCookieName = "storefront.pkce-verifier"
	returnCookieName   = "storefront.oauth-return"
	flowCookieMaxAge   = 5 * time.Minute
)

var (
	// ErrFlowState is returned for a callback whose state does not match the flow cookie.
	ErrFlowState = errors.New("identity: oauth state mismatch")

	// ErrProviderDenied is returned when the provider reports an error, typically a user cancel.
	ErrProviderDenied = errors.New("identity: provider denied the sign-in")

	// ErrUnverifiedEmail is returned for ID tokens whose email the provider has not verified.
	ErrUnverifiedEmail = errors.New("identity: provider email not verified")
)

// GoogleConfig configures [Google].
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// Issuer defaults to [GoogleIssuer].
	Issuer string

	// Secure marks the short-lived flow cookies Secure.
	Secure bool

	// HTTPClient is used for discovery, key fetches and the code exchange.
	HTTPClient *http.Client
}

// Google runs the authorization-code flow with PKCE against an OIDC provider.
//
// Discovery happens lazily on first use and is cached after it succeeds, so an
// unreachable provider at startup only disables federated sign-in until it recovers.
type Google struct {
	config GoogleConfig

	mu       sync.Mutex
	oauth    *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// NewGoogle creates a [Google] flow.
func NewGoogle(cfg GoogleConfig) *Google {
	if cfg.Issuer == "" {
		cfg.Issuer = GoogleIssuer
	}
	return &Google{config: cfg}
}

func (google *Google) clientContext(ctx context.Context) context.Context {
	if google.config.HTTPClient == nil {
		return ctx
	}
	return oidc.ClientContext(ctx, google.config.HTTPClient)
}

func (google *Google) discover(ctx context.Context) (*oauth2.Config, *oidc.IDTokenVerifier, error) {
	google.mu.Lock()
	defer google.mu.Unlock()

	if google.oauth != nil {
		return google.oauth, google.verifier, nil
	}

	provider, err := oidc.NewProvider(google.clientContext(ctx), google.config.Issuer)
	if err != nil {
		return nil, nil, fmt.Errorf("identity: oidc discovery: %w", err)
	}

	google.oauth = &oauth2.Config{
		ClientID:     google.config.ClientID,
		ClientSecret: google.config.ClientSecret,
		RedirectURL:  google.config.RedirectURL,
		Endpoint:     provider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
	}
	google.verifier = provider.Verifier(&oidc.Config{ClientID: google.config.ClientID})
	return google.oauth, google.verifier, nil
}

// Begin stores the flow state in short-lived cookies and returns the provider URL.
// returnTo is sanitized to a same-site path.
func (google *Google) Begin(ctx context.Context, writer http.ResponseWriter, returnTo string) (string, error) {
	config, _, err := google.discover(ctx)
	if err != nil {
		return "", err
	}

	state, err := randomToken(32)
	if err != nil {
		return "", fmt.Errorf("identity: generate state: %w", err)
	}
	verifier := oauth2.GenerateVerifier()

	google.setFlowCookie(writer, stateCookieName, state)
	google.setFlowCookie(writer, verifierCookieName, verifier)
	google.setFlowCookie(writer, returnCookieName, gate.SafeCallback(returnTo))

	return config.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)), nil
}

// Complete validates the callback, exchanges the code, verifies the ID token and
// returns the provider profile plus the path to land on. Flow cookies are cleared
// whatever the outcome.
func (google *Google) Complete(ctx context.Context, writer http.ResponseWriter, request *http.Request) (ProviderProfile, string, error) {
	defer google.clearFlowCookies(writer)

	returnTo := gate.SafeCallback(cookieValue(request, returnCookieName))
	query := request.URL.Query()

	state := cookieValue(request, stateCookieName)
	if state == "" || subtle.ConstantTimeCompare([]byte(state), []byte(query.Get("state"))) != 1 {
		return ProviderProfile{}, returnTo, ErrFlowState
	}
	if providerError := query.Get("error"); providerError != "" {
		return ProviderProfile{}, returnTo, fmt.Errorf("%w: %s", ErrProviderDenied, providerError)
	}

	code := query.Get("code")
	verifier := cookieValue(request, verifierCookieName)
	if code == "" || verifier == "" {
		return ProviderProfile{}, returnTo, ErrFlowState
	}

	config, idVerifier, err := google.discover(ctx)
	if err != nil {
		return ProviderProfile{}, returnTo, err
	}

	ctx = google.clientContext(ctx)
	token, err := config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return ProviderProfile{}, returnTo, fmt.Errorf("identity: code exchange: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return ProviderProfile{}, returnTo, errors.New("identity: token response carried no id_token")
	}

	idToken, err := idVerifier.Verify(ctx, rawIDToken)
	if err != nil {
		return ProviderProfile{}, returnTo, fmt.Errorf("identity: verify id_token: %w", err)
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return ProviderProfile{}, returnTo, fmt.Errorf("identity: decode id_token claims: %w", err)
	}
	if !claims.EmailVerified {
		return ProviderProfile{}, returnTo, ErrUnverifiedEmail
	}

	return ProviderProfile{
		Subject: idToken.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
		Picture: claims.Picture,
	}, returnTo, nil
}

// # Flow Cookies

func (google *Google) setFlowCookie(writer http.ResponseWriter, name, value string) {
	http.SetCookie(writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(flowCookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   google.config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (google *Google) clearFlowCookies(writer http.ResponseWriter) {
	for _, name := range []string{stateCookieName, verifierCookieName, returnCookieName} {
		http.SetCookie(writer, &http.Cookie{
			Name:     name,
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   google.config.Secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

func cookieValue(request *http.Request, name string) string {
	cookie, err := request.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// randomToken returns n random bytes, hex encoded.
func randomToken(n int) (string, error) {
	buffer := make([]byte, n)
	if _, err := rand.Read(buffer); err != nil {
		return "", err
	}
	return hex.EncodeToString(buffer), nil
}
