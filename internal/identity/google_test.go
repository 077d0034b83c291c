// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package identity_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/storefront/internal/identity"
)

const googleClientID = "storefront-client"

// fakeProvider is a minimal OIDC issuer: discovery, JWKS and a token endpoint.
type fakeProvider struct {
	server   *httptest.Server
	key      *rsa.PrivateKey
	verified atomic.Bool
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	provider := &fakeProvider{key: key}
	provider.verified.Store(true)
	mux := http.NewServeMux()
	provider.server = httptest.NewServer(mux)
	t.Cleanup(provider.server.Close)

	mux.HandleFunc("/.well-known/openid-configuration", func(writer http.ResponseWriter, _ *http.Request) {
		issuer := provider.server.URL
		writeJSON(writer, map[string]any{
			"issuer":                                issuer,
			"authorization_endpoint":                issuer + "/authorize",
			"token_endpoint":                        issuer + "/token",
			"jwks_uri":                              issuer + "/keys",
			"id_token_signing_alg_values_supported": []string{"RS256"},
		})
	})

	mux.HandleFunc("/keys", func(writer http.ResponseWriter, _ *http.Request) {
		writeJSON(writer, map[string]any{"keys": []map[string]string{{
			"kty": "RSA",
			"kid": "test-key",
			"alg": "RS256",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}}})
	})

	mux.HandleFunc("/token", func(writer http.ResponseWriter, request *http.Request) {
		if err := request.ParseForm(); err != nil || request.PostForm.Get("code") != "good-code" || request.PostForm.Get("code_verifier") == "" {
			writer.WriteHeader(http.StatusBadRequest)
			writeJSON(writer, map[string]string{"error": "invalid_grant"})
			return
		}

		now := time.Now()
		idToken := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
			"iss":            provider.server.URL,
			"aud":            googleClientID,
			"sub":            "google-123",
			"email":          "ada@example.com",
			"email_verified": provider.verified.Load(),
			"name":           "Ada Lovelace",
			"iat":            now.Unix(),
			"exp":            now.Add(time.Hour).Unix(),
		})
		idToken.Header["kid"] = "test-key"
		signed, err := idToken.SignedString(key)
		if err != nil {
			writer.WriteHeader(http.StatusInternalServerError)
			return
		}

		writeJSON(writer, map[string]any{
			"access_token": "provider-access",
			"token_type":   "Bearer",
			"expires_in":   3600,
			"id_token":     signed,
		})
	})

	return provider
}

func writeJSON(writer http.ResponseWriter, payload any) {
	writer.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(writer).Encode(payload)
}

func (provider *fakeProvider) google() *identity.Google {
	return identity.NewGoogle(identity.GoogleConfig{
		ClientID:     googleClientID,
		ClientSecret: "shh",
		RedirectURL:  "http://shop.local/api/auth/google/callback",
		Issuer:       provider.server.URL,
	})
}

// begin runs the first leg and returns the state plus the flow cookies.
func begin(t *testing.T, google *identity.Google, returnTo string) (string, []*http.Cookie) {
	t.Helper()
	recorder := httptest.NewRecorder()
	target, err := google.Begin(context.Background(), recorder, returnTo)
	require.NoError(t, err)

	parsed, err := url.Parse(target)
	require.NoError(t, err)
	assert.Equal(t, "/authorize", parsed.Path)
	assert.Equal(t, "S256", parsed.Query().Get("code_challenge_method"))
	assert.NotEmpty(t, parsed.Query().Get("code_challenge"))

	return parsed.Query().Get("state"), recorder.Result().Cookies()
}

func callback(query url.Values, cookies []*http.Cookie) *http.Request {
	request := httptest.NewRequest(http.MethodGet, "/api/auth/google/callback?"+query.Encode(), nil)
	for _, cookie := range cookies {
		request.AddCookie(cookie)
	}
	return request
}

/*
TestGoogle_Flow verifies the full authorization-code flow with PKCE and ID-token verification.
*/
func TestGoogle_Flow(t *testing.T) {
	provider := newFakeProvider(t)
	google := provider.google()

	state, cookies := begin(t, google, "/orders")

	recorder := httptest.NewRecorder()
	profile, returnTo, err := google.Complete(context.Background(), recorder,
		callback(url.Values{"state": {state}, "code": {"good-code"}}, cookies))

	require.NoError(t, err)
	assert.Equal(t, "google-123", profile.Subject)
	assert.Equal(t, "ada@example.com", profile.Email)
	assert.Equal(t, "Ada Lovelace", profile.Name)
	assert.Equal(t, "/orders", returnTo)

	for _, cookie := range recorder.Result().Cookies() {
		assert.Negative(t, cookie.MaxAge, cookie.Name)
	}
}

/*
TestGoogle_Rejections verifies state mismatch, provider errors and unverified emails.
*/
func TestGoogle_Rejections(t *testing.T) {
	provider := newFakeProvider(t)
	google := provider.google()

	t.Run("state mismatch", func(t *testing.T) {
		_, cookies := begin(t, google, "")
		_, returnTo, err := google.Complete(context.Background(), httptest.NewRecorder(),
			callback(url.Values{"state": {"forged"}, "code": {"good-code"}}, cookies))

		assert.ErrorIs(t, err, identity.ErrFlowState)
		assert.Equal(t, "/dashboard", returnTo)
	})

	t.Run("provider denied", func(t *testing.T) {
		state, cookies := begin(t, google, "")
		_, _, err := google.Complete(context.Background(), httptest.NewRecorder(),
			callback(url.Values{"state": {state}, "error": {"access_denied"}}, cookies))

		assert.ErrorIs(t, err, identity.ErrProviderDenied)
	})

	t.Run("bad code", func(t *testing.T) {
		state, cookies := begin(t, google, "")
		_, _, err := google.Complete(context.Background(), httptest.NewRecorder(),
			callback(url.Values{"state": {state}, "code": {"bad-code"}}, cookies))

		assert.Error(t, err)
	})

	t.Run("unverified email", func(t *testing.T) {
		provider.verified.Store(false)
		defer provider.verified.Store(true)

		state, cookies := begin(t, google, "")
		_, _, err := google.Complete(context.Background(), httptest.NewRecorder(),
			callback(url.Values{"state": {state}, "code": {"good-code"}}, cookies))

		assert.ErrorIs(t, err, identity.ErrUnverifiedEmail)
	})

	t.Run("open redirect", func(t *testing.T) {
		state, cookies := begin(t, google, "https://evil.example/steal")
		_, returnTo, err := google.Complete(context.Background(), httptest.NewRecorder(),
			callback(url.Values{"state": {state}, "code": {"good-code"}}, cookies))

		require.NoError(t, err)
		assert.Equal(t, "/dashboard", returnTo)
	})
}
