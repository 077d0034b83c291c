// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/taibuivan/storefront/internal/apiclient"
	"github.com/taibuivan/storefront/internal/platform/constants"
	"github.com/taibuivan/storefront/internal/session"
)

// BFF talks to the storefront's own /api/auth surface with a session cookie.
type BFF struct {
	baseURL string
	doer    apiclient.Doer
}

// NewBFF creates a client for the BFF at baseURL.
// Idempotent calls are retried once; every transport failure surfaces as [apiclient.ErrNetwork].
func NewBFF(baseURL string, timeout time.Duration) *BFF {
	transport := apiclient.NewTransport(apiclient.TransportOptions{Timeout: timeout, RetryMax: 1})
	return &BFF{
		baseURL: strings.TrimRight(baseURL, "/"),
		doer:    apiclient.Chain(transport, apiclient.NetworkErrors()),
	}
}

// sessionPayload mirrors the BFF session view.
type sessionPayload struct {
	User               *session.User     `json:"user"`
	AccessToken        string            `json:"accessToken"`
	AccessTokenExpires int64             `json:"accessTokenExpires"`
	Error              session.ErrorCode `json:"error"`
}

func (payload sessionPayload) snapshot() *session.Session {
	if payload.User == nil {
		return nil
	}
	return &session.Session{
		User:               *payload.User,
		AccessToken:        payload.AccessToken,
		AccessTokenExpires: payload.AccessTokenExpires,
		Error:              payload.Error,
	}
}

// Login exchanges credentials and captures the session cookie.
func (bff *BFF) Login(ctx context.Context, email, password string) (*Saved, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}

	response, err := bff.do(ctx, http.MethodPost, "/api/auth/login", "", body)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	var payload sessionPayload
	if err := json.NewDecoder(response.Body).Decode(&payload); err != nil {
		return nil, err
	}

	current := payload.snapshot()
	for _, cookie := range response.Cookies() {
		if current != nil && cookie.Name == constants.SessionCookieName && cookie.Value != "" {
			return &Saved{Cookie: cookie.Value, Session: current}, nil
		}
	}
	return nil, &apiclient.Error{Status: response.StatusCode, Category: apiclient.CategoryServer, Message: "Sign-in response carried no session cookie."}
}

// Session reads the session behind cookie. A signed-out cookie yields (nil, nil).
func (bff *BFF) Session(ctx context.Context, cookie string) (*session.Session, error) {
	response, err := bff.do(ctx, http.MethodGet, "/api/auth/session", cookie, nil)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	var payload sessionPayload
	if err := json.NewDecoder(response.Body).Decode(&payload); err != nil {
		return nil, err
	}
	return payload.snapshot(), nil
}

// Logout revokes cookie on the BFF.
func (bff *BFF) Logout(ctx context.Context, cookie string) error {
	response, err := bff.do(ctx, http.MethodPost, "/api/auth/logout", cookie, nil)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, response.Body)
	return response.Body.Close()
}

// SignInURL is where a browser user would sign in again.
func (bff *BFF) SignInURL() string {
	return bff.baseURL + constants.SignInPath
}

func (bff *BFF) do(ctx context.Context, method, path, cookie string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	request, err := http.NewRequestWithContext(ctx, method, bff.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	request.Header.Set("Accept", "application/json")
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if cookie != "" {
		request.AddCookie(&http.Cookie{Name: constants.SessionCookieName, Value: cookie})
	}

	response, err := bff.doer.Do(request)
	if err != nil {
		return nil, err
	}
	if response.StatusCode >= http.StatusBadRequest {
		defer response.Body.Close()
		return nil, bffError(response)
	}
	return response, nil
}

func bffError(response *http.Response) error {
	var envelope struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(response.Body, 16<<10)).Decode(&envelope)
	if envelope.Error == "" {
		envelope.Error = http.StatusText(response.StatusCode)
	}
	return &apiclient.Error{
		Status:   response.StatusCode,
		Category: apiclient.CategoryOf(response.StatusCode),
		Message:  envelope.Error,
	}
}
