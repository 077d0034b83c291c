// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package request provides utilities for extracting data from HTTP requests.

It abstracts away body decoding and session lookups, ensuring consistent
error handling and type safety across the identity and page handlers.
*/
package requestutil

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/taibuivan/storefront/internal/platform/apperr"
	"github.com/taibuivan/storefront/internal/platform/ctxutil"
	"github.com/taibuivan/storefront/internal/platform/validate"
	"github.com/taibuivan/storefront/internal/session"
)

// maxBodyBytes caps inbound JSON bodies; auth payloads are tiny.
const maxBodyBytes = 64 << 10

/*
DecodeJSON reads the request body and decodes it into the target structure.

Parameters:
  - writer: http.ResponseWriter (used to bound the body size)
  - request: *http.Request
  - target: interface{} (Pointer to the destination struct)

Returns:
  - error: validate.ErrInvalidJSON if decoding fails, otherwise nil
*/
func DecodeJSON(writer http.ResponseWriter, request *http.Request, target interface{}) error {
	request.Body = http.MaxBytesReader(writer, request.Body, maxBodyBytes)
	if err := json.NewDecoder(request.Body).Decode(target); err != nil {
		return validate.ErrInvalidJSON
	}
	return nil
}

/*
Session returns the refreshed session snapshot attached by the gate.

Returns nil if the request carries no session cookie.
*/
func Session(request *http.Request) *session.Session {
	return ctxutil.GetSession(request.Context())
}

/*
RequiredSession ensures the request carries a valid session and returns it.

Returns:
  - *session.Session: The valid snapshot
  - error: apperr.Unauthorized if absent, expired, or marked with an error
*/
func RequiredSession(request *http.Request, now time.Time) (*session.Session, error) {

	// Get the snapshot
	current := ctxutil.GetSession(request.Context())

	// Fail closed on missing or invalid sessions
	if !current.Valid(now) {
		return nil, apperr.Unauthorized("Authentication required")
	}

	return current, nil
}
