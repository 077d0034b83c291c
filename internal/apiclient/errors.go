// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrNetwork marks failures where no response was received.
var ErrNetwork = errors.New("apiclient: backend unreachable")

// Category groups backend failures into the few classes callers act on.
type Category string

const (
	CategoryUnauthorized Category = "unauthorized"
	CategoryForbidden    Category = "forbidden"
	CategoryNotFound     Category = "not_found"
	CategoryRateLimited  Category = "rate_limited"
	CategoryServer       Category = "server"
	CategoryClient       Category = "client"
	CategoryNetwork      Category = "network"
)

// Error is the normalized outbound failure.
//
// Message is the backend's own message when it sent one, otherwise a generic text.
// Raw backend bodies are never carried.
type Error struct {
	Status   int
	Category Category
	Message  string
	Err      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("apiclient: %s: %s", e.Category, e.Message)
	}
	return fmt.Sprintf("apiclient: %d %s: %s", e.Status, e.Category, e.Message)
}

// Unwrap exposes the cause.
func (e *Error) Unwrap() error { return e.Err }

// CategoryOf maps an HTTP status to its [Category]. 2xx/3xx yield "".
func CategoryOf(status int) Category {
	switch {
	case status < 400:
		return ""
	case status == http.StatusUnauthorized:
		return CategoryUnauthorized
	case status == http.StatusForbidden:
		return CategoryForbidden
	case status == http.StatusNotFound:
		return CategoryNotFound
	case status == http.StatusTooManyRequests:
		return CategoryRateLimited
	case status >= 500:
		return CategoryServer
	default:
		return CategoryClient
	}
}

// networkError wraps a transport failure so errors.Is(err, ErrNetwork) holds.
// Context cancellation is returned untouched; it is the caller's decision, not a network fault.
func networkError(ctx context.Context, cause error) error {
	if ctx.Err() != nil && errors.Is(cause, ctx.Err()) {
		return cause
	}
	return &Error{
		Category: CategoryNetwork,
		Message:  "Network error. Check your connection and try again.",
		Err:      fmt.Errorf("%w: %w", ErrNetwork, cause),
	}
}

// IsCategory reports whether err is an [*Error] of the given category.
func IsCategory(err error, category Category) bool {
	var apiError *Error
	return errors.As(err, &apiError) && apiError.Category == category
}
