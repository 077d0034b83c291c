// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package apiclient

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	retryWaitMin = 100 * time.Millisecond
	retryWaitMax = 2 * time.Second
)

// TransportOptions configures [NewTransport].
type TransportOptions struct {
	Timeout  time.Duration
	RetryMax int
	Logger   *slog.Logger

	// Base is the client used for single attempts. Defaults to a fresh client with Timeout.
	Base *http.Client
}

// NewTransport returns the innermost [Doer]: idempotent methods go through a
// retrying client with exponential backoff, every other method is sent once.
func NewTransport(options TransportOptions) Doer {
	base := options.Base
	if base == nil {
		base = &http.Client{Timeout: options.Timeout}
	}

	retrying := retryablehttp.NewClient()
	retrying.HTTPClient = base
	retrying.RetryMax = options.RetryMax
	retrying.RetryWaitMin = retryWaitMin
	retrying.RetryWaitMax = retryWaitMax
	retrying.Backoff = retryablehttp.DefaultBackoff
	retrying.CheckRetry = retryPolicy
	retrying.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retrying.Logger = nil
	if options.Logger != nil {
		retrying.Logger = options.Logger
	}

	standard := retrying.StandardClient()

	return DoerFunc(func(request *http.Request) (*http.Response, error) {
		if idempotent(request.Method) {
			return standard.Do(request)
		}
		return base.Do(request)
	})
}

// retryPolicy retries connection errors and 5xx. 429 is left to the caller so a
// rate-limited user is told to wait instead of being retried into a longer ban.
func retryPolicy(ctx context.Context, response *http.Response, err error) (bool, error) {
	if response != nil && response.StatusCode == http.StatusTooManyRequests {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, response, err)
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete, http.MethodTrace:
		return true
	default:
		return false
	}
}
