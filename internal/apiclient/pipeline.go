// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package apiclient calls the backend API through an explicit middleware pipeline.

Architecture:

  - Doer: anything that executes an *http.Request (an *http.Client, the retrying
    transport, or a wrapped Doer).
  - Middleware: func(Doer) Doer, composed once at construction with [Chain].
  - Bearer: attaches the access token of the current session, if any.
  - Auth failure: on 401 marks the session "refresh-failed", notifies once and
    signs out; other failure classes only notify.
  - Retry: idempotent requests are retried with exponential backoff on network
    errors and 5xx responses. Non-idempotent requests go out exactly once.

Nothing here is process-global. The session a request belongs to is resolved
through a [Resolver] chosen by the composition root.
*/
package apiclient

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/taibuivan/storefront/internal/notify"
	"github.com/taibuivan/storefront/internal/platform/constants"
	"github.com/taibuivan/storefront/internal/platform/metrics"
	"github.com/taibuivan/storefront/internal/session"
)

// # Pipeline

// Doer executes HTTP requests.
type Doer interface {
	Do(request *http.Request) (*http.Response, error)
}

// DoerFunc adapts a function to [Doer].
type DoerFunc func(request *http.Request) (*http.Response, error)

// Do calls fn.
func (fn DoerFunc) Do(request *http.Request) (*http.Response, error) {
	return fn(request)
}

// Middleware decorates a [Doer].
type Middleware func(next Doer) Doer

// Chain wraps base with middlewares. The first middleware is the outermost.
func Chain(base Doer, middlewares ...Middleware) Doer {
	doer := base
	for index := len(middlewares) - 1; index >= 0; index-- {
		doer = middlewares[index](doer)
	}
	return doer
}

// # Session Resolution

// Resolver finds the session holder a request acts for. It may return nil.
type Resolver func(ctx context.Context) session.Holder

// Static always resolves to holder. Used by single-user clients such as shopctl.
func Static(holder session.Holder) Resolver {
	return func(context.Context) session.Holder { return holder }
}

type holderKey struct{}

// WithHolder attaches a per-request holder for [FromContext].
func WithHolder(ctx context.Context, holder session.Holder) context.Context {
	return context.WithValue(ctx, holderKey{}, holder)
}

// FromContext resolves the holder attached with [WithHolder]. Used by the BFF,
// where every inbound request has its own session.
func FromContext(ctx context.Context) session.Holder {
	holder, _ := ctx.Value(holderKey{}).(session.Holder)
	return holder
}

// # Bearer Token

// BearerToken attaches "Authorization: Bearer <token>" when the resolved session
// carries a token and no error marker. Otherwise the header is left out and the
// backend decides.
func BearerToken(resolve Resolver) Middleware {
	return func(next Doer) Doer {
		return DoerFunc(func(request *http.Request) (*http.Response, error) {
			holder := resolve(request.Context())
			if holder == nil {
				return next.Do(request)
			}

			current := holder.Current()
			if current == nil || current.Error != "" || current.AccessToken == "" {
				return next.Do(request)
			}

			authorized := request.Clone(request.Context())
			authorized.Header.Set(constants.HeaderAuthorization, constants.AuthorizationPrefix+current.AccessToken)
			return next.Do(authorized)
		})
	}
}

// # Auth Failure

type guardKey struct{}

// WithGuard marks ctx as one logical request. Every attempt made under it shares
// a single "already handled" flag, so one logical request triggers at most one
// sign-out even if its 401 is observed more than once.
func WithGuard(ctx context.Context) context.Context {
	if _, ok := ctx.Value(guardKey{}).(*atomic.Bool); ok {
		return ctx
	}
	return context.WithValue(ctx, guardKey{}, new(atomic.Bool))
}

func guardOf(ctx context.Context) *atomic.Bool {
	if guard, ok := ctx.Value(guardKey{}).(*atomic.Bool); ok {
		return guard
	}
	return new(atomic.Bool)
}

// AuthFailureOptions configures [AuthFailure].
type AuthFailureOptions struct {
	Notifier notify.Notifier
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// AuthFailure reacts to failed protected calls.
//
//   - 401: mark the session refresh-failed, notify, sign out. Only the caller whose
//     mark succeeds signs out, so concurrent 401s sign out once.
//   - 403, 404, 429, 5xx: class-specific notification; the session is kept.
//   - other 4xx: generic API error notification.
//   - no response: connectivity notification and an [ErrNetwork] error.
//
// The response itself is passed through untouched for the caller to decode.
func AuthFailure(resolve Resolver, options AuthFailureOptions) Middleware {
	notifier := options.Notifier
	if notifier == nil {
		notifier = notify.Discard
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(next Doer) Doer {
		return DoerFunc(func(request *http.Request) (*http.Response, error) {
			ctx := request.Context()

			response, err := next.Do(request)
			if err != nil {
				normalized := networkError(ctx, err)
				if IsCategory(normalized, CategoryNetwork) {
					options.Metrics.BackendFailure(string(CategoryNetwork))
					logger.WarnContext(ctx, "backend_unreachable", slog.String("path", request.URL.Path), slog.String("error", err.Error()))
					notifier.Notify(ctx, notify.Notification{
						ID:       notify.IDNetworkError,
						Level:    notify.LevelError,
						Message:  "Network error. Check your connection and try again.",
						Duration: 5 * time.Second,
					})
				}
				return nil, normalized
			}

			category := CategoryOf(response.StatusCode)
			if category == "" {
				return response, nil
			}
			options.Metrics.BackendFailure(string(category))

			switch category {
			case CategoryUnauthorized:
				if !guardOf(ctx).CompareAndSwap(false, true) {
					break
				}
				holder := resolve(ctx)
				if holder == nil || !holder.Fail(session.ErrRefreshFailed) {
					break
				}
				logger.WarnContext(ctx, "auth_failure_signout", slog.String("path", request.URL.Path))
				notifier.Notify(ctx, notify.Notification{
					ID:       notify.IDSessionExpired,
					Level:    notify.LevelError,
					Message:  "Your session has expired. Please sign in again.",
					Duration: 5 * time.Second,
				})
				if signOutErr := holder.SignOut(context.WithoutCancel(ctx)); signOutErr != nil {
					logger.ErrorContext(ctx, "auth_failure_signout_failed", slog.String("error", signOutErr.Error()))
				}

			case CategoryForbidden:
				notifier.Notify(ctx, notify.Notification{
					ID: notify.IDAccessForbidden, Level: notify.LevelError,
					Message: "You do not have permission to perform this action.", Duration: 5 * time.Second,
				})

			case CategoryNotFound:
				notifier.Notify(ctx, notify.Notification{
					ID: notify.IDNotFound, Level: notify.LevelError,
					Message: "The requested resource was not found.", Duration: 3 * time.Second,
				})

			case CategoryRateLimited:
				notifier.Notify(ctx, notify.Notification{
					ID: notify.IDRateLimit, Level: notify.LevelError,
					Message: "Too many requests. Please wait a moment.", Duration: 5 * time.Second,
				})

			case CategoryServer:
				notifier.Notify(ctx, notify.Notification{
					ID: notify.IDServerError, Level: notify.LevelError,
					Message: "The server ran into a problem. Please try again shortly.", Duration: 5 * time.Second,
				})

			default:
				notifier.Notify(ctx, notify.Notification{
					ID: notify.IDAPIError, Level: notify.LevelError,
					Message: "The request could not be completed.", Duration: 3 * time.Second,
				})
			}

			return response, nil
		})
	}
}

// NetworkErrors normalizes transport failures without notifying. It is the
// anonymous-pipeline counterpart of [AuthFailure].
func NetworkErrors() Middleware {
	return func(next Doer) Doer {
		return DoerFunc(func(request *http.Request) (*http.Response, error) {
			response, err := next.Do(request)
			if err != nil {
				return nil, networkError(request.Context(), err)
			}
			return response, nil
		})
	}
}
