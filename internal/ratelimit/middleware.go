// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ratelimit

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/taibuivan/storefront/internal/platform/constants"
	"github.com/taibuivan/storefront/internal/platform/ctxutil"
	"github.com/taibuivan/storefront/internal/platform/metrics"
	"github.com/taibuivan/storefront/internal/platform/middleware"
	"github.com/taibuivan/storefront/internal/platform/respond"
)

// Identify picks the rate-limit key: the signed-in user, then the client IP,
// then [Anonymous].
func Identify(request *http.Request) string {
	if current := ctxutil.GetSession(request.Context()); current != nil && current.Error == "" && current.User.ID != "" {
		return "user:" + current.User.ID
	}
	if ip := middleware.RealIP(request); ip != "" {
		return "ip:" + ip
	}
	return Anonymous
}

// Middleware enforces checker on every request, labelling rejections with scope.
//
// A checker error (Redis down) lets the request through and logs a warning, so a
// cache outage degrades to no limiting instead of an outage of the whole site.
func Middleware(checker Checker, scope string, recorder *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			ctx := request.Context()
			identifier := Identify(request)

			decision, err := checker.Check(ctx, identifier)
			if err != nil {
				ctxutil.GetLogger(ctx).WarnContext(ctx, "ratelimit_check_failed",
					slog.String("scope", scope),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(writer, request)
				return
			}

			writer.Header().Set(constants.HeaderXRateRemaining, strconv.Itoa(decision.Remaining))
			if decision.Allowed {
				next.ServeHTTP(writer, request)
				return
			}

			retryAfter := int(math.Ceil(decision.RetryAfter(time.Now()).Seconds()))
			recorder.RateLimited(scope)
			ctxutil.GetLogger(ctx).WarnContext(ctx, "ratelimit_exceeded",
				slog.String("scope", scope),
				slog.String("key", identifier),
				slog.Int("retry_after", retryAfter),
			)
			respond.TooManyRequests(writer, request, retryAfter)
		})
	}
}
