package middleware

import (
	"errors"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ebogdum/hdfscache/metrics"
)

var errRateLimited = errors.New("rate limit exceeded")

// V1RateLimitMiddleware applies a shared fixed-rate limiter to requests.
func V1RateLimitMiddleware(limiter *rate.Limiter, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				logger.Warn("Request rate limited",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.String("request_id", GetRequestID(r.Context())))
				metrics.ErrorsTotal.WithLabelValues("server", "rate_limited").Inc()

				w.Header().Set("Retry-After", "1")
				sendErrorResponse(w, logger, errRateLimited, http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
