// Package server wires the HTTP API of hdfscache.
package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ebogdum/hdfscache/auth"
	"github.com/ebogdum/hdfscache/config"
	"github.com/ebogdum/hdfscache/core"
	"github.com/ebogdum/hdfscache/metrics"
	"github.com/ebogdum/hdfscache/server/handlers"
	authMiddleware "github.com/ebogdum/hdfscache/server/middleware"
)

// NewRouter creates and configures the HTTP router
func NewRouter(
	svc *core.FileService,
	authenticator auth.Authenticator,
	serverConfig *config.ServerConfig,
	logger *zap.Logger,
) chi.Router {
	r := chi.NewRouter()

	r.Use(authMiddleware.V1RequestIDMiddleware())
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(authMiddleware.V1SecurityHeaders())
	r.Use(requestLogger(logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"status":"ok"}`)); err != nil {
			logger.Error("Failed to write health check response", zap.Error(err))
		}
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(authMiddleware.V1AuthMiddleware(authenticator, logger))

		r.Route("/files", func(r chi.Router) {
			r.Put("/{name}", handlers.V1PutFile(svc, serverConfig, logger))
			r.Get("/{name}", handlers.V1GetFile(svc, serverConfig, logger))
			r.Delete("/{name}", handlers.V1DeleteFile(svc, serverConfig, logger))
		})

		r.Get("/locations/{name}", handlers.V1GetLocation(svc, logger))

		rotationLimit := rate.Limit(serverConfig.RotationRateLimit)
		if serverConfig.RotationRateLimit <= 0 {
			rotationLimit = rate.Inf
		}
		rotationLimiter := rate.NewLimiter(rotationLimit, 1)
		r.With(authMiddleware.V1RateLimitMiddleware(rotationLimiter, logger)).
			Post("/rotations", handlers.V1RotateKey(svc, logger))
	})

	logger.Info("HTTP router configured successfully")

	return r
}

// requestLogger records request metrics by route pattern and logs each request.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			duration := time.Since(start)
			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(duration.Seconds())

			logger.Info("HTTP request",
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", duration),
				zap.String("request_id", authMiddleware.GetRequestID(r.Context())),
				zap.String("remote_addr", r.RemoteAddr))
		})
	}
}
