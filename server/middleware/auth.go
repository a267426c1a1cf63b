package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ebogdum/hdfscache/auth"
	"github.com/ebogdum/hdfscache/metrics"
)

type contextKey string

const (
	clientIDKey  contextKey = "clientID"
	RequestIDKey contextKey = "request_id"
)

// V1AuthMiddleware creates middleware for API key authentication
func V1AuthMiddleware(authenticator auth.Authenticator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Debug("Missing Authorization header")
				sendErrorResponse(w, logger, auth.ErrAuthenticationFailed, http.StatusUnauthorized)
				return
			}

			clientID, err := authenticator.Authenticate(r.Context(), authHeader)
			if err != nil {
				logger.Debug("Authentication failed", zap.Error(err))
				metrics.ErrorsTotal.WithLabelValues("auth", "authentication_failed").Inc()
				sendErrorResponse(w, logger, auth.ErrAuthenticationFailed, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), clientIDKey, clientID)
			r = r.WithContext(ctx)

			logger.Debug("Client authenticated", zap.String("client_id", clientID))

			next.ServeHTTP(w, r)
		})
	}
}

// V1RequestIDMiddleware adds a unique request ID to each request context.
// An X-Request-ID supplied by the client is kept.
func V1RequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" || len(requestID) > 64 {
				requestID = generateRequestID()
			}

			w.Header().Set("X-Request-ID", requestID)

			ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
			r = r.WithContext(ctx)

			next.ServeHTTP(w, r)
		})
	}
}

func generateRequestID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// GetClientID extracts the authenticated client ID from request context
func GetClientID(ctx context.Context) (string, bool) {
	clientID, ok := ctx.Value(clientIDKey).(string)
	return clientID, ok
}

// GetRequestID extracts the request ID from request context
func GetRequestID(ctx context.Context) string {
	requestID, _ := ctx.Value(RequestIDKey).(string)
	return requestID
}

// sendErrorResponse sends a JSON error response
func sendErrorResponse(w http.ResponseWriter, logger *zap.Logger, err error, statusCode int) {
	errorCode := "INTERNAL_ERROR"
	switch {
	case errors.Is(err, auth.ErrAuthenticationFailed), errors.Is(err, auth.ErrInvalidToken):
		errorCode = "AUTHENTICATION_FAILED"
	case statusCode == http.StatusTooManyRequests:
		errorCode = "RATE_LIMIT_EXCEEDED"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if encodeErr := json.NewEncoder(w).Encode(map[string]string{
		"code":    errorCode,
		"message": err.Error(),
	}); encodeErr != nil {
		logger.Error("Failed to write error response", zap.Error(encodeErr))
	}
}
