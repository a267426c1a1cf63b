package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/ebogdum/hdfscache/auth"
	"github.com/ebogdum/hdfscache/backends"
	"github.com/ebogdum/hdfscache/core"
	"github.com/ebogdum/hdfscache/metrics"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorStatus maps an error to its HTTP status and error code. More
// specific causes are checked before the operation kinds wrapping them.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrInvalidName):
		return http.StatusBadRequest, "INVALID_NAME"
	case errors.Is(err, backends.ErrAlreadyExists):
		return http.StatusConflict, "FILE_ALREADY_EXISTS"
	case errors.Is(err, backends.ErrNotFound):
		return http.StatusNotFound, "FILE_NOT_FOUND"
	case errors.Is(err, auth.ErrAuthenticationFailed):
		return http.StatusUnauthorized, "AUTHENTICATION_FAILED"
	case errors.Is(err, core.ErrPermission):
		return http.StatusInternalServerError, "CACHE_PERMISSION_DENIED"
	case errors.Is(err, core.ErrDecrypt):
		return http.StatusInternalServerError, "DECRYPT_FAILED"
	case errors.Is(err, core.ErrLockUnavailable):
		return http.StatusServiceUnavailable, "LOCK_UNAVAILABLE"
	case errors.Is(err, core.ErrRemoteWrite),
		errors.Is(err, core.ErrRemoteRead),
		errors.Is(err, core.ErrRemoteDelete):
		return http.StatusBadGateway, "REMOTE_ERROR"
	case errors.Is(err, core.ErrLocalIO):
		return http.StatusInternalServerError, "LOCAL_IO_ERROR"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// SendErrorResponse sends a standardized JSON error response
func SendErrorResponse(w http.ResponseWriter, logger *zap.Logger, err error) {
	statusCode, errorCode := errorStatus(err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Code:    errorCode,
		Message: err.Error(),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Error("Failed to encode error response", zap.Error(err))
		fmt.Fprintf(w, "Internal error occurred")
	}

	metrics.ErrorsTotal.WithLabelValues("server", errorCode).Inc()
	logger.Info("Error response sent",
		zap.String("error_code", errorCode),
		zap.Int("status_code", statusCode),
		zap.Error(err))
}

// SendJSONResponse sends a JSON response with the given status
func SendJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}
