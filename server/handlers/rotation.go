package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ebogdum/hdfscache/core"
	"github.com/ebogdum/hdfscache/server/middleware"
)

// RotationRequest is the body of POST /v1/rotations.
type RotationRequest struct {
	OldKey      string   `json:"old_key"`
	FileNames   []string `json:"file_names"`
	Concurrency int      `json:"concurrency"`
}

// RotationResponse carries the rotation outcome. Error is set when the
// run was halted.
type RotationResponse struct {
	core.RotationOutcome
	Error string `json:"error,omitempty"`
}

const maxRotationRequestBytes = 1 << 20

// V1RotateKey handles POST /v1/rotations. Files that cannot be rotated are
// listed in the response; the status is 200 unless the run was halted.
func V1RotateKey(svc *core.FileService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RotationRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRotationRequestBytes))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			SendJSONResponse(w, http.StatusBadRequest, ErrorResponse{
				Code:    "INVALID_REQUEST",
				Message: fmt.Sprintf("invalid rotation request: %v", err),
			})
			return
		}
		if req.Concurrency < 0 {
			SendJSONResponse(w, http.StatusBadRequest, ErrorResponse{
				Code:    "INVALID_REQUEST",
				Message: "concurrency must not be negative",
			})
			return
		}

		clientID, _ := middleware.GetClientID(r.Context())
		logger.Info("Encryption key rotation requested",
			zap.String("client_id", clientID),
			zap.Int("files", len(req.FileNames)),
			zap.String("request_id", middleware.GetRequestID(r.Context())))

		// Rotation runs to completion regardless of the client connection
		// or the server write timeout.
		if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
			logger.Debug("Write deadline not lifted for rotation", zap.Error(err))
		}
		ctx := context.WithoutCancel(r.Context())

		outcome, err := svc.RotateEncryptionKey(ctx, core.RotateOptions{
			OldKey:      []byte(req.OldKey),
			FileNames:   req.FileNames,
			Concurrency: req.Concurrency,
		})

		resp := RotationResponse{RotationOutcome: outcome}
		status := http.StatusOK
		if err != nil {
			resp.Error = err.Error()
			status, _ = errorStatus(err)
		}

		SendJSONResponse(w, status, resp)
	}
}
