package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ebogdum/hdfscache/config"
	"github.com/ebogdum/hdfscache/core"
	"github.com/ebogdum/hdfscache/core/log"
	"github.com/ebogdum/hdfscache/server/middleware"
)

// fileCreatedResponse is returned by a successful PUT.
type fileCreatedResponse struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

// locationResponse accompanies the redirect issued for a file location.
type locationResponse struct {
	URL string `json:"url"`
}

func opContext(r *http.Request, cfg *config.ServerConfig) (context.Context, context.CancelFunc) {
	if cfg.FileOpTimeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), cfg.FileOpTimeout)
}

// V1PutFile handles PUT /v1/files/{name}. The file must not exist yet.
func V1PutFile(svc *core.FileService, cfg *config.ServerConfig, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, err := ParseFileName(r)
		if err != nil {
			SendErrorResponse(w, logger, err)
			return
		}

		ctx, cancel := opContext(r, cfg)
		defer cancel()

		data, err := io.ReadAll(r.Body)
		if err != nil {
			SendErrorResponse(w, logger, fmt.Errorf("read request body: %w", err))
			return
		}

		stored, err := svc.Create(ctx, name, data)
		if err != nil {
			SendErrorResponse(w, logger, err)
			return
		}

		logger.Debug("File uploaded",
			zap.String("name", log.SanitizeName(name)),
			zap.String("request_id", middleware.GetRequestID(r.Context())))

		SendJSONResponse(w, http.StatusCreated, fileCreatedResponse{Name: name, Size: len(stored)})
	}
}

// V1GetFile handles GET /v1/files/{name}, serving the content through the
// local cache.
func V1GetFile(svc *core.FileService, cfg *config.ServerConfig, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, err := ParseFileName(r)
		if err != nil {
			SendErrorResponse(w, logger, err)
			return
		}

		ctx, cancel := opContext(r, cfg)
		defer cancel()

		start := time.Now()
		data, err := svc.Read(ctx, name)
		if err != nil {
			SendErrorResponse(w, logger, err)
			return
		}

		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(data); err != nil {
			logger.Warn("Failed to write file content",
				zap.String("name", log.SanitizeName(name)),
				zap.Error(err))
			return
		}

		logger.Debug("File served",
			zap.String("name", log.SanitizeName(name)),
			zap.Int("size", len(data)),
			zap.Duration("duration", time.Since(start)))
	}
}

// V1DeleteFile handles DELETE /v1/files/{name}. Only the remote copy is
// removed.
func V1DeleteFile(svc *core.FileService, cfg *config.ServerConfig, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, err := ParseFileName(r)
		if err != nil {
			SendErrorResponse(w, logger, err)
			return
		}

		ctx, cancel := opContext(r, cfg)
		defer cancel()

		if err := svc.Delete(ctx, name); err != nil {
			SendErrorResponse(w, logger, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// V1GetLocation handles GET /v1/locations/{name} by redirecting to the
// remote URL of the file. Nothing is fetched.
func V1GetLocation(svc *core.FileService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, err := ParseFileName(r)
		if err != nil {
			SendErrorResponse(w, logger, err)
			return
		}

		location := svc.LocationURL(name)
		w.Header().Set("Location", location)
		SendJSONResponse(w, http.StatusFound, locationResponse{URL: location})
	}
}
