package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ebogdum/hdfscache/auth"
	"github.com/ebogdum/hdfscache/backends"
	"github.com/ebogdum/hdfscache/backends/localfs"
	"github.com/ebogdum/hdfscache/config"
	"github.com/ebogdum/hdfscache/core"
	"github.com/ebogdum/hdfscache/server/handlers"
)

const testAPIKey = "test-key"

type memoryRemote struct {
	mu       sync.Mutex
	files    map[string][]byte
	failOpen bool
}

func (m *memoryRemote) Create(ctx context.Context, name string, r io.Reader, size int64, overwrite bool) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[name]; ok && !overwrite {
		return backends.ErrAlreadyExists
	}
	m.files[name] = data
	return nil
}

func (m *memoryRemote) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOpen {
		return nil, errors.New("connection refused")
	}
	data, ok := m.files[name]
	if !ok {
		return nil, backends.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryRemote) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[name]; !ok {
		return backends.ErrNotFound
	}
	delete(m.files, name)
	return nil
}

func (m *memoryRemote) LocationURL(name string) string {
	return "http://datanode:9864/webhdfs/v1/" + name + "?op=OPEN"
}

func (m *memoryRemote) Close() error { return nil }

func newTestRouter(t *testing.T, cfg config.ServerConfig) (http.Handler, *memoryRemote) {
	t.Helper()
	remote := &memoryRemote{files: make(map[string][]byte)}
	svc := core.NewFileService(core.Options{
		Remote:           remote,
		Cache:            localfs.NewLocalFSAdapter(t.TempDir(), ""),
		LockPollInterval: time.Millisecond,
	})
	return NewRouter(svc, auth.NewAPIKeyAuthenticator([]string{testAPIKey}), &cfg, zap.NewNop()), remote
}

func do(t *testing.T, h http.Handler, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) handlers.ErrorResponse {
	t.Helper()
	var resp handlers.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthAndHeaders(t *testing.T) {
	h, _ := newTestRouter(t, config.DefaultAppConfig().Server)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestV1RequiresAuth(t *testing.T) {
	h, _ := newTestRouter(t, config.DefaultAppConfig().Server)

	for _, header := range []string{"", "Bearer wrong"} {
		req := httptest.NewRequest(http.MethodGet, "/v1/files/a", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "AUTHENTICATION_FAILED", decodeError(t, rec).Code)
	}
}

func TestFileLifecycle(t *testing.T) {
	h, remote := newTestRouter(t, config.DefaultAppConfig().Server)

	rec := do(t, h, http.MethodPut, "/v1/files/report.txt", strings.NewReader("hello"))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"name":"report.txt","size":5}`, rec.Body.String())

	rec = do(t, h, http.MethodPut, "/v1/files/report.txt", strings.NewReader("again"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "FILE_ALREADY_EXISTS", decodeError(t, rec).Code)

	rec = do(t, h, http.MethodGet, "/v1/files/report.txt", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", rec.Body.String())
	assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))

	rec = do(t, h, http.MethodDelete, "/v1/files/report.txt", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, remote.files)

	rec = do(t, h, http.MethodDelete, "/v1/files/report.txt", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Still served from the local cache.
	rec = do(t, h, http.MethodGet, "/v1/files/report.txt", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetErrors(t *testing.T) {
	h, remote := newTestRouter(t, config.DefaultAppConfig().Server)

	rec := do(t, h, http.MethodGet, "/v1/files/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "FILE_NOT_FOUND", decodeError(t, rec).Code)

	remote.failOpen = true
	rec = do(t, h, http.MethodGet, "/v1/files/other", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "REMOTE_ERROR", decodeError(t, rec).Code)
}

func TestEscapedNames(t *testing.T) {
	h, remote := newTestRouter(t, config.DefaultAppConfig().Server)

	rec := do(t, h, http.MethodPut, "/v1/files/dir%2Fname%20one", strings.NewReader("x"))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, remote.files, "dir/name one")

	rec = do(t, h, http.MethodGet, "/v1/files/dir%2Fname%20one", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "x", rec.Body.String())

	rec = do(t, h, http.MethodGet, "/v1/files/%2E%2E", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_NAME", decodeError(t, rec).Code)
}

func TestLocationRedirect(t *testing.T) {
	h, remote := newTestRouter(t, config.DefaultAppConfig().Server)

	rec := do(t, h, http.MethodGet, "/v1/locations/a.txt", nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "http://datanode:9864/webhdfs/v1/a.txt?op=OPEN", rec.Header().Get("Location"))
	assert.JSONEq(t, `{"url":"http://datanode:9864/webhdfs/v1/a.txt?op=OPEN"}`, rec.Body.String())
	assert.Empty(t, remote.files)
}

func TestRotation(t *testing.T) {
	h, remote := newTestRouter(t, config.DefaultAppConfig().Server)
	remote.files["a"] = []byte("one")
	remote.files["b"] = []byte("two")

	rec := do(t, h, http.MethodPost, "/v1/rotations", strings.NewReader(`{"file_names":["a","missing","b"],"concurrency":2}`))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp handlers.RotationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"a", "b"}, resp.Rotated)
	assert.Equal(t, []string{"missing"}, resp.NotRotated)
	require.Len(t, resp.Failures, 1)
	assert.Equal(t, core.StageRead, resp.Failures[0].Stage)
	assert.Empty(t, resp.Error)
}

func TestRotationOutlivesClient(t *testing.T) {
	h, remote := newTestRouter(t, config.DefaultAppConfig().Server)
	remote.files["a"] = []byte("one")
	remote.files["b"] = []byte("two")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/v1/rotations", strings.NewReader(`{"file_names":["a","b"]}`)).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp handlers.RotationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"a", "b"}, resp.Rotated)
	assert.Empty(t, resp.NotRotated)
}

func TestLockUnavailableStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	handlers.SendErrorResponse(rec, zap.NewNop(), fmt.Errorf("read: %w", core.ErrLockUnavailable))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "LOCK_UNAVAILABLE", decodeError(t, rec).Code)
}

func TestRotationBadRequest(t *testing.T) {
	cfg := config.DefaultAppConfig().Server
	cfg.RotationRateLimit = 0
	h, _ := newTestRouter(t, cfg)

	for _, body := range []string{`not json`, `{"unknown":1}`, `{"concurrency":-1}`} {
		rec := do(t, h, http.MethodPost, "/v1/rotations", strings.NewReader(body))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestRotationRateLimited(t *testing.T) {
	cfg := config.DefaultAppConfig().Server
	cfg.RotationRateLimit = 0.001
	h, _ := newTestRouter(t, cfg)

	rec := do(t, h, http.MethodPost, "/v1/rotations", strings.NewReader(`{"file_names":[]}`))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/v1/rotations", strings.NewReader(`{"file_names":[]}`))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", decodeError(t, rec).Code)
}
