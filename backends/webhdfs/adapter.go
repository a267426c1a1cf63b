// Package webhdfs implements backends.Remote over the WebHDFS REST protocol,
// sending control operations to the namenode and data transfer to the datanode.
package webhdfs

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ebogdum/hdfscache/backends"
	"github.com/ebogdum/hdfscache/core/log"
	"github.com/ebogdum/hdfscache/internal/pathutil"
	"github.com/ebogdum/hdfscache/metrics"
)

// DefaultNameNodeRPCAddress is sent as namenoderpcaddress on datanode requests.
const DefaultNameNodeRPCAddress = "namenode:8020"

// Config holds the endpoints and transport settings of a WebHDFS store.
type Config struct {
	DataNode           string // e.g. http://datanode:9864/webhdfs/v1
	NameNode           string // e.g. http://namenode:9870/webhdfs/v1
	Path               string // logical root, e.g. /apps/files/
	NameNodeRPCAddress string
	Timeout            time.Duration
	RateLimit          float64 // requests per second, 0 disables
	RateBurst          int
	SkipTLSVerify      bool
}

// WebHDFSAdapter implements the backends.Remote interface.
type WebHDFSAdapter struct {
	client      *http.Client
	dataNodeURL string
	nameNodeURL string
	rpcAddress  string
	limiter     *rate.Limiter
	logger      *zap.Logger
}

// NewWebHDFSAdapter creates a new WebHDFS client.
func NewWebHDFSAdapter(cfg Config, logger *zap.Logger) (*WebHDFSAdapter, error) {
	if cfg.DataNode == "" || cfg.NameNode == "" {
		return nil, fmt.Errorf("webhdfs: data node and name node URLs are required")
	}

	transport := &http.Transport{
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
		DisableCompression:  true,
	}
	if cfg.SkipTLSVerify {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	rpcAddress := cfg.NameNodeRPCAddress
	if rpcAddress == "" {
		rpcAddress = DefaultNameNodeRPCAddress
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &WebHDFSAdapter{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		dataNodeURL: cfg.DataNode + cfg.Path,
		nameNodeURL: cfg.NameNode + cfg.Path,
		rpcAddress:  rpcAddress,
		limiter:     limiter,
		logger:      logger,
	}, nil
}

func (a *WebHDFSAdapter) createURL(name string, overwrite bool) string {
	return a.dataNodeURL + pathutil.EscapeName(name) +
		"?op=CREATE&namenoderpcaddress=" + a.rpcAddress +
		"&createflag&createparent=true&overwrite=" + strconv.FormatBool(overwrite)
}

func (a *WebHDFSAdapter) openURL(name string) string {
	return a.dataNodeURL + pathutil.EscapeName(name) +
		"?op=OPEN&namenoderpcaddress=" + a.rpcAddress + "&offset=0"
}

func (a *WebHDFSAdapter) deleteURL(name string) string {
	return a.nameNodeURL + pathutil.EscapeName(name) + "?op=DELETE&recursive=true"
}

// LocationURL returns the datanode URL serving name. It has no side effects.
func (a *WebHDFSAdapter) LocationURL(name string) string {
	return a.openURL(name)
}

// Create uploads the content of reader to the datanode. Without overwrite
// the store rejects an existing file.
func (a *WebHDFSAdapter) Create(ctx context.Context, name string, reader io.Reader, size int64, overwrite bool) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, a.createURL(name, overwrite), reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if size >= 0 {
		req.ContentLength = size
	}

	resp, err := a.do(req, "create", name)
	if err != nil {
		return err
	}
	defer drain(resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return statusError(resp)
	}

	return nil
}

// Open streams the file content from the datanode. The caller closes the body.
func (a *WebHDFSAdapter) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.openURL(name), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := a.do(req, "open", name)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		defer drain(resp.Body)
		return nil, statusError(resp)
	}

	return resp.Body, nil
}

// Delete removes the file recursively through the namenode.
func (a *WebHDFSAdapter) Delete(ctx context.Context, name string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, a.deleteURL(name), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := a.do(req, "delete", name)
	if err != nil {
		return err
	}
	defer drain(resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return statusError(resp)
	}

	// WebHDFS answers {"boolean": false} when there was nothing to delete.
	var result struct {
		Boolean *bool `json:"boolean"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && result.Boolean != nil && !*result.Boolean {
		return backends.ErrNotFound
	}

	return nil
}

// Close closes idle connections.
func (a *WebHDFSAdapter) Close() error {
	a.client.CloseIdleConnections()
	return nil
}

// do waits for the rate limiter, sends req and records metrics.
func (a *WebHDFSAdapter) do(req *http.Request, operation, name string) (*http.Response, error) {
	if a.limiter != nil {
		if err := a.limiter.Wait(req.Context()); err != nil {
			metrics.RemoteRequestsTotal.WithLabelValues(operation, "rate_limited").Inc()
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	a.logger.Debug("Sending WebHDFS request",
		zap.String("operation", operation),
		zap.String("name", log.SanitizeName(name)),
		zap.String("method", req.Method))

	start := time.Now()
	resp, err := a.client.Do(req)
	metrics.RemoteRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RemoteRequestsTotal.WithLabelValues(operation, "transport_error").Inc()
		return nil, fmt.Errorf("webhdfs %s request failed: %w", operation, err)
	}
	metrics.RemoteRequestsTotal.WithLabelValues(operation, strconv.Itoa(resp.StatusCode)).Inc()

	return resp, nil
}

// remoteException is the error envelope WebHDFS returns on failures.
type remoteException struct {
	RemoteException struct {
		Exception     string `json:"exception"`
		JavaClassName string `json:"javaClassName"`
		Message       string `json:"message"`
	} `json:"RemoteException"`
}

// statusError maps a non-success response to an error.
func statusError(resp *http.Response) error {
	var body remoteException
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&body)
	ex := body.RemoteException

	switch {
	case ex.Exception == "FileAlreadyExistsException":
		return fmt.Errorf("%w: %s", backends.ErrAlreadyExists, ex.Message)
	case ex.Exception == "FileNotFoundException", resp.StatusCode == http.StatusNotFound:
		if ex.Message != "" {
			return fmt.Errorf("%w: %s", backends.ErrNotFound, ex.Message)
		}
		return backends.ErrNotFound
	case ex.Exception != "":
		return fmt.Errorf("webhdfs request failed with status %d: %s: %s", resp.StatusCode, ex.Exception, ex.Message)
	default:
		return fmt.Errorf("webhdfs request failed with status %d", resp.StatusCode)
	}
}

// drain consumes what is left of body so the connection can be reused.
func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64*1024))
	body.Close()
}
