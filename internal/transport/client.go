// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package transport talks to the pose-estimation backend: multipart video
// upload with progress reporting and the health probe.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	xglog "github.com/ManuGH/posereview/internal/log"
	"github.com/ManuGH/posereview/internal/platform/httpx"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultUploadPath = "/api/v1/process"
	DefaultHealthPath = "/api/v1/health"
	DefaultFieldName  = "video"
	DefaultTimeout    = 30 * time.Second

	healthTimeout    = 5 * time.Second
	maxResponseBytes = 1 << 20
	requestIDHeader  = "X-Request-ID"
)

// ErrInvalidBaseURL is returned by New for unusable base URLs.
var ErrInvalidBaseURL = errors.New("transport: base URL must be an absolute http(s) URL")

// Options configures a Client.
type Options struct {
	BaseURL    string
	UploadPath string
	HealthPath string
	FieldName  string
	Timeout    time.Duration
	UserAgent  string

	// HTTPClient overrides the default instrumented client.
	HTTPClient *http.Client
}

// Client is the backend client. It is safe for concurrent use.
type Client struct {
	base       string
	uploadPath string
	healthPath string
	fieldName  string
	timeout    time.Duration
	userAgent  string
	http       *http.Client
	probe      *http.Client
	health     singleflight.Group
}

// New validates opts and returns a Client.
func New(opts Options) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(opts.BaseURL))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, opts.BaseURL)
	}

	c := &Client{
		base:       strings.TrimRight(u.String(), "/"),
		uploadPath: withDefault(opts.UploadPath, DefaultUploadPath),
		healthPath: withDefault(opts.HealthPath, DefaultHealthPath),
		fieldName:  withDefault(opts.FieldName, DefaultFieldName),
		timeout:    opts.Timeout,
		userAgent:  withDefault(opts.UserAgent, "posereview"),
		http:       opts.HTTPClient,
		probe:      opts.HTTPClient,
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.http == nil {
		c.http = httpx.NewClientWithOptions(httpx.Options{Instrument: true})
	}
	if c.probe == nil {
		c.probe = httpx.NewClient(healthTimeout)
	}
	return c, nil
}

// BaseURL returns the normalised backend base URL.
func (c *Client) BaseURL() string {
	return c.base
}

// Timeout returns the per-upload deadline.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

func (c *Client) endpoint(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.base + path
}

func (c *Client) setHeaders(ctx context.Context, req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if rid := xglog.RequestIDFromContext(ctx); rid != "" {
		req.Header.Set(requestIDHeader, rid)
	}
}

// readBody drains at most maxResponseBytes of the response body.
func readBody(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	_, _ = io.Copy(io.Discard, resp.Body)
	return body, err
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func withDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
