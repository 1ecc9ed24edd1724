// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package httpx

import (
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultProbeTimeout          = 5 * time.Second
	defaultDialTimeout           = 3 * time.Second
	defaultResponseHeaderTimeout = 3 * time.Second
	defaultIdleConnTimeout       = 30 * time.Second
	defaultExpectContinueTimeout = 1 * time.Second
	defaultMaxIdleConns          = 16
	defaultMaxIdleConnsPerHost   = 4
)

// Options tunes NewClientWithOptions.
type Options struct {
	// Timeout bounds the whole exchange. Zero leaves the deadline to the
	// request context, which uploads rely on.
	Timeout time.Duration
	// DialTimeout caps connect and TLS handshake; defaults to 3s.
	DialTimeout time.Duration
	// ResponseHeaderTimeout is the wait for headers after the body was sent.
	// Zero disables it (server-side inference may take long).
	ResponseHeaderTimeout time.Duration
	// Instrument wraps the transport with OpenTelemetry spans.
	Instrument bool
}

// NewClient returns a hardened HTTP client for short probes. Dial and header
// timeouts are capped at 3s.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	return NewClientWithOptions(Options{
		Timeout:               timeout,
		DialTimeout:           min(timeout, defaultDialTimeout),
		ResponseHeaderTimeout: min(timeout, defaultResponseHeaderTimeout),
	})
}

// NewClientWithOptions returns a client built from opts.
func NewClientWithOptions(opts Options) *http.Client {
	dialTimeout := opts.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}

	var rt http.RoundTripper = &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          defaultMaxIdleConns,
		MaxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   dialTimeout,
		ResponseHeaderTimeout: opts.ResponseHeaderTimeout,
		ExpectContinueTimeout: defaultExpectContinueTimeout,
	}
	if opts.Instrument {
		rt = otelhttp.NewTransport(rt)
	}

	return &http.Client{
		Timeout:   opts.Timeout,
		Transport: rt,
	}
}
