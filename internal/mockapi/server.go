// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package mockapi serves the pose-estimation backend contract locally for
// development and tests.
package mockapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	xglog "github.com/ManuGH/posereview/internal/log"
	"github.com/ManuGH/posereview/internal/videofile"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	ProcessPath = "/api/v1/process"
	HealthPath  = "/api/v1/health"
	MetricsPath = "/metrics"

	// DefaultMaxBodyBytes mirrors the 32 MB request-body limit of the hosting platform.
	DefaultMaxBodyBytes int64 = 32 << 20
	DefaultRateLimit          = 60
	Version                   = "mock-1.0.0"
)

// Behavior controls how the process endpoint answers.
type Behavior struct {
	// Delay is waited before answering, simulating inference time.
	Delay time.Duration
	// FailCode forces a structured error with FailStatus (default 500).
	FailCode    string
	FailStatus  int
	FailMessage string
	// Malformed returns a 200 whose body does not match the result schema.
	Malformed bool
	// MinBytes rejects smaller uploads with VIDEO_TOO_SHORT.
	MinBytes int64
	// Poses is reported as total_poses; zero yields NO_POSE_DETECTED.
	Poses int
	// SignedURLBase prefixes the returned signed URL.
	SignedURLBase string
}

// DefaultBehavior answers successfully and immediately.
func DefaultBehavior() Behavior {
	return Behavior{Poses: 90, SignedURLBase: "https://storage.example.com/processed"}
}

// Options configures a Server.
type Options struct {
	MaxBodyBytes int64
	RateLimit    int // requests per minute per IP; <= 0 disables limiting
	Constraints  videofile.Constraints
	Behavior     Behavior
}

// Server is the mock backend.
type Server struct {
	opts     Options
	router   chi.Router
	requests atomic.Int64

	mu       sync.RWMutex
	behavior Behavior
}

// New builds a Server with its router.
func New(opts Options) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.Constraints.AcceptedTypes == nil {
		opts.Constraints = videofile.DefaultConstraints()
	}
	if opts.Behavior == (Behavior{}) {
		opts.Behavior = DefaultBehavior()
	}
	s := &Server{opts: opts, behavior: opts.Behavior}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(accessLog)

	r.Get(HealthPath, s.handleHealth)
	r.Handle(MetricsPath, promhttp.Handler())
	r.Group(func(r chi.Router) {
		if s.opts.RateLimit > 0 {
			r.Use(httprate.Limit(
				s.opts.RateLimit,
				time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
					w.Header().Set("Retry-After", "60")
					writeError(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests. Please try again later.", nil)
				}),
			))
		}
		r.Post(ProcessPath, s.handleProcess)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "route not found", nil)
	})
	return r
}

// Handler returns the instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "mockapi")
}

// SetBehavior replaces the process endpoint behavior.
func (s *Server) SetBehavior(b Behavior) {
	s.mu.Lock()
	s.behavior = b
	s.mu.Unlock()
}

func (s *Server) currentBehavior() Behavior {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.behavior
}

// Requests returns how many process requests were received.
func (s *Server) Requests() int64 {
	return s.requests.Load()
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("mockapi: listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	logger := xglog.WithComponent("mockapi")
	logger.Info().Str(xglog.FieldEvent, "mock.listen").Str("addr", ln.Addr().String()).Msg("mock backend listening")

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("mockapi: shutdown: %w", err)
	}
	<-errCh
	logger.Info().Str(xglog.FieldEvent, "mock.stopped").Msg("mock backend stopped")
	return nil
}

// accessLog logs one line per request, like the request logger of the API stack.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		logger := xglog.WithComponent("mockapi")
		logger.Debug().
			Str(xglog.FieldRequestID, middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str(xglog.FieldPath, r.URL.Path).
			Int(xglog.FieldStatus, status).
			Int("bytes", ww.BytesWritten()).
			Dur(xglog.FieldDuration, time.Since(start)).
			Msg("mock request")
	})
}
