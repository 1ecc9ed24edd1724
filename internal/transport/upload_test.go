package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/posereview/internal/apperr"
	xglog "github.com/ManuGH/posereview/internal/log"
	"github.com/ManuGH/posereview/internal/model"
	"github.com/ManuGH/posereview/internal/telemetry"
	"github.com/ManuGH/posereview/internal/videofile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const okBody = `{"signed_url":"https://storage.example.com/o.mp4","video_meta":{"width":640,"height":480,"fps":30,"duration_sec":3.5,"has_audio":true},"total_poses":105,"processing_time_sec":1.2}`

func newTestClient(t *testing.T, srv *httptest.Server, timeout time.Duration) *Client {
	t.Helper()
	c, err := New(Options{BaseURL: srv.URL, Timeout: timeout, HTTPClient: srv.Client()})
	require.NoError(t, err)
	return c
}

type progressLog struct {
	mu     sync.Mutex
	values []int
}

func (p *progressLog) record(v int) {
	p.mu.Lock()
	p.values = append(p.values, v)
	p.mu.Unlock()
}

func (p *progressLog) snapshot() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.values...)
}

func TestUpload_Success(t *testing.T) {
	content := strings.Repeat("v", 256*1024)
	var gotRequestID string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultUploadPath, r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Greater(t, r.ContentLength, int64(len(content)), "body length must be declared")
		gotRequestID = r.Header.Get("X-Request-ID")

		f, hdr, err := r.FormFile("video")
		if !assert.NoError(t, err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, content, string(data))
		assert.Equal(t, "squat.mp4", hdr.Filename)
		assert.Equal(t, "video/mp4", hdr.Header.Get("Content-Type"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, okBody)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 5*time.Second)
	var progress progressLog

	ctx := xglog.ContextWithRequestID(context.Background(), "req-123")
	res, err := c.Upload(ctx, videofile.FromBytes("squat.mp4", "video/mp4", []byte(content)), progress.record)
	require.NoError(t, err)

	assert.Equal(t, "https://storage.example.com/o.mp4", res.SignedURL)
	assert.Equal(t, 105, res.TotalPoses)
	assert.Equal(t, model.VideoMeta{Width: 640, Height: 480, FPS: 30, DurationSec: 3.5, HasAudio: true}, res.VideoMeta)
	assert.Equal(t, "req-123", gotRequestID)

	values := progress.snapshot()
	require.NotEmpty(t, values)
	assert.Equal(t, 100, values[len(values)-1])
	for i, v := range values {
		assert.GreaterOrEqual(t, v, 0)
		assert.LessOrEqual(t, v, 100)
		if i > 0 {
			assert.Greater(t, v, values[i-1], "progress must strictly increase between reports")
		}
	}
}

func TestUpload_NoProgressAfterReturn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Answer before reading the body.
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"code":"INVALID_REQUEST","message":"nope"}}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 5*time.Second)
	var (
		mu       sync.Mutex
		returned bool
		late     int
	)
	onProgress := func(int) {
		mu.Lock()
		defer mu.Unlock()
		if returned {
			late++
		}
	}

	_, err := c.Upload(context.Background(), videofile.FromBytes("a.mp4", "video/mp4", make([]byte, 4<<20)), onProgress)
	mu.Lock()
	returned = true
	mu.Unlock()
	require.Error(t, err)

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, late)
}

func TestUpload_Failures(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		code    apperr.Code
		status  int
	}{
		{
			name: "structured backend error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_, _ = io.WriteString(w, `{"error":{"code":"VIDEO_TOO_SHORT","message":"Video must be at least 1 second"}}`)
			},
			code:   apperr.CodeVideoTooShort,
			status: http.StatusBadRequest,
		},
		{
			name: "unstructured server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "upstream exploded", http.StatusInternalServerError)
			},
			code:   apperr.CodeUnknownError,
			status: http.StatusInternalServerError,
		},
		{
			name: "malformed success body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, `{"signed_url":"relative/path.mp4"}`)
			},
			code:   apperr.CodeUnknownError,
			status: http.StatusOK,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			_, err := newTestClient(t, srv, 5*time.Second).Upload(context.Background(), videofile.FromBytes("a.mp4", "video/mp4", []byte("data")), nil)
			require.Error(t, err)

			var tf *apperr.TransportFailure
			require.ErrorAs(t, err, &tf)
			require.NotNil(t, tf.Response)

			appErr := apperr.Classify(err)
			assert.Equal(t, tc.code, appErr.Code)
			assert.Equal(t, tc.status, appErr.Status)
		})
	}
}

func TestUpload_MalformedSuccessWrapsSchemaError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"signed_url": 1}`)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, time.Second).Upload(context.Background(), videofile.FromBytes("a.mp4", "video/mp4", []byte("x")), nil)
	assert.ErrorIs(t, err, model.ErrInvalidResult)
}

func TestUpload_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c := newTestClient(t, srv, time.Second)
	srv.Close()

	_, err := c.Upload(context.Background(), videofile.FromBytes("a.mp4", "video/mp4", []byte("x")), nil)
	require.Error(t, err)

	appErr := apperr.Classify(err)
	assert.Equal(t, apperr.CodeNetworkError, appErr.Code)
	assert.Equal(t, 0, appErr.Status)
}

func TestUpload_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := newTestClient(t, srv, 50*time.Millisecond).Upload(context.Background(), videofile.FromBytes("a.mp4", "video/mp4", []byte("x")), nil)
	require.Error(t, err)

	appErr := apperr.Classify(err)
	assert.Equal(t, apperr.CodeTimeoutError, appErr.Code)
	assert.Equal(t, http.StatusRequestTimeout, appErr.Status)
}

func TestUpload_UnreadableFileIsClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}))
	defer srv.Close()

	file := videofile.New("a.mp4", 10, "video/mp4", func() (io.ReadCloser, error) {
		return nil, errors.New("permission denied")
	})
	_, err := newTestClient(t, srv, time.Second).Upload(context.Background(), file, nil)

	var tf *apperr.TransportFailure
	require.ErrorAs(t, err, &tf)
	assert.False(t, tf.Sent)
	assert.Equal(t, apperr.CodeClientError, apperr.Classify(err).Code)
}

func TestNew_RejectsBadBaseURL(t *testing.T) {
	for _, raw := range []string{"", "localhost:8000", "ftp://host", "http://", "://bad"} {
		_, err := New(Options{BaseURL: raw})
		assert.ErrorIs(t, err, ErrInvalidBaseURL, raw)
	}

	c, err := New(Options{BaseURL: "http://localhost:8000/"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", c.BaseURL())
	assert.Equal(t, DefaultTimeout, c.Timeout())
	assert.Equal(t, "http://localhost:8000/api/v1/process", c.endpoint(c.uploadPath))
}

func TestUploadOutcome(t *testing.T) {
	assert.Equal(t, "client", uploadOutcome(errors.New("x")))
	assert.Equal(t, "client", uploadOutcome(&apperr.TransportFailure{}))
	assert.Equal(t, "http_error", uploadOutcome(&apperr.TransportFailure{Sent: true, Response: &apperr.Response{Status: 500}}))
	assert.Equal(t, "invalid_response", uploadOutcome(&apperr.TransportFailure{Sent: true, Response: &apperr.Response{Status: 200}}))
	assert.Equal(t, "timeout", uploadOutcome(&apperr.TransportFailure{Sent: true, Err: fmt.Errorf("x: %w", context.DeadlineExceeded)}))
	assert.Equal(t, "network", uploadOutcome(&apperr.TransportFailure{Sent: true, Err: errors.New("refused")}))
}

func TestUpload_FailureSpanCarriesErrorCode(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	provider, err := telemetry.NewProvider(context.Background(), telemetry.Config{
		Enabled:      true,
		ServiceName:  "posereview-test",
		SamplingRate: 1,
		Exporter:     exp,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
		_, _ = telemetry.NewProvider(context.Background(), telemetry.Config{})
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"code":"VIDEO_TOO_SHORT","message":"too short"}}`)
	}))
	defer srv.Close()

	_, err = newTestClient(t, srv, time.Second).Upload(context.Background(), videofile.FromBytes("a.mp4", "video/mp4", []byte("data")), nil)
	require.Error(t, err)

	require.NoError(t, provider.ForceFlush(context.Background()))
	spans := exp.GetSpans()
	require.NotEmpty(t, spans)

	attrs := map[string]string{}
	for _, s := range spans {
		if s.Name != "transport.upload" {
			continue
		}
		for _, kv := range s.Attributes {
			attrs[string(kv.Key)] = kv.Value.Emit()
		}
	}
	assert.Equal(t, "VIDEO_TOO_SHORT", attrs[telemetry.ErrorCodeKey])
	assert.Equal(t, "transport", attrs[telemetry.ErrorKindKey])
	assert.Equal(t, "400", attrs[telemetry.ErrorStatusKey])
}
