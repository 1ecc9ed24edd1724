package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordTransition(t *testing.T) {
	applied := testutil.ToFloat64(transitionsTotal.WithLabelValues("IDLE", "UPLOADING", "applied"))
	rejected := testutil.ToFloat64(transitionsTotal.WithLabelValues("IDLE", "COMPLETED", "rejected"))

	RecordTransition("IDLE", "UPLOADING", true)
	RecordTransition("IDLE", "COMPLETED", false)

	assert.Equal(t, applied+1, testutil.ToFloat64(transitionsTotal.WithLabelValues("IDLE", "UPLOADING", "applied")))
	assert.Equal(t, rejected+1, testutil.ToFloat64(transitionsTotal.WithLabelValues("IDLE", "COMPLETED", "rejected")))
}

func TestObserveUpload(t *testing.T) {
	before := testutil.ToFloat64(uploadsTotal.WithLabelValues("unknown"))
	ObserveUpload("", 2*time.Second)
	assert.Equal(t, before+1, testutil.ToFloat64(uploadsTotal.WithLabelValues("unknown")))

	bytesBefore := testutil.ToFloat64(uploadBytesTotal)
	AddUploadBytes(0)
	AddUploadBytes(512)
	assert.Equal(t, bytesBefore+512, testutil.ToFloat64(uploadBytesTotal))
}

func TestRecordAppError_DefaultsCode(t *testing.T) {
	before := testutil.ToFloat64(appErrorsTotal.WithLabelValues("unknown", "transport"))
	RecordAppError("", "transport")
	assert.Equal(t, before+1, testutil.ToFloat64(appErrorsTotal.WithLabelValues("unknown", "transport")))
}

func TestPromhttpExposure(t *testing.T) {
	RecordMockRequest("/api/v1/process", 200)
	RecordRequest("COMPLETED")
	RecordHealthProbe("healthy")

	rec := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body := rec.Body.String()
	for _, name := range []string{
		"posereview_mock_requests_total",
		"posereview_process_requests_total",
		"posereview_health_probes_total",
	} {
		assert.True(t, strings.Contains(body, name), "missing %s", name)
	}
}

func TestWatchMetrics(t *testing.T) {
	before := testutil.ToFloat64(watchFilesTotal.WithLabelValues("processed"))
	RecordWatchFile("processed")
	assert.Equal(t, before+1, testutil.ToFloat64(watchFilesTotal.WithLabelValues("processed")))

	SetWatchQueueDepth(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(watchQueueDepth))
	SetWatchQueueDepth(0)
	assert.Equal(t, 0.0, testutil.ToFloat64(watchQueueDepth))
}
