// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics provides Prometheus metrics for the posereview client and
// its mock backend.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "posereview_uploads_total",
		Help: "Total number of upload attempts by outcome (success|http_error|invalid_response|network|timeout|client)",
	}, []string{"outcome"})

	uploadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "posereview_upload_duration_seconds",
		Help:    "Duration of upload requests including server-side processing",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
	}, []string{"outcome"})

	uploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "posereview_upload_bytes_total",
		Help: "Total number of video bytes written to the request body",
	})

	healthProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "posereview_health_probes_total",
		Help: "Backend health probes by result (healthy|unhealthy|error)",
	}, []string{"result"})
)

// ObserveUpload records one finished upload.
func ObserveUpload(outcome string, d time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	uploadsTotal.WithLabelValues(outcome).Inc()
	uploadDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// AddUploadBytes counts body bytes sent.
func AddUploadBytes(n int64) {
	if n > 0 {
		uploadBytesTotal.Add(float64(n))
	}
}

// RecordHealthProbe counts a backend health probe.
func RecordHealthProbe(result string) {
	healthProbesTotal.WithLabelValues(result).Inc()
}
