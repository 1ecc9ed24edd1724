// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "posereview_state_transitions_total",
		Help: "Processing state transitions by source, target and result (applied|rejected)",
	}, []string{"from", "to", "result"})

	appErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "posereview_app_errors_total",
		Help: "Errors stored in the processing state by code and kind",
	}, []string{"code", "kind"})

	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "posereview_process_requests_total",
		Help: "Processing requests by terminal status (COMPLETED|ERROR)",
	}, []string{"status"})
)

// RecordTransition counts a state machine transition attempt.
func RecordTransition(from, to string, applied bool) {
	result := "applied"
	if !applied {
		result = "rejected"
	}
	transitionsTotal.WithLabelValues(from, to, result).Inc()
}

// RecordAppError counts an error stored in the processing state.
func RecordAppError(code, kind string) {
	if code == "" {
		code = "unknown"
	}
	appErrorsTotal.WithLabelValues(code, kind).Inc()
}

// RecordRequest counts a finished processing request.
func RecordRequest(status string) {
	requestsTotal.WithLabelValues(status).Inc()
}
