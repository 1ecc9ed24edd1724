// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var mockRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "posereview_mock_requests_total",
	Help: "Requests served by the mock backend by route and status code",
}, []string{"route", "status"})

// RecordMockRequest counts a request handled by the mock backend.
func RecordMockRequest(route string, status int) {
	mockRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
}
