// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	watchFilesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "posereview_watch_files_total",
		Help: "Files picked up by watch mode by result (processed|failed|skipped)",
	}, []string{"result"})

	watchQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "posereview_watch_queue_depth",
		Help: "Settled files waiting to be processed",
	})
)

// RecordWatchFile counts a file handled by watch mode.
func RecordWatchFile(result string) {
	watchFilesTotal.WithLabelValues(result).Inc()
}

func SetWatchQueueDepth(n int) {
	watchQueueDepth.Set(float64(n))
}
