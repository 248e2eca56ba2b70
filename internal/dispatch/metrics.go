// Webdeck - Self-Hosted Device Dashboard
// Copyright 2026 The Webdeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/webdeck-io/webdeck

package dispatch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// dispatchesTotal counts commands by device, verb, and rejection code.
	dispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_commands_total",
			Help: "Total number of dispatched commands",
		},
		[]string{"device", "verb", "rejection"},
	)

	// dispatchDuration tracks end-to-end dispatch latency including the
	// device call and the audit write.
	dispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_duration_seconds",
			Help:    "Duration of command dispatch in seconds",
			Buckets: []float64{0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"device"},
	)
)

func observeDispatch(device, verb, rejection string, d time.Duration) {
	dispatchesTotal.WithLabelValues(device, verb, rejection).Inc()
	dispatchDuration.WithLabelValues(device).Observe(d.Seconds())
}
