// Webdeck - Self-Hosted Device Dashboard
// Copyright 2026 The Webdeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/webdeck-io/webdeck

package authz

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// decisionsTotal counts authorization decisions by device and outcome.
	decisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_decisions_total",
			Help: "Total number of authorization decisions",
		},
		[]string{"device", "decision"},
	)

	// decisionDuration tracks the latency of allowed decisions, dominated
	// by the user-mirror read-through.
	decisionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "authz_decision_duration_seconds",
			Help:    "Duration of allowed authorization decisions in seconds",
			Buckets: []float64{0.00001, 0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
	)
)

func recordDecision(device, decision string) {
	decisionsTotal.WithLabelValues(device, decision).Inc()
}

func observeDecision(d time.Duration) {
	decisionDuration.Observe(d.Seconds())
}
