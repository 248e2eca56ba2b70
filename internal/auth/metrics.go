// Webdeck - Self-Hosted Device Dashboard
// Copyright 2026 The Webdeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/webdeck-io/webdeck

package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// loginsTotal counts login attempts by outcome: success, failure, error.
var loginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_logins_total",
		Help: "Total number of login attempts by outcome",
	},
	[]string{"outcome"},
)

func recordLogin(outcome string) {
	loginsTotal.WithLabelValues(outcome).Inc()
}
