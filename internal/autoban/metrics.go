// Webdeck - Self-Hosted Device Dashboard
// Copyright 2026 The Webdeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/webdeck-io/webdeck

package autoban

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// bansTotal counts lockouts applied by the sweeper.
var bansTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "autoban_lockouts_total",
		Help: "Total number of anomaly lockouts applied",
	},
)

func recordBan() { bansTotal.Inc() }
