// Webdeck - Self-Hosted Device Dashboard
// Copyright 2026 The Webdeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/webdeck-io/webdeck

package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// mirrorHitsTotal counts user-record reads served from the networked cache.
	mirrorHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "usercache_mirror_hits_total",
			Help: "Total number of user record reads served from the networked cache",
		},
	)

	// mirrorMissesTotal counts user-record reads that fell through to the store.
	mirrorMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "usercache_mirror_misses_total",
			Help: "Total number of user record reads that fell through to the credential store",
		},
	)

	// invalidationsTotal counts explicit user invalidations.
	invalidationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "usercache_invalidations_total",
			Help: "Total number of user cache invalidations triggered by account mutations",
		},
	)
)

func recordMirrorHit()    { mirrorHitsTotal.Inc() }
func recordMirrorMiss()   { mirrorMissesTotal.Inc() }
func recordInvalidation() { invalidationsTotal.Inc() }
