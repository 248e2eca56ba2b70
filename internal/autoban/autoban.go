// Webdeck - Self-Hosted Device Dashboard
// Copyright 2026 The Webdeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/webdeck-io/webdeck

// Package autoban is the request-anomaly sweeper. It periodically
// aggregates per-user command counts from the audit log; any user whose
// volume exceeds the average by the configured factor has their
// failed-login counter forced to the lockout threshold, cutting off new
// sessions until an operator resets the account.
package autoban

import (
	"context"
	"fmt"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/webdeck-io/webdeck/internal/cache"
	"github.com/webdeck-io/webdeck/internal/logging"
	"github.com/webdeck-io/webdeck/internal/store"
)

// Config tunes the sweeper. A zero Period or AnomalyFactor disables it.
type Config struct {
	// Period between sweeps.
	Period time.Duration

	// Window of audit history each sweep aggregates.
	Window time.Duration

	// AnomalyFactor: a user is banned when count > average * factor.
	AnomalyFactor float64
}

// Sweeper runs under the supervisor and locks out anomalous users.
type Sweeper struct {
	cfg   Config
	store store.Store
	cache *cache.AccessCache
}

// New builds a Sweeper.
func New(cfg Config, st store.Store, c *cache.AccessCache) *Sweeper {
	if cfg.Window <= 0 {
		cfg.Window = time.Hour
	}
	return &Sweeper{cfg: cfg, store: st, cache: c}
}

var _ suture.Service = (*Sweeper)(nil)

// Serve implements suture.Service: sweep every Period until the context
// ends. A disabled sweeper exits permanently instead of restarting.
func (s *Sweeper) Serve(ctx context.Context) error {
	if s.cfg.Period <= 0 || s.cfg.AnomalyFactor <= 0 {
		logging.Info().Msg("Autoban disabled")
		return suture.ErrDoNotRestart
	}

	ticker := time.NewTicker(s.cfg.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.sweep(ctx); err != nil {
				// A failed sweep is skipped, not fatal: the audit log
				// will still be there next tick.
				logging.Warn().Err(err).Msg("Autoban sweep failed")
			}
		}
	}
}

// String implements fmt.Stringer for the supervisor's logs.
func (s *Sweeper) String() string {
	return "autoban"
}

// sweep aggregates one window and locks out anomalous users.
func (s *Sweeper) sweep(ctx context.Context) error {
	counts, err := s.store.CountCommandsSince(ctx, time.Now().UTC().Add(-s.cfg.Window))
	if err != nil {
		return fmt.Errorf("aggregate audit window: %w", err)
	}
	if len(counts) < 2 {
		// With one user the average is their own count; no anomaly is
		// decidable.
		return nil
	}

	var total int64
	for _, c := range counts {
		total += c.Count
	}
	threshold := float64(total) / float64(len(counts)) * s.cfg.AnomalyFactor

	for _, c := range counts {
		if float64(c.Count) > threshold {
			s.cache.Lockout(c.Username)
			recordBan()
			logging.Warn().Str("user", c.Username).Int64("count", c.Count).
				Float64("threshold", threshold).Msg("User locked out for anomalous volume")
		}
	}
	return nil
}
