// Webdeck - Self-Hosted Device Dashboard
// Copyright 2026 The Webdeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/webdeck-io/webdeck

// Package api is the HTTP surface over the dispatch core: login/logout,
// the dashboard command channel, filer transfer endpoints, and the
// operational endpoints.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/webdeck-io/webdeck/internal/auth"
	"github.com/webdeck-io/webdeck/internal/authz"
	"github.com/webdeck-io/webdeck/internal/cache"
	"github.com/webdeck-io/webdeck/internal/config"
	"github.com/webdeck-io/webdeck/internal/devices/filer"
	"github.com/webdeck-io/webdeck/internal/dispatch"
)

// SessionCookie is the session cookie name.
const SessionCookie = "authid"

// Server owns the HTTP handlers and their collaborators.
type Server struct {
	cfg        config.Config
	auth       *auth.Service
	engine     *authz.Engine
	dispatcher *dispatch.Dispatcher
	cache      *cache.AccessCache
	filer      *filer.Device
	started    time.Time
}

// NewServer builds the HTTP surface.
func NewServer(cfg config.Config, authSvc *auth.Service, engine *authz.Engine, d *dispatch.Dispatcher, c *cache.AccessCache, f *filer.Device) *Server {
	return &Server{
		cfg:        cfg,
		auth:       authSvc,
		engine:     engine,
		dispatcher: d,
		cache:      c,
		filer:      f,
		started:    time.Now(),
	}
}

// Routes assembles the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger)

	// Brute-force protection sits above the dispatch core: the lockout
	// counter inside it is per-account, this limiter is per-address.
	r.With(httprate.LimitByIP(s.cfg.Auth.RateLimitReqs, s.cfg.Auth.RateLimitWindow)).
		Post("/login", s.handleLogin)
	r.Post("/logout", s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)

		r.Get("/dashboard", s.handleLanding)
		r.Get("/dashboard/{device}", s.handleDeviceStatus)
		r.Post("/dashboard/{device}", s.handleCommand)

		r.Post("/reload", s.handleReload)

		r.Get("/download/*", s.handleDownload)
		r.Post("/upload/*", s.handleUpload)
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", s.handleHealth)

	return r
}
