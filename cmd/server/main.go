// Webdeck - Self-Hosted Device Dashboard
// Copyright 2026 The Webdeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/webdeck-io/webdeck

// Package main is the entry point for the Webdeck server.
//
// Startup order: configuration (koanf), logging (zerolog), the postgres
// credential store (pgx pool + goose migrations), the redis mirror, the
// access-control cache and authorization engine, the device registry, and
// finally the HTTP server and autoban sweeper under a suture supervisor.
//
// The server shuts down gracefully on SIGINT and SIGTERM: the supervisor
// context is cancelled, the HTTP listener drains in-flight requests up to
// the configured timeout, and the store and redis connections close last.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/thejerf/suture/v4"

	"github.com/webdeck-io/webdeck/internal/accounts"
	"github.com/webdeck-io/webdeck/internal/api"
	"github.com/webdeck-io/webdeck/internal/auth"
	"github.com/webdeck-io/webdeck/internal/authz"
	"github.com/webdeck-io/webdeck/internal/autoban"
	"github.com/webdeck-io/webdeck/internal/cache"
	"github.com/webdeck-io/webdeck/internal/config"
	"github.com/webdeck-io/webdeck/internal/device"
	"github.com/webdeck-io/webdeck/internal/devices/blog"
	"github.com/webdeck-io/webdeck/internal/devices/filer"
	"github.com/webdeck-io/webdeck/internal/devices/printer"
	"github.com/webdeck-io/webdeck/internal/devices/rootdev"
	"github.com/webdeck-io/webdeck/internal/devices/stat"
	"github.com/webdeck-io/webdeck/internal/devices/zerodev"
	"github.com/webdeck-io/webdeck/internal/dispatch"
	"github.com/webdeck-io/webdeck/internal/logging"
	"github.com/webdeck-io/webdeck/internal/store"
)

func main() {
	if err := run(); err != nil {
		logging.Err(err).Msg("Server exited")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	logging.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Msg("Webdeck starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.NewPostgres(ctx, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	remote, err := cache.DialRedis(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
	if err != nil {
		return fmt.Errorf("dial redis: %w", err)
	}

	accessCache := cache.New(remote, st, cfg.Auth.LockoutThreshold)
	engine := authz.NewEngine(accessCache)
	authSvc := auth.NewService(accessCache)
	acc := accounts.NewService(st, accessCache)

	if err := bootstrapAdmin(ctx, st, acc); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}

	filerDev, err := filer.New(cfg.Filer.Base, engine)
	if err != nil {
		return fmt.Errorf("open filer base: %w", err)
	}

	registry := device.NewRegistry()
	for name, dev := range map[string]device.Device{
		device.Zero:    zerodev.New(registry, engine),
		device.Filer:   filerDev,
		device.Root:    rootdev.New(acc, engine),
		device.Printer: printer.New(engine),
		device.Blog:    blog.New(remote.Client(), engine),
		device.Stat:    stat.New(st, engine),
	} {
		if err := registry.Register(name, dev); err != nil {
			return fmt.Errorf("register device %q: %w", name, err)
		}
	}

	dispatcher := dispatch.New(engine, registry, st)
	server := api.NewServer(*cfg, authSvc, engine, dispatcher, accessCache, filerDev)

	sup := suture.New("webdeck", suture.Spec{
		EventHook: func(ev suture.Event) {
			logging.Warn().Str("event", ev.String()).Msg("Supervisor event")
		},
	})
	sup.Add(&httpService{cfg: *cfg, handler: server.Routes()})
	sup.Add(autoban.New(autoban.Config{
		Period:        cfg.Autoban.Period,
		Window:        cfg.Autoban.Window,
		AnomalyFactor: cfg.Autoban.AnomalyFactor,
	}, st, accessCache))

	err = sup.Serve(ctx)
	if errors.Is(err, context.Canceled) {
		logging.Info().Msg("Webdeck stopped")
		return nil
	}
	return err
}

// bootstrapAdmin creates the first account from WEBDECK_ADMIN_USER and
// WEBDECK_ADMIN_PASSWORD when the store is empty. Without it a fresh
// install has no way to log in.
func bootstrapAdmin(ctx context.Context, st store.Store, acc *accounts.Service) error {
	user := os.Getenv("WEBDECK_ADMIN_USER")
	password := os.Getenv("WEBDECK_ADMIN_PASSWORD")
	if user == "" || password == "" {
		return nil
	}

	existing, err := st.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	// The first account holds every group; it prunes itself afterwards.
	groups := strings.Join(device.AllGroups(), ",")
	if err := acc.CreateUser(ctx, user, password, groups); err != nil {
		return err
	}
	logging.Info().Str("user", user).Msg("Bootstrapped admin account")
	return nil
}

// httpService runs the chi router as a suture service, restartable and
// draining on shutdown.
type httpService struct {
	cfg     config.Config
	handler http.Handler
}

func (h *httpService) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              net.JoinHostPort(h.cfg.Server.Host, strconv.Itoa(h.cfg.Server.Port)),
		Handler:           h.handler,
		ReadHeaderTimeout: h.cfg.Server.Timeout,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.cfg.Server.Timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (h *httpService) String() string { return "http" }
