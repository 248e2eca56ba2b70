// Webdeck - Self-Hosted Device Dashboard
// Copyright 2026 The Webdeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/webdeck-io/webdeck

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadLayering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "server:\n  port: 9000\nauth:\n  lockout_threshold: 5\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("HTTP_PORT", "9100")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	// env > file > defaults.
	if cfg.Server.Port != 9100 {
		t.Errorf("Port = %d, want env override 9100", cfg.Server.Port)
	}
	if cfg.Auth.LockoutThreshold != 5 {
		t.Errorf("LockoutThreshold = %d, want file value 5", cfg.Auth.LockoutThreshold)
	}
	if cfg.Server.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want default", cfg.Server.Timeout)
	}
}

func TestUnknownEnvIgnored(t *testing.T) {
	t.Setenv("SOME_RANDOM_VARIABLE", "boom")
	if _, err := Load(); err != nil {
		t.Fatalf("Load with stray env: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"empty dsn", func(c *Config) { c.Database.DSN = "" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"sweeper without window", func(c *Config) {
			c.Autoban.Period = time.Minute
			c.Autoban.Window = 0
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate accepted an invalid config")
			}
		})
	}
}
