// Webdeck - Self-Hosted Device Dashboard
// Copyright 2026 The Webdeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/webdeck-io/webdeck

package config

import (
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths is searched in order; the first existing file wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/webdeck/config.yaml",
	"/etc/webdeck/config.yml",
}

// ConfigPathEnvVar overrides the config file search.
const ConfigPathEnvVar = "WEBDECK_CONFIG"

// Load builds the configuration from defaults, an optional YAML file, and
// environment variables, in that precedence order (env highest).
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envMappings names every environment variable the process honors.
// Unmapped variables are dropped so stray environment noise cannot leak
// into the configuration.
var envMappings = map[string]string{
	"HTTP_HOST":    "server.host",
	"HTTP_PORT":    "server.port",
	"HTTP_TIMEOUT": "server.timeout",

	"DATABASE_DSN": "database.dsn",

	"REDIS_ADDR":     "cache.redis_addr",
	"REDIS_PASSWORD": "cache.redis_password",
	"REDIS_DB":       "cache.redis_db",

	"LOCKOUT_THRESHOLD": "auth.lockout_threshold",
	"LOGIN_RATE_LIMIT":  "auth.rate_limit_reqs",
	"LOGIN_RATE_WINDOW": "auth.rate_limit_window",

	"FILER_BASE": "filer.base",

	"AUTOBAN_PERIOD": "autoban.period",
	"AUTOBAN_WINDOW": "autoban.window",
	"AUTOBAN_FACTOR": "autoban.anomaly_factor",

	"LOG_LEVEL":  "logging.level",
	"LOG_FORMAT": "logging.format",
}

func envTransform(key string) string {
	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
