// Webdeck - Self-Hosted Device Dashboard
// Copyright 2026 The Webdeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/webdeck-io/webdeck

// Package migrations embeds the goose SQL migrations for the credential
// store schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
