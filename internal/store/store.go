// Webdeck - Self-Hosted Device Dashboard
// Copyright 2026 The Webdeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/webdeck-io/webdeck

// Package store is the durable credential store: user records and the
// append-only audit log of dispatched commands. PostgreSQL (pgx pool) in
// production, an in-memory implementation for tests and development.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/webdeck-io/webdeck/internal/command"
)

// Store errors.
var (
	// ErrUserNotFound is returned when no user record matches the name.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserExists is returned when inserting a duplicate username.
	ErrUserExists = errors.New("user already exists")
)

// UserRecord is the source-of-truth user row. PasswordHash is the hex
// digest, never the plaintext; Groups is the comma-joined group membership.
type UserRecord struct {
	ID           int64
	Name         string
	PasswordHash string
	Groups       string
}

// GroupList splits the comma-joined membership into trimmed names,
// dropping empties.
func (u *UserRecord) GroupList() []string {
	parts := strings.Split(u.Groups, ",")
	groups := make([]string, 0, len(parts))
	for _, p := range parts {
		if g := strings.TrimSpace(p); g != "" {
			groups = append(groups, g)
		}
	}
	return groups
}

// AuditEntry is one append-only record of a dispatched command. Entries are
// written once per dispatch, including rejected ones, and never mutated.
type AuditEntry struct {
	ID        int64
	Username  string
	Device    string
	Command   string
	Verb      string
	Rejection command.Rejection
	Timestamp time.Time
}

// UserCount is a per-user command count over a window, used by the stat
// device and the autoban service.
type UserCount struct {
	Username string
	Count    int64
}

// Store is the interface the dispatch core consumes. Implementations are
// safe for concurrent use; all calls are synchronous and may block on I/O.
type Store interface {
	// GetUserByName returns the record for name, or ErrUserNotFound.
	GetUserByName(ctx context.Context, name string) (*UserRecord, error)

	// InsertUser creates a user. Groups must be non-empty.
	InsertUser(ctx context.Context, name, passwordHash, groups string) error

	// UpdateUserPassword replaces the stored digest.
	UpdateUserPassword(ctx context.Context, name, passwordHash string) error

	// UpdateUserGroups replaces the comma-joined group membership.
	UpdateUserGroups(ctx context.Context, name, groups string) error

	// ListUsers returns every user record, ordered by id.
	ListUsers(ctx context.Context) ([]UserRecord, error)

	// InsertAuditEntry appends one audit record.
	InsertAuditEntry(ctx context.Context, entry *AuditEntry) error

	// ListRecentAuditEntries returns the newest entries, newest first.
	ListRecentAuditEntries(ctx context.Context, limit int) ([]AuditEntry, error)

	// CountCommandsSince aggregates audit entries per user from cutoff
	// onward, highest count first.
	CountCommandsSince(ctx context.Context, cutoff time.Time) ([]UserCount, error)
}
