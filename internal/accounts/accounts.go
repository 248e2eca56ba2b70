// Webdeck - Self-Hosted Device Dashboard
// Copyright 2026 The Webdeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/webdeck-io/webdeck

// Package accounts is the single mutation path for user records. Every
// password or group change invalidates the access-control cache BEFORE the
// store commit: a failed invalidation aborts the mutation, a failed commit
// after invalidation merely costs one cache refill. No caller writes user
// records around this package.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/webdeck-io/webdeck/internal/auth"
	"github.com/webdeck-io/webdeck/internal/cache"
	"github.com/webdeck-io/webdeck/internal/command"
	"github.com/webdeck-io/webdeck/internal/device"
	"github.com/webdeck-io/webdeck/internal/logging"
	"github.com/webdeck-io/webdeck/internal/store"
)

// Service wraps the credential store with cache invalidation.
type Service struct {
	store store.Store
	cache *cache.AccessCache
}

// NewService builds the accounts service.
func NewService(st store.Store, c *cache.AccessCache) *Service {
	return &Service{store: st, cache: c}
}

// normalizeGroups validates and canonicalizes a comma-joined group list:
// trimmed, deduplicated, every name present in the capability matrix, at
// least one name.
func normalizeGroups(groups string) (string, error) {
	known := make(map[string]bool, len(device.AllGroups()))
	for _, g := range device.AllGroups() {
		known[g] = true
	}

	seen := make(map[string]bool)
	var out []string
	for _, g := range strings.Split(groups, ",") {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		if !known[g] {
			return "", fmt.Errorf("%w: unknown group %q", command.ErrInvalidInput, g)
		}
		if seen[g] {
			continue
		}
		seen[g] = true
		out = append(out, g)
	}
	if len(out) == 0 {
		return "", fmt.Errorf("%w: empty group list", command.ErrInvalidInput)
	}
	return strings.Join(out, ","), nil
}

// CreateUser validates the triple, hashes the password, and inserts the
// record. The cache is invalidated first so a stale negative entry for a
// recycled username cannot mask the new record.
func (s *Service) CreateUser(ctx context.Context, username, password, groups string) error {
	if !command.ValidUsername(username) {
		return fmt.Errorf("%w: malformed username", command.ErrInvalidInput)
	}
	if !auth.ValidPasswordLength(password) {
		return fmt.Errorf("%w: password length out of bounds", command.ErrInvalidInput)
	}
	normalized, err := normalizeGroups(groups)
	if err != nil {
		return err
	}

	if err := s.cache.InvalidateUser(ctx, username); err != nil {
		return err
	}
	if err := s.store.InsertUser(ctx, username, auth.HashPassword(password), normalized); err != nil {
		if errors.Is(err, store.ErrUserExists) {
			return fmt.Errorf("%w: user exists", command.ErrInvalidInput)
		}
		return fmt.Errorf("%w: insert user: %v", command.ErrStoreUnavailable, err)
	}
	logging.Info().Str("user", username).Str("groups", normalized).Msg("User created")
	return nil
}

// SetPassword replaces a user's credential. Invalidate, then commit: no
// session survives, and no verifier sees the old digest afterwards.
func (s *Service) SetPassword(ctx context.Context, username, password string) error {
	if !command.ValidUsername(username) {
		return fmt.Errorf("%w: malformed username", command.ErrInvalidInput)
	}
	if !auth.ValidPasswordLength(password) {
		return fmt.Errorf("%w: password length out of bounds", command.ErrInvalidInput)
	}

	if err := s.cache.InvalidateUser(ctx, username); err != nil {
		return err
	}
	if err := s.store.UpdateUserPassword(ctx, username, auth.HashPassword(password)); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return fmt.Errorf("%w: unknown user", command.ErrInvalidInput)
		}
		return fmt.Errorf("%w: update password: %v", command.ErrStoreUnavailable, err)
	}
	logging.Info().Str("user", username).Msg("Password changed")
	return nil
}

// SetGroups replaces a user's group membership, same ordering as
// SetPassword.
func (s *Service) SetGroups(ctx context.Context, username, groups string) error {
	if !command.ValidUsername(username) {
		return fmt.Errorf("%w: malformed username", command.ErrInvalidInput)
	}
	normalized, err := normalizeGroups(groups)
	if err != nil {
		return err
	}

	if err := s.cache.InvalidateUser(ctx, username); err != nil {
		return err
	}
	if err := s.store.UpdateUserGroups(ctx, username, normalized); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return fmt.Errorf("%w: unknown user", command.ErrInvalidInput)
		}
		return fmt.Errorf("%w: update groups: %v", command.ErrStoreUnavailable, err)
	}
	logging.Info().Str("user", username).Str("groups", normalized).Msg("Groups changed")
	return nil
}

// ListUsers returns every record, password digests included; callers
// redact before presentation.
func (s *Service) ListUsers(ctx context.Context) ([]store.UserRecord, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list users: %v", command.ErrStoreUnavailable, err)
	}
	return users, nil
}

// RecentAudit returns the newest audit entries, newest first.
func (s *Service) RecentAudit(ctx context.Context, limit int) ([]store.AuditEntry, error) {
	entries, err := s.store.ListRecentAuditEntries(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list audit: %v", command.ErrStoreUnavailable, err)
	}
	return entries, nil
}
