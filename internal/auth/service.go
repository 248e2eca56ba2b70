// Webdeck - Self-Hosted Device Dashboard
// Copyright 2026 The Webdeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/webdeck-io/webdeck

package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/webdeck-io/webdeck/internal/cache"
	"github.com/webdeck-io/webdeck/internal/command"
	"github.com/webdeck-io/webdeck/internal/logging"
	"github.com/webdeck-io/webdeck/internal/store"
)

// ErrBadCredentials is the single rejection for every login failure mode:
// malformed input, unknown user, wrong password, locked account. Callers
// must not surface anything more specific.
var ErrBadCredentials = errors.New("incorrect login or password")

// Service runs logins and logouts against the access-control cache.
type Service struct {
	cache *cache.AccessCache
}

// NewService builds a Service over the shared access-control cache.
func NewService(c *cache.AccessCache) *Service {
	return &Service{cache: c}
}

// Login verifies the credential pair and, on success, mints a session
// token and binds it in the session map. Every failure path returns
// ErrBadCredentials; only a store outage returns anything else.
//
// The failure counter increments for unknown usernames too, and the
// password is hashed exactly once whether or not the user exists, so
// response timing does not separate the two cases.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	if !command.ValidUsername(username) || !ValidPasswordLength(password) {
		// No counter for unparseable usernames: the namespace is
		// unbounded and the credential check never ran.
		return "", ErrBadCredentials
	}

	if s.cache.Locked(username) {
		logging.Warn().Str("user", username).Msg("Login attempt against locked account")
		return "", ErrBadCredentials
	}

	entry, err := s.cache.UserEntry(ctx, username)
	switch {
	case errors.Is(err, store.ErrUserNotFound):
		// Burn the same derivation work as a real check, then count the
		// failure against the claimed name.
		HashPassword(password)
		s.cache.RecordFailure(username)
		recordLogin("failure")
		return "", ErrBadCredentials
	case err != nil:
		recordLogin("error")
		return "", err
	}

	if !VerifyPassword(password, entry.PasswordHash) {
		n := s.cache.RecordFailure(username)
		if n == s.cache.LockoutThreshold() {
			logging.Warn().Str("user", username).Int("failures", n).
				Msg("Account locked after repeated failures")
		}
		recordLogin("failure")
		return "", ErrBadCredentials
	}

	s.cache.ResetFailures(username)

	token, err := newSessionToken()
	if err != nil {
		recordLogin("error")
		return "", fmt.Errorf("mint session: %w", err)
	}
	s.cache.RecordLogin(username, token)
	recordLogin("success")
	logging.Info().Str("user", username).Msg("Login succeeded")
	return token, nil
}

// Logout ends the session bound to token. Unknown tokens are a no-op.
func (s *Service) Logout(token string) {
	s.cache.EndSession(token)
}

// Resolve maps a session token back to its username.
func (s *Service) Resolve(token string) (string, error) {
	return s.cache.SessionUser(token)
}
