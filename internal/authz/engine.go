// Webdeck - Self-Hosted Device Dashboard
// Copyright 2026 The Webdeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/webdeck-io/webdeck

// Package authz decides whether an authenticated user may address a device
// through a claimed capability group. The decision is conjunctive: the user
// must both reach the device through some group they hold, and hold the
// specific group they claimed. Holding filer_read grants nothing on root
// even though both map through the same table.
package authz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/webdeck-io/webdeck/internal/cache"
	"github.com/webdeck-io/webdeck/internal/command"
	"github.com/webdeck-io/webdeck/internal/device"
	"github.com/webdeck-io/webdeck/internal/logging"
	"github.com/webdeck-io/webdeck/internal/store"
)

// Engine answers allow/deny questions against the access-control cache.
type Engine struct {
	cache *cache.AccessCache
}

// NewEngine builds an Engine over the shared access-control cache.
func NewEngine(c *cache.AccessCache) *Engine {
	return &Engine{cache: c}
}

// Authorize checks that username may address deviceName through
// claimedGroup. A nil return means allowed; a denial wraps
// command.ErrUnauthorized and carries no detail about which check failed.
// Store failures propagate as command.ErrStoreUnavailable: never allow on
// a guess.
func (e *Engine) Authorize(ctx context.Context, username, deviceName, claimedGroup string) error {
	start := time.Now()

	if !command.ValidUsername(username) {
		recordDecision(deviceName, "deny")
		return fmt.Errorf("%w: malformed username", command.ErrUnauthorized)
	}
	if !device.KnownDevice(deviceName) {
		recordDecision(deviceName, "deny")
		return fmt.Errorf("%w: unknown device", command.ErrUnauthorized)
	}

	devices, err := e.cache.DevicesOf(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			recordDecision(deviceName, "deny")
			return fmt.Errorf("%w: unknown user", command.ErrUnauthorized)
		}
		recordDecision(deviceName, "error")
		return err
	}
	if _, ok := devices[deviceName]; !ok {
		recordDecision(deviceName, "deny")
		logging.Debug().Str("user", username).Str("device", deviceName).
			Msg("Device not reachable through any held group")
		return fmt.Errorf("%w: device not reachable", command.ErrUnauthorized)
	}

	groups, err := e.cache.GroupsOf(ctx, username)
	if err != nil {
		recordDecision(deviceName, "error")
		return err
	}
	held := false
	for _, g := range groups {
		if g == claimedGroup {
			held = true
			break
		}
	}
	if !held {
		recordDecision(deviceName, "deny")
		logging.Debug().Str("user", username).Str("group", claimedGroup).
			Msg("Claimed group not held")
		return fmt.Errorf("%w: group not held", command.ErrUnauthorized)
	}

	recordDecision(deviceName, "allow")
	observeDecision(time.Since(start))
	return nil
}

// RequireGroup checks only group membership, for device-side re-validation
// of operations that demand a narrower group than the dispatch gate.
func (e *Engine) RequireGroup(ctx context.Context, username, group string) error {
	groups, err := e.cache.GroupsOf(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return fmt.Errorf("%w: unknown user", command.ErrUnauthorized)
		}
		return err
	}
	for _, g := range groups {
		if g == group {
			return nil
		}
	}
	return fmt.Errorf("%w: group %s not held", command.ErrUnauthorized, group)
}
