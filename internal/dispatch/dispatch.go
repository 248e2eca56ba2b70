// Webdeck - Self-Hosted Device Dashboard
// Copyright 2026 The Webdeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/webdeck-io/webdeck

// Package dispatch is the orchestrator: it takes an authenticated username
// and a command envelope, verifies identity and authorization, routes the
// call to the target device, and appends exactly one audit entry per
// request regardless of outcome.
//
// The per-request pipeline fails closed: an identity or authorization
// failure short-circuits straight to the audit write without touching the
// device.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/webdeck-io/webdeck/internal/authz"
	"github.com/webdeck-io/webdeck/internal/command"
	"github.com/webdeck-io/webdeck/internal/device"
	"github.com/webdeck-io/webdeck/internal/logging"
	"github.com/webdeck-io/webdeck/internal/store"
)

// Dispatcher routes authenticated command envelopes to devices.
type Dispatcher struct {
	engine   *authz.Engine
	registry *device.Registry
	store    store.Store
}

// New builds a Dispatcher.
func New(engine *authz.Engine, registry *device.Registry, st store.Store) *Dispatcher {
	return &Dispatcher{engine: engine, registry: registry, store: st}
}

// Dispatch runs one envelope against deviceName on behalf of the
// authenticated sessionUser. The result payload is opaque to this layer.
//
// Every terminal path writes exactly one audit entry: ok on success,
// unauthorized on identity or authorization failure, error on invalid
// input, unsupported verbs, and device failures.
func (d *Dispatcher) Dispatch(ctx context.Context, sessionUser, deviceName string, env *command.Envelope) (device.Result, error) {
	start := time.Now()

	res, err := d.run(ctx, sessionUser, deviceName, env)
	rejection := command.Classify(err)

	d.audit(ctx, sessionUser, deviceName, env, rejection)
	observeDispatch(deviceName, string(env.Verb), string(rejection), time.Since(start))

	if err != nil {
		logging.Debug().Err(err).
			Str("user", sessionUser).Str("device", deviceName).
			Str("verb", string(env.Verb)).Str("command", env.Command).
			Str("rejection", string(rejection)).
			Msg("Dispatch rejected")
	}
	return res, err
}

// run is the fallible pipeline; Dispatch wraps it so auditing is
// unconditional.
func (d *Dispatcher) run(ctx context.Context, sessionUser, deviceName string, env *command.Envelope) (device.Result, error) {
	// Identity: the envelope's claimed username must match the session,
	// checked once per request before any cache read.
	if env.Username != sessionUser {
		return nil, fmt.Errorf("%w: envelope identity mismatch", command.ErrUnauthorized)
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}

	if err := d.engine.Authorize(ctx, sessionUser, deviceName, env.Group); err != nil {
		return nil, err
	}

	// Known device, absent matrix entry: a device-level error, not a
	// denial, so callers and the audit log can tell "not allowed" from
	// "not a thing".
	required, ok := device.RequiredGroup(deviceName, env.Verb)
	if !ok {
		return nil, fmt.Errorf("%w: device %q does not support verb %q",
			command.ErrDeviceError, deviceName, env.Verb)
	}
	if env.Group != required {
		return nil, fmt.Errorf("%w: verb requires group %s", command.ErrUnauthorized, required)
	}

	dev, err := d.registry.Resolve(deviceName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", command.ErrUnauthorized, err)
	}

	res, err := device.Invoke(ctx, dev, env)
	if err != nil {
		// Preserve the caller-visible taxonomy when the device already
		// classified its failure.
		if errors.Is(err, command.ErrUnauthorized) ||
			errors.Is(err, command.ErrInvalidInput) ||
			errors.Is(err, command.ErrStoreUnavailable) ||
			errors.Is(err, command.ErrDeviceError) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", command.ErrDeviceError, err)
	}
	return res, nil
}

// audit appends the single audit entry for this request. An audit write
// failure is logged, never propagated: the command outcome already stands,
// and surfacing a second error would misreport it.
func (d *Dispatcher) audit(ctx context.Context, sessionUser, deviceName string, env *command.Envelope, rejection command.Rejection) {
	entry := &store.AuditEntry{
		Username:  sessionUser,
		Device:    deviceName,
		Command:   env.Command,
		Verb:      string(env.Verb),
		Rejection: rejection,
		Timestamp: time.Now().UTC(),
	}
	if err := d.store.InsertAuditEntry(ctx, entry); err != nil {
		logging.Error().Err(err).Str("user", sessionUser).Str("device", deviceName).
			Msg("Audit write failed")
	}
}
