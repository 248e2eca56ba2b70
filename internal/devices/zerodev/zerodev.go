// Webdeck - Self-Hosted Device Dashboard
// Copyright 2026 The Webdeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/webdeck-io/webdeck

// Package zerodev is the pseudo-device behind the dashboard landing page.
// It owns the cross-cutting status group: one group check answers "may this
// user view status" regardless of which device is being summarized. Status
// requests with a device name in the payload are forwarded to that device's
// own ReadStatus.
package zerodev

import (
	"context"
	"fmt"
	"sort"

	"github.com/goccy/go-json"

	"github.com/webdeck-io/webdeck/internal/authz"
	"github.com/webdeck-io/webdeck/internal/command"
	"github.com/webdeck-io/webdeck/internal/device"
)

// Device is the dashboard landing pseudo-device.
type Device struct {
	registry *device.Registry
	engine   *authz.Engine
}

// New builds the zero device. The registry may still be filling when New
// runs; lookups happen per request.
func New(registry *device.Registry, engine *authz.Engine) *Device {
	return &Device{registry: registry, engine: engine}
}

var _ device.Device = (*Device)(nil)

// ReadStatus answers the landing page. An empty payload lists the
// registered devices; a device name forwards to that device's summary.
func (d *Device) ReadStatus(ctx context.Context, env *command.Envelope) (device.Result, error) {
	if err := d.engine.RequireGroup(ctx, env.Username, device.GroupStatus); err != nil {
		return nil, err
	}

	if env.Payload == "" {
		names := d.registry.Names()
		visible := names[:0]
		for _, n := range names {
			if n != device.Zero {
				visible = append(visible, n)
			}
		}
		sort.Strings(visible)
		raw, err := json.Marshal(map[string][]string{"devices": visible})
		if err != nil {
			return nil, fmt.Errorf("%w: encode summary: %v", command.ErrDeviceError, err)
		}
		return device.Result(raw), nil
	}

	target, err := d.registry.Resolve(env.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", command.ErrDeviceError, err)
	}
	return target.ReadStatus(ctx, env)
}

// ReadData is not part of the landing surface.
func (d *Device) ReadData(_ context.Context, _ *command.Envelope) (device.Result, error) {
	return nil, fmt.Errorf("%w: landing page is status-only", command.ErrDeviceError)
}

// WriteData is not part of the landing surface.
func (d *Device) WriteData(_ context.Context, _ *command.Envelope) (device.Result, error) {
	return nil, fmt.Errorf("%w: landing page is status-only", command.ErrDeviceError)
}

// RequestQuery is not part of the landing surface.
func (d *Device) RequestQuery(_ context.Context, _ *command.Envelope) (device.Result, error) {
	return nil, fmt.Errorf("%w: landing page is status-only", command.ErrDeviceError)
}

// ConfirmQuery is not part of the landing surface.
func (d *Device) ConfirmQuery(_ context.Context, _ *command.Envelope) (device.Result, error) {
	return nil, fmt.Errorf("%w: landing page is status-only", command.ErrDeviceError)
}

// DismissQuery is not part of the landing surface.
func (d *Device) DismissQuery(_ context.Context, _ *command.Envelope) (device.Result, error) {
	return nil, fmt.Errorf("%w: landing page is status-only", command.ErrDeviceError)
}
