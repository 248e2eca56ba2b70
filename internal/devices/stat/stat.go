// Webdeck - Self-Hosted Device Dashboard
// Copyright 2026 The Webdeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/webdeck-io/webdeck

// Package stat is the usage-statistics device: per-user command counts
// aggregated from the audit log over a caller-chosen window.
package stat

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/webdeck-io/webdeck/internal/authz"
	"github.com/webdeck-io/webdeck/internal/command"
	"github.com/webdeck-io/webdeck/internal/device"
	"github.com/webdeck-io/webdeck/internal/store"
)

// defaultWindow is used when the payload names no window.
const defaultWindow = 24 * time.Hour

// maxWindowHours bounds a caller-supplied window.
const maxWindowHours = 24 * 30

// Device is the usage-statistics device.
type Device struct {
	store  store.Store
	engine *authz.Engine
}

// New builds the stat device.
func New(st store.Store, engine *authz.Engine) *Device {
	return &Device{store: st, engine: engine}
}

var _ device.Device = (*Device)(nil)

// ReadData serves per_user_counts: command totals per user since the start
// of the window. The payload is the window in hours, defaulting to 24.
func (d *Device) ReadData(ctx context.Context, env *command.Envelope) (device.Result, error) {
	if err := d.engine.RequireGroup(ctx, env.Username, "statdev_read"); err != nil {
		return nil, err
	}
	if env.Command != "per_user_counts" {
		return nil, fmt.Errorf("%w: unknown command %q", command.ErrDeviceError, env.Command)
	}

	window := defaultWindow
	if env.Payload != "" {
		hours, err := strconv.Atoi(env.Payload)
		if err != nil || hours <= 0 || hours > maxWindowHours {
			return nil, fmt.Errorf("%w: window must be 1..%d hours", command.ErrInvalidInput, maxWindowHours)
		}
		window = time.Duration(hours) * time.Hour
	}

	counts, err := d.store.CountCommandsSince(ctx, time.Now().UTC().Add(-window))
	if err != nil {
		return nil, fmt.Errorf("%w: aggregate audit log: %v", command.ErrStoreUnavailable, err)
	}
	return marshal(counts)
}

// ReadStatus reports the total command volume over the default window.
func (d *Device) ReadStatus(ctx context.Context, env *command.Envelope) (device.Result, error) {
	if err := d.engine.RequireGroup(ctx, env.Username, device.GroupStatus); err != nil {
		return nil, err
	}

	counts, err := d.store.CountCommandsSince(ctx, time.Now().UTC().Add(-defaultWindow))
	if err != nil {
		return nil, fmt.Errorf("%w: aggregate audit log: %v", command.ErrStoreUnavailable, err)
	}
	var total int64
	for _, c := range counts {
		total += c.Count
	}
	return marshal(map[string]int64{"commands": total})
}

// WriteData is not part of the statistics surface.
func (d *Device) WriteData(_ context.Context, _ *command.Envelope) (device.Result, error) {
	return nil, fmt.Errorf("%w: stat device is read-only", command.ErrDeviceError)
}

// RequestQuery is not part of the statistics surface.
func (d *Device) RequestQuery(_ context.Context, _ *command.Envelope) (device.Result, error) {
	return nil, fmt.Errorf("%w: stat device is read-only", command.ErrDeviceError)
}

// ConfirmQuery is not part of the statistics surface.
func (d *Device) ConfirmQuery(_ context.Context, _ *command.Envelope) (device.Result, error) {
	return nil, fmt.Errorf("%w: stat device is read-only", command.ErrDeviceError)
}

// DismissQuery is not part of the statistics surface.
func (d *Device) DismissQuery(_ context.Context, _ *command.Envelope) (device.Result, error) {
	return nil, fmt.Errorf("%w: stat device is read-only", command.ErrDeviceError)
}

func marshal(v any) (device.Result, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: encode response: %v", command.ErrDeviceError, err)
	}
	return device.Result(raw), nil
}
