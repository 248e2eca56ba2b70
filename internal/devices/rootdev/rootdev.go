// Webdeck - Self-Hosted Device Dashboard
// Copyright 2026 The Webdeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/webdeck-io/webdeck

// Package rootdev is the administration device: user listing, audit
// history, the group table, and account mutations. Every handler
// re-validates the group the verb demands before touching anything, on top
// of the device-level gate the dispatcher already enforced.
package rootdev

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/webdeck-io/webdeck/internal/accounts"
	"github.com/webdeck-io/webdeck/internal/authz"
	"github.com/webdeck-io/webdeck/internal/command"
	"github.com/webdeck-io/webdeck/internal/device"
)

// historyLimit caps one read_all_hist response.
const historyLimit = 200

// Device is the root administration device.
type Device struct {
	accounts *accounts.Service
	engine   *authz.Engine
}

// New builds the root device.
func New(acc *accounts.Service, engine *authz.Engine) *Device {
	return &Device{accounts: acc, engine: engine}
}

var _ device.Device = (*Device)(nil)

// userView is a user record with the credential digest redacted.
type userView struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Groups string `json:"groups"`
}

// mutationRequest is the payload of every Write command.
type mutationRequest struct {
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
	Groups   string `json:"groups,omitempty"`
}

// ReadData serves read_all_users, read_all_hist, and read_all_groups.
func (d *Device) ReadData(ctx context.Context, env *command.Envelope) (device.Result, error) {
	if err := d.engine.RequireGroup(ctx, env.Username, device.GroupRootRead); err != nil {
		return nil, err
	}

	switch env.Command {
	case "read_all_users":
		users, err := d.accounts.ListUsers(ctx)
		if err != nil {
			return nil, err
		}
		views := make([]userView, 0, len(users))
		for _, u := range users {
			views = append(views, userView{ID: u.ID, Name: u.Name, Groups: u.Groups})
		}
		return marshal(views)

	case "read_all_hist":
		entries, err := d.accounts.RecentAudit(ctx, historyLimit)
		if err != nil {
			return nil, err
		}
		return marshal(entries)

	case "read_all_groups":
		return marshal(device.GroupDeviceMap())

	default:
		return nil, fmt.Errorf("%w: unknown command %q", command.ErrDeviceError, env.Command)
	}
}

// ReadStatus summarizes the administration surface: how many accounts
// exist.
func (d *Device) ReadStatus(ctx context.Context, env *command.Envelope) (device.Result, error) {
	if err := d.engine.RequireGroup(ctx, env.Username, device.GroupStatus); err != nil {
		return nil, err
	}
	users, err := d.accounts.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	return marshal(map[string]int{"users": len(users)})
}

// WriteData serves add_user, update_user_password, and update_user_groups.
// The mutations run through the accounts service, which invalidates the
// access-control cache before committing.
func (d *Device) WriteData(ctx context.Context, env *command.Envelope) (device.Result, error) {
	if err := d.engine.RequireGroup(ctx, env.Username, device.GroupRootWrite); err != nil {
		return nil, err
	}

	var req mutationRequest
	if err := json.Unmarshal([]byte(env.Payload), &req); err != nil {
		return nil, fmt.Errorf("%w: malformed payload: %v", command.ErrInvalidInput, err)
	}

	switch env.Command {
	case "add_user":
		if err := d.accounts.CreateUser(ctx, req.Username, req.Password, req.Groups); err != nil {
			return nil, err
		}
	case "update_user_password":
		if err := d.accounts.SetPassword(ctx, req.Username, req.Password); err != nil {
			return nil, err
		}
	case "update_user_groups":
		if err := d.accounts.SetGroups(ctx, req.Username, req.Groups); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: unknown command %q", command.ErrDeviceError, env.Command)
	}
	return device.Result("ok"), nil
}

// RequestQuery is not part of the administration surface.
func (d *Device) RequestQuery(_ context.Context, _ *command.Envelope) (device.Result, error) {
	return nil, fmt.Errorf("%w: root device has no request operation", command.ErrDeviceError)
}

// ConfirmQuery is not part of the administration surface.
func (d *Device) ConfirmQuery(_ context.Context, _ *command.Envelope) (device.Result, error) {
	return nil, fmt.Errorf("%w: root device has no confirm operation", command.ErrDeviceError)
}

// DismissQuery is not part of the administration surface.
func (d *Device) DismissQuery(_ context.Context, _ *command.Envelope) (device.Result, error) {
	return nil, fmt.Errorf("%w: root device has no dismiss operation", command.ErrDeviceError)
}

func marshal(v any) (device.Result, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: encode response: %v", command.ErrDeviceError, err)
	}
	return device.Result(raw), nil
}
