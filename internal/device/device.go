// Webdeck - Self-Hosted Device Dashboard
// Copyright 2026 The Webdeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/webdeck-io/webdeck

// Package device defines the capability interface every pluggable device
// implements, the static capability matrix mapping (device, verb) pairs to
// the access group they require, and the registry that resolves device
// names to live instances.
package device

import (
	"context"
	"errors"
	"fmt"

	"github.com/webdeck-io/webdeck/internal/command"
)

// Result is the device-specific success payload: a JSON document the
// protocol layer forwards without interpreting.
type Result []byte

// Device is the capability interface. Each method corresponds to one verb;
// a device that does not support a verb returns an error wrapping
// command.ErrDeviceError (the matrix normally prevents such calls from
// arriving at all).
//
// The device re-validates the envelope's group against the verb it is about
// to run: the authorization engine enforces device-level access, the device
// enforces group-level access.
type Device interface {
	ReadData(ctx context.Context, env *command.Envelope) (Result, error)
	ReadStatus(ctx context.Context, env *command.Envelope) (Result, error)
	WriteData(ctx context.Context, env *command.Envelope) (Result, error)
	RequestQuery(ctx context.Context, env *command.Envelope) (Result, error)
	ConfirmQuery(ctx context.Context, env *command.Envelope) (Result, error)
	DismissQuery(ctx context.Context, env *command.Envelope) (Result, error)
}

// Registry errors.
var (
	// ErrUnknownDevice is returned when a device name resolves to nothing.
	// Deliberately distinct from an authorization denial.
	ErrUnknownDevice = errors.New("no such device")
)

// Registry maps device names to instances. It is populated once at startup
// and read-only afterwards.
type Registry struct {
	devices map[string]Device
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{devices: make(map[string]Device)}
}

// Register adds a device under its canonical name. Registering a name not
// present in the capability matrix is a programming error.
func (r *Registry) Register(name string, dev Device) error {
	if !KnownDevice(name) {
		return fmt.Errorf("device %q is not in the capability matrix", name)
	}
	if _, dup := r.devices[name]; dup {
		return fmt.Errorf("device %q registered twice", name)
	}
	r.devices[name] = dev
	return nil
}

// Resolve returns the device registered under name. Resolution is a
// case-sensitive exact match; unknown names fail with ErrUnknownDevice.
func (r *Registry) Resolve(name string) (Device, error) {
	dev, ok := r.devices[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDevice, name)
	}
	return dev, nil
}

// Names returns the registered device names, for status pages.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.devices))
	for name := range r.devices {
		names = append(names, name)
	}
	return names
}

// Invoke routes the envelope's verb to the matching capability method.
func Invoke(ctx context.Context, dev Device, env *command.Envelope) (Result, error) {
	switch env.Verb {
	case command.VerbRead:
		return dev.ReadData(ctx, env)
	case command.VerbWrite:
		return dev.WriteData(ctx, env)
	case command.VerbRequest:
		return dev.RequestQuery(ctx, env)
	case command.VerbConfirm:
		return dev.ConfirmQuery(ctx, env)
	case command.VerbDismiss:
		return dev.DismissQuery(ctx, env)
	case command.VerbStatus:
		return dev.ReadStatus(ctx, env)
	}
	return nil, fmt.Errorf("%w: unknown query type %q", command.ErrInvalidInput, string(env.Verb))
}
