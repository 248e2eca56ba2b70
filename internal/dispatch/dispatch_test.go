// Webdeck - Self-Hosted Device Dashboard
// Copyright 2026 The Webdeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/webdeck-io/webdeck

package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/webdeck-io/webdeck/internal/accounts"
	"github.com/webdeck-io/webdeck/internal/authz"
	"github.com/webdeck-io/webdeck/internal/cache"
	"github.com/webdeck-io/webdeck/internal/command"
	"github.com/webdeck-io/webdeck/internal/device"
	"github.com/webdeck-io/webdeck/internal/store"
)

// echoDevice answers every operation with its command name, or fails when
// failWith is set.
type echoDevice struct {
	failWith error
}

func (d *echoDevice) answer(env *command.Envelope) (device.Result, error) {
	if d.failWith != nil {
		return nil, d.failWith
	}
	return device.Result(env.Command), nil
}

func (d *echoDevice) ReadData(_ context.Context, env *command.Envelope) (device.Result, error) {
	return d.answer(env)
}
func (d *echoDevice) ReadStatus(_ context.Context, env *command.Envelope) (device.Result, error) {
	return d.answer(env)
}
func (d *echoDevice) WriteData(_ context.Context, env *command.Envelope) (device.Result, error) {
	return d.answer(env)
}
func (d *echoDevice) RequestQuery(_ context.Context, env *command.Envelope) (device.Result, error) {
	return d.answer(env)
}
func (d *echoDevice) ConfirmQuery(_ context.Context, env *command.Envelope) (device.Result, error) {
	return d.answer(env)
}
func (d *echoDevice) DismissQuery(_ context.Context, env *command.Envelope) (device.Result, error) {
	return d.answer(env)
}

type fixture struct {
	dispatcher *Dispatcher
	cache      *cache.AccessCache
	accounts   *accounts.Service
	store      *store.Memory
	filer      *echoDevice
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMemory()
	c := cache.New(cache.NewMemoryKV(), mem, 10)

	filer := &echoDevice{}
	reg := device.NewRegistry()
	for _, name := range []string{device.Zero, device.Root, device.Printer, device.Blog, device.Stat} {
		if err := reg.Register(name, &echoDevice{}); err != nil {
			t.Fatalf("Register(%q): %v", name, err)
		}
	}
	if err := reg.Register(device.Filer, filer); err != nil {
		t.Fatalf("Register(filer): %v", err)
	}

	return &fixture{
		dispatcher: New(authz.NewEngine(c), reg, mem),
		cache:      c,
		accounts:   accounts.NewService(mem, c),
		store:      mem,
		filer:      filer,
	}
}

func (f *fixture) addUser(t *testing.T, name, groups string) {
	t.Helper()
	if err := f.store.InsertUser(context.Background(), name, "digest", groups); err != nil {
		t.Fatalf("InsertUser(%q): %v", name, err)
	}
}

func writeEnvelope(user, group, cmd string) *command.Envelope {
	return &command.Envelope{
		Verb:     command.VerbWrite,
		Group:    group,
		Username: user,
		Command:  cmd,
		Payload:  "x",
	}
}

func lastAudit(t *testing.T, mem *store.Memory) store.AuditEntry {
	t.Helper()
	entries, err := mem.ListRecentAuditEntries(context.Background(), 1)
	if err != nil {
		t.Fatalf("ListRecentAuditEntries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("audit log has %d entries, want at least 1", len(entries))
	}
	return entries[0]
}

func TestDispatchAllowReachesDevice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUser(t, "alice", "filer_read,filer_write")

	res, err := f.dispatcher.Dispatch(ctx, "alice", device.Filer, writeEnvelope("alice", "filer_write", "createdir"))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if string(res) != "createdir" {
		t.Errorf("result = %q, want device echo", res)
	}

	entry := lastAudit(t, f.store)
	if entry.Rejection != command.RejectionOK {
		t.Errorf("audit rejection = %q, want ok", entry.Rejection)
	}
	if entry.Username != "alice" || entry.Device != device.Filer || entry.Command != "createdir" {
		t.Errorf("audit entry = %+v", entry)
	}
}

func TestDispatchGroupChangeRevokesAccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	if err := f.accounts.CreateUser(ctx, "alice", "correct horse", "filer_read,filer_write"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	env := writeEnvelope("alice", "filer_write", "createdir")
	if _, err := f.dispatcher.Dispatch(ctx, "alice", device.Filer, env); err != nil {
		t.Fatalf("first Dispatch: %v", err)
	}

	// Revoke filer access; the warmed devicesOf view must not survive.
	if err := f.accounts.SetGroups(ctx, "alice", "blogdev_read"); err != nil {
		t.Fatalf("SetGroups: %v", err)
	}
	devices, err := f.cache.DevicesOf(ctx, "alice")
	if err != nil {
		t.Fatalf("DevicesOf: %v", err)
	}
	if _, ok := devices[device.Filer]; ok {
		t.Error("stale devicesOf still reports filer after group change")
	}

	_, err = f.dispatcher.Dispatch(ctx, "alice", device.Filer, env)
	if !errors.Is(err, command.ErrUnauthorized) {
		t.Fatalf("Dispatch after revocation = %v, want ErrUnauthorized", err)
	}
	if entry := lastAudit(t, f.store); entry.Rejection != command.RejectionUnauthorized {
		t.Errorf("audit rejection = %q, want unauthorized", entry.Rejection)
	}
}

func TestDispatchAuditCompleteness(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUser(t, "alice", "filer_write")

	tests := []struct {
		name      string
		session   string
		device    string
		env       *command.Envelope
		failWith  error
		rejection command.Rejection
	}{
		{
			name: "success", session: "alice", device: device.Filer,
			env:       writeEnvelope("alice", "filer_write", "createdir"),
			rejection: command.RejectionOK,
		},
		{
			name: "identity mismatch", session: "mallory", device: device.Filer,
			env:       writeEnvelope("alice", "filer_write", "createdir"),
			rejection: command.RejectionUnauthorized,
		},
		{
			name: "authorization denial", session: "alice", device: device.Root,
			env: &command.Envelope{
				Verb: command.VerbRead, Group: "root_read",
				Username: "alice", Command: "read_all_users",
			},
			rejection: command.RejectionUnauthorized,
		},
		{
			name: "invalid envelope", session: "", device: device.Filer,
			env:       writeEnvelope("", "filer_write", "createdir"),
			rejection: command.RejectionError,
		},
		{
			name: "device failure", session: "alice", device: device.Filer,
			env:       writeEnvelope("alice", "filer_write", "createdir"),
			failWith:  errors.New("disk full"),
			rejection: command.RejectionError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.filer.failWith = tt.failWith
			defer func() { f.filer.failWith = nil }()

			before := f.store.AuditLen()
			_, err := f.dispatcher.Dispatch(ctx, tt.session, tt.device, tt.env)
			if tt.rejection == command.RejectionOK && err != nil {
				t.Fatalf("Dispatch: %v", err)
			}
			if tt.rejection != command.RejectionOK && err == nil {
				t.Fatal("Dispatch succeeded, want rejection")
			}

			if got := f.store.AuditLen(); got != before+1 {
				t.Fatalf("audit entries grew by %d, want exactly 1", got-before)
			}
			if entry := lastAudit(t, f.store); entry.Rejection != tt.rejection {
				t.Errorf("audit rejection = %q, want %q", entry.Rejection, tt.rejection)
			}
		})
	}
}

func TestDispatchUnsupportedVerbIsNotADenial(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUser(t, "alice", "statdev_read")

	// statdev supports Read only; Write has no matrix entry.
	env := &command.Envelope{
		Verb: command.VerbWrite, Group: "statdev_read",
		Username: "alice", Command: "aggregate",
	}
	_, err := f.dispatcher.Dispatch(ctx, "alice", device.Stat, env)
	if !errors.Is(err, command.ErrDeviceError) {
		t.Fatalf("Dispatch = %v, want ErrDeviceError", err)
	}
	if errors.Is(err, command.ErrUnauthorized) {
		t.Error("unsupported verb classified as a denial")
	}
	if entry := lastAudit(t, f.store); entry.Rejection != command.RejectionError {
		t.Errorf("audit rejection = %q, want error", entry.Rejection)
	}
}

func TestDispatchWrongGroupForVerb(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUser(t, "alice", "filer_read,filer_write")

	// Authorized for the device, but Write demands filer_write.
	env := &command.Envelope{
		Verb: command.VerbWrite, Group: "filer_read",
		Username: "alice", Command: "createdir",
	}
	_, err := f.dispatcher.Dispatch(ctx, "alice", device.Filer, env)
	if !errors.Is(err, command.ErrUnauthorized) {
		t.Fatalf("Dispatch = %v, want ErrUnauthorized", err)
	}
}

func TestDispatchStoreOutageFailsClosed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUser(t, "alice", "filer_write")

	// Warm nothing; break the mirror so the read-through cannot reach a
	// sane answer.
	c := cache.New(cache.NewMemoryKV(), downStore{}, 10)
	d := New(authz.NewEngine(c), mustRegistry(t), f.store)

	_, err := d.Dispatch(ctx, "alice", device.Filer, writeEnvelope("alice", "filer_write", "createdir"))
	if !errors.Is(err, command.ErrStoreUnavailable) {
		t.Fatalf("Dispatch = %v, want ErrStoreUnavailable", err)
	}
	if entry := lastAudit(t, f.store); entry.Rejection != command.RejectionError {
		t.Errorf("audit rejection = %q, want error", entry.Rejection)
	}
}

type downStore struct {
	store.Store
}

func (downStore) GetUserByName(context.Context, string) (*store.UserRecord, error) {
	return nil, errors.New("connection refused")
}

func mustRegistry(t *testing.T) *device.Registry {
	t.Helper()
	reg := device.NewRegistry()
	if err := reg.Register(device.Filer, &echoDevice{}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return reg
}
