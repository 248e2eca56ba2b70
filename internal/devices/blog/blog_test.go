// Webdeck - Self-Hosted Device Dashboard
// Copyright 2026 The Webdeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/webdeck-io/webdeck

package blog

import (
	"context"
	"errors"
	"testing"

	"github.com/webdeck-io/webdeck/internal/authz"
	"github.com/webdeck-io/webdeck/internal/cache"
	"github.com/webdeck-io/webdeck/internal/command"
	"github.com/webdeck-io/webdeck/internal/store"
)

// The happy paths need a live redis; these tests cover the checks that run
// before any redis round trip.

func newTestBlog(t *testing.T) *Device {
	t.Helper()
	mem := store.NewMemory()
	if err := mem.InsertUser(context.Background(), "reader", "digest", "blogdev_read"); err != nil {
		t.Fatalf("InsertUser: %v", err)
	}
	if err := mem.InsertUser(context.Background(), "writer", "digest", "blogdev_write,blogdev_request"); err != nil {
		t.Fatalf("InsertUser: %v", err)
	}
	c := cache.New(cache.NewMemoryKV(), mem, 10)
	return New(nil, authz.NewEngine(c))
}

func env(verb command.Verb, user, payload string) *command.Envelope {
	return &command.Envelope{Verb: verb, Username: user, Command: "post", Payload: payload}
}

func TestGroupChecksPrecedeStorage(t *testing.T) {
	ctx := context.Background()
	d := newTestBlog(t)

	if _, err := d.WriteData(ctx, env(command.VerbWrite, "reader", `{"title":"t"}`)); !errors.Is(err, command.ErrUnauthorized) {
		t.Errorf("reader Write = %v, want ErrUnauthorized", err)
	}
	if _, err := d.RequestQuery(ctx, env(command.VerbRequest, "reader", `{"title":"t"}`)); !errors.Is(err, command.ErrUnauthorized) {
		t.Errorf("reader Request = %v, want ErrUnauthorized", err)
	}
	if _, err := d.ReadData(ctx, env(command.VerbRead, "writer", "")); !errors.Is(err, command.ErrUnauthorized) {
		t.Errorf("writer Read = %v, want ErrUnauthorized", err)
	}
}

func TestWriteRejectsMalformedPayload(t *testing.T) {
	d := newTestBlog(t)

	_, err := d.WriteData(context.Background(), env(command.VerbWrite, "writer", `{broken`))
	if !errors.Is(err, command.ErrInvalidInput) {
		t.Errorf("WriteData = %v, want ErrInvalidInput", err)
	}
}

func TestUnsupportedOperations(t *testing.T) {
	d := newTestBlog(t)
	e := env(command.VerbConfirm, "writer", "")

	if _, err := d.ConfirmQuery(context.Background(), e); !errors.Is(err, command.ErrDeviceError) {
		t.Errorf("ConfirmQuery = %v, want ErrDeviceError", err)
	}
	if _, err := d.DismissQuery(context.Background(), e); !errors.Is(err, command.ErrDeviceError) {
		t.Errorf("DismissQuery = %v, want ErrDeviceError", err)
	}
}
