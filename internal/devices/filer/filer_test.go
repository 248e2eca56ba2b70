// Webdeck - Self-Hosted Device Dashboard
// Copyright 2026 The Webdeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/webdeck-io/webdeck

package filer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/webdeck-io/webdeck/internal/authz"
	"github.com/webdeck-io/webdeck/internal/cache"
	"github.com/webdeck-io/webdeck/internal/command"
	"github.com/webdeck-io/webdeck/internal/store"
)

func newTestFiler(t *testing.T) (*Device, string) {
	t.Helper()
	base := t.TempDir()

	mem := store.NewMemory()
	if err := mem.InsertUser(context.Background(), "alice", "digest", "rstatus,filer_read,filer_write"); err != nil {
		t.Fatalf("InsertUser: %v", err)
	}
	if err := mem.InsertUser(context.Background(), "bob", "digest", "filer_read"); err != nil {
		t.Fatalf("InsertUser: %v", err)
	}
	c := cache.New(cache.NewMemoryKV(), mem, 10)

	d, err := New(base, authz.NewEngine(c))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d, base
}

func env(verb command.Verb, user, cmd, payload string) *command.Envelope {
	return &command.Envelope{Verb: verb, Username: user, Command: cmd, Payload: payload}
}

func TestWriteThenReadFile(t *testing.T) {
	ctx := context.Background()
	d, base := newTestFiler(t)

	payload := `{"path":"notes/todo.txt","content":"water the plants"}`
	if _, err := d.WriteData(ctx, env(command.VerbWrite, "alice", "createdir", "notes")); err != nil {
		t.Fatalf("createdir: %v", err)
	}
	if _, err := d.WriteData(ctx, env(command.VerbWrite, "alice", "writefile", payload)); err != nil {
		t.Fatalf("writefile: %v", err)
	}

	res, err := d.ReadData(ctx, env(command.VerbRead, "alice", "readfile", "notes/todo.txt"))
	if err != nil {
		t.Fatalf("readfile: %v", err)
	}
	if string(res) != "water the plants" {
		t.Errorf("readfile = %q", res)
	}

	on, err := os.ReadFile(filepath.Join(base, "notes", "todo.txt"))
	if err != nil || string(on) != "water the plants" {
		t.Errorf("on-disk content = %q, %v", on, err)
	}
}

func TestListAndStat(t *testing.T) {
	ctx := context.Background()
	d, base := newTestFiler(t)

	if err := os.WriteFile(filepath.Join(base, "a.txt"), []byte("aa"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.Mkdir(filepath.Join(base, "sub"), 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	res, err := d.ReadData(ctx, env(command.VerbRead, "alice", "list", "/"))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var entries []entryView
	if err := json.Unmarshal(res, &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("list returned %d entries, want 2", len(entries))
	}

	res, err = d.ReadData(ctx, env(command.VerbRead, "alice", "stat", "a.txt"))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	var info entryView
	if err := json.Unmarshal(res, &info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.Dir || info.Size != 2 {
		t.Errorf("stat = %+v", info)
	}
}

func TestMoveFile(t *testing.T) {
	ctx := context.Background()
	d, base := newTestFiler(t)

	if err := os.WriteFile(filepath.Join(base, "old.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	payload := `{"path":"old.txt","to":"new.txt"}`
	if _, err := d.WriteData(ctx, env(command.VerbWrite, "alice", "movefile", payload)); err != nil {
		t.Fatalf("movefile: %v", err)
	}
	if _, err := os.Stat(filepath.Join(base, "new.txt")); err != nil {
		t.Errorf("moved file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(base, "old.txt")); !os.IsNotExist(err) {
		t.Errorf("source still present: %v", err)
	}
}

func TestPathTraversalConfined(t *testing.T) {
	d, base := newTestFiler(t)

	// Dot-dot and absolute paths are confined to the share, never resolved
	// outside it.
	for _, p := range []string{
		"../outside.txt",
		"a/../../outside.txt",
		"/../../etc/passwd",
		"/etc/passwd",
		"....//x",
	} {
		full, err := d.resolve(p)
		if err != nil {
			continue
		}
		if full != base && !strings.HasPrefix(full, base+string(filepath.Separator)) {
			t.Errorf("resolve(%q) = %q escapes the share", p, full)
		}
	}
}

func TestWriteRequiresFilerWrite(t *testing.T) {
	ctx := context.Background()
	d, _ := newTestFiler(t)

	_, err := d.WriteData(ctx, env(command.VerbWrite, "bob", "createdir", "x"))
	if !errors.Is(err, command.ErrUnauthorized) {
		t.Fatalf("WriteData = %v, want ErrUnauthorized", err)
	}
}

func TestUploadAppendCommit(t *testing.T) {
	d, base := newTestFiler(t)

	if err := d.Append("alice", "upload.bin", []byte("hello ")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := d.Append("alice", "upload.bin", []byte("world")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	// Nothing on disk until commit.
	if _, err := os.Stat(filepath.Join(base, "upload.bin")); !os.IsNotExist(err) {
		t.Fatal("upload reached disk before Commit")
	}

	if err := d.Commit("alice", "upload.bin"); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(base, "upload.bin"))
	if err != nil || string(data) != "hello world" {
		t.Errorf("committed content = %q, %v", data, err)
	}
}

func TestUploadAbortDropsBuffer(t *testing.T) {
	d, base := newTestFiler(t)

	if err := d.Append("alice", "drop.bin", []byte("data")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	d.Abort("alice", "drop.bin")
	if err := d.Commit("alice", "drop.bin"); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(base, "drop.bin"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("aborted upload still wrote %q", data)
	}
}

func TestUploadBuffersAreIsolatedByUser(t *testing.T) {
	d, base := newTestFiler(t)

	if err := d.Append("alice", "same.txt", []byte("alice's")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := d.Append("bob", "same.txt", []byte("bob's")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := d.Commit("alice", "same.txt"); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(base, "same.txt"))
	if err != nil || string(data) != "alice's" {
		t.Errorf("content = %q, %v; bob's buffer must not bleed in", data, err)
	}
}
