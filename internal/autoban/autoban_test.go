// Webdeck - Self-Hosted Device Dashboard
// Copyright 2026 The Webdeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/webdeck-io/webdeck

package autoban

import (
	"context"
	"testing"
	"time"

	"github.com/webdeck-io/webdeck/internal/cache"
	"github.com/webdeck-io/webdeck/internal/command"
	"github.com/webdeck-io/webdeck/internal/store"
)

func fill(t *testing.T, mem *store.Memory, user string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		entry := &store.AuditEntry{
			Username: user, Device: "filer", Command: "list",
			Verb: "R", Rejection: command.RejectionOK,
		}
		if err := mem.InsertAuditEntry(context.Background(), entry); err != nil {
			t.Fatalf("InsertAuditEntry: %v", err)
		}
	}
}

func TestSweepLocksAnomalousUser(t *testing.T) {
	mem := store.NewMemory()
	c := cache.New(cache.NewMemoryKV(), mem, 10)
	s := New(Config{Window: time.Hour, AnomalyFactor: 1.5}, mem, c)

	// alice 30, bob 10, carol 20: average 20, threshold 30, nobody over it.
	fill(t, mem, "alice", 30)
	fill(t, mem, "bob", 10)
	fill(t, mem, "carol", 20)
	if err := s.sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if c.Locked("alice") || c.Locked("bob") || c.Locked("carol") {
		t.Fatal("locked below threshold")
	}

	// alice 90 of 120: average 40, threshold 60, alice over it.
	fill(t, mem, "alice", 60)
	if err := s.sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if !c.Locked("alice") {
		t.Error("anomalous user not locked")
	}
	if c.Locked("bob") || c.Locked("carol") {
		t.Error("normal user locked")
	}
}

func TestSweepSingleUserNeverBans(t *testing.T) {
	mem := store.NewMemory()
	c := cache.New(cache.NewMemoryKV(), mem, 10)
	s := New(Config{Window: time.Hour, AnomalyFactor: 1}, mem, c)

	fill(t, mem, "alice", 1000)
	if err := s.sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if c.Locked("alice") {
		t.Error("single user banned against their own average")
	}
}

func TestSweepIgnoresOldEntries(t *testing.T) {
	mem := store.NewMemory()
	c := cache.New(cache.NewMemoryKV(), mem, 10)
	s := New(Config{Window: time.Nanosecond, AnomalyFactor: 1}, mem, c)

	fill(t, mem, "alice", 100)
	fill(t, mem, "bob", 1)
	time.Sleep(time.Millisecond)

	if err := s.sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if c.Locked("alice") {
		t.Error("entries outside the window were counted")
	}
}

func TestDisabledSweeperExits(t *testing.T) {
	mem := store.NewMemory()
	c := cache.New(cache.NewMemoryKV(), mem, 10)
	s := New(Config{Period: 0, AnomalyFactor: 2}, mem, c)

	done := make(chan error, 1)
	go func() { done <- s.Serve(context.Background()) }()

	select {
	case err := <-done:
		if err == nil {
			t.Error("disabled sweeper returned nil, want do-not-restart")
		}
	case <-time.After(time.Second):
		t.Fatal("disabled sweeper did not exit")
	}
}
