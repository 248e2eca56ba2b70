// Webdeck - Self-Hosted Device Dashboard
// Copyright 2026 The Webdeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/webdeck-io/webdeck

package device

import (
	"testing"

	"github.com/webdeck-io/webdeck/internal/command"
)

func TestRequiredGroup(t *testing.T) {
	tests := []struct {
		device string
		verb   command.Verb
		group  string
		ok     bool
	}{
		{Zero, command.VerbStatus, "rstatus", true},
		{Filer, command.VerbRead, "filer_read", true},
		{Filer, command.VerbWrite, "filer_write", true},
		{Root, command.VerbWrite, "root_write", true},
		{Printer, command.VerbConfirm, "printer_confirm", true},
		{Printer, command.VerbDismiss, "printer_dismiss", true},
		{Blog, command.VerbRequest, "blogdev_request", true},
		{Stat, command.VerbRead, "statdev_read", true},

		// Absent entries: known device, unsupported verb.
		{Filer, command.VerbConfirm, "", false},
		{Stat, command.VerbWrite, "", false},
		{Blog, command.VerbDismiss, "", false},
		{Zero, command.VerbRead, "", false},

		// Unknown device.
		{"toaster", command.VerbRead, "", false},
	}

	for _, tt := range tests {
		group, ok := RequiredGroup(tt.device, tt.verb)
		if ok != tt.ok || group != tt.group {
			t.Errorf("RequiredGroup(%q, %q) = (%q, %v), want (%q, %v)",
				tt.device, tt.verb, group, ok, tt.group, tt.ok)
		}
	}
}

func TestGroupDeviceMap(t *testing.T) {
	m := GroupDeviceMap()

	want := map[string]string{
		"rstatus":         Zero,
		"filer_read":      Filer,
		"filer_write":     Filer,
		"root_read":       Root,
		"root_write":      Root,
		"printer_read":    Printer,
		"printer_write":   Printer,
		"printer_request": Printer,
		"printer_confirm": Printer,
		"printer_dismiss": Printer,
		"blogdev_read":    Blog,
		"blogdev_write":   Blog,
		"blogdev_request": Blog,
		"statdev_read":    Stat,
	}

	if len(m) != len(want) {
		t.Fatalf("GroupDeviceMap() has %d entries, want %d", len(m), len(want))
	}
	for group, dev := range want {
		if m[group] != dev {
			t.Errorf("GroupDeviceMap()[%q] = %q, want %q", group, m[group], dev)
		}
	}
}

func TestAllGroupsUnique(t *testing.T) {
	groups := AllGroups()
	seen := make(map[string]bool)
	for _, g := range groups {
		if seen[g] {
			t.Errorf("AllGroups() contains %q twice", g)
		}
		seen[g] = true
	}
	if len(groups) != 14 {
		t.Errorf("AllGroups() returned %d groups, want 14", len(groups))
	}
}
