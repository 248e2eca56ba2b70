// Webdeck - Self-Hosted Device Dashboard
// Copyright 2026 The Webdeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/webdeck-io/webdeck

package device

import "github.com/webdeck-io/webdeck/internal/command"

// Canonical device names. Zero is a pseudo-device that owns the single
// cross-cutting status group: "is the dashboard landing page viewable" is
// one group check regardless of which device is being summarized.
const (
	Zero    = ""
	Filer   = "filer"
	Root    = "root"
	Printer = "printer"
	Blog    = "blogdev"
	Stat    = "statdev"
)

// Well-known group names referenced outside the matrix.
const (
	GroupStatus     = "rstatus"
	GroupFilerWrite = "filer_write"
	GroupRootRead   = "root_read"
	GroupRootWrite  = "root_write"
)

// matrix is the canonical capability matrix: for each device, the group
// required per verb. A missing entry means the device does not expose that
// verb; calling it fails instead of default-allowing.
//
// The matrix is the source of truth for the group->device map; it is not
// persisted anywhere.
var matrix = map[string]map[command.Verb]string{
	Zero: {
		command.VerbStatus: GroupStatus,
	},
	Filer: {
		command.VerbRead:  "filer_read",
		command.VerbWrite: GroupFilerWrite,
	},
	Root: {
		command.VerbRead:  GroupRootRead,
		command.VerbWrite: GroupRootWrite,
	},
	Printer: {
		command.VerbRead:    "printer_read",
		command.VerbWrite:   "printer_write",
		command.VerbRequest: "printer_request",
		command.VerbConfirm: "printer_confirm",
		command.VerbDismiss: "printer_dismiss",
	},
	Blog: {
		command.VerbRead:    "blogdev_read",
		command.VerbWrite:   "blogdev_write",
		command.VerbRequest: "blogdev_request",
	},
	Stat: {
		command.VerbRead: "statdev_read",
	},
}

// KnownDevice reports whether name is a device the matrix knows about.
func KnownDevice(name string) bool {
	_, ok := matrix[name]
	return ok
}

// RequiredGroup returns the group needed to invoke verb on the named device.
// ok is false when the device is unknown or does not expose the verb.
func RequiredGroup(deviceName string, verb command.Verb) (group string, ok bool) {
	verbs, known := matrix[deviceName]
	if !known {
		return "", false
	}
	group, ok = verbs[verb]
	return group, ok
}

// GroupDeviceMap builds a fresh group->device table from the matrix. Every
// concrete device's status is reachable through the zero device's status
// group, so that mapping is carried as-is.
func GroupDeviceMap() map[string]string {
	m := make(map[string]string)
	for dev, verbs := range matrix {
		for _, group := range verbs {
			m[group] = dev
		}
	}
	return m
}

// AllGroups lists every group the matrix mentions, in no particular order.
// Used by the root device to render the group table.
func AllGroups() []string {
	seen := make(map[string]struct{})
	var groups []string
	for _, verbs := range matrix {
		for _, group := range verbs {
			if _, dup := seen[group]; dup {
				continue
			}
			seen[group] = struct{}{}
			groups = append(groups, group)
		}
	}
	return groups
}
