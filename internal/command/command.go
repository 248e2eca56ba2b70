// Webdeck - Self-Hosted Device Dashboard
// Copyright 2026 The Webdeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/webdeck-io/webdeck

// Package command defines the command envelope submitted to Dispatch, the
// verb vocabulary shared by every device, and the rejection taxonomy used
// for audit records and caller-facing errors.
package command

import (
	"errors"
	"fmt"
	"regexp"
)

// Verb is the requested operation category. The single-letter wire values
// match what clients put in the qtype form field.
type Verb string

const (
	VerbStatus  Verb = "S"
	VerbRead    Verb = "R"
	VerbWrite   Verb = "W"
	VerbRequest Verb = "Q"
	VerbConfirm Verb = "C"
	VerbDismiss Verb = "D"
)

// Verbs lists every known verb in matrix column order.
var Verbs = []Verb{VerbStatus, VerbRead, VerbWrite, VerbRequest, VerbConfirm, VerbDismiss}

// Valid reports whether v is one of the six known verbs.
func (v Verb) Valid() bool {
	switch v {
	case VerbStatus, VerbRead, VerbWrite, VerbRequest, VerbConfirm, VerbDismiss:
		return true
	}
	return false
}

// String returns a human-readable verb name for logs and audit records.
func (v Verb) String() string {
	switch v {
	case VerbStatus:
		return "status"
	case VerbRead:
		return "read"
	case VerbWrite:
		return "write"
	case VerbRequest:
		return "request"
	case VerbConfirm:
		return "confirm"
	case VerbDismiss:
		return "dismiss"
	}
	return "unknown"
}

// Envelope is one inbound request to a device. It is treated as an immutable
// value: Dispatch validates it once and hands it to the device unchanged.
//
// Username must equal the identity resolved from the caller's session; this
// is checked once per request, before any cache or store access.
type Envelope struct {
	Verb     Verb   `json:"qtype"`
	Group    string `json:"group"`
	Username string `json:"username"`
	Command  string `json:"command"`
	Payload  string `json:"payload"`
}

// usernamePattern is the identity format shared by login and dispatch:
// 4-32 characters, alphanumeric plus underscore.
var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{4,32}$`)

// ValidUsername reports whether name satisfies the identity format check.
func ValidUsername(name string) bool {
	return usernamePattern.MatchString(name)
}

// Validate performs the structural checks on the envelope that never touch
// a store: verb vocabulary, username format, and non-empty group.
func (e *Envelope) Validate() error {
	if !e.Verb.Valid() {
		return fmt.Errorf("%w: unknown query type %q", ErrInvalidInput, string(e.Verb))
	}
	if !ValidUsername(e.Username) {
		return fmt.Errorf("%w: malformed username", ErrInvalidInput)
	}
	if e.Group == "" {
		return fmt.Errorf("%w: empty group", ErrInvalidInput)
	}
	return nil
}

// Rejection is the audit-log outcome code of a dispatched command.
type Rejection string

const (
	RejectionOK           Rejection = "ok"
	RejectionUnauthorized Rejection = "unauthorized"
	RejectionError        Rejection = "error"
)

// Error taxonomy. Every failure surfaced by the dispatch core wraps exactly
// one of these sentinels so callers and the audit writer can classify it
// without string matching.
var (
	// ErrInvalidInput marks malformed usernames, passwords, or envelopes.
	// Raised before any store access.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized marks identity mismatch or an authorization denial.
	// Callers see a generic message; the audit log keeps the true code.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrDeviceError marks a failure inside the resolved device's own
	// handler, including unknown commands and unsupported verbs.
	ErrDeviceError = errors.New("device error")

	// ErrStoreUnavailable marks an unreachable credential store or
	// networked cache. Authorization fails closed: the error propagates
	// instead of degrading to a deny-by-guess.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// RejectionFromString parses a stored rejection code, defaulting to
// RejectionError for anything unrecognized.
func RejectionFromString(s string) Rejection {
	switch Rejection(s) {
	case RejectionOK, RejectionUnauthorized, RejectionError:
		return Rejection(s)
	}
	return RejectionError
}

// Classify maps an error from the dispatch pipeline to its audit rejection
// code. A nil error is RejectionOK.
func Classify(err error) Rejection {
	switch {
	case err == nil:
		return RejectionOK
	case errors.Is(err, ErrUnauthorized):
		return RejectionUnauthorized
	default:
		return RejectionError
	}
}
