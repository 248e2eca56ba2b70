// Webdeck - Self-Hosted Device Dashboard
// Copyright 2026 The Webdeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/webdeck-io/webdeck

// Package auth implements password verification, lockout, and the session
// lifecycle. Passwords are stored as PBKDF2-SHA512 digests; comparison is
// constant time over the hex encodings.
package auth

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// pbkdf2Rounds is fixed for every stored digest. Changing it would
	// silently invalidate all existing credentials.
	pbkdf2Rounds = 512

	// digestLen is the derived key length in bytes; digests are stored as
	// 64 hex characters.
	digestLen = 32

	// appSalt is the fixed application-wide salt mixed into every digest.
	appSalt = "webdeck/credential/v1"

	// sessionTokenBytes of randomness per session cookie, hex encoded.
	sessionTokenBytes = 32
)

// Password length bounds enforced at login and account creation.
const (
	MinPasswordLen = 8
	MaxPasswordLen = 64
)

// HashPassword derives the stored digest for a plaintext password.
func HashPassword(password string) string {
	key := pbkdf2.Key([]byte(password), []byte(appSalt), pbkdf2Rounds, digestLen, sha512.New)
	return hex.EncodeToString(key)
}

// VerifyPassword reports whether password matches the stored digest. The
// comparison is constant time; the derivation itself dominates the cost
// either way.
func VerifyPassword(password, storedDigest string) bool {
	computed := HashPassword(password)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedDigest)) == 1
}

// ValidPasswordLength checks the configured bounds without touching the
// password content: any byte sequence in range is acceptable.
func ValidPasswordLength(password string) bool {
	return len(password) >= MinPasswordLen && len(password) <= MaxPasswordLen
}

// newSessionToken returns a fresh random session cookie value.
func newSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("session token entropy: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
