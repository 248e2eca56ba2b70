// Webdeck - Self-Hosted Device Dashboard
// Copyright 2026 The Webdeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/webdeck-io/webdeck

// Package cache is the in-process access-control cache in front of the
// credential store: the session map, the per-user failed-login counters,
// the reloadable group->device table, and a read-through mirror of user
// records kept in a networked key-value cache.
//
// The three in-memory maps are guarded by independent locks so a slow
// networked-cache round trip inside a read-through never blocks session
// lookups or device-map reloads.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/webdeck-io/webdeck/internal/command"
	"github.com/webdeck-io/webdeck/internal/device"
	"github.com/webdeck-io/webdeck/internal/logging"
	"github.com/webdeck-io/webdeck/internal/store"
)

// ErrNoSession is returned when a cookie resolves to no live session.
var ErrNoSession = errors.New("no session")

// userRecordTTL bounds how long a mirrored user record may live in the
// networked cache before a read-through refresh.
const userRecordTTL = 24 * time.Hour

// userKeyPrefix namespaces mirrored user records in the networked cache.
const userKeyPrefix = "webdeck:user:"

// UserEntry is the denormalized copy of a user record mirrored into the
// networked cache, keyed by username.
type UserEntry struct {
	PasswordHash string `json:"password_hash"`
	Groups       string `json:"groups"`
}

// GroupList splits the comma-joined membership into names.
func (e *UserEntry) GroupList() []string {
	rec := store.UserRecord{Groups: e.Groups}
	return rec.GroupList()
}

// AccessCache is the multi-tier access-control cache. Construct one at
// startup and inject it into the services that need it; tests build
// isolated instances around in-memory backends.
type AccessCache struct {
	remote RemoteKV
	users  store.Store

	sessionsMu sync.RWMutex
	sessions   map[string]string // cookie token -> username

	attemptsMu sync.RWMutex
	attempts   map[string]int // username -> consecutive failures

	lockoutThreshold int

	devMu     sync.RWMutex
	deviceMap map[string]string // group name -> device name
}

// New builds an AccessCache over the given backends. The device map starts
// out loaded from the canonical capability matrix.
func New(remote RemoteKV, users store.Store, lockoutThreshold int) *AccessCache {
	if lockoutThreshold <= 0 {
		lockoutThreshold = 10
	}
	return &AccessCache{
		remote:           remote,
		users:            users,
		sessions:         make(map[string]string),
		attempts:         make(map[string]int),
		lockoutThreshold: lockoutThreshold,
		deviceMap:        device.GroupDeviceMap(),
	}
}

// UserEntry fetches the mirrored record for username, read-through: the
// networked cache is consulted first; on miss or a malformed entry the
// credential store is queried and the mirror repopulated with a fresh
// expiry.
//
// An unknown username returns store.ErrUserNotFound and is never cached.
// A store failure wraps command.ErrStoreUnavailable: authorization fails
// closed, never on a guess.
func (c *AccessCache) UserEntry(ctx context.Context, username string) (*UserEntry, error) {
	key := userKeyPrefix + username

	raw, err := c.remote.Get(ctx, key)
	switch {
	case err == nil:
		var entry UserEntry
		if jerr := json.Unmarshal(raw, &entry); jerr == nil {
			recordMirrorHit()
			return &entry, nil
		}
		// Malformed mirror entry: fall through to the store.
		logging.Warn().Str("user", username).Msg("Discarding malformed user cache entry")
	case errors.Is(err, ErrCacheMiss):
		// Fall through to the store.
	default:
		return nil, fmt.Errorf("%w: user mirror read: %v", command.ErrStoreUnavailable, err)
	}
	recordMirrorMiss()

	rec, err := c.users.GetUserByName(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, store.ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: credential store read: %v", command.ErrStoreUnavailable, err)
	}

	entry := &UserEntry{PasswordHash: rec.PasswordHash, Groups: rec.Groups}
	raw, err = json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("marshal user entry: %w", err)
	}
	if err := c.remote.Set(ctx, key, raw, userRecordTTL); err != nil {
		// Mirror writes are best effort: the authoritative answer is
		// already in hand.
		logging.Warn().Err(err).Str("user", username).Msg("Failed to repopulate user mirror")
	}
	return entry, nil
}

// GroupsOf returns the user's group list via the read-through mirror.
func (c *AccessCache) GroupsOf(ctx context.Context, username string) ([]string, error) {
	entry, err := c.UserEntry(ctx, username)
	if err != nil {
		return nil, err
	}
	return entry.GroupList(), nil
}

// DevicesOf maps the user's groups through the reloadable group->device
// table, keeping only groups that resolve to a real device and
// de-duplicating: a user reaching one device via two groups sees it once.
func (c *AccessCache) DevicesOf(ctx context.Context, username string) (map[string]struct{}, error) {
	groups, err := c.GroupsOf(ctx, username)
	if err != nil {
		return nil, err
	}

	c.devMu.RLock()
	defer c.devMu.RUnlock()

	devices := make(map[string]struct{})
	for _, g := range groups {
		if dev, ok := c.deviceMap[g]; ok {
			devices[dev] = struct{}{}
		}
	}
	return devices, nil
}

// DeviceForGroup resolves a single group through the current device table.
func (c *AccessCache) DeviceForGroup(group string) (string, bool) {
	c.devMu.RLock()
	defer c.devMu.RUnlock()
	dev, ok := c.deviceMap[group]
	return dev, ok
}

// SessionUser resolves a cookie token to a username. Purely in-memory: a
// restarted process has no sessions, which is accepted behavior.
func (c *AccessCache) SessionUser(cookie string) (string, error) {
	c.sessionsMu.RLock()
	defer c.sessionsMu.RUnlock()

	username, ok := c.sessions[cookie]
	if !ok {
		return "", ErrNoSession
	}
	return username, nil
}

// RecordLogin binds a cookie token to a username.
func (c *AccessCache) RecordLogin(username, cookie string) {
	c.sessionsMu.Lock()
	defer c.sessionsMu.Unlock()
	c.sessions[cookie] = username
}

// EndSession removes a session. Idempotent: ending an absent session is
// a no-op.
func (c *AccessCache) EndSession(cookie string) {
	c.sessionsMu.Lock()
	defer c.sessionsMu.Unlock()
	delete(c.sessions, cookie)
}

// FailedAttempts returns the user's consecutive failed-login count.
func (c *AccessCache) FailedAttempts(username string) int {
	c.attemptsMu.RLock()
	defer c.attemptsMu.RUnlock()
	return c.attempts[username]
}

// Locked reports whether the account is locked against password checks.
func (c *AccessCache) Locked(username string) bool {
	return c.FailedAttempts(username) >= c.lockoutThreshold
}

// RecordFailure increments the user's failure counter and returns the new
// count.
func (c *AccessCache) RecordFailure(username string) int {
	c.attemptsMu.Lock()
	defer c.attemptsMu.Unlock()
	c.attempts[username]++
	return c.attempts[username]
}

// ResetFailures zeroes the user's failure counter after a successful check.
func (c *AccessCache) ResetFailures(username string) {
	c.attemptsMu.Lock()
	defer c.attemptsMu.Unlock()
	delete(c.attempts, username)
}

// Lockout forces the user's counter to the lockout threshold. Used by the
// ban sweeper when a user's request rate is anomalous.
func (c *AccessCache) Lockout(username string) {
	c.attemptsMu.Lock()
	defer c.attemptsMu.Unlock()
	if c.attempts[username] < c.lockoutThreshold {
		c.attempts[username] = c.lockoutThreshold
	}
}

// InvalidateUser deletes the user's mirror entry from the networked cache,
// purges every session resolving to the user, and zeroes the failed-login
// counter. Callers invoke it synchronously before a password or group
// mutation commits, never after: once InvalidateUser returns, no reader
// observes pre-invalidation authorization data.
func (c *AccessCache) InvalidateUser(ctx context.Context, username string) error {
	if err := c.remote.Delete(ctx, userKeyPrefix+username); err != nil {
		return fmt.Errorf("%w: user mirror delete: %v", command.ErrStoreUnavailable, err)
	}

	c.sessionsMu.Lock()
	for cookie, user := range c.sessions {
		if user == username {
			delete(c.sessions, cookie)
		}
	}
	c.sessionsMu.Unlock()

	c.attemptsMu.Lock()
	delete(c.attempts, username)
	c.attemptsMu.Unlock()

	recordInvalidation()
	return nil
}

// ReloadDeviceMap atomically replaces the group->device table from the
// canonical capability matrix. Readers never observe a partial table: the
// fresh map is built outside the lock and swapped in under it.
func (c *AccessCache) ReloadDeviceMap() {
	fresh := device.GroupDeviceMap()

	c.devMu.Lock()
	c.deviceMap = fresh
	c.devMu.Unlock()

	logging.Info().Int("groups", len(fresh)).Msg("Device map reloaded")
}

// LockoutThreshold reports the configured threshold.
func (c *AccessCache) LockoutThreshold() int {
	return c.lockoutThreshold
}
