// Webdeck - Self-Hosted Device Dashboard
// Copyright 2026 The Webdeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/webdeck-io/webdeck

package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory implements Store in process memory. Suitable for tests and
// single-user development runs; data is lost on restart.
type Memory struct {
	mu      sync.RWMutex
	nextID  int64
	users   map[string]*UserRecord
	entries []AuditEntry
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		nextID: 1,
		users:  make(map[string]*UserRecord),
	}
}

// GetUserByName returns the record for name, or ErrUserNotFound.
func (m *Memory) GetUserByName(ctx context.Context, name string) (*UserRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[name]
	if !ok {
		return nil, ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

// InsertUser creates a user.
func (m *Memory) InsertUser(ctx context.Context, name, passwordHash, groups string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, dup := m.users[name]; dup {
		return ErrUserExists
	}
	m.users[name] = &UserRecord{
		ID:           m.nextID,
		Name:         name,
		PasswordHash: passwordHash,
		Groups:       groups,
	}
	m.nextID++
	return nil
}

// UpdateUserPassword replaces the stored digest.
func (m *Memory) UpdateUserPassword(ctx context.Context, name, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[name]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

// UpdateUserGroups replaces the comma-joined group membership.
func (m *Memory) UpdateUserGroups(ctx context.Context, name, groups string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[name]
	if !ok {
		return ErrUserNotFound
	}
	u.Groups = groups
	return nil
}

// ListUsers returns every user record, ordered by id.
func (m *Memory) ListUsers(ctx context.Context) ([]UserRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]UserRecord, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// InsertAuditEntry appends one audit record.
func (m *Memory) InsertAuditEntry(ctx context.Context, entry *AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := *entry
	e.ID = m.nextID
	m.nextID++
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	m.entries = append(m.entries, e)
	return nil
}

// ListRecentAuditEntries returns the newest entries, newest first.
func (m *Memory) ListRecentAuditEntries(ctx context.Context, limit int) ([]AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.entries) {
		limit = len(m.entries)
	}
	entries := make([]AuditEntry, 0, limit)
	for i := len(m.entries) - 1; i >= 0 && len(entries) < limit; i-- {
		entries = append(entries, m.entries[i])
	}
	return entries, nil
}

// CountCommandsSince aggregates audit entries per user from cutoff onward.
func (m *Memory) CountCommandsSince(ctx context.Context, cutoff time.Time) ([]UserCount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byUser := make(map[string]int64)
	for _, e := range m.entries {
		if e.Timestamp.After(cutoff) {
			byUser[e.Username]++
		}
	}

	counts := make([]UserCount, 0, len(byUser))
	for name, n := range byUser {
		counts = append(counts, UserCount{Username: name, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Username < counts[j].Username
	})
	return counts, nil
}

// AuditLen reports the number of audit entries, for tests.
func (m *Memory) AuditLen() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

var _ Store = (*Memory)(nil)
