// Webdeck - Self-Hosted Device Dashboard
// Copyright 2026 The Webdeck Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/webdeck-io/webdeck

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for goose
	"github.com/pressly/goose/v3"

	"github.com/webdeck-io/webdeck/internal/command"
	"github.com/webdeck-io/webdeck/internal/store/migrations"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique constraint errors.
const uniqueViolation = "23505"

// Postgres implements Store on a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects a pool to dsn and runs the embedded migrations.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	if err := runMigrations(ctx, dsn); err != nil {
		pool.Close()
		return nil, err
	}

	return &Postgres{pool: pool}, nil
}

// runMigrations applies the embedded goose migrations through a throwaway
// database/sql handle (goose needs *sql.DB, the pool stays pgx-native).
func runMigrations(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open migration conn: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Close releases the pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// GetUserByName returns the record for name, or ErrUserNotFound.
func (p *Postgres) GetUserByName(ctx context.Context, name string) (*UserRecord, error) {
	const q = `SELECT id, name, password_hash, groups FROM users WHERE name = $1`

	var u UserRecord
	err := p.pool.QueryRow(ctx, q, name).Scan(&u.ID, &u.Name, &u.PasswordHash, &u.Groups)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// InsertUser creates a user.
func (p *Postgres) InsertUser(ctx context.Context, name, passwordHash, groups string) error {
	const q = `INSERT INTO users (name, password_hash, groups) VALUES ($1, $2, $3)`

	if _, err := p.pool.Exec(ctx, q, name, passwordHash, groups); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrUserExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// UpdateUserPassword replaces the stored digest.
func (p *Postgres) UpdateUserPassword(ctx context.Context, name, passwordHash string) error {
	const q = `UPDATE users SET password_hash = $2 WHERE name = $1`

	tag, err := p.pool.Exec(ctx, q, name, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdateUserGroups replaces the comma-joined group membership.
func (p *Postgres) UpdateUserGroups(ctx context.Context, name, groups string) error {
	const q = `UPDATE users SET groups = $2 WHERE name = $1`

	tag, err := p.pool.Exec(ctx, q, name, groups)
	if err != nil {
		return fmt.Errorf("update groups: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ListUsers returns every user record, ordered by id.
func (p *Postgres) ListUsers(ctx context.Context) ([]UserRecord, error) {
	const q = `SELECT id, name, password_hash, groups FROM users ORDER BY id`

	rows, err := p.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []UserRecord
	for rows.Next() {
		var u UserRecord
		if err := rows.Scan(&u.ID, &u.Name, &u.PasswordHash, &u.Groups); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// InsertAuditEntry appends one audit record.
func (p *Postgres) InsertAuditEntry(ctx context.Context, entry *AuditEntry) error {
	const q = `INSERT INTO audit_log (username, device, command, verb, rejection, ts)
	           VALUES ($1, $2, $3, $4, $5, $6)`

	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	_, err := p.pool.Exec(ctx, q, entry.Username, entry.Device, entry.Command,
		entry.Verb, string(entry.Rejection), ts)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListRecentAuditEntries returns the newest entries, newest first.
func (p *Postgres) ListRecentAuditEntries(ctx context.Context, limit int) ([]AuditEntry, error) {
	const q = `SELECT id, username, device, command, verb, rejection, ts
	           FROM audit_log ORDER BY id DESC LIMIT $1`

	rows, err := p.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var rejection string
		if err := rows.Scan(&e.ID, &e.Username, &e.Device, &e.Command, &e.Verb, &rejection, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Rejection = command.RejectionFromString(rejection)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}

// CountCommandsSince aggregates audit entries per user from cutoff onward.
func (p *Postgres) CountCommandsSince(ctx context.Context, cutoff time.Time) ([]UserCount, error) {
	const q = `SELECT username, COUNT(*) FROM audit_log
	           WHERE ts > $1 GROUP BY username ORDER BY COUNT(*) DESC`

	rows, err := p.pool.Query(ctx, q, cutoff)
	if err != nil {
		return nil, fmt.Errorf("count commands: %w", err)
	}
	defer rows.Close()

	var counts []UserCount
	for rows.Next() {
		var c UserCount
		if err := rows.Scan(&c.Username, &c.Count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count commands: %w", err)
	}
	return counts, nil
}

// compile-time interface check
var _ Store = (*Postgres)(nil)
