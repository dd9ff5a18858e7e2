// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/huntboard/huntboard/internal/logging"
)

// schemaContext returns a context with timeout for schema operations.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates the core tables. The full schema lives in the
// initial CREATE TABLE; post-release changes go through migrations.
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	queries := []string{
		`CREATE TABLE IF NOT EXISTS interactions (
			id UUID PRIMARY KEY,
			user_id TEXT,
			client_id TEXT,
			identity TEXT NOT NULL,
			product_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			strategy TEXT NOT NULL,
			position INTEGER,
			quality DOUBLE NOT NULL,
			metadata TEXT,
			created_at TIMESTAMP NOT NULL
		)`,
		schemaMigrationsTable,
	}

	for _, query := range queries {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	return nil
}

// createIndexes creates indexes for the dominant query shapes: per-identity
// history, per-product engagement windows, and retention purges.
func (db *DB) createIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_interactions_identity_created ON interactions (identity, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_product_created ON interactions (product_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_kind_created ON interactions (kind, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_created ON interactions (created_at)`,
	}

	for _, idx := range indexes {
		if _, err := db.conn.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

// Migration is a versioned schema change. Migrations are append-only once
// databases exist in the wild.
type Migration struct {
	Version     int
	Name        string
	Description string
	SQL         string
	AppliedAt   time.Time
}

const schemaMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT,
	applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// migrations returns all versioned migrations in order. The initial schema
// is fully defined in createTables, so this starts empty.
func migrations() []Migration {
	return []Migration{}
}

// runMigrations applies any migration not yet recorded.
func (db *DB) runMigrations() error {
	ctx, cancel := schemaContext()
	defer cancel()

	applied, err := db.appliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("load applied migrations: %w", err)
	}

	count := 0
	for _, m := range migrations() {
		if _, done := applied[m.Version]; done {
			continue
		}
		if _, err := db.conn.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("migration v%d (%s): %w", m.Version, m.Name, err)
		}
		if _, err := db.conn.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, name, description) VALUES (?, ?, ?)`,
			m.Version, m.Name, m.Description); err != nil {
			return fmt.Errorf("record migration v%d: %w", m.Version, err)
		}
		count++
	}

	if count > 0 {
		logging.Info().Int("applied", count).Msg("schema migrations applied")
	}
	return nil
}

// appliedMigrations returns applied migrations keyed by version.
func (db *DB) appliedMigrations(ctx context.Context) (map[int]Migration, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT version, name, description, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]Migration)
	for rows.Next() {
		var m Migration
		if err := rows.Scan(&m.Version, &m.Name, &m.Description, &m.AppliedAt); err != nil {
			return nil, err
		}
		applied[m.Version] = m
	}
	return applied, rows.Err()
}

// SchemaVersion returns the highest applied migration version.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("schema version: %w", err)
	}
	return version, nil
}
