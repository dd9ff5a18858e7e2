// Huntboard - Product Discovery Recommendation Engine
// Copyright 2026 Huntboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/huntboard/huntboard

// Package database owns the durable interaction log, backed by DuckDB.
// Every recorded interaction is appended here before any derived state
// (profiles, caches, trending aggregates) is touched; losing a profile is
// an inconvenience, losing the log is data loss. Aggregation queries for
// trending, collaborative filtering, and profile building all read from
// this package and never see rows older than the retention window.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/huntboard/huntboard/internal/config"
	"github.com/huntboard/huntboard/internal/logging"
)

// DB wraps the DuckDB connection behind the interaction log API.
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig
}

// New opens (or creates) the interaction log. An empty or ":memory:" path
// opens an in-memory database, which tests rely on.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	if !inMemoryPath(path) {
		dir := filepath.Dir(path)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("create database directory %s: %w", dir, err)
			}
		}
	}

	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	// Auto-install/auto-load stay disabled so startup never hangs on a
	// network fetch in restricted environments.
	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		path, threads, cfg.MaxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db := &DB{conn: conn, cfg: cfg}
	db.configurePool()

	if err := db.initialize(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	logging.Info().
		Str("path", path).
		Int("threads", threads).
		Msg("interaction log opened")
	return db, nil
}

// configurePool tunes the connection pool for DuckDB's embedded model.
func (db *DB) configurePool() {
	db.conn.SetMaxOpenConns(runtime.NumCPU())
	db.conn.SetMaxIdleConns(2)
	db.conn.SetConnMaxLifetime(time.Hour)
	db.conn.SetConnMaxIdleTime(5 * time.Minute)
}

// initialize creates tables, indexes, and runs versioned migrations.
func (db *DB) initialize() error {
	if err := db.createTables(); err != nil {
		return err
	}
	if err := db.runMigrations(); err != nil {
		return err
	}
	return db.createIndexes()
}

// Close checkpoints the WAL and closes the connection. The checkpoint is
// best effort; a failed checkpoint only slows the next startup.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.Checkpoint(ctx); err != nil {
		logging.Warn().Err(err).Msg("checkpoint before close failed")
	}
	return db.conn.Close()
}

// Checkpoint flushes the WAL into the main database file.
func (db *DB) Checkpoint(ctx context.Context) error {
	_, err := db.conn.ExecContext(ctx, "CHECKPOINT")
	return err
}

// Ping checks liveness for health reporting.
func (db *DB) Ping(ctx context.Context) error {
	if db.conn == nil {
		return fmt.Errorf("database connection is nil")
	}
	return db.conn.PingContext(ctx)
}

// Conn exposes the underlying connection for packages that need direct
// access, such as ad-hoc admin queries in the CLI.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

func inMemoryPath(path string) bool {
	return path == ":memory:" || strings.HasPrefix(path, ":memory:")
}

func closeQuietly(c interface{ Close() error }) {
	if err := c.Close(); err != nil {
		logging.Debug().Err(err).Msg("close failed")
	}
}
