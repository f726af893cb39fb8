// FinScope - Jellyfin Playback Analytics Dashboard
// Copyright 2026 FinScope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/finscope/finscope

/*
Package database provides the SQLite persistence layer for FinScope.

It stores playback history, per-account sync watermarks, registered media
servers, and API tokens. Playback history carries a uniqueness constraint on
(server_url, user_id, item_id, date_played) so repeated synchronization of
the same upstream data never duplicates rows.
*/
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/finscope/finscope/internal/config"
	"github.com/finscope/finscope/internal/logging"
	"github.com/finscope/finscope/internal/metrics"
)

// DB wraps the SQLite connection and provides all storage operations.
type DB struct {
	conn *sql.DB
	path string
}

// New opens (or creates) the SQLite database at the configured path, applies
// connection pragmas, and initializes the schema.
func New(cfg config.DatabaseConfig) (*DB, error) {
	if cfg.Path != ":memory:" {
		dir := filepath.Dir(cfg.Path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", dir, err)
		}
	}

	conn, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// modernc.org/sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY contention between the sync engine and the API layer.
	conn.SetMaxOpenConns(1)

	busyTimeout := cfg.BusyTimeout
	if busyTimeout <= 0 {
		busyTimeout = 5 * time.Second
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout.Milliseconds()),
	}
	for _, pragma := range pragmas {
		if _, execErr := conn.Exec(pragma); execErr != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	db := &DB{conn: conn, path: cfg.Path}
	if err := db.initSchema(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Msg("Database opened")
	return db, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	if db == nil || db.conn == nil {
		return nil
	}
	return db.conn.Close()
}

// Ping verifies the database connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// FileSize returns the size of the database file in bytes. Returns 0 for
// in-memory databases.
func (db *DB) FileSize() int64 {
	if db.path == ":memory:" {
		return 0
	}
	info, err := os.Stat(db.path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// recordQueryError increments the error counter and logs the failure.
func recordQueryError(op string, err error) {
	metrics.DBQueryErrors.WithLabelValues(op).Inc()
	logging.Error().Err(err).Str("operation", op).Msg("Database operation failed")
}
