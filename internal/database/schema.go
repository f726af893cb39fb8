// FinScope - Jellyfin Playback Analytics Dashboard
// Copyright 2026 FinScope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/finscope/finscope

package database

import "fmt"

// schemaStatements defines the full schema. Statements are idempotent so
// they can run on every startup.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS playback_history (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		server_url  TEXT NOT NULL,
		user_id     TEXT NOT NULL,
		item_id     TEXT NOT NULL,
		item_name   TEXT NOT NULL DEFAULT '',
		item_type   TEXT NOT NULL DEFAULT '',
		date_played TEXT NOT NULL,
		UNIQUE(server_url, user_id, item_id, date_played)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_playback_history_server_date
		ON playback_history(server_url, date_played)`,
	`CREATE INDEX IF NOT EXISTS idx_playback_history_user
		ON playback_history(server_url, user_id)`,

	`CREATE TABLE IF NOT EXISTS sync_meta (
		server_url   TEXT NOT NULL,
		user_id      TEXT NOT NULL,
		last_sync    TEXT,
		total_synced INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (server_url, user_id)
	)`,

	`CREATE TABLE IF NOT EXISTS media_servers (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		url        TEXT NOT NULL UNIQUE,
		api_key    TEXT NOT NULL,
		user_id    TEXT NOT NULL DEFAULT '',
		enabled    INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS api_tokens (
		id           TEXT PRIMARY KEY,
		name         TEXT NOT NULL,
		token_prefix TEXT NOT NULL,
		token_hash   TEXT NOT NULL UNIQUE,
		created_at   TEXT NOT NULL,
		last_used_at TEXT,
		revoked_at   TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_api_tokens_prefix
		ON api_tokens(token_prefix)`,
}

// initSchema creates all tables and indexes if they do not exist.
func (db *DB) initSchema() error {
	for _, stmt := range schemaStatements {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}
	return nil
}
