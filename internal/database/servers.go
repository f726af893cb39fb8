// FinScope - Jellyfin Playback Analytics Dashboard
// Copyright 2026 FinScope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/finscope/finscope

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/finscope/finscope/internal/models"
)

// ErrServerNotFound is returned when a media server id does not exist.
var ErrServerNotFound = errors.New("media server not found")

// CreateMediaServer registers a Jellyfin endpoint. Registration is an
// upsert keyed by URL: re-registering an existing URL updates its
// credentials and name in place and returns the existing id.
func (db *DB) CreateMediaServer(ctx context.Context, server models.MediaServer) (*models.MediaServer, error) {
	now := time.Now().UTC()
	if server.ID == "" {
		server.ID = uuid.New().String()
	}
	server.CreatedAt = now
	server.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO media_servers (id, name, url, api_key, user_id, enabled, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(url) DO UPDATE SET
				name = excluded.name,
				api_key = excluded.api_key,
				user_id = excluded.user_id,
				enabled = excluded.enabled,
				updated_at = excluded.updated_at`,
		server.ID, server.Name, server.URL, server.APIKey, server.UserID,
		boolToInt(server.Enabled), now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		recordQueryError("create_media_server", err)
		return nil, fmt.Errorf("create media server: %w", err)
	}

	// The upsert may have kept a pre-existing id; read back by URL.
	return db.GetMediaServerByURL(ctx, server.URL)
}

// GetMediaServer returns a media server by id.
func (db *DB) GetMediaServer(ctx context.Context, id string) (*models.MediaServer, error) {
	return db.getMediaServer(ctx, `SELECT id, name, url, api_key, user_id, enabled, created_at, updated_at
		FROM media_servers WHERE id = ?`, id)
}

// GetMediaServerByURL returns a media server by its URL.
func (db *DB) GetMediaServerByURL(ctx context.Context, url string) (*models.MediaServer, error) {
	return db.getMediaServer(ctx, `SELECT id, name, url, api_key, user_id, enabled, created_at, updated_at
		FROM media_servers WHERE url = ?`, url)
}

func (db *DB) getMediaServer(ctx context.Context, query string, arg interface{}) (*models.MediaServer, error) {
	var srv models.MediaServer
	var enabled int
	var createdAt, updatedAt string
	err := db.conn.QueryRowContext(ctx, query, arg).Scan(
		&srv.ID, &srv.Name, &srv.URL, &srv.APIKey, &srv.UserID, &enabled, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrServerNotFound
	}
	if err != nil {
		recordQueryError("get_media_server", err)
		return nil, fmt.Errorf("get media server: %w", err)
	}
	srv.Enabled = enabled != 0
	srv.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	srv.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &srv, nil
}

// ListMediaServers returns all registered media servers ordered by name.
func (db *DB) ListMediaServers(ctx context.Context) ([]models.MediaServer, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, name, url, api_key, user_id, enabled, created_at, updated_at
			FROM media_servers ORDER BY name, url`)
	if err != nil {
		recordQueryError("list_media_servers", err)
		return nil, fmt.Errorf("list media servers: %w", err)
	}
	defer rows.Close()

	var servers []models.MediaServer
	for rows.Next() {
		var srv models.MediaServer
		var enabled int
		var createdAt, updatedAt string
		if err := rows.Scan(&srv.ID, &srv.Name, &srv.URL, &srv.APIKey, &srv.UserID,
			&enabled, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan media server: %w", err)
		}
		srv.Enabled = enabled != 0
		srv.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		srv.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		servers = append(servers, srv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate media servers: %w", err)
	}
	return servers, nil
}

// SetMediaServerEnabled toggles whether an endpoint participates in the
// periodic sync loop.
func (db *DB) SetMediaServerEnabled(ctx context.Context, id string, enabled bool) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE media_servers SET enabled = ?, updated_at = ? WHERE id = ?`,
		boolToInt(enabled), time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		recordQueryError("set_media_server_enabled", err)
		return fmt.Errorf("set media server enabled: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return ErrServerNotFound
	}
	return nil
}

// DeleteMediaServer removes an endpoint registration. History and
// watermarks for the endpoint are left in place so a re-registration
// resumes from the existing watermark.
func (db *DB) DeleteMediaServer(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM media_servers WHERE id = ?`, id)
	if err != nil {
		recordQueryError("delete_media_server", err)
		return fmt.Errorf("delete media server: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return ErrServerNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
