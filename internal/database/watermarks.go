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

	"github.com/finscope/finscope/internal/models"
)

// GetWatermark returns the sync watermark for one account on an endpoint,
// or nil when no watermark exists yet.
func (db *DB) GetWatermark(ctx context.Context, serverURL, accountID string) (*models.SyncWatermark, error) {
	var wm models.SyncWatermark
	var lastSync sql.NullString
	err := db.conn.QueryRowContext(ctx,
		`SELECT server_url, user_id, last_sync, total_synced
			FROM sync_meta WHERE server_url = ? AND user_id = ?`,
		serverURL, accountID).Scan(&wm.ServerURL, &wm.AccountID, &lastSync, &wm.TotalSynced)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		recordQueryError("get_watermark", err)
		return nil, fmt.Errorf("get watermark: %w", err)
	}
	wm.LastSyncedAt = lastSync.String
	return &wm, nil
}

// UpsertWatermark advances the watermark for one account. lastSyncedAt only
// replaces the stored value when it is lexicographically greater (RFC3339
// strings order chronologically), so the watermark never moves backward.
// incrementBy is added to the running total of synchronized records.
func (db *DB) UpsertWatermark(ctx context.Context, serverURL, accountID, lastSyncedAt string, incrementBy int64) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO sync_meta (server_url, user_id, last_sync, total_synced)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(server_url, user_id) DO UPDATE SET
				last_sync = CASE
					WHEN sync_meta.last_sync IS NULL OR excluded.last_sync > sync_meta.last_sync
					THEN excluded.last_sync
					ELSE sync_meta.last_sync
				END,
				total_synced = sync_meta.total_synced + excluded.total_synced`,
		serverURL, accountID, nullString(lastSyncedAt), incrementBy)
	if err != nil {
		recordQueryError("upsert_watermark", err)
		return fmt.Errorf("upsert watermark: %w", err)
	}
	return nil
}

// DeleteWatermarks removes all watermarks for an endpoint. A forced full
// resync calls this before the per-account loop so every account starts
// from scratch.
func (db *DB) DeleteWatermarks(ctx context.Context, serverURL string) error {
	if _, err := db.conn.ExecContext(ctx,
		`DELETE FROM sync_meta WHERE server_url = ?`, serverURL); err != nil {
		recordQueryError("delete_watermarks", err)
		return fmt.Errorf("delete watermarks: %w", err)
	}
	return nil
}

// ListWatermarks returns all watermarks for an endpoint.
func (db *DB) ListWatermarks(ctx context.Context, serverURL string) ([]models.SyncWatermark, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT server_url, user_id, last_sync, total_synced
			FROM sync_meta WHERE server_url = ? ORDER BY user_id`,
		serverURL)
	if err != nil {
		recordQueryError("list_watermarks", err)
		return nil, fmt.Errorf("list watermarks: %w", err)
	}
	defer rows.Close()

	var watermarks []models.SyncWatermark
	for rows.Next() {
		var wm models.SyncWatermark
		var lastSync sql.NullString
		if err := rows.Scan(&wm.ServerURL, &wm.AccountID, &lastSync, &wm.TotalSynced); err != nil {
			return nil, fmt.Errorf("scan watermark: %w", err)
		}
		wm.LastSyncedAt = lastSync.String
		watermarks = append(watermarks, wm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate watermarks: %w", err)
	}
	return watermarks, nil
}

// LastSyncTime returns the most recent watermark timestamp across all
// accounts of an endpoint, or empty string when the endpoint was never
// synchronized.
func (db *DB) LastSyncTime(ctx context.Context, serverURL string) (string, error) {
	var last sql.NullString
	err := db.conn.QueryRowContext(ctx,
		`SELECT MAX(last_sync) FROM sync_meta WHERE server_url = ?`,
		serverURL).Scan(&last)
	if err != nil {
		recordQueryError("last_sync_time", err)
		return "", fmt.Errorf("query last sync time: %w", err)
	}
	return last.String, nil
}
