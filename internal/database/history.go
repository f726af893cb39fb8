// FinScope - Jellyfin Playback Analytics Dashboard
// Copyright 2026 FinScope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/finscope/finscope

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/finscope/finscope/internal/models"
)

const insertPlaybackSQL = `INSERT OR IGNORE INTO playback_history
	(server_url, user_id, item_id, item_name, item_type, date_played)
	VALUES (?, ?, ?, ?, ?, ?)`

// InsertPlaybackBatch inserts a batch of playback records in a single
// transaction and returns the number of rows actually inserted. Records
// whose (server_url, user_id, item_id, date_played) tuple already exists
// are silently ignored and do not count toward the result.
func (db *DB) InsertPlaybackBatch(ctx context.Context, records []models.PlaybackRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		recordQueryError("insert_playback_batch", err)
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertPlaybackSQL)
	if err != nil {
		recordQueryError("insert_playback_batch", err)
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for _, rec := range records {
		res, execErr := stmt.ExecContext(ctx,
			rec.ServerURL, rec.AccountID, rec.ItemID, rec.ItemName, rec.ItemType, rec.PlayedAt)
		if execErr != nil {
			recordQueryError("insert_playback_batch", execErr)
			return 0, fmt.Errorf("insert playback record: %w", execErr)
		}
		rows, raErr := res.RowsAffected()
		if raErr != nil {
			return 0, fmt.Errorf("rows affected: %w", raErr)
		}
		inserted += rows
	}

	if err := tx.Commit(); err != nil {
		recordQueryError("insert_playback_batch", err)
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	return inserted, nil
}

// InsertPlaybackRecord inserts a single playback record. Returns true when
// a new row was created, false when the tuple already existed.
func (db *DB) InsertPlaybackRecord(ctx context.Context, rec models.PlaybackRecord) (bool, error) {
	res, err := db.conn.ExecContext(ctx, insertPlaybackSQL,
		rec.ServerURL, rec.AccountID, rec.ItemID, rec.ItemName, rec.ItemType, rec.PlayedAt)
	if err != nil {
		recordQueryError("insert_playback_record", err)
		return false, fmt.Errorf("insert playback record: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return rows > 0, nil
}

// QueryPlayedTimestamps returns the date_played strings for all records of
// an endpoint, ascending. The aggregator consumes these raw strings so that
// each record's own stated UTC offset drives the histogram bucketing.
func (db *DB) QueryPlayedTimestamps(ctx context.Context, serverURL string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT date_played FROM playback_history WHERE server_url = ? ORDER BY date_played ASC`,
		serverURL)
	if err != nil {
		recordQueryError("query_played_timestamps", err)
		return nil, fmt.Errorf("query played timestamps: %w", err)
	}
	defer rows.Close()

	var timestamps []string
	for rows.Next() {
		var ts string
		if err := rows.Scan(&ts); err != nil {
			return nil, fmt.Errorf("scan timestamp: %w", err)
		}
		timestamps = append(timestamps, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timestamps: %w", err)
	}
	return timestamps, nil
}

// QueryRecords returns playback records for an endpoint, newest first.
// When accountID is non-empty the result is limited to that account.
func (db *DB) QueryRecords(ctx context.Context, serverURL, accountID string) ([]models.PlaybackRecord, error) {
	query := `SELECT id, server_url, user_id, item_id, item_name, item_type, date_played
		FROM playback_history WHERE server_url = ?`
	args := []interface{}{serverURL}
	if accountID != "" {
		query += ` AND user_id = ?`
		args = append(args, accountID)
	}
	query += ` ORDER BY date_played DESC`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		recordQueryError("query_records", err)
		return nil, fmt.Errorf("query playback records: %w", err)
	}
	defer rows.Close()

	var records []models.PlaybackRecord
	for rows.Next() {
		var rec models.PlaybackRecord
		if err := rows.Scan(&rec.ID, &rec.ServerURL, &rec.AccountID, &rec.ItemID,
			&rec.ItemName, &rec.ItemType, &rec.PlayedAt); err != nil {
			return nil, fmt.Errorf("scan playback record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate playback records: %w", err)
	}
	return records, nil
}

// CountRecords returns the total number of playback records stored for an
// endpoint across all accounts.
func (db *DB) CountRecords(ctx context.Context, serverURL string) (int64, error) {
	var count int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM playback_history WHERE server_url = ?`,
		serverURL).Scan(&count)
	if err != nil {
		recordQueryError("count_records", err)
		return 0, fmt.Errorf("count playback records: %w", err)
	}
	return count, nil
}

// ClearHistory deletes all playback records for an endpoint. Used before an
// explicitly requested full re-import.
func (db *DB) ClearHistory(ctx context.Context, serverURL string) error {
	if _, err := db.conn.ExecContext(ctx,
		`DELETE FROM playback_history WHERE server_url = ?`, serverURL); err != nil {
		recordQueryError("clear_history", err)
		return fmt.Errorf("clear playback history: %w", err)
	}
	return nil
}

// nullString converts an empty string to a NULL-friendly sql value.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
