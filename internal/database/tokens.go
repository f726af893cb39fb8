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

// ErrTokenNotFound is returned when an API token id or prefix does not exist.
var ErrTokenNotFound = errors.New("api token not found")

// CreateAPIToken stores a new token record. The caller is responsible for
// hashing; only TokenHash and TokenPrefix are persisted, never the plaintext.
func (db *DB) CreateAPIToken(ctx context.Context, token models.APIToken) (*models.APIToken, error) {
	if token.ID == "" {
		token.ID = uuid.New().String()
	}
	token.CreatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO api_tokens (id, name, token_prefix, token_hash, created_at)
			VALUES (?, ?, ?, ?, ?)`,
		token.ID, token.Name, token.TokenPrefix, token.TokenHash,
		token.CreatedAt.Format(time.RFC3339))
	if err != nil {
		recordQueryError("create_api_token", err)
		return nil, fmt.Errorf("create api token: %w", err)
	}
	return &token, nil
}

// GetAPITokensByPrefix returns all non-revoked tokens sharing a prefix.
// Prefix collisions are possible, so verification compares hashes across
// every candidate.
func (db *DB) GetAPITokensByPrefix(ctx context.Context, prefix string) ([]models.APIToken, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, name, token_prefix, token_hash, created_at, last_used_at, revoked_at
			FROM api_tokens WHERE token_prefix = ? AND revoked_at IS NULL`,
		prefix)
	if err != nil {
		recordQueryError("get_api_tokens_by_prefix", err)
		return nil, fmt.Errorf("get api tokens by prefix: %w", err)
	}
	defer rows.Close()

	return scanTokens(rows)
}

// TouchAPIToken records the time a token was last used for authentication.
func (db *DB) TouchAPIToken(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx,
		`UPDATE api_tokens SET last_used_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), id); err != nil {
		recordQueryError("touch_api_token", err)
		return fmt.Errorf("touch api token: %w", err)
	}
	return nil
}

// RevokeAPIToken marks a token as revoked. Revoked tokens fail
// authentication but remain listed for audit purposes.
func (db *DB) RevokeAPIToken(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE api_tokens SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`,
		time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		recordQueryError("revoke_api_token", err)
		return fmt.Errorf("revoke api token: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return ErrTokenNotFound
	}
	return nil
}

// ListAPITokens returns all tokens, newest first, including revoked ones.
func (db *DB) ListAPITokens(ctx context.Context) ([]models.APIToken, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, name, token_prefix, token_hash, created_at, last_used_at, revoked_at
			FROM api_tokens ORDER BY created_at DESC`)
	if err != nil {
		recordQueryError("list_api_tokens", err)
		return nil, fmt.Errorf("list api tokens: %w", err)
	}
	defer rows.Close()

	return scanTokens(rows)
}

func scanTokens(rows *sql.Rows) ([]models.APIToken, error) {
	var tokens []models.APIToken
	for rows.Next() {
		var tok models.APIToken
		var createdAt string
		var lastUsedAt, revokedAt sql.NullString
		if err := rows.Scan(&tok.ID, &tok.Name, &tok.TokenPrefix, &tok.TokenHash,
			&createdAt, &lastUsedAt, &revokedAt); err != nil {
			return nil, fmt.Errorf("scan api token: %w", err)
		}
		tok.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		if lastUsedAt.Valid {
			t, err := time.Parse(time.RFC3339, lastUsedAt.String)
			if err == nil {
				tok.LastUsedAt = &t
			}
		}
		if revokedAt.Valid {
			t, err := time.Parse(time.RFC3339, revokedAt.String)
			if err == nil {
				tok.RevokedAt = &t
			}
		}
		tokens = append(tokens, tok)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate api tokens: %w", err)
	}
	return tokens, nil
}
