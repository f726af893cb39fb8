// FinScope - Jellyfin Playback Analytics Dashboard
// Copyright 2026 FinScope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/finscope/finscope

/*
Package models defines the core data structures shared across FinScope:
playback history records, sync watermarks, registered media servers, API
tokens, Jellyfin wire types, and the API response envelope.
*/
package models

import "time"

// PlaybackRecord is a single play event synchronized from a Jellyfin
// endpoint or captured from a live session. Records are unique on the
// (ServerURL, AccountID, ItemID, PlayedAt) tuple; re-inserting an existing
// tuple is a no-op.
type PlaybackRecord struct {
	ID        int64  `json:"id,omitempty"`
	ServerURL string `json:"serverUrl"`
	AccountID string `json:"accountId"`
	ItemID    string `json:"itemId"`
	ItemName  string `json:"itemName"`
	ItemType  string `json:"itemType"`
	// PlayedAt is stored as the upstream-provided RFC3339 string, or a
	// sync-time timestamp when the upstream omitted one.
	PlayedAt string `json:"playedAt"`
}

// SyncWatermark tracks per-account sync progress for an endpoint.
// LastSyncedAt is monotonically non-decreasing and only advances after the
// corresponding records are durably inserted.
type SyncWatermark struct {
	ServerURL    string `json:"serverUrl"`
	AccountID    string `json:"accountId"`
	LastSyncedAt string `json:"lastSyncedAt"`
	TotalSynced  int64  `json:"totalSynced"`
}

// SyncResult summarizes a completed synchronization run for one endpoint.
type SyncResult struct {
	NewEntries     int64 `json:"newEntries"`
	TotalEntries   int64 `json:"totalEntries"`
	AccountsSynced int   `json:"accountsSynced"`
}

// AccountRef identifies a user account on a Jellyfin endpoint.
type AccountRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MediaServer is a registered Jellyfin endpoint.
type MediaServer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	APIKey    string    `json:"-"`
	UserID    string    `json:"userId,omitempty"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// APIToken is an opaque access token. Only the SHA-256 hash is stored; the
// plaintext is shown once at creation time. TokenPrefix holds the first
// characters of the plaintext for lookup and display.
type APIToken struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	TokenPrefix string     `json:"tokenPrefix"`
	TokenHash   string     `json:"-"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastUsedAt  *time.Time `json:"lastUsedAt,omitempty"`
	RevokedAt   *time.Time `json:"revokedAt,omitempty"`
}

// Revoked reports whether the token has been revoked.
func (t *APIToken) Revoked() bool {
	return t.RevokedAt != nil
}

// AnalyticsSummary is the aggregated playback activity for an endpoint.
// DayHistogram maps YYYY-MM-DD date strings to play counts; HourHistogram
// buckets plays by local hour-of-day as stated in each record's timestamp.
type AnalyticsSummary struct {
	DayHistogram  map[string]int `json:"playsByDay"`
	HourHistogram [24]int        `json:"playsByHour"`
	TotalPlays    int            `json:"totalPlays"`
}

// GenreCount is one entry of the top-genres reduction.
type GenreCount struct {
	Name  string  `json:"name"`
	Count int     `json:"count"`
	Pct   float64 `json:"pct"`
}

// PulseStats is a lightweight health snapshot of the stored history.
type PulseStats struct {
	DBSizeBytes         int64  `json:"dbSizeBytes"`
	TotalHistoryEntries int64  `json:"totalHistoryEntries"`
	LastSyncTime        string `json:"lastSyncTime,omitempty"`
}
