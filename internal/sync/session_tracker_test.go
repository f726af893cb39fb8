// FinScope - Jellyfin Playback Analytics Dashboard
// Copyright 2026 FinScope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/finscope/finscope

package sync

import (
	"context"
	"testing"
	"time"

	"github.com/finscope/finscope/internal/config"
	"github.com/finscope/finscope/internal/models"
)

func testTrackerConfig() config.TrackerConfig {
	return config.TrackerConfig{Enabled: true, Interval: 30 * time.Second}
}

func playingSession(id, userID, itemID string) models.JellyfinSession {
	return models.JellyfinSession{
		ID:     id,
		UserID: userID,
		NowPlayingItem: &models.JellyfinNowPlayingItem{
			ID: itemID, Name: "The Movie", Type: "Movie",
		},
	}
}

func TestTrackOnceCoalescesWithinHour(t *testing.T) {
	db := newTestStore(t)
	upstream := newFakeJellyfin(t)
	manager := NewManager(db, testSyncConfig(), nil)
	server := registerTestServer(t, db, upstream.srv.URL)
	ctx := context.Background()

	tracker := NewSessionTracker(db, manager, testTrackerConfig())
	tracker.now = func() time.Time {
		return time.Date(2026, 8, 30, 14, 5, 0, 0, time.UTC)
	}

	upstream.setSessions([]models.JellyfinSession{playingSession("s1", "u1", "item-1")})

	checkIntEqual(t, "first poll tracked", tracker.TrackOnce(ctx), 1)

	// Another poll of the same session later in the same hour dedupes.
	tracker.now = func() time.Time {
		return time.Date(2026, 8, 30, 14, 55, 0, 0, time.UTC)
	}
	checkIntEqual(t, "second poll tracked", tracker.TrackOnce(ctx), 0)

	records, err := db.QueryRecords(ctx, server.URL, "u1")
	checkNoError(t, "QueryRecords", err)
	checkIntEqual(t, "record count", len(records), 1)
	checkStringEqual(t, "coalesced timestamp", records[0].PlayedAt, "2026-08-30T14:00:00Z")
}

func TestTrackOnceNewHourNewRecord(t *testing.T) {
	db := newTestStore(t)
	upstream := newFakeJellyfin(t)
	manager := NewManager(db, testSyncConfig(), nil)
	server := registerTestServer(t, db, upstream.srv.URL)
	ctx := context.Background()

	tracker := NewSessionTracker(db, manager, testTrackerConfig())
	upstream.setSessions([]models.JellyfinSession{playingSession("s1", "u1", "item-1")})

	tracker.now = func() time.Time {
		return time.Date(2026, 8, 30, 14, 55, 0, 0, time.UTC)
	}
	checkIntEqual(t, "first hour tracked", tracker.TrackOnce(ctx), 1)

	// The hour rolls over while the same item keeps playing; the tracker
	// records a second row for the new hour bucket.
	tracker.now = func() time.Time {
		return time.Date(2026, 8, 30, 15, 5, 0, 0, time.UTC)
	}
	checkIntEqual(t, "second hour tracked", tracker.TrackOnce(ctx), 1)

	records, err := db.QueryRecords(ctx, server.URL, "u1")
	checkNoError(t, "QueryRecords", err)
	checkIntEqual(t, "record count", len(records), 2)
}

func TestTrackOnceMultipleSessions(t *testing.T) {
	db := newTestStore(t)
	upstream := newFakeJellyfin(t)
	manager := NewManager(db, testSyncConfig(), nil)
	registerTestServer(t, db, upstream.srv.URL)
	ctx := context.Background()

	tracker := NewSessionTracker(db, manager, testTrackerConfig())
	upstream.setSessions([]models.JellyfinSession{
		playingSession("s1", "u1", "item-1"),
		playingSession("s2", "u2", "item-1"), // same item, different viewer
	})

	checkIntEqual(t, "tracked", tracker.TrackOnce(ctx), 2)
}

func TestTrackOnceSkipsDisabledServers(t *testing.T) {
	db := newTestStore(t)
	upstream := newFakeJellyfin(t)
	manager := NewManager(db, testSyncConfig(), nil)
	server := registerTestServer(t, db, upstream.srv.URL)
	ctx := context.Background()

	checkNoError(t, "disable server", db.SetMediaServerEnabled(ctx, server.ID, false))

	tracker := NewSessionTracker(db, manager, testTrackerConfig())
	upstream.setSessions([]models.JellyfinSession{playingSession("s1", "u1", "item-1")})

	checkIntEqual(t, "tracked", tracker.TrackOnce(ctx), 0)
}
