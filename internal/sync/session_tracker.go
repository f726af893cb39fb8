// FinScope - Jellyfin Playback Analytics Dashboard
// Copyright 2026 FinScope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/finscope/finscope

/*
session_tracker.go - Live session polling

Jellyfin's IsPlayed history is lossy (rewatches within a session, missing
DatePlayed fields), so the tracker also records what is playing right now.
Each active session becomes a playback record whose timestamp is coalesced
to the top of the current hour; the unique tuple constraint then collapses
repeated polls of the same session within one hour into a single row.
*/

package sync

import (
	"context"
	"time"

	"github.com/finscope/finscope/internal/config"
	"github.com/finscope/finscope/internal/database"
	"github.com/finscope/finscope/internal/logging"
	"github.com/finscope/finscope/internal/metrics"
	"github.com/finscope/finscope/internal/models"
)

// SessionTracker polls active sessions on every registered endpoint and
// records them as playback history.
type SessionTracker struct {
	db      *database.DB
	manager *Manager
	cfg     config.TrackerConfig

	// now is swappable for tests.
	now func() time.Time
}

// NewSessionTracker creates a session tracker that shares the manager's
// per-endpoint clients.
func NewSessionTracker(db *database.DB, manager *Manager, cfg config.TrackerConfig) *SessionTracker {
	return &SessionTracker{
		db:      db,
		manager: manager,
		cfg:     cfg,
		now:     time.Now,
	}
}

// TrackOnce polls every enabled endpoint once and records active sessions.
// Returns the number of new rows created.
func (t *SessionTracker) TrackOnce(ctx context.Context) int {
	servers, err := t.db.ListMediaServers(ctx)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to list media servers for session tracking")
		return 0
	}

	hourKey := t.now().UTC().Truncate(time.Hour).Format(time.RFC3339)
	tracked := 0

	for i := range servers {
		if !servers[i].Enabled {
			continue
		}

		client := t.manager.ClientFor(&servers[i])
		sessions, err := client.GetActiveSessions(ctx)
		if err != nil {
			logging.Warn().
				Err(err).
				Str("server", servers[i].URL).
				Msg("Session poll failed")
			continue
		}

		for j := range sessions {
			session := &sessions[j]
			if session.NowPlayingItem == nil {
				continue
			}

			created, err := t.db.InsertPlaybackRecord(ctx, models.PlaybackRecord{
				ServerURL: servers[i].URL,
				AccountID: session.UserID,
				ItemID:    session.NowPlayingItem.ID,
				ItemName:  session.NowPlayingItem.Name,
				ItemType:  session.NowPlayingItem.Type,
				PlayedAt:  hourKey,
			})
			if err != nil {
				logging.Error().
					Err(err).
					Str("server", servers[i].URL).
					Msg("Failed to record session playback")
				continue
			}
			if created {
				tracked++
				metrics.SessionsTracked.WithLabelValues(servers[i].URL).Inc()
			}
		}
	}

	if tracked > 0 {
		logging.Debug().Int("tracked", tracked).Msg("Recorded live sessions")
	}
	return tracked
}

// Run polls on the configured interval until ctx is canceled.
func (t *SessionTracker) Run(ctx context.Context) error {
	if !t.cfg.Enabled {
		logging.Info().Msg("Session tracking disabled, tracker idle")
		<-ctx.Done()
		return ctx.Err()
	}

	logging.Info().Dur("interval", t.cfg.Interval).Msg("Session tracker started")

	ticker := time.NewTicker(t.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Session tracker stopping")
			return ctx.Err()
		case <-ticker.C:
			t.TrackOnce(ctx)
		}
	}
}
