// FinScope - Jellyfin Playback Analytics Dashboard
// Copyright 2026 FinScope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/finscope/finscope

/*
engine.go - History synchronization engine

Walks each account's played-item history in descending order, inserting
records the store has not seen and stopping at the account's watermark.
Re-running a sync is always safe: the unique tuple constraint turns
replayed inserts into no-ops and the watermark only moves forward.
*/

package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/finscope/finscope/internal/config"
	"github.com/finscope/finscope/internal/database"
	"github.com/finscope/finscope/internal/logging"
	"github.com/finscope/finscope/internal/metrics"
	"github.com/finscope/finscope/internal/models"
)

// Store is the persistence surface the engine needs.
type Store interface {
	InsertPlaybackBatch(ctx context.Context, records []models.PlaybackRecord) (int64, error)
	GetWatermark(ctx context.Context, serverURL, accountID string) (*models.SyncWatermark, error)
	UpsertWatermark(ctx context.Context, serverURL, accountID, lastSyncedAt string, incrementBy int64) error
	DeleteWatermarks(ctx context.Context, serverURL string) error
	CountRecords(ctx context.Context, serverURL string) (int64, error)
}

var _ Store = (*database.DB)(nil)

// Engine synchronizes playback history from a Jellyfin endpoint into the
// store.
type Engine struct {
	store         Store
	pageSize      int
	retryAttempts int
	retryDelay    time.Duration

	// now is swappable for tests; synthetic timestamps come from here.
	now func() time.Time
}

// NewEngine creates a sync engine. PageSize controls how many items each
// upstream history request asks for; RetryAttempts and RetryDelay govern
// the backoff applied to failing page fetches before the account is
// abandoned.
func NewEngine(store Store, cfg config.SyncConfig) *Engine {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 500
	}
	attempts := cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &Engine{
		store:         store,
		pageSize:      pageSize,
		retryAttempts: attempts,
		retryDelay:    cfg.RetryDelay,
		now:           time.Now,
	}
}

// Synchronize syncs all given accounts of one endpoint.
//
// When force is true, every watermark of the endpoint is deleted first so
// all accounts re-walk their full history; re-inserts of existing tuples
// are no-ops, so NewEntries reflects genuinely new rows only.
//
// Upstream failures abort only the affected account's pagination; store
// failures abort the whole call. Either way the returned SyncResult
// reflects the progress made before the failure.
func (e *Engine) Synchronize(ctx context.Context, client Client, serverURL string, accounts []models.AccountRef, force bool) (models.SyncResult, error) {
	start := e.now()
	var result models.SyncResult

	if force {
		if err := e.store.DeleteWatermarks(ctx, serverURL); err != nil {
			metrics.SyncRunsTotal.WithLabelValues(serverURL, "error").Inc()
			return result, fmt.Errorf("clear watermarks for forced resync: %w", err)
		}
		logging.Info().Str("server", serverURL).Msg("Forced resync: cleared all watermarks")
	}

	for _, account := range accounts {
		inserted, err := e.syncAccount(ctx, client, serverURL, account)
		result.NewEntries += inserted
		if err != nil {
			// Store failure: fatal for the whole call, partial progress kept.
			metrics.SyncRunsTotal.WithLabelValues(serverURL, "error").Inc()
			return result, fmt.Errorf("sync account %s: %w", account.ID, err)
		}
		result.AccountsSynced++
	}

	total, err := e.store.CountRecords(ctx, serverURL)
	if err != nil {
		metrics.SyncRunsTotal.WithLabelValues(serverURL, "error").Inc()
		return result, fmt.Errorf("count records: %w", err)
	}
	result.TotalEntries = total

	metrics.SyncRunsTotal.WithLabelValues(serverURL, "success").Inc()
	metrics.SyncRecordsInserted.WithLabelValues(serverURL).Add(float64(result.NewEntries))
	metrics.SyncDuration.WithLabelValues(serverURL).Observe(e.now().Sub(start).Seconds())

	logging.Info().
		Str("server", serverURL).
		Int64("new_entries", result.NewEntries).
		Int64("total_entries", result.TotalEntries).
		Int("accounts_synced", result.AccountsSynced).
		Msg("History sync completed")

	return result, nil
}

// syncAccount walks one account's history pages. The returned error is
// non-nil only for store failures; upstream page-fetch failures end the
// account's pagination and are reported through logs and metrics.
func (e *Engine) syncAccount(ctx context.Context, client Client, serverURL string, account models.AccountRef) (int64, error) {
	watermark, err := e.store.GetWatermark(ctx, serverURL, account.ID)
	if err != nil {
		return 0, err
	}
	var cutoff string
	if watermark != nil {
		cutoff = watermark.LastSyncedAt
	}

	var (
		inserted   int64
		maxPlayed  string
		startIndex int
		done       bool
	)

	for !done {
		var page *models.JellyfinItemsPage
		fetchErr := e.retryWithBackoff(ctx, func() error {
			var err error
			page, err = client.GetPlayedItems(ctx, account.ID, startIndex, e.pageSize)
			return err
		})
		if fetchErr != nil {
			metrics.SyncPageFetchErrors.WithLabelValues(serverURL).Inc()
			logging.Warn().
				Err(fetchErr).
				Str("server", serverURL).
				Str("account", account.Name).
				Int("start_index", startIndex).
				Msg("History page fetch failed, aborting account")
			break
		}

		if startIndex == 0 {
			logging.Debug().
				Str("server", serverURL).
				Str("account", account.Name).
				Int("total_played", page.TotalRecordCount).
				Msg("Starting account history walk")
		}

		if len(page.Items) == 0 {
			break
		}

		batch := make([]models.PlaybackRecord, 0, len(page.Items))
		for i := range page.Items {
			item := &page.Items[i]
			playedAt := item.DatePlayed
			synthetic := playedAt == ""
			if synthetic {
				// Jellyfin often reports items as played without a
				// timestamp; substitute the sync time.
				playedAt = e.now().UTC().Format(time.RFC3339)
			}

			// Timestamps are compared as strings. RFC3339 UTC values of
			// uniform precision order lexicographically; mixed fractional
			// precision only agrees at whole-second granularity.
			if cutoff != "" {
				if !synthetic && playedAt <= cutoff {
					// Reached already-synced territory. Items are in
					// descending order, so everything after this point
					// is older than the watermark.
					done = true
					break
				}
				if synthetic {
					// A substituted timestamp is always "after" the
					// watermark but carries no ordering information;
					// it must neither stop pagination nor be treated
					// as new history.
					continue
				}
			}

			batch = append(batch, models.PlaybackRecord{
				ServerURL: serverURL,
				AccountID: account.ID,
				ItemID:    item.ID,
				ItemName:  item.Name,
				ItemType:  item.Type,
				PlayedAt:  playedAt,
			})
			if playedAt > maxPlayed {
				maxPlayed = playedAt
			}
		}

		n, insErr := e.store.InsertPlaybackBatch(ctx, batch)
		if insErr != nil {
			return inserted, insErr
		}
		inserted += n

		if done || len(page.Items) < e.pageSize {
			break
		}
		startIndex += e.pageSize
	}

	// Advance the watermark only after the inserts above are durable, and
	// only when this pass actually observed a timestamp.
	if maxPlayed != "" {
		if err := e.store.UpsertWatermark(ctx, serverURL, account.ID, maxPlayed, inserted); err != nil {
			return inserted, err
		}
	}

	logging.Info().
		Str("server", serverURL).
		Str("account", account.Name).
		Int64("new_entries", inserted).
		Msg("Account history synced")

	return inserted, nil
}
