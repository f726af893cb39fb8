// FinScope - Jellyfin Playback Analytics Dashboard
// Copyright 2026 FinScope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/finscope/finscope

package sync

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/finscope/finscope/internal/config"
	"github.com/finscope/finscope/internal/database"
	"github.com/finscope/finscope/internal/models"
)

const testServerURL = "http://jf.local:8096"

// fakeClient implements Client with overridable function fields.
type fakeClient struct {
	getUsers       func(ctx context.Context) ([]models.JellyfinUser, error)
	getPlayedItems func(ctx context.Context, accountID string, startIndex, limit int) (*models.JellyfinItemsPage, error)
	getSessions    func(ctx context.Context) ([]models.JellyfinSession, error)
}

func (f *fakeClient) Ping(context.Context) error { return nil }

func (f *fakeClient) GetSystemInfo(context.Context) (*models.JellyfinSystemInfo, error) {
	return &models.JellyfinSystemInfo{ServerName: "fake"}, nil
}

func (f *fakeClient) GetUsers(ctx context.Context) ([]models.JellyfinUser, error) {
	if f.getUsers != nil {
		return f.getUsers(ctx)
	}
	return nil, nil
}

func (f *fakeClient) GetPlayedItems(ctx context.Context, accountID string, startIndex, limit int) (*models.JellyfinItemsPage, error) {
	if f.getPlayedItems != nil {
		return f.getPlayedItems(ctx, accountID, startIndex, limit)
	}
	return &models.JellyfinItemsPage{}, nil
}

func (f *fakeClient) GetActiveSessions(ctx context.Context) ([]models.JellyfinSession, error) {
	if f.getSessions != nil {
		return f.getSessions(ctx)
	}
	return nil, nil
}

func (f *fakeClient) GetLibraryItemsWithGenres(context.Context, string) ([]models.JellyfinLibraryItem, error) {
	return nil, nil
}

func (f *fakeClient) ProxyGet(context.Context, string) (*http.Response, error) {
	return nil, errors.New("not supported")
}

func (f *fakeClient) ImageURL(itemID, imageType string) string { return "" }
func (f *fakeClient) BaseURL() string                          { return testServerURL }

// pagedClient serves a fixed, descending-ordered item list page by page,
// the way Jellyfin answers StartIndex/Limit queries.
func pagedClient(items []models.JellyfinItem) *fakeClient {
	return &fakeClient{
		getPlayedItems: func(_ context.Context, _ string, startIndex, limit int) (*models.JellyfinItemsPage, error) {
			end := startIndex + limit
			if end > len(items) {
				end = len(items)
			}
			page := []models.JellyfinItem{}
			if startIndex < len(items) {
				page = items[startIndex:end]
			}
			return &models.JellyfinItemsPage{Items: page, TotalRecordCount: len(items)}, nil
		},
	}
}

func newTestStore(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(config.DatabaseConfig{Path: ":memory:", BusyTimeout: time.Second})
	checkNoError(t, "open test database", err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func singleAccount() []models.AccountRef {
	return []models.AccountRef{{ID: "user-1", Name: "Alice"}}
}

// newTestEngine builds an engine with a single fetch attempt so failure
// tests return without backoff waits.
func newTestEngine(db *database.DB, pageSize int) *Engine {
	return NewEngine(db, config.SyncConfig{PageSize: pageSize, RetryAttempts: 1})
}

func TestSynchronizeInsertsAll(t *testing.T) {
	db := newTestStore(t)
	engine := newTestEngine(db, 500)
	ctx := context.Background()

	client := pagedClient([]models.JellyfinItem{
		{ID: "c", Name: "C", Type: "Movie", DatePlayed: "2026-08-03T10:00:00Z"},
		{ID: "b", Name: "B", Type: "Movie", DatePlayed: "2026-08-02T10:00:00Z"},
		{ID: "a", Name: "A", Type: "Movie", DatePlayed: "2026-08-01T10:00:00Z"},
	})

	result, err := engine.Synchronize(ctx, client, testServerURL, singleAccount(), false)
	checkNoError(t, "Synchronize", err)
	checkInt64Equal(t, "NewEntries", result.NewEntries, 3)
	checkInt64Equal(t, "TotalEntries", result.TotalEntries, 3)
	checkIntEqual(t, "AccountsSynced", result.AccountsSynced, 1)

	wm, err := db.GetWatermark(ctx, testServerURL, "user-1")
	checkNoError(t, "GetWatermark", err)
	if wm == nil {
		t.Fatal("expected watermark after sync")
	}
	checkStringEqual(t, "watermark", wm.LastSyncedAt, "2026-08-03T10:00:00Z")
	checkInt64Equal(t, "total synced", wm.TotalSynced, 3)
}

func TestSynchronizeIdempotent(t *testing.T) {
	db := newTestStore(t)
	engine := newTestEngine(db, 500)
	ctx := context.Background()

	client := pagedClient([]models.JellyfinItem{
		{ID: "b", Name: "B", Type: "Movie", DatePlayed: "2026-08-02T10:00:00Z"},
		{ID: "a", Name: "A", Type: "Movie", DatePlayed: "2026-08-01T10:00:00Z"},
	})

	first, err := engine.Synchronize(ctx, client, testServerURL, singleAccount(), false)
	checkNoError(t, "first Synchronize", err)
	checkInt64Equal(t, "first NewEntries", first.NewEntries, 2)

	// A second pass over unchanged upstream data inserts nothing.
	second, err := engine.Synchronize(ctx, client, testServerURL, singleAccount(), false)
	checkNoError(t, "second Synchronize", err)
	checkInt64Equal(t, "second NewEntries", second.NewEntries, 0)
	checkInt64Equal(t, "second TotalEntries", second.TotalEntries, 2)
}

func TestWatermarkCutoff(t *testing.T) {
	db := newTestStore(t)
	engine := newTestEngine(db, 500)
	ctx := context.Background()

	// Watermark at T; upstream page holds T+2, T+1, T, T-1 descending.
	checkNoError(t, "seed watermark",
		db.UpsertWatermark(ctx, testServerURL, "user-1", "2026-08-02T10:00:00Z", 0))

	requestedPages := 0
	client := &fakeClient{
		getPlayedItems: func(_ context.Context, _ string, startIndex, limit int) (*models.JellyfinItemsPage, error) {
			requestedPages++
			if startIndex > 0 {
				t.Errorf("pagination continued past cutoff page (start index %d)", startIndex)
			}
			return &models.JellyfinItemsPage{Items: []models.JellyfinItem{
				{ID: "d", Name: "D", Type: "Movie", DatePlayed: "2026-08-04T10:00:00Z"},
				{ID: "c", Name: "C", Type: "Movie", DatePlayed: "2026-08-03T10:00:00Z"},
				{ID: "b", Name: "B", Type: "Movie", DatePlayed: "2026-08-02T10:00:00Z"},
				{ID: "a", Name: "A", Type: "Movie", DatePlayed: "2026-08-01T10:00:00Z"},
			}, TotalRecordCount: 4}, nil
		},
	}

	result, err := engine.Synchronize(ctx, client, testServerURL, singleAccount(), false)
	checkNoError(t, "Synchronize", err)
	checkInt64Equal(t, "NewEntries", result.NewEntries, 2)
	checkIntEqual(t, "requested pages", requestedPages, 1)

	// Only T+2 and T+1 were inserted; T and T-1 were cut off.
	records, err := db.QueryRecords(ctx, testServerURL, "user-1")
	checkNoError(t, "QueryRecords", err)
	checkIntEqual(t, "record count", len(records), 2)
	checkStringEqual(t, "newest record", records[0].ItemID, "d")
	checkStringEqual(t, "second record", records[1].ItemID, "c")

	wm, _ := db.GetWatermark(ctx, testServerURL, "user-1")
	checkStringEqual(t, "watermark", wm.LastSyncedAt, "2026-08-04T10:00:00Z")
}

func TestSyntheticTimestampSkip(t *testing.T) {
	db := newTestStore(t)
	engine := newTestEngine(db, 500)
	engine.now = func() time.Time {
		return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	}
	ctx := context.Background()

	checkNoError(t, "seed watermark",
		db.UpsertWatermark(ctx, testServerURL, "user-1", "2026-08-02T10:00:00Z", 0))

	// A timestampless item sits between new and already-synced items. Its
	// synthetic "now" sorts after the watermark but must neither be
	// inserted nor stop pagination; the cutoff happens at the real
	// timestamp that follows it.
	client := pagedClient([]models.JellyfinItem{
		{ID: "c", Name: "C", Type: "Movie", DatePlayed: "2026-08-03T10:00:00Z"},
		{ID: "x", Name: "X", Type: "Movie"}, // no DatePlayed
		{ID: "b", Name: "B", Type: "Movie", DatePlayed: "2026-08-02T10:00:00Z"},
		{ID: "a", Name: "A", Type: "Movie", DatePlayed: "2026-08-01T10:00:00Z"},
	})

	result, err := engine.Synchronize(ctx, client, testServerURL, singleAccount(), false)
	checkNoError(t, "Synchronize", err)
	checkInt64Equal(t, "NewEntries", result.NewEntries, 1)

	records, _ := db.QueryRecords(ctx, testServerURL, "user-1")
	checkIntEqual(t, "record count", len(records), 1)
	checkStringEqual(t, "inserted record", records[0].ItemID, "c")

	// The synthetic timestamp did not advance the watermark past the real
	// maximum.
	wm, _ := db.GetWatermark(ctx, testServerURL, "user-1")
	checkStringEqual(t, "watermark", wm.LastSyncedAt, "2026-08-03T10:00:00Z")
}

func TestSyntheticTimestampInsertedOnFirstSync(t *testing.T) {
	db := newTestStore(t)
	engine := newTestEngine(db, 500)
	fixedNow := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	engine.now = func() time.Time { return fixedNow }
	ctx := context.Background()

	// Without a watermark there is nothing to cut off against, so
	// timestampless items are kept with the substituted sync time.
	client := pagedClient([]models.JellyfinItem{
		{ID: "b", Name: "B", Type: "Movie", DatePlayed: "2026-08-02T10:00:00Z"},
		{ID: "x", Name: "X", Type: "Movie"}, // no DatePlayed
	})

	result, err := engine.Synchronize(ctx, client, testServerURL, singleAccount(), false)
	checkNoError(t, "Synchronize", err)
	checkInt64Equal(t, "NewEntries", result.NewEntries, 2)

	records, _ := db.QueryRecords(ctx, testServerURL, "user-1")
	checkIntEqual(t, "record count", len(records), 2)
	checkStringEqual(t, "synthetic timestamp", records[0].PlayedAt, "2026-08-30T12:00:00Z")
}

func TestForcedResync(t *testing.T) {
	db := newTestStore(t)
	engine := newTestEngine(db, 500)
	ctx := context.Background()

	items := []models.JellyfinItem{
		{ID: "b", Name: "B", Type: "Movie", DatePlayed: "2026-08-02T10:00:00Z"},
		{ID: "a", Name: "A", Type: "Movie", DatePlayed: "2026-08-01T10:00:00Z"},
	}
	client := pagedClient(items)

	_, err := engine.Synchronize(ctx, client, testServerURL, singleAccount(), false)
	checkNoError(t, "initial Synchronize", err)

	// Forced resync re-walks everything; existing rows are no-ops.
	result, err := engine.Synchronize(ctx, client, testServerURL, singleAccount(), true)
	checkNoError(t, "forced Synchronize", err)
	checkInt64Equal(t, "NewEntries", result.NewEntries, 0)
	checkInt64Equal(t, "TotalEntries", result.TotalEntries, 2)

	// The watermark was rebuilt from the re-walk.
	wm, _ := db.GetWatermark(ctx, testServerURL, "user-1")
	if wm == nil {
		t.Fatal("expected watermark rebuilt after forced resync")
	}
	checkStringEqual(t, "watermark", wm.LastSyncedAt, "2026-08-02T10:00:00Z")
}

func TestForcedResyncClearsAllAccountWatermarks(t *testing.T) {
	db := newTestStore(t)
	engine := newTestEngine(db, 500)
	ctx := context.Background()

	checkNoError(t, "seed watermark user-1",
		db.UpsertWatermark(ctx, testServerURL, "user-1", "2026-08-05T10:00:00Z", 5))
	checkNoError(t, "seed watermark user-2",
		db.UpsertWatermark(ctx, testServerURL, "user-2", "2026-08-05T10:00:00Z", 5))

	// Force with only one account in the list still clears every account's
	// watermark for the endpoint.
	client := pagedClient(nil)
	_, err := engine.Synchronize(ctx, client, testServerURL, singleAccount(), true)
	checkNoError(t, "forced Synchronize", err)

	wm2, err := db.GetWatermark(ctx, testServerURL, "user-2")
	checkNoError(t, "GetWatermark user-2", err)
	if wm2 != nil {
		t.Errorf("expected user-2 watermark cleared, got %+v", wm2)
	}
}

func TestPageFetchFailureIsolatesAccount(t *testing.T) {
	db := newTestStore(t)
	engine := newTestEngine(db, 500)
	ctx := context.Background()

	client := &fakeClient{
		getPlayedItems: func(_ context.Context, accountID string, _, _ int) (*models.JellyfinItemsPage, error) {
			if accountID == "user-1" {
				return nil, errors.New("upstream 502")
			}
			return &models.JellyfinItemsPage{Items: []models.JellyfinItem{
				{ID: "a", Name: "A", Type: "Movie", DatePlayed: "2026-08-01T10:00:00Z"},
			}, TotalRecordCount: 1}, nil
		},
	}

	accounts := []models.AccountRef{
		{ID: "user-1", Name: "Alice"},
		{ID: "user-2", Name: "Bob"},
	}

	// The failing account does not fail the run; the healthy account's
	// records still land.
	result, err := engine.Synchronize(ctx, client, testServerURL, accounts, false)
	checkNoError(t, "Synchronize", err)
	checkInt64Equal(t, "NewEntries", result.NewEntries, 1)
	checkIntEqual(t, "AccountsSynced", result.AccountsSynced, 2)
}

func TestMidPaginationFailureKeepsPartialProgress(t *testing.T) {
	db := newTestStore(t)
	engine := newTestEngine(db, 2)
	ctx := context.Background()

	client := &fakeClient{
		getPlayedItems: func(_ context.Context, _ string, startIndex, _ int) (*models.JellyfinItemsPage, error) {
			if startIndex > 0 {
				return nil, errors.New("upstream timeout")
			}
			return &models.JellyfinItemsPage{Items: []models.JellyfinItem{
				{ID: "d", Name: "D", Type: "Movie", DatePlayed: "2026-08-04T10:00:00Z"},
				{ID: "c", Name: "C", Type: "Movie", DatePlayed: "2026-08-03T10:00:00Z"},
			}, TotalRecordCount: 4}, nil
		},
	}

	result, err := engine.Synchronize(ctx, client, testServerURL, singleAccount(), false)
	checkNoError(t, "Synchronize", err)
	checkInt64Equal(t, "NewEntries", result.NewEntries, 2)

	// The first page's inserts were committed and the watermark reflects
	// them, so the next pass resumes incrementally.
	wm, _ := db.GetWatermark(ctx, testServerURL, "user-1")
	if wm == nil {
		t.Fatal("expected watermark after partial sync")
	}
	checkStringEqual(t, "watermark", wm.LastSyncedAt, "2026-08-04T10:00:00Z")
}

func TestPaginationAcrossPages(t *testing.T) {
	db := newTestStore(t)
	engine := newTestEngine(db, 2)
	ctx := context.Background()

	client := pagedClient([]models.JellyfinItem{
		{ID: "e", Name: "E", Type: "Movie", DatePlayed: "2026-08-05T10:00:00Z"},
		{ID: "d", Name: "D", Type: "Movie", DatePlayed: "2026-08-04T10:00:00Z"},
		{ID: "c", Name: "C", Type: "Movie", DatePlayed: "2026-08-03T10:00:00Z"},
		{ID: "b", Name: "B", Type: "Movie", DatePlayed: "2026-08-02T10:00:00Z"},
		{ID: "a", Name: "A", Type: "Movie", DatePlayed: "2026-08-01T10:00:00Z"},
	})

	result, err := engine.Synchronize(ctx, client, testServerURL, singleAccount(), false)
	checkNoError(t, "Synchronize", err)
	checkInt64Equal(t, "NewEntries", result.NewEntries, 5)
	checkInt64Equal(t, "TotalEntries", result.TotalEntries, 5)
}

func TestWatermarkMonotonicAcrossPasses(t *testing.T) {
	db := newTestStore(t)
	engine := newTestEngine(db, 500)
	ctx := context.Background()

	client := pagedClient([]models.JellyfinItem{
		{ID: "b", Name: "B", Type: "Movie", DatePlayed: "2026-08-02T10:00:00Z"},
	})
	_, err := engine.Synchronize(ctx, client, testServerURL, singleAccount(), false)
	checkNoError(t, "first Synchronize", err)

	// A later pass that only sees older items must not move the watermark
	// backward.
	older := pagedClient([]models.JellyfinItem{
		{ID: "a", Name: "A", Type: "Movie", DatePlayed: "2026-08-01T10:00:00Z"},
	})
	_, err = engine.Synchronize(ctx, older, testServerURL, singleAccount(), false)
	checkNoError(t, "second Synchronize", err)

	wm, _ := db.GetWatermark(ctx, testServerURL, "user-1")
	checkStringEqual(t, "watermark", wm.LastSyncedAt, "2026-08-02T10:00:00Z")
}

func TestResolveAccounts(t *testing.T) {
	ctx := context.Background()

	t.Run("lists all users", func(t *testing.T) {
		client := &fakeClient{
			getUsers: func(context.Context) ([]models.JellyfinUser, error) {
				return []models.JellyfinUser{
					{ID: "u1", Name: "Alice"},
					{ID: "u2", Name: "Bob"},
				}, nil
			},
		}
		accounts := ResolveAccounts(ctx, client, "fallback")
		checkIntEqual(t, "account count", len(accounts), 2)
		checkStringEqual(t, "first account", accounts[0].ID, "u1")
	})

	t.Run("falls back on error", func(t *testing.T) {
		client := &fakeClient{
			getUsers: func(context.Context) ([]models.JellyfinUser, error) {
				return nil, errors.New("403 forbidden")
			},
		}
		accounts := ResolveAccounts(ctx, client, "fallback")
		checkIntEqual(t, "account count", len(accounts), 1)
		checkStringEqual(t, "fallback account", accounts[0].ID, "fallback")
	})

	t.Run("falls back on empty listing", func(t *testing.T) {
		client := &fakeClient{}
		accounts := ResolveAccounts(ctx, client, "fallback")
		checkIntEqual(t, "account count", len(accounts), 1)
		checkStringEqual(t, "fallback account", accounts[0].ID, "fallback")
	})

	t.Run("empty without fallback", func(t *testing.T) {
		client := &fakeClient{}
		accounts := ResolveAccounts(ctx, client, "")
		checkIntEqual(t, "account count", len(accounts), 0)
	})
}

func TestPageFetchRetriesTransientFailure(t *testing.T) {
	db := newTestStore(t)
	engine := NewEngine(db, config.SyncConfig{
		PageSize:      500,
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
	})
	ctx := context.Background()

	paged := pagedClient([]models.JellyfinItem{
		{ID: "a", Name: "A", Type: "Movie", DatePlayed: "2026-08-02T10:00:00Z"},
	})
	attempts := 0
	client := &fakeClient{
		getPlayedItems: func(ctx context.Context, accountID string, startIndex, limit int) (*models.JellyfinItemsPage, error) {
			attempts++
			if attempts < 3 {
				return nil, errors.New("502 bad gateway")
			}
			return paged.getPlayedItems(ctx, accountID, startIndex, limit)
		},
	}

	result, err := engine.Synchronize(ctx, client, testServerURL, singleAccount(), false)
	checkNoError(t, "Synchronize", err)
	checkIntEqual(t, "fetch attempts", attempts, 3)
	checkInt64Equal(t, "NewEntries", result.NewEntries, 1)

	wm, err := db.GetWatermark(ctx, testServerURL, "user-1")
	checkNoError(t, "GetWatermark", err)
	if wm == nil {
		t.Fatal("expected watermark after recovered sync")
	}
	checkStringEqual(t, "watermark", wm.LastSyncedAt, "2026-08-02T10:00:00Z")
}

func TestPageFetchRetriesExhaustedAbortsAccount(t *testing.T) {
	db := newTestStore(t)
	engine := NewEngine(db, config.SyncConfig{
		PageSize:      500,
		RetryAttempts: 2,
		RetryDelay:    time.Millisecond,
	})
	ctx := context.Background()

	attempts := 0
	client := &fakeClient{
		getPlayedItems: func(context.Context, string, int, int) (*models.JellyfinItemsPage, error) {
			attempts++
			return nil, errors.New("502 bad gateway")
		},
	}

	// A persistently failing upstream still only aborts the account, not
	// the sync call.
	result, err := engine.Synchronize(ctx, client, testServerURL, singleAccount(), false)
	checkNoError(t, "Synchronize", err)
	checkIntEqual(t, "fetch attempts", attempts, 2)
	checkInt64Equal(t, "NewEntries", result.NewEntries, 0)
	checkIntEqual(t, "AccountsSynced", result.AccountsSynced, 1)
}
