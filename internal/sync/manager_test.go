// FinScope - Jellyfin Playback Analytics Dashboard
// Copyright 2026 FinScope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/finscope/finscope

package sync

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/finscope/finscope/internal/config"
	"github.com/finscope/finscope/internal/database"
	"github.com/finscope/finscope/internal/models"
)

// fakeJellyfin is an httptest-backed Jellyfin endpoint serving a mutable
// played-item history for a single user.
type fakeJellyfin struct {
	srv      *httptest.Server
	items    atomic.Value // []models.JellyfinItem, descending by DatePlayed
	sessions atomic.Value // []models.JellyfinSession
	requests atomic.Int64
}

func newFakeJellyfin(t *testing.T) *fakeJellyfin {
	t.Helper()
	f := &fakeJellyfin{}
	f.items.Store([]models.JellyfinItem{})
	f.sessions.Store([]models.JellyfinSession{})

	mux := http.NewServeMux()
	mux.HandleFunc("/Users", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode([]models.JellyfinUser{{ID: "u1", Name: "Alice"}})
	})
	mux.HandleFunc("/Users/u1/Items", func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)
		items := f.items.Load().([]models.JellyfinItem)
		start, _ := strconv.Atoi(r.URL.Query().Get("StartIndex"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("Limit"))
		end := start + limit
		if end > len(items) {
			end = len(items)
		}
		page := []models.JellyfinItem{}
		if start < len(items) {
			page = items[start:end]
		}
		_ = json.NewEncoder(w).Encode(models.JellyfinItemsPage{
			Items:            page,
			TotalRecordCount: len(items),
			StartIndex:       start,
		})
	})
	mux.HandleFunc("/Sessions", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(f.sessions.Load().([]models.JellyfinSession))
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeJellyfin) setItems(items []models.JellyfinItem) { f.items.Store(items) }

func (f *fakeJellyfin) setSessions(sessions []models.JellyfinSession) { f.sessions.Store(sessions) }

func testSyncConfig() config.SyncConfig {
	return config.SyncConfig{
		Enabled:     true,
		Interval:    time.Hour,
		PageSize:    500,
		HTTPTimeout: 5 * time.Second,
	}
}

func registerTestServer(t *testing.T, db *database.DB, url string) *models.MediaServer {
	t.Helper()
	server, err := db.CreateMediaServer(context.Background(), models.MediaServer{
		ID:      uuid.NewString(),
		Name:    "Test Jellyfin",
		URL:     url,
		APIKey:  "test-key",
		UserID:  "u1",
		Enabled: true,
	})
	checkNoError(t, "CreateMediaServer", err)
	return server
}

func TestTriggerSync(t *testing.T) {
	db := newTestStore(t)
	upstream := newFakeJellyfin(t)
	upstream.setItems([]models.JellyfinItem{
		{ID: "b", Name: "B", Type: "Movie", DatePlayed: "2026-08-02T10:00:00Z"},
		{ID: "a", Name: "A", Type: "Movie", DatePlayed: "2026-08-01T10:00:00Z"},
	})

	manager := NewManager(db, testSyncConfig(), nil)
	server := registerTestServer(t, db, upstream.srv.URL)

	result, err := manager.TriggerSync(context.Background(), server.ID, false)
	checkNoError(t, "TriggerSync", err)
	checkInt64Equal(t, "NewEntries", result.NewEntries, 2)
	checkInt64Equal(t, "TotalEntries", result.TotalEntries, 2)
	checkIntEqual(t, "AccountsSynced", result.AccountsSynced, 1)
}

func TestTriggerSyncUnknownServer(t *testing.T) {
	db := newTestStore(t)
	manager := NewManager(db, testSyncConfig(), nil)

	_, err := manager.TriggerSync(context.Background(), uuid.NewString(), false)
	if !errors.Is(err, database.ErrServerNotFound) {
		t.Fatalf("expected ErrServerNotFound, got %v", err)
	}
}

func TestTriggerSyncRetriesEmptyResult(t *testing.T) {
	db := newTestStore(t)
	upstream := newFakeJellyfin(t)
	upstream.setItems([]models.JellyfinItem{
		{ID: "a", Name: "A", Type: "Movie", DatePlayed: "2026-08-01T10:00:00Z"},
	})

	manager := NewManager(db, testSyncConfig(), nil)
	server := registerTestServer(t, db, upstream.srv.URL)
	ctx := context.Background()

	// A watermark ahead of all upstream data with an empty store simulates
	// a database wipe that left sync_meta behind. The incremental pass cuts
	// everything off; the manager must retry forced.
	checkNoError(t, "seed stale watermark",
		db.UpsertWatermark(ctx, server.URL, "u1", "2026-08-05T10:00:00Z", 10))

	result, err := manager.TriggerSync(ctx, server.ID, false)
	checkNoError(t, "TriggerSync", err)
	checkInt64Equal(t, "NewEntries", result.NewEntries, 1)
	checkInt64Equal(t, "TotalEntries", result.TotalEntries, 1)
}

func TestTriggerSyncNoRetryWhenStoreNonEmpty(t *testing.T) {
	db := newTestStore(t)
	upstream := newFakeJellyfin(t)
	upstream.setItems([]models.JellyfinItem{
		{ID: "a", Name: "A", Type: "Movie", DatePlayed: "2026-08-01T10:00:00Z"},
	})

	manager := NewManager(db, testSyncConfig(), nil)
	server := registerTestServer(t, db, upstream.srv.URL)
	ctx := context.Background()

	_, err := manager.TriggerSync(ctx, server.ID, false)
	checkNoError(t, "first TriggerSync", err)
	before := upstream.requests.Load()

	// With data in the store an incremental pass that finds nothing new is
	// final; no forced retry, so exactly one history request.
	_, err = manager.TriggerSync(ctx, server.ID, false)
	checkNoError(t, "second TriggerSync", err)
	checkInt64Equal(t, "history requests", upstream.requests.Load()-before, 1)
}

func TestSyncAllSkipsDisabled(t *testing.T) {
	db := newTestStore(t)
	upstream := newFakeJellyfin(t)
	upstream.setItems([]models.JellyfinItem{
		{ID: "a", Name: "A", Type: "Movie", DatePlayed: "2026-08-01T10:00:00Z"},
	})

	manager := NewManager(db, testSyncConfig(), nil)
	server := registerTestServer(t, db, upstream.srv.URL)
	ctx := context.Background()

	checkNoError(t, "disable server", db.SetMediaServerEnabled(ctx, server.ID, false))

	manager.SyncAll(ctx)
	checkInt64Equal(t, "history requests", upstream.requests.Load(), 0)

	total, err := db.CountRecords(ctx, server.URL)
	checkNoError(t, "CountRecords", err)
	checkInt64Equal(t, "records", total, 0)
}

func TestClientForReuse(t *testing.T) {
	db := newTestStore(t)
	manager := NewManager(db, testSyncConfig(), nil)

	server := &models.MediaServer{ID: "s1", URL: "http://jf.local:8096", APIKey: "k"}
	first := manager.ClientFor(server)
	second := manager.ClientFor(server)
	if first != second {
		t.Fatal("expected the same cached client for repeated lookups")
	}

	manager.DropClient(server.URL)
	third := manager.ClientFor(server)
	if third == first {
		t.Fatal("expected a fresh client after DropClient")
	}
}
