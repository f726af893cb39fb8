// FinScope - Jellyfin Playback Analytics Dashboard
// Copyright 2026 FinScope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/finscope/finscope

package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/finscope/finscope/internal/config"
	"github.com/finscope/finscope/internal/database"
	"github.com/finscope/finscope/internal/models"
)

const testServerURL = "http://jf.local:8096"

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(config.DatabaseConfig{Path: ":memory:", BusyTimeout: time.Second})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func insertPlay(t *testing.T, db *database.DB, itemID, playedAt string) {
	t.Helper()
	created, err := db.InsertPlaybackRecord(context.Background(), models.PlaybackRecord{
		ServerURL: testServerURL,
		AccountID: "u1",
		ItemID:    itemID,
		ItemName:  "Item " + itemID,
		ItemType:  "Movie",
		PlayedAt:  playedAt,
	})
	if err != nil {
		t.Fatalf("insert playback record: %v", err)
	}
	if !created {
		t.Fatalf("playback record %s/%s already existed", itemID, playedAt)
	}
}

func TestSummary(t *testing.T) {
	db := newTestDB(t)
	insertPlay(t, db, "a", "2024-01-01T20:00:00Z")
	insertPlay(t, db, "b", "2024-01-01T20:30:00Z")
	insertPlay(t, db, "c", "2024-01-02T05:00:00Z")

	summary, err := NewAggregator(db).Summary(context.Background(), testServerURL)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}

	if summary.TotalPlays != 3 {
		t.Errorf("TotalPlays = %d, want 3", summary.TotalPlays)
	}
	if got := summary.DayHistogram["2024-01-01"]; got != 2 {
		t.Errorf("DayHistogram[2024-01-01] = %d, want 2", got)
	}
	if got := summary.DayHistogram["2024-01-02"]; got != 1 {
		t.Errorf("DayHistogram[2024-01-02] = %d, want 1", got)
	}
	if len(summary.DayHistogram) != 2 {
		t.Errorf("DayHistogram has %d days, want 2", len(summary.DayHistogram))
	}
	if summary.HourHistogram[20] != 2 {
		t.Errorf("HourHistogram[20] = %d, want 2", summary.HourHistogram[20])
	}
	if summary.HourHistogram[5] != 1 {
		t.Errorf("HourHistogram[5] = %d, want 1", summary.HourHistogram[5])
	}
}

func TestSummaryDeterministic(t *testing.T) {
	db := newTestDB(t)
	insertPlay(t, db, "a", "2024-01-01T20:00:00Z")
	insertPlay(t, db, "b", "2024-01-02T05:00:00Z")

	agg := NewAggregator(db)
	first, err := agg.Summary(context.Background(), testServerURL)
	if err != nil {
		t.Fatalf("first Summary: %v", err)
	}
	second, err := agg.Summary(context.Background(), testServerURL)
	if err != nil {
		t.Fatalf("second Summary: %v", err)
	}

	if first.TotalPlays != second.TotalPlays {
		t.Errorf("TotalPlays changed between runs: %d vs %d", first.TotalPlays, second.TotalPlays)
	}
	for day, count := range first.DayHistogram {
		if second.DayHistogram[day] != count {
			t.Errorf("DayHistogram[%s] changed between runs: %d vs %d", day, count, second.DayHistogram[day])
		}
	}
	if first.HourHistogram != second.HourHistogram {
		t.Errorf("HourHistogram changed between runs")
	}
}

func TestSummaryBucketsInStoredOffset(t *testing.T) {
	db := newTestDB(t)
	// 23:30 in a -05:00 offset would be 04:30 UTC the next day; the
	// histogram keeps the record's own stated clock time.
	insertPlay(t, db, "a", "2024-01-01T23:30:00-05:00")

	summary, err := NewAggregator(db).Summary(context.Background(), testServerURL)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}

	if got := summary.DayHistogram["2024-01-01"]; got != 1 {
		t.Errorf("DayHistogram[2024-01-01] = %d, want 1", got)
	}
	if summary.HourHistogram[23] != 1 {
		t.Errorf("HourHistogram[23] = %d, want 1", summary.HourHistogram[23])
	}
}

func TestSummaryFractionalSeconds(t *testing.T) {
	db := newTestDB(t)
	insertPlay(t, db, "a", "2024-01-01T20:00:00.1234567Z")

	summary, err := NewAggregator(db).Summary(context.Background(), testServerURL)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary.HourHistogram[20] != 1 {
		t.Errorf("HourHistogram[20] = %d, want 1", summary.HourHistogram[20])
	}
}

func TestSummaryToleratesUnparseableTimestamps(t *testing.T) {
	db := newTestDB(t)
	insertPlay(t, db, "a", "2024-01-01T20:00:00Z")
	insertPlay(t, db, "b", "not-a-timestamp")

	summary, err := NewAggregator(db).Summary(context.Background(), testServerURL)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}

	// The broken row counts toward the total but appears in no histogram.
	if summary.TotalPlays != 2 {
		t.Errorf("TotalPlays = %d, want 2", summary.TotalPlays)
	}
	dayTotal := 0
	for _, count := range summary.DayHistogram {
		dayTotal += count
	}
	if dayTotal != 1 {
		t.Errorf("day histogram totals %d plays, want 1", dayTotal)
	}
	hourTotal := 0
	for _, count := range summary.HourHistogram {
		hourTotal += count
	}
	if hourTotal != 1 {
		t.Errorf("hour histogram totals %d plays, want 1", hourTotal)
	}
}

func TestSummaryEmptyStore(t *testing.T) {
	db := newTestDB(t)

	summary, err := NewAggregator(db).Summary(context.Background(), testServerURL)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}

	if summary.TotalPlays != 0 {
		t.Errorf("TotalPlays = %d, want 0", summary.TotalPlays)
	}
	if summary.DayHistogram == nil || len(summary.DayHistogram) != 0 {
		t.Errorf("expected empty non-nil DayHistogram, got %v", summary.DayHistogram)
	}
	for hour, count := range summary.HourHistogram {
		if count != 0 {
			t.Errorf("HourHistogram[%d] = %d, want 0", hour, count)
		}
	}
}

func TestSummaryScopedToEndpoint(t *testing.T) {
	db := newTestDB(t)
	insertPlay(t, db, "a", "2024-01-01T20:00:00Z")

	otherCreated, err := db.InsertPlaybackRecord(context.Background(), models.PlaybackRecord{
		ServerURL: "http://other.local:8096",
		AccountID: "u1",
		ItemID:    "z",
		ItemName:  "Item z",
		ItemType:  "Movie",
		PlayedAt:  "2024-06-01T10:00:00Z",
	})
	if err != nil || !otherCreated {
		t.Fatalf("insert other-endpoint record: created=%v err=%v", otherCreated, err)
	}

	summary, err := NewAggregator(db).Summary(context.Background(), testServerURL)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary.TotalPlays != 1 {
		t.Errorf("TotalPlays = %d, want 1", summary.TotalPlays)
	}
}

type failingStore struct{}

func (failingStore) QueryPlayedTimestamps(context.Context, string) ([]string, error) {
	return nil, errors.New("disk gone")
}

func TestSummaryStoreError(t *testing.T) {
	_, err := NewAggregator(failingStore{}).Summary(context.Background(), testServerURL)
	if err == nil {
		t.Fatal("expected error from failing store")
	}
}
