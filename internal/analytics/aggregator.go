// FinScope - Jellyfin Playback Analytics Dashboard
// Copyright 2026 FinScope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/finscope/finscope

/*
aggregator.go - Playback history aggregation

Reduces an endpoint's stored playback timestamps into the dashboard's
day and hour-of-day histograms. Timestamps are bucketed in the UTC
offset they were recorded with; no timezone conversion is applied, so
the same stored rows always produce the same histograms.
*/

package analytics

import (
	"context"
	"time"

	"github.com/finscope/finscope/internal/database"
	"github.com/finscope/finscope/internal/logging"
	"github.com/finscope/finscope/internal/metrics"
	"github.com/finscope/finscope/internal/models"
)

// Store is the persistence surface the aggregator reads from.
type Store interface {
	QueryPlayedTimestamps(ctx context.Context, serverURL string) ([]string, error)
}

var _ Store = (*database.DB)(nil)

// Aggregator computes playback analytics from stored history.
type Aggregator struct {
	store Store
}

// NewAggregator creates an analytics aggregator over the given store.
func NewAggregator(store Store) *Aggregator {
	return &Aggregator{store: store}
}

// Summary builds the day and hour histograms for an endpoint.
//
// Every stored row counts toward TotalPlays. Rows whose timestamp does
// not parse are excluded from both histograms but still counted, so the
// dashboard's total reflects the store and the histograms reflect only
// what could be bucketed.
func (a *Aggregator) Summary(ctx context.Context, serverURL string) (*models.AnalyticsSummary, error) {
	timestamps, err := a.store.QueryPlayedTimestamps(ctx, serverURL)
	if err != nil {
		return nil, err
	}

	summary := &models.AnalyticsSummary{
		DayHistogram: make(map[string]int),
	}

	parseErrors := 0
	for _, ts := range timestamps {
		summary.TotalPlays++

		t, parseErr := time.Parse(time.RFC3339, ts)
		if parseErr != nil {
			parseErrors++
			metrics.AnalyticsParseErrors.Inc()
			continue
		}

		summary.DayHistogram[t.Format("2006-01-02")]++
		summary.HourHistogram[t.Hour()]++
	}

	if parseErrors > 0 {
		logging.Warn().
			Str("server", serverURL).
			Int("parse_errors", parseErrors).
			Int("total_plays", summary.TotalPlays).
			Msg("Skipped unparseable playback timestamps in histograms")
	}

	return summary, nil
}
