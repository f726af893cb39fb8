// FinScope - Jellyfin Playback Analytics Dashboard
// Copyright 2026 FinScope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/finscope/finscope

package analytics

import (
	"math"
	"sort"

	"github.com/finscope/finscope/internal/models"
)

// defaultTopGenres is how many genres the dashboard chart shows.
const defaultTopGenres = 8

// TopGenres reduces a library listing to its most common genres. Items
// without genre tags are excluded from both the counts and the
// percentage base. limit <= 0 falls back to the dashboard default.
func TopGenres(items []models.JellyfinLibraryItem, limit int) []models.GenreCount {
	if limit <= 0 {
		limit = defaultTopGenres
	}

	counts := make(map[string]int)
	taggedItems := 0
	for i := range items {
		if len(items[i].Genres) == 0 {
			continue
		}
		taggedItems++
		for _, genre := range items[i].Genres {
			counts[genre]++
		}
	}

	if taggedItems == 0 {
		return []models.GenreCount{}
	}

	genres := make([]models.GenreCount, 0, len(counts))
	for name, count := range counts {
		genres = append(genres, models.GenreCount{
			Name:  name,
			Count: count,
			Pct:   math.Round(float64(count) / float64(taggedItems) * 100),
		})
	}

	sort.Slice(genres, func(i, j int) bool {
		if genres[i].Count != genres[j].Count {
			return genres[i].Count > genres[j].Count
		}
		return genres[i].Name < genres[j].Name
	})

	if len(genres) > limit {
		genres = genres[:limit]
	}
	return genres
}
