// FinScope - Jellyfin Playback Analytics Dashboard
// Copyright 2026 FinScope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/finscope/finscope

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/finscope/finscope/internal/analytics"
	"github.com/finscope/finscope/internal/cache"
	"github.com/finscope/finscope/internal/database"
	"github.com/finscope/finscope/internal/models"
	syncpkg "github.com/finscope/finscope/internal/sync"
)

// TriggerSync runs a synchronization pass for one endpoint. ?force=true
// clears the endpoint's watermarks first so the full history is re-walked.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	server, err := h.serverParam(r)
	if errors.Is(err, database.ErrServerNotFound) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "unknown server id", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "failed to resolve server", err)
		return
	}

	force := r.URL.Query().Get("force") == "true"

	start := time.Now()
	result, err := h.sync.TriggerSync(r.Context(), server.ID, force)
	if err != nil {
		respondError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "synchronization failed", err)
		return
	}

	respondSuccess(w, http.StatusOK, result, time.Since(start))
}

// Analytics returns the day and hour play histograms for an endpoint.
// Results are cached until the TTL expires or a sync completes.
func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	server, err := h.serverParam(r)
	if errors.Is(err, database.ErrServerNotFound) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "unknown server id", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "failed to resolve server", err)
		return
	}

	cacheKey := cache.GenerateKey("analytics", map[string]interface{}{"server": server.URL})
	if cached, ok := h.cache.Get(cacheKey); ok {
		respondCached(w, cached)
		return
	}

	start := time.Now()
	summary, err := h.aggregator.Summary(r.Context(), server.URL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "failed to aggregate history", err)
		return
	}

	h.cache.Set(cacheKey, summary)
	respondSuccess(w, http.StatusOK, summary, time.Since(start))
}

// Pulse returns a lightweight snapshot of the stored history: database
// size, total entries, and the most recent sync time.
func (h *Handler) Pulse(w http.ResponseWriter, r *http.Request) {
	server, err := h.serverParam(r)
	if errors.Is(err, database.ErrServerNotFound) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "unknown server id", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "failed to resolve server", err)
		return
	}

	start := time.Now()

	size := h.db.FileSize()
	total, err := h.db.CountRecords(r.Context(), server.URL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "failed to count history", err)
		return
	}
	lastSync, err := h.db.LastSyncTime(r.Context(), server.URL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "failed to read sync state", err)
		return
	}

	respondSuccess(w, http.StatusOK, models.PulseStats{
		DBSizeBytes:         size,
		TotalHistoryEntries: total,
		LastSyncTime:        lastSync,
	}, time.Since(start))
}

// Genres returns the endpoint's most common library genres with
// percentages. The listing comes straight from Jellyfin and is cached.
func (h *Handler) Genres(w http.ResponseWriter, r *http.Request) {
	server, err := h.serverParam(r)
	if errors.Is(err, database.ErrServerNotFound) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "unknown server id", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "failed to resolve server", err)
		return
	}

	cacheKey := cache.GenerateKey("genres", map[string]interface{}{"server": server.URL})
	if cached, ok := h.cache.Get(cacheKey); ok {
		respondCached(w, cached)
		return
	}

	client := h.sync.ClientFor(server)
	accounts := syncpkg.ResolveAccounts(r.Context(), client, server.UserID)
	if len(accounts) == 0 {
		respondError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "no account available for genre listing", nil)
		return
	}

	start := time.Now()
	items, err := client.GetLibraryItemsWithGenres(r.Context(), accounts[0].ID)
	if err != nil {
		respondError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "failed to fetch library genres", err)
		return
	}

	genres := analytics.TopGenres(items, 0)
	h.cache.Set(cacheKey, genres)
	respondSuccess(w, http.StatusOK, genres, time.Since(start))
}
