// FinScope - Jellyfin Playback Analytics Dashboard
// Copyright 2026 FinScope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/finscope/finscope

package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/finscope/finscope/internal/database"
	"github.com/finscope/finscope/internal/logging"
)

// proxyDeniedPrefixes are Jellyfin API areas the passthrough never
// forwards to, regardless of the caller's FinScope permissions.
var proxyDeniedPrefixes = []string{
	"/System/Configuration",
	"/Users/New",
	"/Auth",
}

// JellyfinProxy forwards a GET request to the endpoint's Jellyfin API and
// streams the response back. The upstream API key is attached server-side
// so it never reaches the browser.
func (h *Handler) JellyfinProxy(w http.ResponseWriter, r *http.Request) {
	server, err := h.serverParam(r)
	if errors.Is(err, database.ErrServerNotFound) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "unknown server id", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "failed to resolve server", err)
		return
	}

	endpoint := r.URL.Query().Get("endpoint")
	if endpoint == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "endpoint parameter is required", nil)
		return
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	for _, denied := range proxyDeniedPrefixes {
		if strings.HasPrefix(endpoint, denied) {
			respondError(w, http.StatusForbidden, "AUTHORIZATION_ERROR", "endpoint not allowed through proxy", nil)
			return
		}
	}

	client := h.sync.ClientFor(server)
	resp, err := client.ProxyGet(r.Context(), endpoint)
	if err != nil {
		respondError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "jellyfin request failed", err)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		logging.Warn().Err(err).Str("endpoint", sanitizeLogValue(endpoint)).Msg("Proxy response copy interrupted")
	}
}

// JellyfinImage proxies an item's artwork. Responses carry a one-day
// Cache-Control header so browsers do not refetch poster grids.
func (h *Handler) JellyfinImage(w http.ResponseWriter, r *http.Request) {
	server, err := h.serverParam(r)
	if errors.Is(err, database.ErrServerNotFound) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "unknown server id", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "failed to resolve server", err)
		return
	}

	itemID := r.URL.Query().Get("itemId")
	if itemID == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "itemId parameter is required", nil)
		return
	}
	imageType := r.URL.Query().Get("type")

	client := h.sync.ClientFor(server)
	resp, err := client.ProxyGet(r.Context(), imagePath(itemID, imageType))
	if err != nil {
		respondError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "image fetch failed", err)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "image not found", nil)
		return
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, resp.Body); err != nil {
		logging.Warn().Err(err).Str("item", sanitizeLogValue(itemID)).Msg("Image response copy interrupted")
	}
}

// imagePath builds the Jellyfin image endpoint path.
func imagePath(itemID, imageType string) string {
	if imageType == "" {
		imageType = "Primary"
	}
	return "/Items/" + itemID + "/Images/" + imageType
}
