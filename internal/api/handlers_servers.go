// FinScope - Jellyfin Playback Analytics Dashboard
// Copyright 2026 FinScope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/finscope/finscope

package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/finscope/finscope/internal/database"
	"github.com/finscope/finscope/internal/logging"
	"github.com/finscope/finscope/internal/models"
	syncpkg "github.com/finscope/finscope/internal/sync"
)

// RegisterServer validates and registers a Jellyfin endpoint. Registration
// is an upsert keyed by URL, so re-posting an existing URL rotates its
// credentials in place.
func (h *Handler) RegisterServer(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterServerRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body", err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondJSON(w, http.StatusBadRequest, &models.APIResponse{
			Status:   "error",
			Metadata: models.Metadata{Timestamp: time.Now().UTC()},
			Error:    apiErr,
		})
		return
	}

	req.URL = strings.TrimSuffix(req.URL, "/")

	// Reach the endpoint before persisting anything; bad URLs and revoked
	// API keys fail here.
	client := syncpkg.NewJellyfinClient(req.URL, req.APIKey, syncpkg.ClientOptions{
		Timeout: h.config.Sync.HTTPTimeout,
	})
	info, err := client.GetSystemInfo(r.Context())
	if err != nil {
		respondError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "jellyfin endpoint validation failed", err)
		return
	}

	name := req.Name
	if name == "" {
		name = info.ServerName
	}

	userID := req.UserID
	if userID == "" {
		// Without a configured account, remember the first listed user as
		// the fallback for endpoints that refuse /Users during sync.
		if users, usersErr := client.GetUsers(r.Context()); usersErr == nil && len(users) > 0 {
			userID = users[0].ID
		}
	}

	server, err := h.db.CreateMediaServer(r.Context(), models.MediaServer{
		Name:    name,
		URL:     req.URL,
		APIKey:  req.APIKey,
		UserID:  userID,
		Enabled: true,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "failed to register server", err)
		return
	}

	// Drop any cached client so rotated credentials take effect.
	h.sync.DropClient(server.URL)

	logging.Info().
		Str("server", server.URL).
		Str("name", server.Name).
		Msg("Registered Jellyfin endpoint")

	respondSuccess(w, http.StatusCreated, server, 0)
}

// ListServers returns all registered endpoints. API keys are never
// serialized.
func (h *Handler) ListServers(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	servers, err := h.db.ListMediaServers(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "failed to list servers", err)
		return
	}
	respondSuccess(w, http.StatusOK, servers, time.Since(start))
}

// DeleteServer removes a registered endpoint. Its playback history is
// kept; re-registering the same URL resumes from the existing watermarks.
func (h *Handler) DeleteServer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	server, err := h.db.GetMediaServer(r.Context(), id)
	if errors.Is(err, database.ErrServerNotFound) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "unknown server id", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "failed to load server", err)
		return
	}

	if err := h.db.DeleteMediaServer(r.Context(), id); err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "failed to delete server", err)
		return
	}
	h.sync.DropClient(server.URL)

	respondSuccess(w, http.StatusOK, map[string]string{"deleted": id}, 0)
}
