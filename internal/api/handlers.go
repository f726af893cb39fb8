// FinScope - Jellyfin Playback Analytics Dashboard
// Copyright 2026 FinScope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/finscope/finscope

// Package api provides the HTTP surface of FinScope: endpoint
// registration, sync triggers, analytics, the Jellyfin passthrough
// proxy, and API token management.
//
// Handler methods are split across files:
//   - handlers.go: Handler struct and constructor (this file)
//   - handlers_health.go: health and readiness endpoints
//   - handlers_servers.go: Jellyfin endpoint registration
//   - handlers_history.go: sync trigger, analytics, pulse, genres
//   - handlers_proxy.go: Jellyfin GET passthrough and image proxy
//   - handlers_tokens.go: API token management
package api

import (
	"time"

	"github.com/finscope/finscope/internal/analytics"
	"github.com/finscope/finscope/internal/auth"
	"github.com/finscope/finscope/internal/cache"
	"github.com/finscope/finscope/internal/config"
	"github.com/finscope/finscope/internal/database"
	syncpkg "github.com/finscope/finscope/internal/sync"
)

// Handler contains dependencies for API handlers.
type Handler struct {
	db         *database.DB
	sync       *syncpkg.Manager
	aggregator *analytics.Aggregator
	auth       *auth.Manager
	config     *config.Config
	cache      *cache.Cache
	startTime  time.Time
}

// NewHandler creates the API handler. cache may be shared with the sync
// manager so completed syncs invalidate cached analytics.
func NewHandler(db *database.DB, syncMgr *syncpkg.Manager, authMgr *auth.Manager, cfg *config.Config, c *cache.Cache) *Handler {
	return &Handler{
		db:         db,
		sync:       syncMgr,
		aggregator: analytics.NewAggregator(db),
		auth:       authMgr,
		config:     cfg,
		cache:      c,
		startTime:  time.Now(),
	}
}
