// FinScope - Jellyfin Playback Analytics Dashboard
// Copyright 2026 FinScope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/finscope/finscope

/*
manager.go - Sync lifecycle orchestration

The Manager owns the periodic sync loop across all registered endpoints,
serializes concurrent sync requests per endpoint, and applies the
empty-result retry policy: a non-forced sync that finds an empty store
gets one forced retry, which covers endpoints whose watermarks outlived
their data.
*/

package sync

import (
	"context"
	gosync "sync"
	"time"

	"github.com/finscope/finscope/internal/cache"
	"github.com/finscope/finscope/internal/config"
	"github.com/finscope/finscope/internal/database"
	"github.com/finscope/finscope/internal/logging"
	"github.com/finscope/finscope/internal/models"
)

// Manager orchestrates history synchronization across registered endpoints.
type Manager struct {
	db     *database.DB
	engine *Engine
	cfg    config.SyncConfig
	cache  *cache.Cache

	mu       gosync.Mutex
	clients  map[string]Client        // keyed by server URL
	inFlight map[string]*gosync.Mutex // per-server sync serialization
}

// NewManager creates a sync manager. cache may be nil; when set it is
// cleared after every completed sync so analytics reflect new data.
func NewManager(db *database.DB, cfg config.SyncConfig, analyticsCache *cache.Cache) *Manager {
	return &Manager{
		db:       db,
		engine:   NewEngine(db, cfg),
		cfg:      cfg,
		cache:    analyticsCache,
		clients:  make(map[string]Client),
		inFlight: make(map[string]*gosync.Mutex),
	}
}

// ClientFor returns the (circuit-breaker wrapped) client for an endpoint,
// creating and caching it on first use. The API layer shares these clients
// for proxying so breaker state is endpoint-wide.
func (m *Manager) ClientFor(server *models.MediaServer) Client {
	m.mu.Lock()
	defer m.mu.Unlock()

	if client, ok := m.clients[server.URL]; ok {
		return client
	}

	client := NewCircuitBreakerClient(NewJellyfinClient(server.URL, server.APIKey, ClientOptions{
		Timeout:   m.cfg.HTTPTimeout,
		RateLimit: m.cfg.RateLimit,
		RateBurst: m.cfg.RateBurst,
	}))
	m.clients[server.URL] = client
	return client
}

// DropClient forgets the cached client for a URL. Called when an endpoint
// is re-registered with new credentials or deleted.
func (m *Manager) DropClient(serverURL string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.clients, serverURL)
}

// syncMutex returns the per-server mutex, creating it on first use.
func (m *Manager) syncMutex(serverURL string) *gosync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mu, ok := m.inFlight[serverURL]; ok {
		return mu
	}
	mu := &gosync.Mutex{}
	m.inFlight[serverURL] = mu
	return mu
}

// TriggerSync runs one synchronization pass for a registered endpoint.
// Concurrent triggers for the same endpoint are serialized. A non-forced
// pass that leaves the store empty is retried once with force, then the
// result of the retry is returned.
func (m *Manager) TriggerSync(ctx context.Context, serverID string, force bool) (models.SyncResult, error) {
	server, err := m.db.GetMediaServer(ctx, serverID)
	if err != nil {
		return models.SyncResult{}, err
	}
	return m.syncServer(ctx, server, force)
}

func (m *Manager) syncServer(ctx context.Context, server *models.MediaServer, force bool) (models.SyncResult, error) {
	mu := m.syncMutex(server.URL)
	mu.Lock()
	defer mu.Unlock()

	client := m.ClientFor(server)
	accounts := ResolveAccounts(ctx, client, server.UserID)

	result, err := m.engine.Synchronize(ctx, client, server.URL, accounts, force)
	if err != nil {
		return result, err
	}

	// An empty store after a non-forced pass usually means a stale
	// watermark is cutting off everything; retry once from scratch.
	if !force && result.TotalEntries == 0 {
		logging.Info().
			Str("server", server.URL).
			Msg("Empty store after incremental sync, retrying with forced resync")
		result, err = m.engine.Synchronize(ctx, client, server.URL, accounts, true)
		if err != nil {
			return result, err
		}
	}

	if m.cache != nil {
		m.cache.Clear()
	}

	return result, nil
}

// SyncAll runs a sync pass over every enabled endpoint. Failures are
// logged per endpoint and do not stop the loop.
func (m *Manager) SyncAll(ctx context.Context) {
	servers, err := m.db.ListMediaServers(ctx)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to list media servers for sync")
		return
	}

	for i := range servers {
		if !servers[i].Enabled {
			continue
		}
		if _, err := m.syncServer(ctx, &servers[i], false); err != nil {
			logging.Error().
				Err(err).
				Str("server", servers[i].URL).
				Msg("Periodic sync failed for endpoint")
		}
	}
}

// Run executes the periodic sync loop until ctx is canceled. An initial
// pass runs immediately on startup.
func (m *Manager) Run(ctx context.Context) error {
	if !m.cfg.Enabled {
		logging.Info().Msg("Periodic sync disabled, sync manager idle")
		<-ctx.Done()
		return ctx.Err()
	}

	logging.Info().Dur("interval", m.cfg.Interval).Msg("Sync manager started")
	m.SyncAll(ctx)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Sync manager stopping")
			return ctx.Err()
		case <-ticker.C:
			m.SyncAll(ctx)
		}
	}
}
