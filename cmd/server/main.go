// FinScope - Jellyfin Playback Analytics Dashboard
// Copyright 2026 FinScope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/finscope/finscope

// Package main is the entry point for the FinScope server.
//
// FinScope is a self-hosted playback analytics dashboard for Jellyfin.
// It synchronizes playback history from one or more Jellyfin endpoints
// into a local SQLite store and serves aggregated analytics, live
// session tracking, and a credential-hiding Jellyfin proxy over a REST
// API.
//
// # Startup order
//
//  1. Configuration: Koanf v2 layered loading (defaults, config.yaml,
//     environment variables)
//  2. Logging: zerolog, JSON or console format
//  3. Database: SQLite with WAL journaling
//  4. Sync manager and session tracker
//  5. HTTP server behind a suture supervision tree
//
// # Configuration
//
// Environment variables cover the common deployment knobs:
//
//	export JELLYFIN_ENABLED=true
//	export JELLYFIN_URL=http://localhost:8096
//	export JELLYFIN_API_KEY=your-api-key
//	export DB_PATH=/data/finscope.db
//	export AUTH_MODE=none   # or token + BOOTSTRAP_TOKEN
//	./finscope
//
// Additional endpoints can be registered at runtime through
// POST /api/v1/servers.
//
// # Signal handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the HTTP server drains
// in-flight requests, the sync loops stop at the next safe point, and
// the database closes last.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/finscope/finscope/internal/api"
	"github.com/finscope/finscope/internal/auth"
	"github.com/finscope/finscope/internal/cache"
	"github.com/finscope/finscope/internal/config"
	"github.com/finscope/finscope/internal/database"
	"github.com/finscope/finscope/internal/logging"
	"github.com/finscope/finscope/internal/models"
	"github.com/finscope/finscope/internal/supervisor"
	"github.com/finscope/finscope/internal/supervisor/services"
	syncpkg "github.com/finscope/finscope/internal/sync"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("auth_mode", cfg.Security.AuthMode).
		Bool("jellyfin_configured", cfg.Jellyfin.Enabled).
		Msg("Starting FinScope")

	db, err := database.New(cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A statically configured endpoint is upserted at startup so a plain
	// docker-compose deployment needs no registration call.
	if cfg.Jellyfin.Enabled {
		registerConfiguredEndpoint(ctx, db, cfg)
	}

	analyticsCache := cache.New(cfg.Cache.TTL)
	syncManager := syncpkg.NewManager(db, cfg.Sync, analyticsCache)
	tracker := syncpkg.NewSessionTracker(db, syncManager, cfg.Tracker)
	authManager := auth.NewManager(db, cfg.Security.BootstrapToken)

	handler := api.NewHandler(db, syncManager, authManager, cfg, analyticsCache)
	router := api.NewRouter(handler, authManager, cfg)

	httpServer := &http.Server{
		Addr:         cfg.Server.ListenAddr(),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  2 * cfg.Server.Timeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddWorkerService(services.NewRunnerService(syncManager, "sync-manager"))
	tree.AddWorkerService(services.NewRunnerService(tracker, "session-tracker"))
	tree.AddAPIService(services.NewHTTPServerService(httpServer, 10*time.Second))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", httpServer.Addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
	}

	logging.Info().Msg("FinScope stopped gracefully")
}

// registerConfiguredEndpoint upserts the statically configured Jellyfin
// endpoint. Failure is non-fatal; the endpoint can still be registered
// through the API once reachable.
func registerConfiguredEndpoint(ctx context.Context, db *database.DB, cfg *config.Config) {
	name := cfg.Jellyfin.Name
	if name == "" {
		name = "Jellyfin"
	}

	server, err := db.CreateMediaServer(ctx, models.MediaServer{
		Name:    name,
		URL:     cfg.Jellyfin.URL,
		APIKey:  cfg.Jellyfin.APIKey,
		UserID:  cfg.Jellyfin.UserID,
		Enabled: true,
	})
	if err != nil {
		logging.Error().Err(err).Str("url", cfg.Jellyfin.URL).Msg("Failed to register configured Jellyfin endpoint")
		return
	}
	logging.Info().
		Str("server", server.URL).
		Str("name", server.Name).
		Msg("Registered configured Jellyfin endpoint")
}
