// FinScope - Jellyfin Playback Analytics Dashboard
// Copyright 2026 FinScope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/finscope/finscope

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/finscope/finscope/internal/auth"
	"github.com/finscope/finscope/internal/config"
	"github.com/finscope/finscope/internal/middleware"
)

// Router wires handlers and middleware into the HTTP routing tree.
type Router struct {
	handler *Handler
	auth    *auth.Manager
	cfg     *config.Config
}

// NewRouter creates the API router.
func NewRouter(handler *Handler, authMgr *auth.Manager, cfg *config.Config) *Router {
	return &Router{
		handler: handler,
		auth:    authMgr,
		cfg:     cfg,
	}
}

// Setup builds the chi routing tree.
//
// Health endpoints and /metrics stay outside authentication so probes and
// scrapers work without credentials. Everything under /api/v1 goes through
// the configured auth mode; sync triggers get a stricter rate limit
// because each one fans out into upstream pagination.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   router.cfg.Security.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(middleware.PrometheusMetrics)
		r.Get("/", router.handler.Health)
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.PrometheusMetrics)
		if !router.cfg.Security.RateLimitDisabled {
			r.Use(httprate.LimitByIP(
				router.cfg.Security.RateLimitReqs,
				router.cfg.Security.RateLimitWindow,
			))
		}
		r.Use(router.auth.Middleware(router.cfg.Security.AuthMode))

		r.Route("/servers", func(r chi.Router) {
			r.Post("/", router.handler.RegisterServer)
			r.Get("/", router.handler.ListServers)
			r.Delete("/{id}", router.handler.DeleteServer)
		})

		r.Route("/history", func(r chi.Router) {
			// One sync per enabled endpoint per few seconds is plenty.
			r.With(httprate.LimitByIP(10, time.Minute)).
				Post("/sync", router.handler.TriggerSync)
			r.Get("/analytics", router.handler.Analytics)
			r.Get("/pulse", router.handler.Pulse)
		})

		r.Get("/genres", router.handler.Genres)

		r.Get("/jellyfin", router.handler.JellyfinProxy)
		r.Get("/jellyfin/image", router.handler.JellyfinImage)

		r.Route("/tokens", func(r chi.Router) {
			r.Post("/", router.handler.CreateToken)
			r.Get("/", router.handler.ListTokens)
			r.Delete("/{id}", router.handler.RevokeToken)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
