// FinScope - Jellyfin Playback Analytics Dashboard
// Copyright 2026 FinScope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/finscope/finscope

package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/finscope/finscope/internal/logging"
	"github.com/finscope/finscope/internal/models"
)

// ModeNone disables authentication entirely; ModeToken requires a valid
// API token on every request.
const (
	ModeNone  = "none"
	ModeToken = "token"
)

// Middleware returns a chi-compatible middleware enforcing the configured
// auth mode. Tokens are accepted from the Authorization header
// ("Bearer fs_...") or, as a fallback, from a ?token= query parameter.
// The query fallback exists for <img> tags and other contexts that cannot
// set headers.
func (m *Manager) Middleware(mode string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if mode == ModeNone {
				next.ServeHTTP(w, r)
				return
			}

			presented := extractToken(r)
			if _, err := m.Verify(r.Context(), presented); err != nil {
				logging.Warn().
					Str("path", r.URL.Path).
					Str("remote", r.RemoteAddr).
					Msg("Rejected unauthenticated request")
				writeUnauthorized(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractToken pulls the token from the Authorization header or the
// token query parameter.
func extractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return r.URL.Query().Get("token")
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(models.APIResponse{
		Status: "error",
		Error: &models.APIError{
			Code:    "AUTHENTICATION_ERROR",
			Message: "Missing or invalid API token",
		},
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
	})
}
