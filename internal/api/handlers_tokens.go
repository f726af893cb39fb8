// FinScope - Jellyfin Playback Analytics Dashboard
// Copyright 2026 FinScope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/finscope/finscope

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/finscope/finscope/internal/database"
	"github.com/finscope/finscope/internal/logging"
	"github.com/finscope/finscope/internal/models"
)

// CreateToken mints a new API token. The plaintext secret appears in this
// response and nowhere else; only its hash is stored.
func (h *Handler) CreateToken(w http.ResponseWriter, r *http.Request) {
	var req models.CreateTokenRequest
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

	token, secret, err := h.auth.CreateToken(r.Context(), req.Name)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "failed to create token", err)
		return
	}

	logging.Info().Str("token", token.TokenPrefix).Str("name", sanitizeLogValue(token.Name)).Msg("API token created")

	respondSuccess(w, http.StatusCreated, models.CreateTokenResponse{
		Token:  *token,
		Secret: secret,
	}, 0)
}

// ListTokens returns all tokens, revoked ones included, without secrets.
func (h *Handler) ListTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.db.ListAPITokens(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "failed to list tokens", err)
		return
	}
	respondSuccess(w, http.StatusOK, tokens, 0)
}

// RevokeToken invalidates a token immediately. Revocation is permanent.
func (h *Handler) RevokeToken(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := h.db.RevokeAPIToken(r.Context(), id)
	if errors.Is(err, database.ErrTokenNotFound) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "unknown or already revoked token", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "failed to revoke token", err)
		return
	}

	logging.Info().Str("token_id", sanitizeLogValue(id)).Msg("API token revoked")
	respondSuccess(w, http.StatusOK, map[string]string{"revoked": id}, 0)
}
