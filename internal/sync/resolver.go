// FinScope - Jellyfin Playback Analytics Dashboard
// Copyright 2026 FinScope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/finscope/finscope

package sync

import (
	"context"

	"github.com/finscope/finscope/internal/logging"
	"github.com/finscope/finscope/internal/models"
)

// ResolveAccounts lists the endpoint's user accounts so every user's
// history gets synced. When the listing fails or comes back empty (the API
// key may lack user-enumeration rights), it falls back to the single
// configured account.
func ResolveAccounts(ctx context.Context, client Client, fallbackAccountID string) []models.AccountRef {
	users, err := client.GetUsers(ctx)
	if err != nil {
		logging.Warn().
			Err(err).
			Str("server", client.BaseURL()).
			Msg("User listing failed, falling back to configured account")
	}

	accounts := make([]models.AccountRef, 0, len(users))
	for _, u := range users {
		accounts = append(accounts, models.AccountRef{ID: u.ID, Name: u.Name})
	}

	if len(accounts) == 0 && fallbackAccountID != "" {
		accounts = append(accounts, models.AccountRef{ID: fallbackAccountID, Name: "Admin"})
	}

	return accounts
}
