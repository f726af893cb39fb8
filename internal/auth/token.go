// FinScope - Jellyfin Playback Analytics Dashboard
// Copyright 2026 FinScope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/finscope/finscope

/*
Package auth implements opaque API token authentication.

Tokens have the form "fs_" followed by 32 hex characters. Only the SHA-256
hash of the full token is stored; the first 8 characters act as a lookup
prefix so verification touches a handful of candidate rows at most.
*/
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/finscope/finscope/internal/database"
	"github.com/finscope/finscope/internal/models"
)

const (
	// TokenPrefix marks every FinScope API token.
	TokenPrefix = "fs_"

	// tokenRandomBytes is the entropy of the random portion (32 hex chars).
	tokenRandomBytes = 16

	// lookupPrefixLen is how many leading characters are stored in clear
	// for database lookup.
	lookupPrefixLen = 8
)

// ErrInvalidToken is returned when a presented token fails verification.
var ErrInvalidToken = errors.New("invalid or revoked token")

// TokenStore is the subset of the database used for token verification.
type TokenStore interface {
	CreateAPIToken(ctx context.Context, token models.APIToken) (*models.APIToken, error)
	GetAPITokensByPrefix(ctx context.Context, prefix string) ([]models.APIToken, error)
	TouchAPIToken(ctx context.Context, id string) error
	RevokeAPIToken(ctx context.Context, id string) error
	ListAPITokens(ctx context.Context) ([]models.APIToken, error)
}

var _ TokenStore = (*database.DB)(nil)

// Manager issues and verifies API tokens.
type Manager struct {
	store         TokenStore
	bootstrapHash []byte
	bootstrapSet  bool
}

// NewManager creates a token manager. bootstrapToken, when non-empty, is a
// statically configured token accepted alongside database-stored tokens so
// the first real token can be minted through the API.
func NewManager(store TokenStore, bootstrapToken string) *Manager {
	m := &Manager{store: store}
	if bootstrapToken != "" {
		hash := sha256.Sum256([]byte(bootstrapToken))
		m.bootstrapHash = hash[:]
		m.bootstrapSet = true
	}
	return m
}

// CreateToken mints a new token with the given display name. The plaintext
// is returned exactly once and never stored.
func (m *Manager) CreateToken(ctx context.Context, name string) (*models.APIToken, string, error) {
	raw := make([]byte, tokenRandomBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, "", fmt.Errorf("generate token entropy: %w", err)
	}
	plaintext := TokenPrefix + hex.EncodeToString(raw)

	stored, err := m.store.CreateAPIToken(ctx, models.APIToken{
		Name:        name,
		TokenPrefix: plaintext[:lookupPrefixLen],
		TokenHash:   HashToken(plaintext),
	})
	if err != nil {
		return nil, "", err
	}
	return stored, plaintext, nil
}

// Verify checks a presented token against the bootstrap token and the
// stored tokens. On success it returns the matched token record (nil when
// the bootstrap token matched) and updates last_used_at.
func (m *Manager) Verify(ctx context.Context, presented string) (*models.APIToken, error) {
	if presented == "" {
		return nil, ErrInvalidToken
	}

	if m.bootstrapSet {
		presentedHash := sha256.Sum256([]byte(presented))
		if subtle.ConstantTimeCompare(presentedHash[:], m.bootstrapHash) == 1 {
			return nil, nil
		}
	}

	if !strings.HasPrefix(presented, TokenPrefix) || len(presented) < lookupPrefixLen {
		return nil, ErrInvalidToken
	}

	candidates, err := m.store.GetAPITokensByPrefix(ctx, presented[:lookupPrefixLen])
	if err != nil {
		return nil, fmt.Errorf("look up tokens: %w", err)
	}

	presentedHash := HashToken(presented)
	for i := range candidates {
		if subtle.ConstantTimeCompare([]byte(presentedHash), []byte(candidates[i].TokenHash)) == 1 {
			// Best effort; verification already succeeded.
			_ = m.store.TouchAPIToken(ctx, candidates[i].ID)
			return &candidates[i], nil
		}
	}

	return nil, ErrInvalidToken
}

// HashToken returns the hex-encoded SHA-256 hash of a token plaintext.
func HashToken(plaintext string) string {
	hash := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(hash[:])
}
