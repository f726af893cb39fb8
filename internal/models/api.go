// FinScope - Jellyfin Playback Analytics Dashboard
// Copyright 2026 FinScope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/finscope/finscope

package models

import "time"

// APIResponse is the standardized response wrapper used by all HTTP
// endpoints. Status is "success" or "error"; Error is populated only for
// error responses.
//
// Example successful response:
//
//	{
//	  "status": "success",
//	  "data": {"newEntries": 42, "totalEntries": 1200, "accountsSynced": 3},
//	  "metadata": {"timestamp": "2026-08-30T12:00:00Z", "query_time_ms": 45}
//	}
//
// Example error response:
//
//	{
//	  "status": "error",
//	  "error": {"code": "NOT_FOUND", "message": "unknown server id"},
//	  "metadata": {"timestamp": "2026-08-30T12:00:00Z"}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata for observability.
// QueryTimeMS is 0 and Cached is true for responses served from cache.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
	Cached      bool      `json:"cached,omitempty"`
}

// APIError carries structured error details.
//
// Common error codes:
//   - VALIDATION_ERROR: Invalid input parameters
//   - DATABASE_ERROR: Query execution failure
//   - AUTHENTICATION_ERROR: Invalid/missing credentials
//   - NOT_FOUND: Resource doesn't exist
//   - UPSTREAM_ERROR: Jellyfin endpoint unreachable or returned an error
//   - RATE_LIMIT_EXCEEDED: Too many requests
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// RegisterServerRequest is the payload for registering a Jellyfin endpoint.
type RegisterServerRequest struct {
	Name   string `json:"name" validate:"omitempty,max=100"`
	URL    string `json:"url" validate:"required,url"`
	APIKey string `json:"apiKey" validate:"required,min=8"`
	UserID string `json:"userId" validate:"omitempty"`
}

// CreateTokenRequest is the payload for minting a new API token.
type CreateTokenRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

// CreateTokenResponse returns the plaintext token exactly once.
type CreateTokenResponse struct {
	Token  APIToken `json:"token"`
	Secret string   `json:"secret"`
}
