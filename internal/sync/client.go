// FinScope - Jellyfin Playback Analytics Dashboard
// Copyright 2026 FinScope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/finscope/finscope

/*
client.go - Jellyfin REST API client

Implements the upstream API surface the sync engine and the dashboard
proxy depend on: played-item pagination, user listing, active sessions,
genre-tagged library items, and raw GET passthrough.

API Reference: https://api.jellyfin.org/
*/

package sync

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/finscope/finscope/internal/models"
)

// genreItemsLimit caps how many genre-tagged library items the genre
// aggregation fetches in one request.
const genreItemsLimit = 2000

// Client defines the Jellyfin API operations used across FinScope.
// Both JellyfinClient and CircuitBreakerClient implement this interface.
type Client interface {
	Ping(ctx context.Context) error
	GetSystemInfo(ctx context.Context) (*models.JellyfinSystemInfo, error)
	GetUsers(ctx context.Context) ([]models.JellyfinUser, error)
	GetPlayedItems(ctx context.Context, accountID string, startIndex, limit int) (*models.JellyfinItemsPage, error)
	GetActiveSessions(ctx context.Context) ([]models.JellyfinSession, error)
	GetLibraryItemsWithGenres(ctx context.Context, accountID string) ([]models.JellyfinLibraryItem, error)
	ProxyGet(ctx context.Context, endpoint string) (*http.Response, error)
	ImageURL(itemID, imageType string) string
	BaseURL() string
}

// Ensure JellyfinClient implements Client
var _ Client = (*JellyfinClient)(nil)

// ClientOptions configures a JellyfinClient.
type ClientOptions struct {
	Timeout   time.Duration // HTTP request timeout (default 30s)
	RateLimit float64       // Upstream requests per second (0 = unlimited)
	RateBurst int           // Rate limiter burst (default 1 when limited)
}

// JellyfinClient provides access to the Jellyfin REST API.
type JellyfinClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewJellyfinClient creates a Jellyfin API client.
//
// Parameters:
//   - baseURL: Jellyfin server URL (e.g., http://localhost:8096)
//   - apiKey: Jellyfin API key from Admin Dashboard > API Keys
func NewJellyfinClient(baseURL, apiKey string, opts ClientOptions) *JellyfinClient {
	baseURL = strings.TrimSuffix(baseURL, "/")

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return &JellyfinClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
	}
}

// BaseURL returns the normalized server URL.
func (c *JellyfinClient) BaseURL() string {
	return c.baseURL
}

// Ping tests connectivity to the Jellyfin server.
func (c *JellyfinClient) Ping(ctx context.Context) error {
	resp, err := c.doRequest(ctx, "/System/Ping")
	if err != nil {
		return fmt.Errorf("jellyfin ping failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jellyfin ping returned status %d", resp.StatusCode)
	}
	return nil
}

// GetSystemInfo retrieves Jellyfin server system information. Used to
// validate an endpoint when it is registered.
func (c *JellyfinClient) GetSystemInfo(ctx context.Context) (*models.JellyfinSystemInfo, error) {
	resp, err := c.doRequest(ctx, "/System/Info")
	if err != nil {
		return nil, fmt.Errorf("jellyfin system info request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp, "system info"); err != nil {
		return nil, err
	}

	var info models.JellyfinSystemInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode jellyfin system info: %w", err)
	}
	return &info, nil
}

// GetUsers retrieves all user accounts from Jellyfin.
func (c *JellyfinClient) GetUsers(ctx context.Context) ([]models.JellyfinUser, error) {
	resp, err := c.doRequest(ctx, "/Users")
	if err != nil {
		return nil, fmt.Errorf("jellyfin users request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp, "users"); err != nil {
		return nil, err
	}

	var users []models.JellyfinUser
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return nil, fmt.Errorf("failed to decode jellyfin users: %w", err)
	}
	return users, nil
}

// GetPlayedItems fetches one page of an account's playback history, newest
// first. The sync engine walks these pages until it reaches the account's
// watermark or runs out of items.
func (c *JellyfinClient) GetPlayedItems(ctx context.Context, accountID string, startIndex, limit int) (*models.JellyfinItemsPage, error) {
	params := url.Values{}
	params.Set("SortBy", "DatePlayed")
	params.Set("SortOrder", "Descending")
	params.Set("Filters", "IsPlayed")
	params.Set("IncludeItemTypes", "Movie,Episode,Audio,MusicAlbum")
	params.Set("Fields", "DatePlayed")
	params.Set("Recursive", "true")
	params.Set("StartIndex", strconv.Itoa(startIndex))
	params.Set("Limit", strconv.Itoa(limit))

	endpoint := fmt.Sprintf("/Users/%s/Items?%s", url.PathEscape(accountID), params.Encode())

	resp, err := c.doRequest(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("jellyfin played items request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp, "played items"); err != nil {
		return nil, err
	}

	var page models.JellyfinItemsPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode jellyfin played items: %w", err)
	}
	return &page, nil
}

// GetActiveSessions retrieves the sessions that are currently playing
// something (NowPlayingItem set).
func (c *JellyfinClient) GetActiveSessions(ctx context.Context) ([]models.JellyfinSession, error) {
	resp, err := c.doRequest(ctx, "/Sessions")
	if err != nil {
		return nil, fmt.Errorf("jellyfin sessions request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp, "sessions"); err != nil {
		return nil, err
	}

	var sessions []models.JellyfinSession
	if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
		return nil, fmt.Errorf("failed to decode jellyfin sessions: %w", err)
	}

	active := make([]models.JellyfinSession, 0, len(sessions))
	for i := range sessions {
		if sessions[i].NowPlayingItem != nil {
			active = append(active, sessions[i])
		}
	}
	return active, nil
}

// GetLibraryItemsWithGenres fetches movie and series items with their genre
// lists for the top-genres aggregation.
func (c *JellyfinClient) GetLibraryItemsWithGenres(ctx context.Context, accountID string) ([]models.JellyfinLibraryItem, error) {
	params := url.Values{}
	params.Set("Recursive", "true")
	params.Set("IncludeItemTypes", "Movie,Series")
	params.Set("Fields", "Genres")
	params.Set("Limit", strconv.Itoa(genreItemsLimit))

	endpoint := fmt.Sprintf("/Users/%s/Items?%s", url.PathEscape(accountID), params.Encode())

	resp, err := c.doRequest(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("jellyfin genre items request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp, "genre items"); err != nil {
		return nil, err
	}

	var page struct {
		Items []models.JellyfinLibraryItem `json:"Items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode jellyfin genre items: %w", err)
	}
	return page.Items, nil
}

// ProxyGet performs a raw GET against the Jellyfin API and returns the
// response unread. The caller owns the response body. Used by the
// dashboard passthrough and image proxy endpoints.
func (c *JellyfinClient) ProxyGet(ctx context.Context, endpoint string) (*http.Response, error) {
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return c.doRequest(ctx, endpoint)
}

// ImageURL builds the primary-image URL for an item.
func (c *JellyfinClient) ImageURL(itemID, imageType string) string {
	if imageType == "" {
		imageType = "Primary"
	}
	return fmt.Sprintf("%s/Items/%s/Images/%s", c.baseURL, url.PathEscape(itemID), url.PathEscape(imageType))
}

// doRequest performs a rate-limited HTTP GET against the Jellyfin API.
func (c *JellyfinClient) doRequest(ctx context.Context, endpoint string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	fullURL := c.baseURL + endpoint

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-Emby-Token", c.apiKey)
	req.Header.Set("X-Emby-Client", "FinScope")
	req.Header.Set("X-Emby-Device-Name", "FinScope")
	req.Header.Set("X-Emby-Device-Id", "finscope")
	req.Header.Set("X-Emby-Client-Version", "1.0.0")
	req.Header.Set("Accept", "application/json")

	return c.httpClient.Do(req)
}

// checkStatus turns a non-200 response into an error that includes the
// response body.
func checkStatus(resp *http.Response, operation string) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("jellyfin %s returned status %d (failed to read body)", operation, resp.StatusCode)
	}
	return fmt.Errorf("jellyfin %s returned status %d: %s", operation, resp.StatusCode, string(body))
}
