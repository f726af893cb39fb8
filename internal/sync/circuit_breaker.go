// FinScope - Jellyfin Playback Analytics Dashboard
// Copyright 2026 FinScope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/finscope/finscope

package sync

import (
	"context"
	"errors"
	"net/http"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/finscope/finscope/internal/logging"
	"github.com/finscope/finscope/internal/metrics"
	"github.com/finscope/finscope/internal/models"
)

// Ensure CircuitBreakerClient implements Client
var _ Client = (*CircuitBreakerClient)(nil)

// CircuitBreakerClient wraps a JellyfinClient with the circuit breaker
// pattern so a slow or unavailable endpoint does not drag down the sync
// loop and the dashboard proxy.
//
// The breaker uses real time (via sony/gobreaker) for its interval and
// timeout calculations.
type CircuitBreakerClient struct {
	client *JellyfinClient
	cb     *gobreaker.CircuitBreaker[interface{}]
	name   string
}

// NewCircuitBreakerClient wraps client with a circuit breaker named after
// its host. Breaker configuration:
//   - Max 3 concurrent requests in half-open state
//   - 1 minute measurement window
//   - 2 minute timeout before attempting recovery
//   - Opens after 60% failure rate with minimum 10 requests
func NewCircuitBreakerClient(client *JellyfinClient) *CircuitBreakerClient {
	cbName := client.BaseURL()

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(cbName).Set(0)

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false // too few requests for statistical significance
			}

			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6

			if shouldTrip {
				logging.Warn().
					Str("host", cbName).
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("[CIRCUIT BREAKER] Opening Jellyfin circuit")
			}

			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logging.Info().
				Str("host", name).
				Str("from", fromStr).
				Str("to", toStr).
				Msg("[CIRCUIT BREAKER] Jellyfin state transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()

			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
	})

	return &CircuitBreakerClient{
		client: client,
		cb:     cb,
		name:   cbName,
	}
}

// execute wraps a Jellyfin API call with circuit breaker protection.
func (cbc *CircuitBreakerClient) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := cbc.cb.Execute(fn)

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "rejected").Inc()
			logging.Warn().Err(err).Str("host", cbc.name).Msg("[CIRCUIT BREAKER] Jellyfin request rejected")
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "failure").Inc()
			counts := cbc.cb.Counts()
			metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(cbc.name).Set(float64(counts.ConsecutiveFailures))
		}
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "success").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(cbc.name).Set(0)

	return result, nil
}

// stateToFloat converts circuit breaker state to a gauge value.
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// stateToString converts circuit breaker state to string for logging.
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Ping tests connectivity with circuit breaker protection.
func (cbc *CircuitBreakerClient) Ping(ctx context.Context) error {
	_, err := cbc.execute(func() (interface{}, error) {
		return nil, cbc.client.Ping(ctx)
	})
	return err
}

// GetSystemInfo retrieves system information with circuit breaker protection.
func (cbc *CircuitBreakerClient) GetSystemInfo(ctx context.Context) (*models.JellyfinSystemInfo, error) {
	result, err := cbc.execute(func() (interface{}, error) {
		return cbc.client.GetSystemInfo(ctx)
	})
	if err != nil {
		return nil, err
	}
	info, ok := result.(*models.JellyfinSystemInfo)
	if !ok {
		return nil, errors.New("circuit breaker: unexpected result type for GetSystemInfo")
	}
	return info, nil
}

// GetUsers retrieves user accounts with circuit breaker protection.
func (cbc *CircuitBreakerClient) GetUsers(ctx context.Context) ([]models.JellyfinUser, error) {
	result, err := cbc.execute(func() (interface{}, error) {
		return cbc.client.GetUsers(ctx)
	})
	if err != nil {
		return nil, err
	}
	users, ok := result.([]models.JellyfinUser)
	if !ok {
		return nil, errors.New("circuit breaker: unexpected result type for GetUsers")
	}
	return users, nil
}

// GetPlayedItems fetches a history page with circuit breaker protection.
func (cbc *CircuitBreakerClient) GetPlayedItems(ctx context.Context, accountID string, startIndex, limit int) (*models.JellyfinItemsPage, error) {
	result, err := cbc.execute(func() (interface{}, error) {
		return cbc.client.GetPlayedItems(ctx, accountID, startIndex, limit)
	})
	if err != nil {
		return nil, err
	}
	page, ok := result.(*models.JellyfinItemsPage)
	if !ok {
		return nil, errors.New("circuit breaker: unexpected result type for GetPlayedItems")
	}
	return page, nil
}

// GetActiveSessions retrieves playing sessions with circuit breaker protection.
func (cbc *CircuitBreakerClient) GetActiveSessions(ctx context.Context) ([]models.JellyfinSession, error) {
	result, err := cbc.execute(func() (interface{}, error) {
		return cbc.client.GetActiveSessions(ctx)
	})
	if err != nil {
		return nil, err
	}
	sessions, ok := result.([]models.JellyfinSession)
	if !ok {
		return nil, errors.New("circuit breaker: unexpected result type for GetActiveSessions")
	}
	return sessions, nil
}

// GetLibraryItemsWithGenres fetches genre-tagged items with circuit breaker protection.
func (cbc *CircuitBreakerClient) GetLibraryItemsWithGenres(ctx context.Context, accountID string) ([]models.JellyfinLibraryItem, error) {
	result, err := cbc.execute(func() (interface{}, error) {
		return cbc.client.GetLibraryItemsWithGenres(ctx, accountID)
	})
	if err != nil {
		return nil, err
	}
	items, ok := result.([]models.JellyfinLibraryItem)
	if !ok {
		return nil, errors.New("circuit breaker: unexpected result type for GetLibraryItemsWithGenres")
	}
	return items, nil
}

// ProxyGet performs a raw GET with circuit breaker protection. The caller
// owns the response body.
func (cbc *CircuitBreakerClient) ProxyGet(ctx context.Context, endpoint string) (*http.Response, error) {
	result, err := cbc.execute(func() (interface{}, error) {
		return cbc.client.ProxyGet(ctx, endpoint)
	})
	if err != nil {
		return nil, err
	}
	resp, ok := result.(*http.Response)
	if !ok {
		return nil, errors.New("circuit breaker: unexpected result type for ProxyGet")
	}
	return resp, nil
}

// ImageURL builds the primary-image URL for an item.
func (cbc *CircuitBreakerClient) ImageURL(itemID, imageType string) string {
	return cbc.client.ImageURL(itemID, imageType)
}

// BaseURL returns the wrapped client's server URL.
func (cbc *CircuitBreakerClient) BaseURL() string {
	return cbc.client.BaseURL()
}
