// FinScope - Jellyfin Playback Analytics Dashboard
// Copyright 2026 FinScope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/finscope/finscope

package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/finscope/finscope/internal/logging"
)

// retryWithBackoff executes fn up to retryAttempts times, doubling the
// delay after each failure. Waits are cancellable; a canceled context
// returns immediately with the context error.
func (e *Engine) retryWithBackoff(ctx context.Context, fn func() error) error {
	var err error
	delay := e.retryDelay

	for attempt := 0; attempt < e.retryAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err = fn()
		if err == nil {
			return nil
		}

		if attempt < e.retryAttempts-1 {
			logging.Warn().
				Err(err).
				Int("attempt", attempt+1).
				Int("max_attempts", e.retryAttempts).
				Dur("delay", delay).
				Msg("Upstream request failed, retrying")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
		}
	}

	if e.retryAttempts > 1 {
		return fmt.Errorf("max retry attempts reached: %w", err)
	}
	return err
}
