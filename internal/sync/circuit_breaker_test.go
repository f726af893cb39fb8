// FinScope - Jellyfin Playback Analytics Dashboard
// Copyright 2026 FinScope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/finscope/finscope

package sync

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	gobreaker "github.com/sony/gobreaker/v2"
)

func TestCircuitBreakerPassesThroughSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/Users" {
			_, _ = w.Write([]byte(`[{"Id":"u1","Name":"Alice"}]`))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewCircuitBreakerClient(NewJellyfinClient(srv.URL, "key", ClientOptions{}))

	checkNoError(t, "Ping", client.Ping(context.Background()))

	users, err := client.GetUsers(context.Background())
	checkNoError(t, "GetUsers", err)
	checkIntEqual(t, "user count", len(users), 1)
	checkStringEqual(t, "base url", client.BaseURL(), srv.URL)
}

func TestCircuitBreakerOpensAfterRepeatedFailures(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewCircuitBreakerClient(NewJellyfinClient(srv.URL, "key", ClientOptions{}))
	ctx := context.Background()

	// Drive past the minimum request count at a 100% failure rate.
	for i := 0; i < 10; i++ {
		checkError(t, "Ping against failing upstream", client.Ping(ctx))
	}

	err := client.Ping(ctx)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open-circuit rejection, got %v", err)
	}

	// The rejected call never reached the upstream.
	checkInt64Equal(t, "upstream hits", hits.Load(), 10)
}
