// FinScope - Jellyfin Playback Analytics Dashboard
// Copyright 2026 FinScope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/finscope/finscope

package sync

import "testing"

// Test assertion helpers with "check" prefix. Each helper encapsulates a
// common comparison pattern; t.Helper() keeps failures pointing at the
// calling line.

// checkNoError fails the test immediately when err is non-nil.
func checkNoError(t *testing.T, operation string, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", operation, err)
	}
}

// checkError fails when err is nil.
func checkError(t *testing.T, operation string, err error) {
	t.Helper()
	if err == nil {
		t.Errorf("%s: expected error, got nil", operation)
	}
}

// checkStringEqual checks that got equals want.
func checkStringEqual(t *testing.T, fieldName, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: expected %q, got %q", fieldName, want, got)
	}
}

// checkIntEqual checks that got equals want.
func checkIntEqual(t *testing.T, fieldName string, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("%s: expected %d, got %d", fieldName, want, got)
	}
}

// checkInt64Equal checks that got equals want.
func checkInt64Equal(t *testing.T, fieldName string, got, want int64) {
	t.Helper()
	if got != want {
		t.Errorf("%s: expected %d, got %d", fieldName, want, got)
	}
}
