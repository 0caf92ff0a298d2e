// Copyright 2026 The fleep-mcp Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"testing"
	"time"
)

// RequireReceive returns the next value from ch, failing the test if
// none arrives within timeout or ch is closed first. what describes the
// wait for the failure message.
//
//	err := testutil.RequireReceive(t, done, 5*time.Second, "server exit")
func RequireReceive[T any](t testing.TB, ch <-chan T, timeout time.Duration, what ...any) T {
	t.Helper()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case value, ok := <-ch:
		if !ok {
			t.Fatalf("%s: channel closed before a value arrived", describe(what))
		}
		return value
	case <-timer.C:
		t.Fatalf("%s: nothing received after %v", describe(what), timeout)
	}
	var zero T
	return zero
}

// RequireClosed waits for a signal channel to close (or deliver),
// failing the test after timeout.
//
//	testutil.RequireClosed(t, started, 5*time.Second, "tool start")
func RequireClosed(t testing.TB, ch <-chan struct{}, timeout time.Duration, what ...any) {
	t.Helper()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
	case <-timer.C:
		t.Fatalf("%s: still open after %v", describe(what), timeout)
	}
}

// describe renders what as a plain value or as a format string followed
// by its arguments.
func describe(what []any) string {
	switch {
	case len(what) == 0:
		return "waiting"
	case len(what) > 1:
		if format, ok := what[0].(string); ok {
			return fmt.Sprintf(format, what[1:]...)
		}
	}
	return fmt.Sprint(what...)
}
