// Copyright 2026 The fleep-mcp Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock lets code that measures or waits on time take the time
// source as a dependency. Production code uses [Real]; tests use
// [Fake], which stands still until Advance is called:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	server := mcp.NewServer(registry, mcp.ServerConfig{Clock: c})
//	c.Advance(250 * time.Millisecond)
package clock
