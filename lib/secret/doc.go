// Copyright 2026 The fleep-mcp Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds credential material (the Fleep account password
// and the session token) in memory that the garbage collector never sees.
//
// [Buffer] memory comes from an anonymous mmap, is locked with mlock so
// it cannot be swapped out, and is excluded from core dumps. Close zeros
// and unmaps it; every accessor panics afterwards.
//
// Values cross into ordinary strings only at serialization boundaries
// (a JSON login body, a Cookie header) via [Buffer.String].
package secret
