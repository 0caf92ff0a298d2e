// Copyright 2026 The fleep-mcp Authors
// SPDX-License-Identifier: Apache-2.0

// Package mcp serves a [tool.Registry] over the Model Context Protocol:
// newline-delimited JSON-RPC 2.0, one message per line, on a pair of
// streams (stdin and stdout in production).
//
// Supported methods are initialize, ping, tools/list, and tools/call.
// Notifications are accepted and ignored. tools/list and tools/call
// require a prior initialize.
//
// A tools/call result always carries a text content block. On success
// the block holds the JSON payload, which is repeated as
// structuredContent; on failure it holds the error message, isError is
// set, and an errorInfo object reports the error kind, the offending
// argument for validation errors, and whether a retry may help. Unknown
// tools and malformed params are JSON-RPC errors, not tool results.
//
// Each tools/call runs in its own goroutine, so a slow remote request
// never blocks other calls; responses may therefore arrive out of
// request order and are matched by id. Every call is logged with a
// generated request id, the tool name, its duration, and on failure the
// error kind.
package mcp
