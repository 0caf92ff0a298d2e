// Copyright 2026 The fleep-mcp Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds small helpers shared by tests. [RequireReceive]
// and [RequireClosed] wrap the select-with-timeout pattern so a hung
// goroutine fails the test with a message instead of hanging the run.
// [WriteFile] creates fixture files for tools that read local paths.
//
// All helpers call t.Fatalf on failure.
package testutil
