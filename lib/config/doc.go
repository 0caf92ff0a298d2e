// Copyright 2026 The fleep-mcp Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads fleep-mcp configuration.
//
// Sources are layered in a fixed order, later layers winning:
//
//  1. [Default] values.
//  2. An optional config file, named by the --config flag or the
//     FLEEP_MCP_CONFIG environment variable. YAML (.yaml, .yml) and JSON
//     with comments (.json, .jsonc) are accepted.
//  3. An optional .env file. Variables already present in the process
//     environment are never overwritten by it.
//  4. Environment variables (FLEEP_EMAIL, FLEEP_PASSWORD, FLEEP_BASE_URL,
//     and the others tagged on the structs below).
//
// The account password is never read from the config file itself: it comes
// from FLEEP_PASSWORD or from a password_file. Path fields support
// ${VAR} and ${VAR:-default} expansion.
package config
