// Copyright 2026 The fleep-mcp Authors
// SPDX-License-Identifier: Apache-2.0

// Package dispatch is the Fleep tool catalogue. [New] binds every tool
// to one [fleep.Session]: each tool validates its arguments against its
// declared schema, issues the matching Fleep request through the
// session, and shapes the response into the tool's result type.
// Remote fields a result type does not declare are dropped.
//
// Tools never retry on their own. The session re-authenticates once on
// an expired token; every other failure is returned for the registry's
// classifier, which maps the fleep package's typed errors onto error
// kinds.
//
// send_message is the only tool that may issue two requests: with
// file_paths it uploads the files first and attaches the returned URLs.
package dispatch
