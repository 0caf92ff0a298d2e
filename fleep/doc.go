// Copyright 2026 The fleep-mcp Authors
// SPDX-License-Identifier: Apache-2.0

// Package fleep wraps the Fleep.io REST API.
//
// [Client] is unauthenticated: it holds the API base URL, the HTTP
// transport, and a logger, and knows how to log in. [Session] owns one
// authenticated account for the life of the process. It logs in lazily,
// keeps the token_id cookie in a [secret.Buffer], embeds the matching
// ticket in every JSON body (Fleep's CSRF convention), and recovers from
// an expired session by logging in again exactly once per failed request.
//
// Session state moves through unauthenticated → authenticated →
// reauthenticating → authenticated, or to failed when the re-login or the
// retried request is rejected. Re-logins run through a single-flight group
// keyed on the token generation: when many requests observe the same
// expired token concurrently, one login happens and every caller retries
// with its result. Ordinary requests are never serialized.
//
// Every endpoint is a POST. Path segments taken from caller input are
// escaped with url.PathEscape and otherwise passed through untouched;
// conversation ids, message numbers, and label ids are opaque here.
//
// Failures are typed: [*APIError] for responses the service rejected,
// [*AuthError] for login failures and unrecoverable expiry, and
// [*NetworkError] for transport failures including timeouts.
package fleep
