// Copyright 2026 The fleep-mcp Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"errors"
	"net/http"

	"github.com/fleepmcp/fleep-mcp/fleep"
	"github.com/fleepmcp/fleep-mcp/lib/tool"
)

// classify maps the fleep package's typed errors onto tool kinds. It
// returns nil for anything else so the registry's generic fallback
// applies.
func classify(err error) *tool.ToolError {
	// AuthError is checked before NetworkError: a login that failed in
	// transit wraps a NetworkError but is still an authentication
	// failure.
	var authErr *fleep.AuthError
	if errors.As(err, &authErr) {
		return &tool.ToolError{Kind: tool.KindAuth, Err: err}
	}

	var networkErr *fleep.NetworkError
	if errors.As(err, &networkErr) {
		return &tool.ToolError{Kind: tool.KindNetwork, Err: err}
	}

	// A success status with a body that cannot be read is still the
	// service answering badly, and repeating the call will not help.
	var decodeErr *fleep.DecodeError
	if errors.As(err, &decodeErr) {
		return &tool.ToolError{Kind: tool.KindRemote, Err: err}
	}

	var apiErr *fleep.APIError
	if errors.As(err, &apiErr) {
		return &tool.ToolError{Kind: apiErrorKind(apiErr), Err: err}
	}

	return nil
}

// apiErrorKind prefers the service's error id and falls back to the HTTP
// status.
func apiErrorKind(apiErr *fleep.APIError) tool.Kind {
	switch apiErr.ErrorID {
	case fleep.ErrIDNotFound:
		return tool.KindNotFound
	case fleep.ErrIDNoAccess:
		return tool.KindPermissionDenied
	case fleep.ErrIDRateLimited:
		return tool.KindRateLimited
	}
	switch apiErr.StatusCode {
	case http.StatusNotFound:
		return tool.KindNotFound
	case http.StatusForbidden:
		return tool.KindPermissionDenied
	case http.StatusTooManyRequests:
		return tool.KindRateLimited
	case http.StatusUnauthorized:
		return tool.KindAuth
	}
	return tool.KindRemote
}
