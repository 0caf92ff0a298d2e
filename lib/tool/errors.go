// Copyright 2026 The fleep-mcp Authors
// SPDX-License-Identifier: Apache-2.0

package tool

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a tool failure so callers can decide what to do
// without parsing message text.
type Kind string

const (
	// KindValidation: the arguments were missing or malformed. Nothing
	// was sent to the service. Fix the input; never retry as-is.
	KindValidation Kind = "validation_error"

	// KindAuth: login failed, or the session expired and could not be
	// recovered with one re-login.
	KindAuth Kind = "auth_error"

	// KindNotFound: the conversation, message, or other referenced
	// resource does not exist.
	KindNotFound Kind = "not_found"

	// KindPermissionDenied: the account may not perform the operation.
	KindPermissionDenied Kind = "permission_denied"

	// KindRateLimited: the service asked the caller to slow down.
	KindRateLimited Kind = "rate_limited"

	// KindRemote: any other rejection by the service.
	KindRemote Kind = "remote_error"

	// KindNetwork: the request did not complete: connection failure,
	// reset, or timeout.
	KindNetwork Kind = "network_error"

	// KindInternal: a bug in the adapter, such as a recovered panic or a
	// result that could not be encoded.
	KindInternal Kind = "internal_error"
)

// Retryable reports whether the same call may succeed if repeated
// later.
func (k Kind) Retryable() bool {
	return k == KindRateLimited || k == KindNetwork
}

// ToolError is a classified tool failure. Field names the offending
// argument for validation errors.
type ToolError struct {
	Kind  Kind
	Field string
	Err   error
}

// Error returns the underlying message. The kind travels separately.
func (e *ToolError) Error() string { return e.Err.Error() }

func (e *ToolError) Unwrap() error { return e.Err }

// Validation creates a validation error for the named argument.
func Validation(field, format string, args ...any) *ToolError {
	return &ToolError{Kind: KindValidation, Field: field, Err: fmt.Errorf(format, args...)}
}

// NotFound creates a not-found error.
func NotFound(format string, args ...any) *ToolError {
	return &ToolError{Kind: KindNotFound, Err: fmt.Errorf(format, args...)}
}

// Internal creates an internal error.
func Internal(format string, args ...any) *ToolError {
	return &ToolError{Kind: KindInternal, Err: fmt.Errorf(format, args...)}
}

// Classifier maps a domain error onto a ToolError. It returns nil for
// errors it does not recognize.
type Classifier func(error) *ToolError

// Classify maps err onto a ToolError without domain knowledge. A
// *ToolError anywhere in the chain is returned as-is; context expiry is
// a network failure; anything else is internal. Returns nil for a nil
// err.
func Classify(err error) *ToolError {
	if err == nil {
		return nil
	}

	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return toolErr
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &ToolError{Kind: KindNetwork, Err: err}
	}

	return &ToolError{Kind: KindInternal, Err: err}
}
