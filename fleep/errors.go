// Copyright 2026 The fleep-mcp Authors
// SPDX-License-Identifier: Apache-2.0

package fleep

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a failure reported by the Fleep service: a non-2xx status,
// or a 2xx body carrying an error_id. Extract it with errors.As:
//
//	var apiErr *APIError
//	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound { ... }
type APIError struct {
	// ErrorID is Fleep's machine-readable error identifier, if any.
	ErrorID string `json:"error_id"`
	// Message is the human-readable description from the service.
	Message string `json:"error_message"`
	// StatusCode is the HTTP status of the response.
	StatusCode int `json:"-"`
	// Path is the endpoint that failed, e.g. "message/send/conv-1".
	Path string `json:"-"`
}

func (e *APIError) Error() string {
	text := e.Message
	if text == "" {
		text = http.StatusText(e.StatusCode)
	}
	if e.ErrorID != "" {
		return fmt.Sprintf("fleep: %s (%d %s): %s", e.Path, e.StatusCode, e.ErrorID, text)
	}
	return fmt.Sprintf("fleep: %s (%d): %s", e.Path, e.StatusCode, text)
}

// Error identifiers the service uses in error envelopes.
const (
	ErrIDNotAuthenticated = "not_authenticated"
	ErrIDSessionExpired   = "session_expired"
	ErrIDInvalidTicket    = "invalid_ticket"
	ErrIDNotFound         = "not_found"
	ErrIDNoAccess         = "no_access"
	ErrIDRateLimited      = "rate_limited"
)

// AuthError means the session could not be established or re-established:
// rejected credentials, an unusable login response, or a request that was
// still rejected after re-authenticating.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fleep: authentication failed: %s: %v", e.Reason, e.Err)
	}
	return "fleep: authentication failed: " + e.Reason
}

func (e *AuthError) Unwrap() error { return e.Err }

// NetworkError is a transport-level failure: DNS, connection refused,
// TLS, a reset mid-response, or a timeout.
type NetworkError struct {
	Path string
	Err  error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("fleep: request to %s failed: %v", e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// DecodeError means the service answered with a success status but a
// body this client could not parse.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("fleep: unparseable response from %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsAuthExpired reports whether err is the service saying the session
// token or ticket is no longer valid.
func IsAuthExpired(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.StatusCode == http.StatusUnauthorized {
		return true
	}
	switch apiErr.ErrorID {
	case ErrIDNotAuthenticated, ErrIDSessionExpired, ErrIDInvalidTicket:
		return true
	}
	return false
}
