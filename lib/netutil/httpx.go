// Copyright 2026 The fleep-mcp Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil bounds HTTP response body reads. Fleep API responses are
// small JSON documents; the cap only guards against a runaway or hostile
// peer exhausting memory.
package netutil

import (
	"errors"
	"fmt"
	"io"
)

// MaxResponseSize is the largest response body ReadResponse accepts: 32 MB.
const MaxResponseSize int64 = 32 << 20

// ErrResponseTooLarge is returned when a body exceeds MaxResponseSize.
var ErrResponseTooLarge = errors.New("netutil: response body exceeds size limit")

// ReadResponse reads at most MaxResponseSize bytes from body. A body that
// would exceed the limit is reported as ErrResponseTooLarge rather than
// silently truncated, since a truncated JSON document only produces a
// confusing parse error later.
func ReadResponse(body io.Reader) ([]byte, error) {
	return ReadResponseLimit(body, MaxResponseSize)
}

// ReadResponseLimit is ReadResponse with a caller-chosen limit. A
// non-positive limit means MaxResponseSize.
func ReadResponseLimit(body io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = MaxResponseSize
	}
	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("netutil: reading response: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, ErrResponseTooLarge
	}
	return data, nil
}

// Snippet returns at most limit bytes of body for error messages, marking
// truncation with an ellipsis.
func Snippet(body []byte, limit int) string {
	if len(body) <= limit {
		return string(body)
	}
	return string(body[:limit]) + "..."
}
