// Copyright 2026 The fleep-mcp Authors
// SPDX-License-Identifier: Apache-2.0

package tool

// Preset annotations. Every Fleep tool talks to an external service, so
// all presets are open-world. Pick one for every tool in a catalogue;
// a nil field lets the client fall back to the MCP defaults (not
// read-only, destructive, not idempotent), which is rarely accurate.

// ReadOnly is for tools that query state without modifying it: list,
// get, search, sync.
func ReadOnly(title string) *Annotations {
	return &Annotations{
		Title:           title,
		ReadOnlyHint:    boolPtr(true),
		DestructiveHint: boolPtr(false),
		IdempotentHint:  boolPtr(true),
		OpenWorldHint:   boolPtr(true),
	}
}

// Idempotent is for tools that modify state but converge on the same
// result when repeated: set topic, replace labels, mark read.
func Idempotent(title string) *Annotations {
	return &Annotations{
		Title:           title,
		ReadOnlyHint:    boolPtr(false),
		DestructiveHint: boolPtr(false),
		IdempotentHint:  boolPtr(true),
		OpenWorldHint:   boolPtr(true),
	}
}

// Create is for tools that create something new on every call: send,
// create conversation, upload.
func Create(title string) *Annotations {
	return &Annotations{
		Title:           title,
		ReadOnlyHint:    boolPtr(false),
		DestructiveHint: boolPtr(false),
		IdempotentHint:  boolPtr(false),
		OpenWorldHint:   boolPtr(true),
	}
}

// Destructive is for tools that remove or overwrite data others can
// see: delete or edit a message, remove members.
func Destructive(title string) *Annotations {
	return &Annotations{
		Title:           title,
		ReadOnlyHint:    boolPtr(false),
		DestructiveHint: boolPtr(true),
		IdempotentHint:  boolPtr(false),
		OpenWorldHint:   boolPtr(true),
	}
}

func boolPtr(value bool) *bool { return &value }
