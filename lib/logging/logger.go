// Copyright 2026 The fleep-mcp Authors
// SPDX-License-Identifier: Apache-2.0

// Package logging builds the process logger.
//
// Logs always go to stderr: stdout carries the MCP JSON-RPC stream and a
// single stray log line there would corrupt the protocol.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

// Formats accepted by New.
const (
	FormatAuto = "auto"
	FormatText = "text"
	FormatJSON = "json"
)

// New creates a logger writing to stderr. With FormatAuto, a terminal
// gets slog.TextHandler for humans; a pipe (the normal case when an MCP
// host spawns the process) gets slog.JSONHandler.
func New(level, format string) (*slog.Logger, error) {
	return newLogger(os.Stderr, term.IsTerminal(int(os.Stderr.Fd())), level, format)
}

func newLogger(output io.Writer, terminal bool, level, format string) (*slog.Logger, error) {
	parsedLevel, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	options := &slog.HandlerOptions{Level: parsedLevel}

	switch strings.ToLower(format) {
	case "", FormatAuto:
		if terminal {
			return slog.New(slog.NewTextHandler(output, options)), nil
		}
		return slog.New(slog.NewJSONHandler(output, options)), nil
	case FormatText:
		return slog.New(slog.NewTextHandler(output, options)), nil
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(output, options)), nil
	default:
		return nil, fmt.Errorf("logging: unknown format %q (want auto, text, or json)", format)
	}
}

// ParseLevel maps debug, info, warn, and error (case-insensitive) to slog
// levels. An empty string means info.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("logging: unknown level %q", level)
	}
}
