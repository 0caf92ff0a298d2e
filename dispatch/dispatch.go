// Copyright 2026 The fleep-mcp Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fleepmcp/fleep-mcp/fleep"
	"github.com/fleepmcp/fleep-mcp/lib/tool"
)

// MaxUploadSize is the largest local file send_message and upload_files
// will read.
const MaxUploadSize = 64 << 20

// Instructions is returned to MCP clients from initialize.
const Instructions = `Tools for the Fleep messaging service, acting as one Fleep account.
Conversation ids, message numbers and label ids are opaque: pass back what
earlier results returned. list_conversations and get_conversation page with
sync_horizon and from_message_nr; call again to continue. Errors carry a
kind: fix the arguments on validation_error, retry later on rate_limited or
network_error.`

// dispatcher holds what every tool closure needs.
type dispatcher struct {
	session *fleep.Session
	logger  *slog.Logger
}

// New returns the Fleep tool catalogue bound to session.
func New(session *fleep.Session, logger *slog.Logger) (*tool.Registry, error) {
	if session == nil {
		return nil, errors.New("dispatch: session is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &dispatcher{session: session, logger: logger}

	var tools []*tool.Tool
	tools = append(tools, d.messageTools()...)
	tools = append(tools, d.conversationTools()...)
	tools = append(tools, d.accountTools()...)
	registry, err := tool.NewRegistry(tools...)
	if err != nil {
		return nil, err
	}
	registry.SetClassifier(classify)
	return registry, nil
}

// requireText rejects a required string that is present but blank.
func requireText(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return tool.Validation(field, "%s must not be empty", field)
	}
	return nil
}

func requirePosition(field string, value int64) error {
	if value <= 0 {
		return tool.Validation(field, "%s must be a positive message number, got %d", field, value)
	}
	return nil
}

func requireNonNegative(field string, value int64) error {
	if value < 0 {
		return tool.Validation(field, "%s must not be negative, got %d", field, value)
	}
	return nil
}

// requireEmails rejects an empty list and blank entries.
func requireEmails(field string, emails []string) error {
	if len(emails) == 0 {
		return tool.Validation(field, "%s must list at least one email address", field)
	}
	for index, email := range emails {
		if !strings.Contains(strings.TrimSpace(email), "@") {
			return tool.Validation(field, "%s[%d] is not an email address: %q", field, index, email)
		}
	}
	return nil
}

// readFiles loads local files for upload. It runs before any request so
// a bad path never costs a network call.
func readFiles(field string, paths []string) ([]fleep.FileContent, error) {
	if len(paths) == 0 {
		return nil, tool.Validation(field, "%s must list at least one file", field)
	}
	files := make([]fleep.FileContent, 0, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, tool.Validation(field, "file %s does not exist", path)
			}
			return nil, tool.Validation(field, "file %s: %v", path, err)
		}
		if !info.Mode().IsRegular() {
			return nil, tool.Validation(field, "%s is not a regular file", path)
		}
		if info.Size() > MaxUploadSize {
			return nil, tool.Validation(field, "file %s is %d bytes, larger than the %d byte limit", path, info.Size(), MaxUploadSize)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("dispatch: reading %s: %w", path, err)
		}
		files = append(files, fleep.FileContent{Name: filepath.Base(path), Data: data})
	}
	return files, nil
}

// nonNil keeps empty lists as [] in results instead of null.
func nonNil[T any](values []T) []T {
	if values == nil {
		return []T{}
	}
	return values
}

// shapeHeader normalizes list fields of a conversation header.
func shapeHeader(header fleep.ConversationHeader) fleep.ConversationHeader {
	header.Members = nonNil(header.Members)
	header.Labels = nonNil(header.Labels)
	header.LabelIDs = nonNil(header.LabelIDs)
	return header
}
