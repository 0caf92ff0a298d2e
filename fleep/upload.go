// Copyright 2026 The fleep-mcp Authors
// SPDX-License-Identifier: Apache-2.0

package fleep

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
)

// FileContent is one file to upload.
type FileContent struct {
	Name string
	Data []byte
}

// Upload sends files to file/upload in one multipart request and returns
// the service's description of each, in upload order. The returned
// UploadURL values are what SendMessageRequest.Attachments takes.
func (s *Session) Upload(ctx context.Context, files []FileContent) ([]UploadedFile, error) {
	if len(files) == 0 {
		return nil, errors.New("fleep: upload requires at least one file")
	}

	var buffer bytes.Buffer
	writer := multipart.NewWriter(&buffer)
	for _, file := range files {
		part, err := writer.CreateFormFile("files", file.Name)
		if err != nil {
			return nil, fmt.Errorf("fleep: building upload for %q: %w", file.Name, err)
		}
		if _, err := part.Write(file.Data); err != nil {
			return nil, fmt.Errorf("fleep: building upload for %q: %w", file.Name, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("fleep: building upload: %w", err)
	}
	payload := buffer.Bytes()
	contentType := writer.FormDataContentType()

	const path = "file/upload"
	raw, err := s.authorized(ctx, path, func(token sessionToken) ([]byte, error) {
		return s.client.postMultipart(ctx, path, token, contentType, bytes.NewReader(payload))
	})
	if err != nil {
		return nil, err
	}

	var result uploadResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	return result.Files, nil
}
