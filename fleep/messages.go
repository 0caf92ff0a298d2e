// Copyright 2026 The fleep-mcp Authors
// SPDX-License-Identifier: Apache-2.0

package fleep

import "context"

// SendMessage posts a message and returns its assigned position.
func (s *Session) SendMessage(ctx context.Context, conversationID string, request SendMessageRequest) (*SendResult, error) {
	var result SendResult
	if err := s.call(ctx, conversationPath("message/send", conversationID), request, &result); err != nil {
		return nil, err
	}
	if result.ConversationID == "" {
		result.ConversationID = conversationID
	}
	return &result, nil
}

// EditMessage replaces the text of the message at messageNr.
func (s *Session) EditMessage(ctx context.Context, conversationID string, messageNr int64, message string) error {
	return s.call(ctx, conversationPath("message/edit", conversationID), editRequest{MessageNr: messageNr, Message: message}, nil)
}

// DeleteMessage deletes the message at messageNr.
func (s *Session) DeleteMessage(ctx context.Context, conversationID string, messageNr int64) error {
	return s.call(ctx, conversationPath("message/delete", conversationID), messageRequest{MessageNr: messageNr}, nil)
}

// MarkRead moves the account's read horizon to messageNr.
func (s *Session) MarkRead(ctx context.Context, conversationID string, messageNr int64) error {
	return s.call(ctx, conversationPath("message/mark_read", conversationID), messageRequest{MessageNr: messageNr}, nil)
}

// Search returns messages matching request.Keywords, in service order.
func (s *Session) Search(ctx context.Context, request SearchRequest) ([]SearchMatch, error) {
	var result searchResponse
	if err := s.call(ctx, "search", request, &result); err != nil {
		return nil, err
	}
	return result.Matches, nil
}
