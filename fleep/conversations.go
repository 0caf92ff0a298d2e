// Copyright 2026 The fleep-mcp Authors
// SPDX-License-Identifier: Apache-2.0

package fleep

import "context"

// ListConversations returns one page of the account's conversations in
// service order.
func (s *Session) ListConversations(ctx context.Context, options ListConversationsOptions) (*ConversationList, error) {
	var result ConversationList
	if err := s.call(ctx, "conversation/list", options, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateConversation creates a conversation and returns its header.
func (s *Session) CreateConversation(ctx context.Context, request CreateConversationRequest) (*ConversationHeader, error) {
	if request.Emails == nil {
		request.Emails = []string{}
	}
	return s.headerCall(ctx, "conversation/create", request)
}

// SyncConversation returns a conversation header and a window of its
// messages starting at options.FromMessageNr.
func (s *Session) SyncConversation(ctx context.Context, conversationID string, options SyncConversationOptions) (*ConversationSync, error) {
	var result ConversationSync
	if err := s.call(ctx, conversationPath("conversation/sync", conversationID), options, &result); err != nil {
		return nil, err
	}
	if result.Header.ConversationID == "" {
		result.Header.ConversationID = conversationID
	}
	return &result, nil
}

// AddMembers invites emails to a conversation.
func (s *Session) AddMembers(ctx context.Context, conversationID string, emails []string) (*ConversationHeader, error) {
	return s.headerCall(ctx, conversationPath("conversation/add_members", conversationID), memberRequest{Emails: emails})
}

// RemoveMembers removes emails from a conversation.
func (s *Session) RemoveMembers(ctx context.Context, conversationID string, emails []string) (*ConversationHeader, error) {
	return s.headerCall(ctx, conversationPath("conversation/remove_members", conversationID), memberRequest{Emails: emails})
}

// SetTopic changes a conversation's topic.
func (s *Session) SetTopic(ctx context.Context, conversationID, topic string) (*ConversationHeader, error) {
	return s.headerCall(ctx, conversationPath("conversation/set_topic", conversationID), topicRequest{Topic: topic})
}

// SetLabels replaces the conversation's label set with labels. An empty
// slice clears all labels; the service applies the set as a whole.
func (s *Session) SetLabels(ctx context.Context, conversationID string, labels []string) (*ConversationHeader, error) {
	if labels == nil {
		labels = []string{}
	}
	return s.headerCall(ctx, conversationPath("conversation/store", conversationID), labelsRequest{Labels: labels})
}

func (s *Session) headerCall(ctx context.Context, path string, body any) (*ConversationHeader, error) {
	var result headerResponse
	if err := s.call(ctx, path, body, &result); err != nil {
		return nil, err
	}
	return &result.Header, nil
}
