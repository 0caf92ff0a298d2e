// Copyright 2026 The fleep-mcp Authors
// SPDX-License-Identifier: Apache-2.0

package fleep

// Request and response bodies for the Fleep API. Response types declare
// only the fields this adapter uses; anything else the service sends is
// dropped during decoding.

// loginRequest is the body of account/login. It is the only request
// without a ticket.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse carries the ticket; the token arrives as a cookie.
type loginResponse struct {
	Ticket      string `json:"ticket"`
	AccountID   string `json:"account_id"`
	DisplayName string `json:"display_name"`
}

// ConversationHeader describes a conversation.
type ConversationHeader struct {
	ConversationID string   `json:"conversation_id"`
	Topic          string   `json:"topic"`
	Members        []string `json:"members"`
	Labels         []string `json:"labels"`
	LabelIDs       []string `json:"label_ids"`
	LastMessageNr  int64    `json:"last_message_nr"`
	Snippet        string   `json:"snippet"`
}

// Message is one message in a conversation stream. MessageNr is its
// position within the conversation.
type Message struct {
	ConversationID string   `json:"conversation_id"`
	MessageNr      int64    `json:"message_nr"`
	AccountID      string   `json:"account_id"`
	Message        string   `json:"message"`
	PostedTime     int64    `json:"posted_time"`
	Attachments    []string `json:"attachments,omitempty"`
}

// SearchMatch is one search hit with the messages around it.
type SearchMatch struct {
	ConversationID string    `json:"conversation_id"`
	MessageNr      int64     `json:"message_nr"`
	AccountID      string    `json:"account_id"`
	Message        string    `json:"message"`
	ContextBefore  []Message `json:"context_before"`
	ContextAfter   []Message `json:"context_after"`
}

// Contact is an account known to the session's account.
type Contact struct {
	AccountID   string `json:"account_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// AccountEvent is one record from the account/poll stream.
type AccountEvent struct {
	RecordType     string `json:"mk_rec_type"`
	ConversationID string `json:"conversation_id"`
	MessageNr      int64  `json:"message_nr"`
}

// UploadedFile describes a file accepted by file/upload. UploadURL is what
// message/send takes as an attachment reference.
type UploadedFile struct {
	FileName  string `json:"file_name"`
	UploadURL string `json:"upload_url"`
	Size      int64  `json:"size"`
}

// Profile is the account's own profile as returned by account/configure.
type Profile struct {
	AccountID   string `json:"account_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// ListConversationsOptions pages through conversation/list. Both fields
// are passed through verbatim; zero values are omitted.
type ListConversationsOptions struct {
	SyncHorizon int64 `json:"sync_horizon,omitempty"`
	Limit       int   `json:"limit,omitempty"`
}

// ConversationList is one page of conversations. SyncHorizon is the
// cursor for the next page.
type ConversationList struct {
	Conversations []ConversationHeader `json:"conversations"`
	SyncHorizon   int64                `json:"sync_horizon"`
}

// CreateConversationRequest is the body of conversation/create.
type CreateConversationRequest struct {
	Topic      string   `json:"topic,omitempty"`
	Emails     []string `json:"emails"`
	IsInvite   bool     `json:"is_invite"`
	IsAutojoin bool     `json:"is_autojoin"`
}

// Detail levels accepted by conversation/sync.
const (
	// DetailHeader returns the conversation header without a stream.
	DetailHeader = "ic_header"
	// DetailFull returns the header and a window of messages.
	DetailFull = "ic_full"
)

// SyncConversationOptions selects the stream window for conversation/sync.
// An empty DetailLevel lets the service choose.
type SyncConversationOptions struct {
	FromMessageNr int64  `json:"from_message_nr,omitempty"`
	Limit         int    `json:"limit,omitempty"`
	DetailLevel   string `json:"detail_level,omitempty"`
}

// ConversationSync is a conversation header plus a window of messages in
// service order.
type ConversationSync struct {
	Header ConversationHeader `json:"header"`
	Stream []Message          `json:"stream"`
}

// SendMessageRequest is the body of message/send.
type SendMessageRequest struct {
	Message     string   `json:"message"`
	Attachments []string `json:"attachments,omitempty"`
}

// SendResult reports the position assigned to a new message.
type SendResult struct {
	ConversationID string `json:"conversation_id"`
	MessageNr      int64  `json:"result_message_nr"`
}

// SearchRequest is the body of search.
type SearchRequest struct {
	Keywords       string `json:"keywords"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// PollOptions is the body of account/poll.
type PollOptions struct {
	EventHorizon int64 `json:"event_horizon"`
	Wait         bool  `json:"wait"`
}

// PollResult is one batch of account events.
type PollResult struct {
	EventHorizon int64          `json:"event_horizon"`
	Stream       []AccountEvent `json:"stream"`
}

// ConfigureRequest is the body of account/configure. Empty fields are
// left unchanged by the service.
type ConfigureRequest struct {
	DisplayName   string `json:"display_name,omitempty"`
	EmailInterval string `json:"email_interval,omitempty"`
}

// memberRequest is the body of conversation/add_members and
// conversation/remove_members.
type memberRequest struct {
	Emails []string `json:"emails"`
}

// topicRequest is the body of conversation/set_topic.
type topicRequest struct {
	Topic string `json:"topic"`
}

// labelsRequest is the body of conversation/store. Labels is never
// omitted: an empty list clears every label.
type labelsRequest struct {
	Labels []string `json:"labels"`
}

// messageRequest addresses one message by position.
type messageRequest struct {
	MessageNr int64 `json:"message_nr"`
}

// editRequest is the body of message/edit.
type editRequest struct {
	MessageNr int64  `json:"message_nr"`
	Message   string `json:"message"`
}

type searchResponse struct {
	Matches []SearchMatch `json:"matches"`
}

type contactsResponse struct {
	Contacts []Contact `json:"contacts"`
}

type uploadResponse struct {
	Files []UploadedFile `json:"files"`
}

// headerResponse wraps endpoints that answer with a conversation header.
type headerResponse struct {
	Header ConversationHeader `json:"header"`
}
