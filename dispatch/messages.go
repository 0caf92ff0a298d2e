// Copyright 2026 The fleep-mcp Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"
	"fmt"

	"github.com/fleepmcp/fleep-mcp/fleep"
	"github.com/fleepmcp/fleep-mcp/lib/tool"
)

type sendMessageParams struct {
	ConversationID string   `json:"conversation_id" desc:"conversation to post in" required:"true"`
	Message        string   `json:"message"         desc:"message text" required:"true"`
	Attachments    []string `json:"attachments"     desc:"URLs of files already uploaded with upload_files"`
	FilePaths      []string `json:"file_paths"      desc:"local files to upload and attach"`
}

type sendMessageResult struct {
	ConversationID  string `json:"conversation_id"`
	MessageNr       int64  `json:"message_nr"`
	AttachmentCount int    `json:"attachment_count"`
	Summary         string `json:"summary,omitempty"`
}

type editMessageParams struct {
	ConversationID string `json:"conversation_id" desc:"conversation containing the message" required:"true"`
	MessageNr      int64  `json:"message_nr"      desc:"position of the message to edit" required:"true"`
	Message        string `json:"message"         desc:"replacement text" required:"true"`
}

type messageParams struct {
	ConversationID string `json:"conversation_id" desc:"conversation containing the message" required:"true"`
	MessageNr      int64  `json:"message_nr"      desc:"message position" required:"true"`
}

// messageRef addresses one message.
type messageRef struct {
	ConversationID string `json:"conversation_id"`
	MessageNr      int64  `json:"message_nr"`
}

type searchParams struct {
	Query          string `json:"query"           desc:"keywords to search for" required:"true"`
	ConversationID string `json:"conversation_id" desc:"restrict the search to one conversation"`
}

type searchResult struct {
	Results []fleep.SearchMatch `json:"results"`
}

func (params messageParams) validate() error {
	if err := requireText("conversation_id", params.ConversationID); err != nil {
		return err
	}
	return requirePosition("message_nr", params.MessageNr)
}

func (d *dispatcher) messageTools() []*tool.Tool {
	return []*tool.Tool{
		tool.Define(tool.Spec{
			Name:        "send_message",
			Description: "Post a message to a conversation. Files listed in file_paths are uploaded first and attached.",
			Annotations: tool.Create("Send message"),
		}, d.sendMessage),

		tool.Define(tool.Spec{
			Name:        "edit_message",
			Description: "Replace the text of an existing message.",
			Annotations: tool.Destructive("Edit message"),
		}, func(ctx context.Context, params editMessageParams) (messageRef, error) {
			if err := (messageParams{params.ConversationID, params.MessageNr}).validate(); err != nil {
				return messageRef{}, err
			}
			if err := d.session.EditMessage(ctx, params.ConversationID, params.MessageNr, params.Message); err != nil {
				return messageRef{}, err
			}
			return messageRef{ConversationID: params.ConversationID, MessageNr: params.MessageNr}, nil
		}),

		tool.Define(tool.Spec{
			Name:        "delete_message",
			Description: "Delete a message.",
			Annotations: tool.Destructive("Delete message"),
		}, func(ctx context.Context, params messageParams) (messageRef, error) {
			if err := params.validate(); err != nil {
				return messageRef{}, err
			}
			if err := d.session.DeleteMessage(ctx, params.ConversationID, params.MessageNr); err != nil {
				return messageRef{}, err
			}
			return messageRef(params), nil
		}),

		tool.Define(tool.Spec{
			Name:        "mark_read",
			Description: "Mark a conversation as read up to and including a message.",
			Annotations: tool.Idempotent("Mark read"),
		}, func(ctx context.Context, params messageParams) (messageRef, error) {
			if err := params.validate(); err != nil {
				return messageRef{}, err
			}
			if err := d.session.MarkRead(ctx, params.ConversationID, params.MessageNr); err != nil {
				return messageRef{}, err
			}
			return messageRef(params), nil
		}),

		tool.Define(tool.Spec{
			Name:        "search_messages",
			Description: "Search messages by keyword. Results keep the service's order and include neighbouring messages for context.",
			Annotations: tool.ReadOnly("Search messages"),
		}, func(ctx context.Context, params searchParams) (searchResult, error) {
			if err := requireText("query", params.Query); err != nil {
				return searchResult{}, err
			}
			matches, err := d.session.Search(ctx, fleep.SearchRequest{
				Keywords:       params.Query,
				ConversationID: params.ConversationID,
			})
			if err != nil {
				return searchResult{}, err
			}
			for index := range matches {
				matches[index].ContextBefore = nonNil(matches[index].ContextBefore)
				matches[index].ContextAfter = nonNil(matches[index].ContextAfter)
			}
			return searchResult{Results: nonNil(matches)}, nil
		}),
	}
}

func (d *dispatcher) sendMessage(ctx context.Context, params sendMessageParams) (sendMessageResult, error) {
	if err := requireText("conversation_id", params.ConversationID); err != nil {
		return sendMessageResult{}, err
	}
	if err := requireText("message", params.Message); err != nil {
		return sendMessageResult{}, err
	}

	attachments := append([]string(nil), params.Attachments...)
	if len(params.FilePaths) > 0 {
		files, err := readFiles("file_paths", params.FilePaths)
		if err != nil {
			return sendMessageResult{}, err
		}
		uploaded, err := d.session.Upload(ctx, files)
		if err != nil {
			return sendMessageResult{}, err
		}
		for _, file := range uploaded {
			attachments = append(attachments, file.UploadURL)
		}
		d.logger.Debug("uploaded attachments",
			"conversation_id", params.ConversationID,
			"files", len(uploaded),
		)
	}

	result, err := d.session.SendMessage(ctx, params.ConversationID, fleep.SendMessageRequest{
		Message:     params.Message,
		Attachments: attachments,
	})
	if err != nil {
		return sendMessageResult{}, err
	}
	return sendMessageResult{
		ConversationID:  result.ConversationID,
		MessageNr:       result.MessageNr,
		AttachmentCount: len(attachments),
		Summary:         sendSummary(result.ConversationID, len(attachments)),
	}, nil
}

func sendSummary(conversationID string, attachments int) string {
	switch attachments {
	case 0:
		return "Sent message to conversation " + conversationID
	case 1:
		return "Sent message to conversation " + conversationID + " with 1 attachment"
	}
	return fmt.Sprintf("Sent message to conversation %s with %d attachments", conversationID, attachments)
}
