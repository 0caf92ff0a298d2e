// Copyright 2026 The fleep-mcp Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/fleepmcp/fleep-mcp/fleep"
	"github.com/fleepmcp/fleep-mcp/lib/tool"
)

type listConversationsParams struct {
	SyncHorizon int64 `json:"sync_horizon" desc:"cursor returned by a previous call; omit for the first page"`
	Limit       int64 `json:"limit"        desc:"maximum conversations to return; omit for the service default"`
}

type listConversationsResult struct {
	Conversations []fleep.ConversationHeader `json:"conversations"`
	SyncHorizon   int64                      `json:"sync_horizon"`
}

type getConversationParams struct {
	ConversationID string `json:"conversation_id" desc:"conversation to read" required:"true"`
	FromMessageNr  int64  `json:"from_message_nr" desc:"first message position to return"`
	Limit          int64  `json:"limit"           desc:"maximum messages to return"`
}

type getConversationResult struct {
	Conversation fleep.ConversationHeader `json:"conversation"`
	Messages     []fleep.Message          `json:"messages"`
}

type createConversationParams struct {
	MemberEmails []string `json:"member_emails" desc:"email addresses of the members" required:"true"`
	Topic        string   `json:"topic"         desc:"conversation topic"`
	IsInvite     bool     `json:"is_invite"     desc:"send invitations to members not yet on Fleep" default:"true"`
	IsAutojoin   bool     `json:"is_autojoin"   desc:"let members join without accepting" default:"false"`
}

type conversationResult struct {
	Conversation fleep.ConversationHeader `json:"conversation"`
}

type membersParams struct {
	ConversationID string   `json:"conversation_id" desc:"conversation to change" required:"true"`
	MemberEmails   []string `json:"member_emails"   desc:"email addresses to add or remove" required:"true"`
}

type setTopicParams struct {
	ConversationID string `json:"conversation_id" desc:"conversation to change" required:"true"`
	Topic          string `json:"topic"           desc:"new topic; empty clears it" required:"true"`
}

type conversationParams struct {
	ConversationID string `json:"conversation_id" desc:"conversation to read" required:"true"`
}

type setLabelsParams struct {
	ConversationID string   `json:"conversation_id" desc:"conversation to label" required:"true"`
	Labels         []string `json:"labels"          desc:"the complete label set; an empty list removes every label" required:"true"`
}

type labelsResult struct {
	ConversationID string   `json:"conversation_id"`
	Topic          string   `json:"topic,omitempty"`
	Labels         []string `json:"labels"`
	LabelIDs       []string `json:"label_ids"`
	LabelCount     int      `json:"label_count"`
	Summary        string   `json:"summary,omitempty"`
}

func (d *dispatcher) conversationTools() []*tool.Tool {
	return []*tool.Tool{
		tool.Define(tool.Spec{
			Name:        "list_conversations",
			Description: "List the account's conversations. Pass the returned sync_horizon to fetch the next page.",
			Annotations: tool.ReadOnly("List conversations"),
		}, func(ctx context.Context, params listConversationsParams) (listConversationsResult, error) {
			if err := requireNonNegative("sync_horizon", params.SyncHorizon); err != nil {
				return listConversationsResult{}, err
			}
			if err := requireNonNegative("limit", params.Limit); err != nil {
				return listConversationsResult{}, err
			}
			list, err := d.session.ListConversations(ctx, fleep.ListConversationsOptions{
				SyncHorizon: params.SyncHorizon,
				Limit:       int(params.Limit),
			})
			if err != nil {
				return listConversationsResult{}, err
			}
			conversations := make([]fleep.ConversationHeader, 0, len(list.Conversations))
			for _, header := range list.Conversations {
				conversations = append(conversations, shapeHeader(header))
			}
			return listConversationsResult{Conversations: conversations, SyncHorizon: list.SyncHorizon}, nil
		}),

		tool.Define(tool.Spec{
			Name:        "get_conversation",
			Description: "Read a conversation header and a window of its messages.",
			Annotations: tool.ReadOnly("Get conversation"),
		}, func(ctx context.Context, params getConversationParams) (getConversationResult, error) {
			if err := requireText("conversation_id", params.ConversationID); err != nil {
				return getConversationResult{}, err
			}
			if err := requireNonNegative("from_message_nr", params.FromMessageNr); err != nil {
				return getConversationResult{}, err
			}
			if err := requireNonNegative("limit", params.Limit); err != nil {
				return getConversationResult{}, err
			}
			sync, err := d.session.SyncConversation(ctx, params.ConversationID, fleep.SyncConversationOptions{
				FromMessageNr: params.FromMessageNr,
				Limit:         int(params.Limit),
				DetailLevel:   fleep.DetailFull,
			})
			if err != nil {
				return getConversationResult{}, err
			}
			return getConversationResult{
				Conversation: shapeHeader(sync.Header),
				Messages:     nonNil(sync.Stream),
			}, nil
		}),

		tool.Define(tool.Spec{
			Name:        "create_conversation",
			Description: "Create a conversation with the given members.",
			Annotations: tool.Create("Create conversation"),
		}, func(ctx context.Context, params createConversationParams) (conversationResult, error) {
			if err := requireEmails("member_emails", params.MemberEmails); err != nil {
				return conversationResult{}, err
			}
			header, err := d.session.CreateConversation(ctx, fleep.CreateConversationRequest{
				Topic:      params.Topic,
				Emails:     params.MemberEmails,
				IsInvite:   params.IsInvite,
				IsAutojoin: params.IsAutojoin,
			})
			if err != nil {
				return conversationResult{}, err
			}
			return conversationResult{Conversation: shapeHeader(*header)}, nil
		}),

		tool.Define(tool.Spec{
			Name:        "add_members",
			Description: "Add members to a conversation.",
			Annotations: tool.Idempotent("Add members"),
		}, func(ctx context.Context, params membersParams) (conversationResult, error) {
			return d.changeMembers(ctx, params, d.session.AddMembers)
		}),

		tool.Define(tool.Spec{
			Name:        "remove_members",
			Description: "Remove members from a conversation.",
			Annotations: tool.Destructive("Remove members"),
		}, func(ctx context.Context, params membersParams) (conversationResult, error) {
			return d.changeMembers(ctx, params, d.session.RemoveMembers)
		}),

		tool.Define(tool.Spec{
			Name:        "set_topic",
			Description: "Change a conversation's topic.",
			Annotations: tool.Idempotent("Set topic"),
		}, func(ctx context.Context, params setTopicParams) (conversationResult, error) {
			if err := requireText("conversation_id", params.ConversationID); err != nil {
				return conversationResult{}, err
			}
			header, err := d.session.SetTopic(ctx, params.ConversationID, params.Topic)
			if err != nil {
				return conversationResult{}, err
			}
			return conversationResult{Conversation: shapeHeader(*header)}, nil
		}),

		tool.Define(tool.Spec{
			Name:        "get_conversation_labels",
			Description: "Read the labels attached to a conversation.",
			Annotations: tool.ReadOnly("Get conversation labels"),
		}, func(ctx context.Context, params conversationParams) (labelsResult, error) {
			if err := requireText("conversation_id", params.ConversationID); err != nil {
				return labelsResult{}, err
			}
			sync, err := d.session.SyncConversation(ctx, params.ConversationID, fleep.SyncConversationOptions{
				DetailLevel: fleep.DetailHeader,
			})
			if err != nil {
				return labelsResult{}, err
			}
			result := newLabelsResult(params.ConversationID, sync.Header)
			if result.LabelCount == 0 {
				result.Summary = "No labels on this conversation"
			} else {
				result.Summary = fmt.Sprintf("Found %d label(s): %s", result.LabelCount, strings.Join(result.Labels, ", "))
			}
			return result, nil
		}),

		tool.Define(tool.Spec{
			Name:        "set_conversation_labels",
			Description: "Replace a conversation's labels with exactly the given list. Labels not listed are removed.",
			Annotations: tool.Idempotent("Set conversation labels"),
		}, func(ctx context.Context, params setLabelsParams) (labelsResult, error) {
			if err := requireText("conversation_id", params.ConversationID); err != nil {
				return labelsResult{}, err
			}
			for index, label := range params.Labels {
				if strings.TrimSpace(label) == "" {
					return labelsResult{}, tool.Validation("labels", "labels[%d] must not be empty", index)
				}
			}
			header, err := d.session.SetLabels(ctx, params.ConversationID, params.Labels)
			if err != nil {
				return labelsResult{}, err
			}
			result := newLabelsResult(params.ConversationID, *header)
			if result.LabelCount == 0 {
				result.Summary = "Cleared all labels from the conversation"
			} else {
				result.Summary = fmt.Sprintf("Set %d label(s): %s", result.LabelCount, strings.Join(result.Labels, ", "))
			}
			return result, nil
		}),
	}
}

func (d *dispatcher) changeMembers(
	ctx context.Context,
	params membersParams,
	change func(context.Context, string, []string) (*fleep.ConversationHeader, error),
) (conversationResult, error) {
	if err := requireText("conversation_id", params.ConversationID); err != nil {
		return conversationResult{}, err
	}
	if err := requireEmails("member_emails", params.MemberEmails); err != nil {
		return conversationResult{}, err
	}
	header, err := change(ctx, params.ConversationID, params.MemberEmails)
	if err != nil {
		return conversationResult{}, err
	}
	return conversationResult{Conversation: shapeHeader(*header)}, nil
}

func newLabelsResult(conversationID string, header fleep.ConversationHeader) labelsResult {
	if header.ConversationID != "" {
		conversationID = header.ConversationID
	}
	return labelsResult{
		ConversationID: conversationID,
		Topic:          header.Topic,
		Labels:         nonNil(header.Labels),
		LabelIDs:       nonNil(header.LabelIDs),
		LabelCount:     len(header.Labels),
	}
}
