// Copyright 2026 The fleep-mcp Authors
// SPDX-License-Identifier: Apache-2.0

package fleep_test

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"testing"

	"github.com/fleepmcp/fleep-mcp/fleep"
	"github.com/fleepmcp/fleep-mcp/fleep/fleeptest"
)

func TestConversationOperations(t *testing.T) {
	ctx := context.Background()
	server := fleeptest.New(t)
	server.AddConversation(fleep.ConversationHeader{
		ConversationID: "conv-1",
		Topic:          "Planning",
		Members:        []string{"a@example.com"},
		Labels:         []string{"old"},
	}, "one", "two", "three")
	server.AddConversation(fleep.ConversationHeader{ConversationID: "conv-2", Topic: "Other"})
	session := newSession(t, server, fleeptest.Password, nil)

	t.Run("list pages through sync_horizon", func(t *testing.T) {
		page, err := session.ListConversations(ctx, fleep.ListConversationsOptions{Limit: 1})
		if err != nil {
			t.Fatalf("ListConversations: %v", err)
		}
		if len(page.Conversations) != 1 || page.Conversations[0].ConversationID != "conv-1" {
			t.Fatalf("first page = %+v", page.Conversations)
		}
		next, err := session.ListConversations(ctx, fleep.ListConversationsOptions{SyncHorizon: page.SyncHorizon, Limit: 1})
		if err != nil {
			t.Fatalf("ListConversations: %v", err)
		}
		if len(next.Conversations) != 1 || next.Conversations[0].ConversationID != "conv-2" {
			t.Errorf("second page = %+v", next.Conversations)
		}
	})

	t.Run("sync window", func(t *testing.T) {
		sync, err := session.SyncConversation(ctx, "conv-1", fleep.SyncConversationOptions{FromMessageNr: 2})
		if err != nil {
			t.Fatalf("SyncConversation: %v", err)
		}
		if sync.Header.Topic != "Planning" {
			t.Errorf("topic = %q", sync.Header.Topic)
		}
		if len(sync.Stream) != 2 || sync.Stream[0].MessageNr != 2 || sync.Stream[1].Message != "three" {
			t.Errorf("stream = %+v", sync.Stream)
		}
	})

	t.Run("sync header only", func(t *testing.T) {
		sync, err := session.SyncConversation(ctx, "conv-1", fleep.SyncConversationOptions{DetailLevel: fleep.DetailHeader})
		if err != nil {
			t.Fatalf("SyncConversation: %v", err)
		}
		if len(sync.Stream) != 0 {
			t.Errorf("stream = %+v, want none", sync.Stream)
		}
	})

	t.Run("sync unknown conversation", func(t *testing.T) {
		_, err := session.SyncConversation(ctx, "conv-missing", fleep.SyncConversationOptions{})
		var apiErr *fleep.APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
			t.Errorf("error = %v, want 404 APIError", err)
		}
	})

	t.Run("create", func(t *testing.T) {
		header, err := session.CreateConversation(ctx, fleep.CreateConversationRequest{
			Topic:    "New",
			Emails:   []string{"b@example.com", "c@example.com"},
			IsInvite: true,
		})
		if err != nil {
			t.Fatalf("CreateConversation: %v", err)
		}
		if header.ConversationID == "" || header.Topic != "New" {
			t.Errorf("header = %+v", header)
		}
		if !slices.Equal(header.Members, []string{"b@example.com", "c@example.com"}) {
			t.Errorf("members = %v", header.Members)
		}
	})

	t.Run("members", func(t *testing.T) {
		header, err := session.AddMembers(ctx, "conv-1", []string{"b@example.com"})
		if err != nil {
			t.Fatalf("AddMembers: %v", err)
		}
		if !slices.Contains(header.Members, "b@example.com") {
			t.Errorf("members after add = %v", header.Members)
		}
		header, err = session.RemoveMembers(ctx, "conv-1", []string{"a@example.com"})
		if err != nil {
			t.Fatalf("RemoveMembers: %v", err)
		}
		if !slices.Equal(header.Members, []string{"b@example.com"}) {
			t.Errorf("members after remove = %v", header.Members)
		}
	})

	t.Run("topic", func(t *testing.T) {
		header, err := session.SetTopic(ctx, "conv-2", "Renamed")
		if err != nil {
			t.Fatalf("SetTopic: %v", err)
		}
		if header.Topic != "Renamed" {
			t.Errorf("topic = %q", header.Topic)
		}
	})

	t.Run("labels replace", func(t *testing.T) {
		header, err := session.SetLabels(ctx, "conv-1", []string{"urgent", "q3"})
		if err != nil {
			t.Fatalf("SetLabels: %v", err)
		}
		if !slices.Equal(header.Labels, []string{"urgent", "q3"}) {
			t.Errorf("labels = %v", header.Labels)
		}
		header, err = session.SetLabels(ctx, "conv-1", nil)
		if err != nil {
			t.Fatalf("SetLabels(nil): %v", err)
		}
		if len(header.Labels) != 0 {
			t.Errorf("labels after clear = %v", header.Labels)
		}
	})
}

func TestMessageOperations(t *testing.T) {
	ctx := context.Background()
	server := fleeptest.New(t)
	server.AddConversation(fleep.ConversationHeader{ConversationID: "conv-123"}, "hello")
	session := newSession(t, server, fleeptest.Password, nil)

	sent, err := session.SendMessage(ctx, "conv-123", fleep.SendMessageRequest{Message: "hi", Attachments: []string{"https://x/1"}})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if sent.ConversationID != "conv-123" || sent.MessageNr != 2 {
		t.Errorf("SendResult = %+v", sent)
	}

	if err := session.EditMessage(ctx, "conv-123", sent.MessageNr, "hi there"); err != nil {
		t.Fatalf("EditMessage: %v", err)
	}
	if err := session.MarkRead(ctx, "conv-123", sent.MessageNr); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if err := session.DeleteMessage(ctx, "conv-123", 1); err != nil {
		t.Fatalf("DeleteMessage: %v", err)
	}

	messages := server.Messages("conv-123")
	if messages[0].Message != "" || messages[1].Message != "hi there" {
		t.Errorf("messages = %+v", messages)
	}
	if !slices.Equal(messages[1].Attachments, []string{"https://x/1"}) {
		t.Errorf("attachments = %v", messages[1].Attachments)
	}
	if server.ReadHorizon("conv-123") != sent.MessageNr {
		t.Errorf("read horizon = %d", server.ReadHorizon("conv-123"))
	}

	err = session.EditMessage(ctx, "conv-123", 99, "nope")
	var apiErr *fleep.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("edit missing message: error = %v, want 404", err)
	}
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	server := fleeptest.New(t)
	server.AddConversation(fleep.ConversationHeader{ConversationID: "conv-a"}, "budget draft", "lunch?", "final budget")
	server.AddConversation(fleep.ConversationHeader{ConversationID: "conv-b"}, "Budget review")
	session := newSession(t, server, fleeptest.Password, nil)

	matches, err := session.Search(ctx, fleep.SearchRequest{Keywords: "budget"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	var got []string
	for _, match := range matches {
		got = append(got, match.ConversationID+":"+match.Message)
	}
	want := []string{"conv-a:budget draft", "conv-a:final budget", "conv-b:Budget review"}
	if !slices.Equal(got, want) {
		t.Errorf("matches = %v, want %v", got, want)
	}
	if len(matches[0].ContextAfter) != 1 || matches[0].ContextAfter[0].Message != "lunch?" {
		t.Errorf("context after first match = %+v", matches[0].ContextAfter)
	}

	filtered, err := session.Search(ctx, fleep.SearchRequest{Keywords: "budget", ConversationID: "conv-b"})
	if err != nil {
		t.Fatalf("Search filtered: %v", err)
	}
	if len(filtered) != 1 || filtered[0].ConversationID != "conv-b" {
		t.Errorf("filtered = %+v", filtered)
	}
}

func TestAccountOperations(t *testing.T) {
	ctx := context.Background()
	server := fleeptest.New(t)
	server.AddContact(fleep.Contact{AccountID: "acc-2", Email: "b@example.com", DisplayName: "Bee"})
	server.AddEvent(fleep.AccountEvent{RecordType: "message", ConversationID: "conv-1", MessageNr: 4})
	server.AddEvent(fleep.AccountEvent{RecordType: "conv", ConversationID: "conv-2"})
	session := newSession(t, server, fleeptest.Password, nil)

	contacts, err := session.SyncContacts(ctx)
	if err != nil {
		t.Fatalf("SyncContacts: %v", err)
	}
	if len(contacts) != 1 || contacts[0].Email != "b@example.com" {
		t.Errorf("contacts = %+v", contacts)
	}

	poll, err := session.Poll(ctx, fleep.PollOptions{EventHorizon: 1})
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if poll.EventHorizon != 2 || len(poll.Stream) != 1 || poll.Stream[0].ConversationID != "conv-2" {
		t.Errorf("poll = %+v", poll)
	}

	profile, err := session.Configure(ctx, fleep.ConfigureRequest{DisplayName: "Renamed Agent"})
	if err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if profile.DisplayName != "Renamed Agent" || server.DisplayName() != "Renamed Agent" {
		t.Errorf("profile = %+v", profile)
	}
}

func TestUpload(t *testing.T) {
	ctx := context.Background()
	server := fleeptest.New(t)
	session := newSession(t, server, fleeptest.Password, nil)

	if err := session.Authenticate(ctx); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	// Upload goes through the same re-authentication path as JSON calls.
	server.ExpireTokens()

	files, err := session.Upload(ctx, []fleep.FileContent{
		{Name: "notes.txt", Data: []byte("hello")},
		{Name: "plan.md", Data: []byte("# plan")},
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if len(files) != 2 || files[0].FileName != "notes.txt" || files[1].Size != 6 {
		t.Errorf("files = %+v", files)
	}
	if files[0].UploadURL == "" {
		t.Error("upload URL is empty")
	}
	if server.Logins() != 2 || server.Requests("file/upload") != 2 {
		t.Errorf("logins = %d, uploads = %d", server.Logins(), server.Requests("file/upload"))
	}

	if _, err := session.Upload(ctx, nil); err == nil {
		t.Error("expected error for empty upload")
	}
}
