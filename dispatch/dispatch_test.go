// Copyright 2026 The fleep-mcp Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch_test

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/fleepmcp/fleep-mcp/dispatch"
	"github.com/fleepmcp/fleep-mcp/fleep"
	"github.com/fleepmcp/fleep-mcp/fleep/fleeptest"
	"github.com/fleepmcp/fleep-mcp/lib/secret"
	"github.com/fleepmcp/fleep-mcp/lib/testutil"
	"github.com/fleepmcp/fleep-mcp/lib/tool"
)

// harness is a tool registry bound to a session against a fake Fleep
// service.
type harness struct {
	server   *fleeptest.Server
	registry *tool.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	server := fleeptest.New(t)
	client, err := fleep.NewClient(fleep.ClientConfig{BaseURL: server.BaseURL(), Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	password, err := secret.FromString(fleeptest.Password)
	if err != nil {
		t.Fatalf("secret.FromString: %v", err)
	}
	session, err := fleep.NewSession(client, fleep.SessionConfig{Email: fleeptest.Email, Password: password})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(func() { session.Close() })

	registry, err := dispatch.New(session, nil)
	if err != nil {
		t.Fatalf("dispatch.New: %v", err)
	}
	return &harness{server: server, registry: registry}
}

func (h *harness) invoke(t *testing.T, name string, arguments any) (any, error) {
	t.Helper()
	raw, err := json.Marshal(arguments)
	if err != nil {
		t.Fatalf("marshal arguments: %v", err)
	}
	return h.registry.Call(context.Background(), name, raw)
}

// call runs a tool that must succeed and decodes its result into out
// the way an MCP client would see it.
func (h *harness) call(t *testing.T, name string, arguments, out any) {
	t.Helper()
	result, err := h.invoke(t, name, arguments)
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	encoded, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("%s: marshal result: %v", name, err)
	}
	if err := json.Unmarshal(encoded, out); err != nil {
		t.Fatalf("%s: unmarshal result %s: %v", name, encoded, err)
	}
}

// fail runs a tool that must fail and returns the classified error.
func (h *harness) fail(t *testing.T, name string, arguments any) *tool.ToolError {
	t.Helper()
	result, err := h.invoke(t, name, arguments)
	if err == nil {
		t.Fatalf("%s succeeded with %+v, want an error", name, result)
	}
	return h.registry.Classify(err)
}

type conversation struct {
	ConversationID string   `json:"conversation_id"`
	Topic          string   `json:"topic"`
	Members        []string `json:"members"`
	Labels         []string `json:"labels"`
	LabelIDs       []string `json:"label_ids"`
}

type labels struct {
	ConversationID string   `json:"conversation_id"`
	Labels         []string `json:"labels"`
	LabelIDs       []string `json:"label_ids"`
	LabelCount     int      `json:"label_count"`
	Summary        string   `json:"summary"`
}

type sent struct {
	ConversationID  string `json:"conversation_id"`
	MessageNr       int64  `json:"message_nr"`
	AttachmentCount int    `json:"attachment_count"`
	Summary         string `json:"summary"`
}

func TestCatalogue(t *testing.T) {
	h := newHarness(t)
	want := []string{
		"send_message", "edit_message", "delete_message", "mark_read", "search_messages",
		"list_conversations", "get_conversation", "create_conversation", "add_members",
		"remove_members", "set_topic", "get_conversation_labels", "set_conversation_labels",
		"sync_contacts", "poll_account", "configure_account", "upload_files",
	}
	var names []string
	for _, definition := range h.registry.Tools() {
		names = append(names, definition.Name)
		if definition.Description == "" {
			t.Errorf("%s has no description", definition.Name)
		}
		if definition.Annotations == nil || definition.Annotations.ReadOnlyHint == nil {
			t.Errorf("%s has no annotations", definition.Name)
		}
		if definition.InputSchema == nil || definition.InputSchema.Type != "object" {
			t.Errorf("%s input schema = %+v", definition.Name, definition.InputSchema)
		}
		if definition.OutputSchema == nil || definition.OutputSchema.Type != "object" {
			t.Errorf("%s output schema = %+v", definition.Name, definition.OutputSchema)
		}
	}
	if !slices.Equal(names, want) {
		t.Errorf("tools = %v, want %v", names, want)
	}

	create, _ := h.registry.Lookup("create_conversation")
	if create.InputSchema.Properties["is_invite"].Default != true {
		t.Errorf("is_invite default = %v, want true", create.InputSchema.Properties["is_invite"].Default)
	}
	if create.InputSchema.Properties["is_autojoin"].Default != false {
		t.Errorf("is_autojoin default = %v, want false", create.InputSchema.Properties["is_autojoin"].Default)
	}
}

func TestNew_RequiresSession(t *testing.T) {
	if _, err := dispatch.New(nil, nil); err == nil {
		t.Error("New(nil) succeeded")
	}
}

func TestMissingRequiredArgumentMakesNoRequest(t *testing.T) {
	h := newHarness(t)
	checked := 0
	for _, definition := range h.registry.Tools() {
		required := definition.InputSchema.Required
		if len(required) == 0 {
			continue
		}
		checked++
		t.Run(definition.Name, func(t *testing.T) {
			toolErr := h.fail(t, definition.Name, map[string]any{})
			if toolErr.Kind != tool.KindValidation {
				t.Fatalf("kind = %s, want validation_error (%v)", toolErr.Kind, toolErr)
			}
			if !slices.Contains(required, toolErr.Field) {
				t.Errorf("field = %q, want one of %v", toolErr.Field, required)
			}
		})
	}
	if checked != 13 {
		t.Errorf("checked %d tools with required arguments, want 13", checked)
	}
	if h.server.TotalRequests() != 0 || h.server.Logins() != 0 {
		t.Errorf("requests = %d, logins = %d, want none", h.server.TotalRequests(), h.server.Logins())
	}
}

func TestInvalidArgumentsMakeNoRequest(t *testing.T) {
	h := newHarness(t)
	missing := t.TempDir() + "/missing.txt"
	tests := []struct {
		name      string
		tool      string
		arguments map[string]any
		wantField string
	}{
		{"blank conversation id", "send_message", map[string]any{"conversation_id": " ", "message": "hi"}, "conversation_id"},
		{"blank message", "send_message", map[string]any{"conversation_id": "conv-1", "message": ""}, "message"},
		{"attachments not strings", "send_message", map[string]any{"conversation_id": "conv-1", "message": "hi", "attachments": []int{1}}, "attachments"},
		{"missing file", "send_message", map[string]any{"conversation_id": "conv-1", "message": "hi", "file_paths": []string{missing}}, "file_paths"},
		{"unknown argument", "send_message", map[string]any{"conversation_id": "conv-1", "message": "hi", "priority": "high"}, "priority"},
		{"message_nr zero", "edit_message", map[string]any{"conversation_id": "conv-1", "message_nr": 0, "message": "x"}, "message_nr"},
		{"message_nr fractional", "delete_message", map[string]any{"conversation_id": "conv-1", "message_nr": 1.5}, "message_nr"},
		{"message_nr string", "mark_read", map[string]any{"conversation_id": "conv-1", "message_nr": "3"}, "message_nr"},
		{"empty members", "create_conversation", map[string]any{"member_emails": []string{}}, "member_emails"},
		{"not an email", "add_members", map[string]any{"conversation_id": "conv-1", "member_emails": []string{"bob"}}, "member_emails"},
		{"invite not boolean", "create_conversation", map[string]any{"member_emails": []string{"a@example.com"}, "is_invite": "yes"}, "is_invite"},
		{"labels null", "set_conversation_labels", map[string]any{"conversation_id": "conv-1", "labels": nil}, "labels"},
		{"blank label", "set_conversation_labels", map[string]any{"conversation_id": "conv-1", "labels": []string{"ok", " "}}, "labels"},
		{"negative limit", "list_conversations", map[string]any{"limit": -1}, "limit"},
		{"blank query", "search_messages", map[string]any{"query": "  "}, "query"},
		{"negative horizon", "poll_account", map[string]any{"event_horizon": -5}, "event_horizon"},
		{"no files", "upload_files", map[string]any{"file_paths": []string{}}, "file_paths"},
		{"directory", "upload_files", map[string]any{"file_paths": []string{t.TempDir()}}, "file_paths"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			toolErr := h.fail(t, test.tool, test.arguments)
			if toolErr.Kind != tool.KindValidation {
				t.Fatalf("kind = %s, want validation_error (%v)", toolErr.Kind, toolErr)
			}
			if toolErr.Field != test.wantField {
				t.Errorf("field = %q, want %q (%v)", toolErr.Field, test.wantField, toolErr)
			}
		})
	}
	if h.server.TotalRequests() != 0 || h.server.Logins() != 0 {
		t.Errorf("requests = %d, logins = %d, want none", h.server.TotalRequests(), h.server.Logins())
	}
}

func TestCreateConversationReturnsSubmittedMembers(t *testing.T) {
	h := newHarness(t)
	members := []string{"carol@example.com", "alice@example.com", "bob@example.com"}

	var result struct {
		Conversation conversation `json:"conversation"`
	}
	h.call(t, "create_conversation", map[string]any{"member_emails": members, "topic": "Launch"}, &result)

	got := slices.Clone(result.Conversation.Members)
	want := slices.Clone(members)
	slices.Sort(got)
	slices.Sort(want)
	if !slices.Equal(got, want) {
		t.Errorf("members = %v, want %v", result.Conversation.Members, members)
	}
	if result.Conversation.ConversationID == "" || result.Conversation.Topic != "Launch" {
		t.Errorf("conversation = %+v", result.Conversation)
	}
	if result.Conversation.Labels == nil {
		t.Error("labels should be an empty list, not null")
	}
}

func TestConversationLabels(t *testing.T) {
	h := newHarness(t)
	h.server.AddConversation(fleep.ConversationHeader{
		ConversationID: "conv-1",
		Labels:         []string{"old", "stale"},
		LabelIDs:       []string{"label-old", "label-stale"},
	})

	get := func(t *testing.T) labels {
		t.Helper()
		var result labels
		h.call(t, "get_conversation_labels", map[string]any{"conversation_id": "conv-1"}, &result)
		return result
	}

	t.Run("set replaces the full set", func(t *testing.T) {
		want := []string{"Budget", "q3"}
		var set labels
		h.call(t, "set_conversation_labels", map[string]any{"conversation_id": "conv-1", "labels": want}, &set)
		if !slices.Equal(set.Labels, want) {
			t.Errorf("set result labels = %v, want %v", set.Labels, want)
		}
		got := get(t)
		if !slices.Equal(got.Labels, want) {
			t.Errorf("labels after set = %v, want %v", got.Labels, want)
		}
		if len(got.LabelIDs) != 2 || got.ConversationID != "conv-1" {
			t.Errorf("get result = %+v", got)
		}
		if set.LabelCount != 2 || set.Summary != "Set 2 label(s): Budget, q3" {
			t.Errorf("set summary = %d %q", set.LabelCount, set.Summary)
		}
		if got.LabelCount != 2 || got.Summary != "Found 2 label(s): Budget, q3" {
			t.Errorf("get summary = %d %q", got.LabelCount, got.Summary)
		}
	})

	t.Run("empty list clears", func(t *testing.T) {
		for range 2 {
			var set labels
			h.call(t, "set_conversation_labels", map[string]any{"conversation_id": "conv-1", "labels": []string{}}, &set)
			if set.LabelCount != 0 || set.Summary != "Cleared all labels from the conversation" {
				t.Errorf("clear summary = %d %q", set.LabelCount, set.Summary)
			}
			got := get(t)
			if got.Labels == nil || len(got.Labels) != 0 {
				t.Errorf("labels after clear = %#v, want []", got.Labels)
			}
			if got.LabelCount != 0 || got.Summary != "No labels on this conversation" {
				t.Errorf("get summary after clear = %d %q", got.LabelCount, got.Summary)
			}
		}
	})

	t.Run("get reads the header only", func(t *testing.T) {
		if h.server.Requests("conversation/sync/conv-1") == 0 {
			t.Fatal("get_conversation_labels did not sync the conversation")
		}
	})
}

func TestSendMessage(t *testing.T) {
	h := newHarness(t)
	h.server.AddConversation(fleep.ConversationHeader{ConversationID: "conv-123"}, "earlier", "messages")

	var first sent
	h.call(t, "send_message", map[string]any{"conversation_id": "conv-123", "message": "hi"}, &first)
	if first.ConversationID != "conv-123" {
		t.Errorf("conversation_id = %q, want conv-123", first.ConversationID)
	}
	if first.MessageNr <= 2 {
		t.Errorf("message_nr = %d, want greater than every earlier position (2)", first.MessageNr)
	}
	if first.Summary != "Sent message to conversation conv-123" {
		t.Errorf("summary = %q", first.Summary)
	}

	var second sent
	h.call(t, "send_message", map[string]any{"conversation_id": "conv-123", "message": "again"}, &second)
	if second.MessageNr <= first.MessageNr {
		t.Errorf("second message_nr = %d, want greater than %d", second.MessageNr, first.MessageNr)
	}

	messages := h.server.Messages("conv-123")
	if last := messages[len(messages)-1]; last.Message != "again" || last.MessageNr != second.MessageNr {
		t.Errorf("last message = %+v", last)
	}
}

func TestSendMessageWithFiles(t *testing.T) {
	h := newHarness(t)
	h.server.AddConversation(fleep.ConversationHeader{ConversationID: "conv-1"})
	report := testutil.WriteFile(t, "report.txt", "quarterly numbers")

	var result sent
	h.call(t, "send_message", map[string]any{
		"conversation_id": "conv-1",
		"message":         "see attached",
		"attachments":     []string{"https://example.com/existing.pdf"},
		"file_paths":      []string{report},
	}, &result)

	if result.AttachmentCount != 2 {
		t.Errorf("attachment_count = %d, want 2", result.AttachmentCount)
	}
	if result.Summary != "Sent message to conversation conv-1 with 2 attachments" {
		t.Errorf("summary = %q", result.Summary)
	}
	if h.server.Requests("file/upload") != 1 || h.server.Requests("message/send/conv-1") != 1 {
		t.Errorf("upload requests = %d, send requests = %d, want 1 each",
			h.server.Requests("file/upload"), h.server.Requests("message/send/conv-1"))
	}
	uploads := h.server.Uploads()
	if len(uploads) != 1 || uploads[0].FileName != "report.txt" || uploads[0].Size != int64(len("quarterly numbers")) {
		t.Fatalf("uploads = %+v", uploads)
	}
	messages := h.server.Messages("conv-1")
	if len(messages) != 1 {
		t.Fatalf("messages = %+v", messages)
	}
	want := []string{"https://example.com/existing.pdf", uploads[0].UploadURL}
	if !slices.Equal(messages[0].Attachments, want) {
		t.Errorf("attachments = %v, want %v", messages[0].Attachments, want)
	}
}

func TestSendMessageUploadFailureSkipsSend(t *testing.T) {
	h := newHarness(t)
	h.server.AddConversation(fleep.ConversationHeader{ConversationID: "conv-1"})
	h.server.FailNext("file/upload", http.StatusTooManyRequests, "rate_limited", "slow down")
	path := testutil.WriteFile(t, "a.txt", "a")

	toolErr := h.fail(t, "send_message", map[string]any{"conversation_id": "conv-1", "message": "x", "file_paths": []string{path}})
	if toolErr.Kind != tool.KindRateLimited || !toolErr.Kind.Retryable() {
		t.Errorf("kind = %s, want retryable rate_limited", toolErr.Kind)
	}
	if h.server.Requests("message/send/conv-1") != 0 {
		t.Error("message was sent after the upload failed")
	}
}

func TestSearchMessages(t *testing.T) {
	h := newHarness(t)
	h.server.AddConversation(fleep.ConversationHeader{ConversationID: "conv-a"}, "Budget draft", "lunch?", "budget v2")
	h.server.AddConversation(fleep.ConversationHeader{ConversationID: "conv-b"}, "unrelated", "final BUDGET")

	var result struct {
		Results []struct {
			ConversationID string            `json:"conversation_id"`
			MessageNr      int64             `json:"message_nr"`
			Message        string            `json:"message"`
			ContextBefore  []json.RawMessage `json:"context_before"`
			ContextAfter   []json.RawMessage `json:"context_after"`
		} `json:"results"`
	}
	h.call(t, "search_messages", map[string]any{"query": "budget"}, &result)

	if len(result.Results) != 3 {
		t.Fatalf("results = %+v, want 3", result.Results)
	}
	want := []struct {
		conversation string
		message      string
	}{
		{"conv-a", "Budget draft"},
		{"conv-a", "budget v2"},
		{"conv-b", "final BUDGET"},
	}
	for index, match := range result.Results {
		if match.ConversationID != want[index].conversation || match.Message != want[index].message {
			t.Errorf("results[%d] = %+v, want %+v", index, match, want[index])
		}
		if match.ContextBefore == nil || match.ContextAfter == nil {
			t.Errorf("results[%d] context should be lists, got %+v", index, match)
		}
	}

	var filtered struct {
		Results []json.RawMessage `json:"results"`
	}
	h.call(t, "search_messages", map[string]any{"query": "budget", "conversation_id": "conv-b"}, &filtered)
	if len(filtered.Results) != 1 {
		t.Errorf("filtered results = %d, want 1", len(filtered.Results))
	}

	var none struct {
		Results []json.RawMessage `json:"results"`
	}
	h.call(t, "search_messages", map[string]any{"query": "nothing matches"}, &none)
	if none.Results == nil || len(none.Results) != 0 {
		t.Errorf("no-match results = %#v, want []", none.Results)
	}
}

func TestMessageUpdates(t *testing.T) {
	h := newHarness(t)
	h.server.AddConversation(fleep.ConversationHeader{ConversationID: "conv-1"}, "one", "two", "three")

	var ref struct {
		ConversationID string `json:"conversation_id"`
		MessageNr      int64  `json:"message_nr"`
	}
	h.call(t, "edit_message", map[string]any{"conversation_id": "conv-1", "message_nr": 2, "message": "TWO"}, &ref)
	if ref.ConversationID != "conv-1" || ref.MessageNr != 2 {
		t.Errorf("edit result = %+v", ref)
	}
	h.call(t, "delete_message", map[string]any{"conversation_id": "conv-1", "message_nr": 3}, &ref)
	h.call(t, "mark_read", map[string]any{"conversation_id": "conv-1", "message_nr": 3}, &ref)

	messages := h.server.Messages("conv-1")
	if messages[1].Message != "TWO" || messages[2].Message != "" {
		t.Errorf("messages = %+v", messages)
	}
	if h.server.ReadHorizon("conv-1") != 3 {
		t.Errorf("read horizon = %d, want 3", h.server.ReadHorizon("conv-1"))
	}

	toolErr := h.fail(t, "edit_message", map[string]any{"conversation_id": "conv-1", "message_nr": 99, "message": "x"})
	if toolErr.Kind != tool.KindNotFound || !strings.Contains(toolErr.Error(), "message 99 not found") {
		t.Errorf("edit missing message: %s %v", toolErr.Kind, toolErr)
	}
}

func TestConversationTools(t *testing.T) {
	h := newHarness(t)
	h.server.AddConversation(fleep.ConversationHeader{
		ConversationID: "conv-1",
		Topic:          "Planning",
		Members:        []string{"a@example.com"},
	}, "one", "two", "three")
	h.server.AddConversation(fleep.ConversationHeader{ConversationID: "conv-2"})

	t.Run("list pages", func(t *testing.T) {
		var page struct {
			Conversations []conversation `json:"conversations"`
			SyncHorizon   int64          `json:"sync_horizon"`
		}
		h.call(t, "list_conversations", map[string]any{"limit": 1}, &page)
		if len(page.Conversations) != 1 || page.Conversations[0].ConversationID != "conv-1" {
			t.Fatalf("first page = %+v", page)
		}
		if page.Conversations[0].Labels == nil {
			t.Error("labels should be an empty list, not null")
		}
		h.call(t, "list_conversations", map[string]any{"sync_horizon": page.SyncHorizon}, &page)
		if len(page.Conversations) != 1 || page.Conversations[0].ConversationID != "conv-2" {
			t.Errorf("second page = %+v", page)
		}
	})

	t.Run("get window", func(t *testing.T) {
		var result struct {
			Conversation conversation `json:"conversation"`
			Messages     []struct {
				MessageNr int64  `json:"message_nr"`
				Message   string `json:"message"`
			} `json:"messages"`
		}
		h.call(t, "get_conversation", map[string]any{"conversation_id": "conv-1", "from_message_nr": 2, "limit": 1}, &result)
		if result.Conversation.Topic != "Planning" {
			t.Errorf("topic = %q", result.Conversation.Topic)
		}
		if len(result.Messages) != 1 || result.Messages[0].MessageNr != 2 || result.Messages[0].Message != "two" {
			t.Errorf("messages = %+v", result.Messages)
		}
	})

	t.Run("unknown conversation", func(t *testing.T) {
		toolErr := h.fail(t, "get_conversation", map[string]any{"conversation_id": "conv-missing"})
		if toolErr.Kind != tool.KindNotFound {
			t.Errorf("kind = %s, want not_found", toolErr.Kind)
		}
	})

	t.Run("members and topic", func(t *testing.T) {
		var result struct {
			Conversation conversation `json:"conversation"`
		}
		h.call(t, "add_members", map[string]any{"conversation_id": "conv-1", "member_emails": []string{"b@example.com"}}, &result)
		if !slices.Equal(result.Conversation.Members, []string{"a@example.com", "b@example.com"}) {
			t.Errorf("members after add = %v", result.Conversation.Members)
		}
		h.call(t, "remove_members", map[string]any{"conversation_id": "conv-1", "member_emails": []string{"a@example.com"}}, &result)
		if !slices.Equal(result.Conversation.Members, []string{"b@example.com"}) {
			t.Errorf("members after remove = %v", result.Conversation.Members)
		}
		h.call(t, "set_topic", map[string]any{"conversation_id": "conv-1", "topic": "Shipping"}, &result)
		if header, _ := h.server.Conversation("conv-1"); header.Topic != "Shipping" || result.Conversation.Topic != "Shipping" {
			t.Errorf("topic = %q / %q", header.Topic, result.Conversation.Topic)
		}
	})
}

func TestAccountTools(t *testing.T) {
	h := newHarness(t)
	h.server.AddContact(fleep.Contact{AccountID: "acc-2", Email: "bob@example.com", DisplayName: "Bob"})
	h.server.AddEvent(fleep.AccountEvent{RecordType: "message", ConversationID: "conv-1", MessageNr: 1})
	h.server.AddEvent(fleep.AccountEvent{RecordType: "conv", ConversationID: "conv-2"})

	var contacts struct {
		Contacts []fleep.Contact `json:"contacts"`
	}
	h.call(t, "sync_contacts", nil, &contacts)
	if len(contacts.Contacts) != 1 || contacts.Contacts[0].Email != "bob@example.com" {
		t.Errorf("contacts = %+v", contacts.Contacts)
	}

	var poll struct {
		EventHorizon int64                `json:"event_horizon"`
		Events       []fleep.AccountEvent `json:"events"`
	}
	h.call(t, "poll_account", map[string]any{"event_horizon": 1}, &poll)
	if poll.EventHorizon != 2 || len(poll.Events) != 1 || poll.Events[0].ConversationID != "conv-2" {
		t.Errorf("poll = %+v", poll)
	}
	h.call(t, "poll_account", map[string]any{"event_horizon": poll.EventHorizon}, &poll)
	if poll.Events == nil || len(poll.Events) != 0 {
		t.Errorf("caught-up poll events = %#v, want []", poll.Events)
	}

	var profile struct {
		AccountID   string `json:"account_id"`
		DisplayName string `json:"display_name"`
	}
	h.call(t, "configure_account", map[string]any{"display_name": "Renamed Agent"}, &profile)
	if profile.DisplayName != "Renamed Agent" || h.server.DisplayName() != "Renamed Agent" {
		t.Errorf("profile = %+v, server display name = %q", profile, h.server.DisplayName())
	}
	if profile.AccountID != fleeptest.AccountID {
		t.Errorf("account_id = %q", profile.AccountID)
	}

	first := testutil.WriteFile(t, "one.txt", "1")
	second := testutil.WriteFile(t, "two.txt", "22")
	var upload struct {
		Files []fleep.UploadedFile `json:"files"`
	}
	h.call(t, "upload_files", map[string]any{"file_paths": []string{first, second}}, &upload)
	if len(upload.Files) != 2 || upload.Files[0].FileName != "one.txt" || upload.Files[1].Size != 2 {
		t.Errorf("uploaded = %+v", upload.Files)
	}
	if h.server.Requests("file/upload") != 1 {
		t.Errorf("upload requests = %d, want one multipart request", h.server.Requests("file/upload"))
	}
}

func TestAuthExpiry(t *testing.T) {
	h := newHarness(t)
	h.server.AddConversation(fleep.ConversationHeader{ConversationID: "conv-1"})

	var result sent
	h.call(t, "send_message", map[string]any{"conversation_id": "conv-1", "message": "before"}, &result)
	h.server.ExpireTokens()
	h.call(t, "send_message", map[string]any{"conversation_id": "conv-1", "message": "after"}, &result)

	if h.server.Logins() != 2 {
		t.Errorf("logins = %d, want exactly one re-login", h.server.Logins())
	}
	if h.server.Requests("message/send/conv-1") != 3 {
		t.Errorf("send requests = %d, want 3 (one retried)", h.server.Requests("message/send/conv-1"))
	}

	h.server.RejectAll(true)
	toolErr := h.fail(t, "send_message", map[string]any{"conversation_id": "conv-1", "message": "rejected"})
	if toolErr.Kind != tool.KindAuth || toolErr.Kind.Retryable() {
		t.Errorf("kind = %s, want non-retryable auth_error", toolErr.Kind)
	}
	if h.server.Logins() != 3 || h.server.Requests("message/send/conv-1") != 5 {
		t.Errorf("logins = %d, send requests = %d, want 3 and 5",
			h.server.Logins(), h.server.Requests("message/send/conv-1"))
	}
}

func TestRemoteErrorKinds(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		errorID  string
		wantKind tool.Kind
	}{
		{"not found id", http.StatusBadRequest, fleep.ErrIDNotFound, tool.KindNotFound},
		{"404", http.StatusNotFound, "", tool.KindNotFound},
		{"no access", http.StatusBadRequest, fleep.ErrIDNoAccess, tool.KindPermissionDenied},
		{"403", http.StatusForbidden, "", tool.KindPermissionDenied},
		{"429", http.StatusTooManyRequests, "", tool.KindRateLimited},
		{"other", http.StatusInternalServerError, "database_unavailable", tool.KindRemote},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			h := newHarness(t)
			h.server.AddConversation(fleep.ConversationHeader{ConversationID: "conv-1"})
			h.server.FailNext("conversation/set_topic/conv-1", test.status, test.errorID, "remote detail")

			toolErr := h.fail(t, "set_topic", map[string]any{"conversation_id": "conv-1", "topic": "x"})
			if toolErr.Kind != test.wantKind {
				t.Errorf("kind = %s, want %s", toolErr.Kind, test.wantKind)
			}
			if !strings.Contains(toolErr.Error(), "remote detail") {
				t.Errorf("message %q does not carry the remote message", toolErr.Error())
			}
			if h.server.Requests("conversation/set_topic/conv-1") != 1 {
				t.Errorf("requests = %d, want no retry", h.server.Requests("conversation/set_topic/conv-1"))
			}
		})
	}
}

func TestUnparseableResponseIsRemoteError(t *testing.T) {
	h := newHarness(t)
	h.server.AddConversation(fleep.ConversationHeader{ConversationID: "conv-1"})
	h.server.ReplyNext("message/send/conv-1", http.StatusOK, "<html>maintenance</html>")

	toolErr := h.fail(t, "send_message", map[string]any{"conversation_id": "conv-1", "message": "hello"})
	if toolErr.Kind != tool.KindRemote {
		t.Errorf("kind = %s, want %s", toolErr.Kind, tool.KindRemote)
	}
	if toolErr.Kind.Retryable() {
		t.Error("an unparseable response should not be retryable")
	}
	if !strings.Contains(toolErr.Error(), "message/send/conv-1") {
		t.Errorf("message %q does not name the endpoint", toolErr.Error())
	}
	if got := h.server.Requests("message/send/conv-1"); got != 1 {
		t.Errorf("requests = %d, want no retry", got)
	}
	if got := h.server.Logins(); got != 1 {
		t.Errorf("logins = %d, want 1", got)
	}
}
