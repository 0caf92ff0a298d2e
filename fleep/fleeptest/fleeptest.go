// Copyright 2026 The fleep-mcp Authors
// SPDX-License-Identifier: Apache-2.0

// Package fleeptest runs an in-memory Fleep service for tests. It speaks
// the same login, cookie, and ticket conventions as the real service and
// implements every endpoint the fleep package calls, with knobs for
// expiring tokens, rejecting all credentials, and injecting failures.
//
//	server := fleeptest.New(t)
//	server.AddConversation(fleep.ConversationHeader{ConversationID: "conv-123"}, "hello")
//	client, _ := fleep.NewClient(fleep.ClientConfig{BaseURL: server.BaseURL()})
package fleeptest

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fleepmcp/fleep-mcp/fleep"
)

// Credentials accepted by a Server unless overridden with SetCredentials.
const (
	Email       = "agent@example.com"
	Password    = "correct horse battery staple"
	AccountID   = "acc-self"
	DisplayName = "Test Agent"
)

// Server is a fake Fleep API. All methods are safe for concurrent use
// with requests in flight.
type Server struct {
	httpServer *httptest.Server

	mu sync.Mutex

	email    string
	password string
	display  string

	// tokens maps a live token_id to the ticket issued with it.
	tokens   map[string]string
	tokenSeq int

	conversations map[string]*conversation
	// order is conversation ids in creation order.
	order   []string
	convSeq int

	// stream is every message across all conversations in posting order.
	// Search walks it, so results follow fixture order.
	stream []*fleep.Message

	contacts []fleep.Contact
	events   []fleep.AccountEvent
	uploads  []fleep.UploadedFile

	logins      int
	requests    map[string]int
	rejectAll   bool
	failLogin   bool
	failures    map[string][]failure
	latency     time.Duration
	lastTickets []string
}

type conversation struct {
	header   fleep.ConversationHeader
	messages []*fleep.Message
	readNr   int64
}

type failure struct {
	status  int
	errorID string
	message string

	// raw, when set, is written verbatim as a text/html body instead of
	// an error envelope.
	raw []byte
}

// New starts a Server and stops it when the test finishes.
func New(t testing.TB) *Server {
	t.Helper()
	server := &Server{
		email:         Email,
		password:      Password,
		display:       DisplayName,
		tokens:        make(map[string]string),
		conversations: make(map[string]*conversation),
		requests:      make(map[string]int),
		failures:      make(map[string][]failure),
	}
	server.httpServer = httptest.NewServer(http.HandlerFunc(server.serveHTTP))
	t.Cleanup(server.httpServer.Close)
	return server
}

// BaseURL is the API root to pass as fleep.ClientConfig.BaseURL.
func (s *Server) BaseURL() string {
	return s.httpServer.URL + "/api"
}

// SetCredentials changes the accepted email and password.
func (s *Server) SetCredentials(email, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.email = email
	s.password = password
}

// AddConversation seeds a conversation with messages posted by the
// account. Members, labels, and label ids are taken from header.
func (s *Server) AddConversation(header fleep.ConversationHeader, messages ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if header.ConversationID == "" {
		s.convSeq++
		header.ConversationID = fmt.Sprintf("conv-%d", s.convSeq)
	}
	s.conversations[header.ConversationID] = &conversation{header: header}
	s.order = append(s.order, header.ConversationID)
	for _, text := range messages {
		s.postLocked(header.ConversationID, text, nil)
	}
}

// AddContact seeds a contact for contact/sync/all.
func (s *Server) AddContact(contact fleep.Contact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts = append(s.contacts, contact)
}

// AddEvent appends an event to the account/poll stream.
func (s *Server) AddEvent(event fleep.AccountEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

// Conversation returns the stored header for id.
func (s *Server) Conversation(id string) (fleep.ConversationHeader, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		return fleep.ConversationHeader{}, false
	}
	return conv.header, true
}

// Messages returns the stream of a conversation in position order.
func (s *Server) Messages(id string) []fleep.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil
	}
	result := make([]fleep.Message, len(conv.messages))
	for index, message := range conv.messages {
		result[index] = *message
	}
	return result
}

// ReadHorizon returns the last message_nr marked read in a conversation.
func (s *Server) ReadHorizon(id string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv, ok := s.conversations[id]; ok {
		return conv.readNr
	}
	return 0
}

// Uploads returns every file accepted by file/upload.
func (s *Server) Uploads() []fleep.UploadedFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.uploads)
}

// DisplayName returns the account's current display name.
func (s *Server) DisplayName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.display
}

// ExpireTokens invalidates every issued token, as if the service ended
// all sessions. The next authorized request gets a 401.
func (s *Server) ExpireTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.tokens)
}

// RejectAll makes every authorized request answer 401 even with a fresh
// token. Logins still succeed.
func (s *Server) RejectAll(reject bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectAll = reject
}

// FailLogin makes account/login reject the credentials.
func (s *Server) FailLogin(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failLogin = fail
}

// FailNext queues a failure for the next authorized request to path
// (e.g. "message/send/conv-1"). An empty errorID sends a bare status.
func (s *Server) FailNext(path string, status int, errorID, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = append(s.failures[path], failure{status: status, errorID: errorID, message: message})
}

// ReplyNext queues a verbatim reply for the next authorized request to
// path, sent with status and a text/html content type. It stands in for
// maintenance pages and truncated proxy replies.
func (s *Server) ReplyNext(path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = append(s.failures[path], failure{status: status, raw: []byte(body)})
}

// SetLatency delays every response by d.
func (s *Server) SetLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = d
}

// Logins returns the number of account/login requests received.
func (s *Server) Logins() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logins
}

// Requests returns the number of requests received for path, including
// rejected ones.
func (s *Server) Requests(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[path]
}

// LiveTokens returns the number of tokens that would currently be
// accepted.
func (s *Server) LiveTokens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

// TotalRequests returns the number of requests to any path other than
// account/login.
func (s *Server) TotalRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for path, count := range s.requests {
		if path != "account/login" {
			total += count
		}
	}
	return total
}

// Tickets returns the ticket sent with each authorized request, in
// arrival order.
func (s *Server) Tickets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.lastTickets)
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	path, ok := strings.CutPrefix(r.URL.Path, "/api/")
	if !ok || r.Method != http.MethodPost {
		writeError(w, http.StatusNotFound, "not_found", "no such endpoint")
		return
	}

	s.mu.Lock()
	s.requests[path]++
	latency := s.latency
	s.mu.Unlock()
	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-r.Context().Done():
			return
		}
	}

	if path == "account/login" {
		s.handleLogin(w, r)
		return
	}

	var body map[string]json.RawMessage
	var multipartRequest bool
	if mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mediaType == "multipart/form-data" {
		multipartRequest = true
	} else {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		body = make(map[string]json.RawMessage)
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &body); err != nil {
				writeError(w, http.StatusBadRequest, "bad_request", "body is not a JSON object")
				return
			}
		}
	}

	ticket := r.URL.Query().Get("ticket")
	if !multipartRequest {
		ticket = ""
		if raw, ok := body["ticket"]; ok {
			json.Unmarshal(raw, &ticket)
		}
	}

	s.mu.Lock()
	s.lastTickets = append(s.lastTickets, ticket)
	if !s.authorizedLocked(r, ticket) {
		s.mu.Unlock()
		writeError(w, http.StatusUnauthorized, fleep.ErrIDNotAuthenticated, "session is not authenticated")
		return
	}
	if queue := s.failures[path]; len(queue) > 0 {
		injected := queue[0]
		s.failures[path] = queue[1:]
		s.mu.Unlock()
		if injected.raw != nil {
			w.Header().Set("Content-Type", "text/html")
			w.WriteHeader(injected.status)
			w.Write(injected.raw)
			return
		}
		writeError(w, injected.status, injected.errorID, injected.message)
		return
	}
	s.mu.Unlock()

	if multipartRequest {
		if path != "file/upload" {
			writeError(w, http.StatusBadRequest, "bad_request", "multipart only accepted by file/upload")
			return
		}
		s.handleUpload(w, r)
		return
	}
	s.route(w, r, path, body)
}

// authorizedLocked checks the token_id cookie and its ticket. Caller
// holds s.mu.
func (s *Server) authorizedLocked(r *http.Request, ticket string) bool {
	if s.rejectAll {
		return false
	}
	cookie, err := r.Cookie("token_id")
	if err != nil {
		return false
	}
	expected, ok := s.tokens[cookie.Value]
	return ok && expected == ticket && ticket != ""
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "body is not a JSON object")
		return
	}

	s.mu.Lock()
	s.logins++
	if s.failLogin || request.Email != s.email || request.Password != s.password {
		s.mu.Unlock()
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "email or password is incorrect")
		return
	}
	s.tokenSeq++
	token := fmt.Sprintf("token-%d", s.tokenSeq)
	ticket := fmt.Sprintf("ticket-%d", s.tokenSeq)
	s.tokens[token] = ticket
	display := s.display
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: "token_id", Value: token, Path: "/", HttpOnly: true})
	writeJSON(w, map[string]any{
		"ticket":       ticket,
		"account_id":   AccountID,
		"display_name": display,
		"profiles":     []any{},
	})
}

func (s *Server) route(w http.ResponseWriter, r *http.Request, path string, body map[string]json.RawMessage) {
	endpoint, conversationID := splitConversationPath(path)

	switch endpoint {
	case "account/logout":
		s.handleLogout(w, r)
	case "conversation/list":
		s.handleList(w, body)
	case "conversation/create":
		s.handleCreate(w, body)
	case "conversation/sync":
		s.handleSync(w, conversationID, body)
	case "conversation/add_members", "conversation/remove_members":
		s.handleMembers(w, conversationID, body, endpoint == "conversation/add_members")
	case "conversation/set_topic":
		s.handleSetTopic(w, conversationID, body)
	case "conversation/store":
		s.handleStore(w, conversationID, body)
	case "message/send":
		s.handleSend(w, conversationID, body)
	case "message/edit", "message/delete", "message/mark_read":
		s.handleMessageUpdate(w, endpoint, conversationID, body)
	case "search":
		s.handleSearch(w, body)
	case "contact/sync/all":
		s.mu.Lock()
		contacts := slices.Clone(s.contacts)
		s.mu.Unlock()
		if contacts == nil {
			contacts = []fleep.Contact{}
		}
		writeJSON(w, map[string]any{"contacts": contacts})
	case "account/poll":
		s.handlePoll(w, body)
	case "account/configure":
		s.handleConfigure(w, body)
	default:
		writeError(w, http.StatusNotFound, "not_found", "no such endpoint: "+path)
	}
}

// splitConversationPath separates "message/send/conv-1" into its
// endpoint and conversation id. Paths without an id are returned whole.
func splitConversationPath(path string) (endpoint, conversationID string) {
	for _, prefix := range []string{"conversation/", "message/"} {
		rest, ok := strings.CutPrefix(path, prefix)
		if !ok {
			continue
		}
		action, id, found := strings.Cut(rest, "/")
		if found {
			return prefix + action, id
		}
	}
	return path, ""
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie("token_id"); err == nil {
		s.mu.Lock()
		delete(s.tokens, cookie.Value)
		s.mu.Unlock()
	}
	writeJSON(w, map[string]any{})
}

func (s *Server) handleList(w http.ResponseWriter, body map[string]json.RawMessage) {
	var horizon int64
	var limit int
	decodeField(body, "sync_horizon", &horizon)
	decodeField(body, "limit", &limit)

	s.mu.Lock()
	defer s.mu.Unlock()
	headers := []fleep.ConversationHeader{}
	next := horizon
	for index := int(horizon); index < len(s.order); index++ {
		if limit > 0 && len(headers) == limit {
			break
		}
		headers = append(headers, s.conversations[s.order[index]].header)
		next = int64(index + 1)
	}
	writeJSON(w, map[string]any{"conversations": headers, "sync_horizon": next})
}

func (s *Server) handleCreate(w http.ResponseWriter, body map[string]json.RawMessage) {
	var topic string
	var emails []string
	decodeField(body, "topic", &topic)
	decodeField(body, "emails", &emails)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.convSeq++
	id := fmt.Sprintf("conv-new-%d", s.convSeq)
	header := fleep.ConversationHeader{
		ConversationID: id,
		Topic:          topic,
		Members:        slices.Clone(emails),
		Labels:         []string{},
		LabelIDs:       []string{},
	}
	s.conversations[id] = &conversation{header: header}
	s.order = append(s.order, id)
	writeJSON(w, map[string]any{"header": header})
}

func (s *Server) handleSync(w http.ResponseWriter, id string, body map[string]json.RawMessage) {
	var from int64
	var limit int
	var detail string
	decodeField(body, "from_message_nr", &from)
	decodeField(body, "limit", &limit)
	decodeField(body, "detail_level", &detail)

	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "conversation not found")
		return
	}
	stream := []fleep.Message{}
	if detail != fleep.DetailHeader {
		for _, message := range conv.messages {
			if message.MessageNr < from {
				continue
			}
			if limit > 0 && len(stream) == limit {
				break
			}
			stream = append(stream, *message)
		}
	}
	writeJSON(w, map[string]any{"header": conv.header, "stream": stream})
}

func (s *Server) handleMembers(w http.ResponseWriter, id string, body map[string]json.RawMessage, add bool) {
	var emails []string
	decodeField(body, "emails", &emails)

	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "conversation not found")
		return
	}
	for _, email := range emails {
		present := slices.Contains(conv.header.Members, email)
		switch {
		case add && !present:
			conv.header.Members = append(conv.header.Members, email)
		case !add && present:
			conv.header.Members = slices.DeleteFunc(conv.header.Members, func(member string) bool { return member == email })
		}
	}
	writeJSON(w, map[string]any{"header": conv.header})
}

func (s *Server) handleSetTopic(w http.ResponseWriter, id string, body map[string]json.RawMessage) {
	var topic string
	decodeField(body, "topic", &topic)

	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "conversation not found")
		return
	}
	conv.header.Topic = topic
	writeJSON(w, map[string]any{"header": conv.header})
}

func (s *Server) handleStore(w http.ResponseWriter, id string, body map[string]json.RawMessage) {
	raw, present := body["labels"]
	var labels []string
	if present {
		if err := json.Unmarshal(raw, &labels); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "labels must be a list of strings")
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "conversation not found")
		return
	}
	if present {
		conv.header.Labels = append([]string{}, labels...)
		conv.header.LabelIDs = make([]string, len(labels))
		for index, label := range labels {
			conv.header.LabelIDs[index] = "label-" + strings.ToLower(strings.ReplaceAll(label, " ", "-"))
		}
	}
	writeJSON(w, map[string]any{"header": conv.header})
}

func (s *Server) handleSend(w http.ResponseWriter, id string, body map[string]json.RawMessage) {
	var text string
	var attachments []string
	decodeField(body, "message", &text)
	decodeField(body, "attachments", &attachments)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[id]; !ok {
		writeError(w, http.StatusNotFound, "not_found", "conversation not found")
		return
	}
	message := s.postLocked(id, text, attachments)
	writeJSON(w, map[string]any{
		"result_message_nr": message.MessageNr,
		"conversation_id":   id,
		"header":            s.conversations[id].header,
		"stream":            []fleep.Message{*message},
	})
}

// postLocked appends a message. Caller holds s.mu.
func (s *Server) postLocked(id, text string, attachments []string) *fleep.Message {
	conv := s.conversations[id]
	conv.header.LastMessageNr++
	conv.header.Snippet = text
	message := &fleep.Message{
		ConversationID: id,
		MessageNr:      conv.header.LastMessageNr,
		AccountID:      AccountID,
		Message:        text,
		PostedTime:     int64(len(s.stream) + 1),
		Attachments:    attachments,
	}
	conv.messages = append(conv.messages, message)
	s.stream = append(s.stream, message)
	return message
}

func (s *Server) handleMessageUpdate(w http.ResponseWriter, endpoint, id string, body map[string]json.RawMessage) {
	var messageNr int64
	var text string
	decodeField(body, "message_nr", &messageNr)
	decodeField(body, "message", &text)

	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "conversation not found")
		return
	}
	var target *fleep.Message
	for _, message := range conv.messages {
		if message.MessageNr == messageNr {
			target = message
		}
	}
	if target == nil {
		writeError(w, http.StatusNotFound, "not_found", fmt.Sprintf("message %d not found", messageNr))
		return
	}
	switch endpoint {
	case "message/edit":
		target.Message = text
	case "message/delete":
		target.Message = ""
	case "message/mark_read":
		conv.readNr = messageNr
	}
	writeJSON(w, map[string]any{"header": conv.header})
}

func (s *Server) handleSearch(w http.ResponseWriter, body map[string]json.RawMessage) {
	var keywords, filter string
	decodeField(body, "keywords", &keywords)
	decodeField(body, "conversation_id", &filter)
	needle := strings.ToLower(keywords)

	s.mu.Lock()
	defer s.mu.Unlock()
	matches := []fleep.SearchMatch{}
	for _, message := range s.stream {
		if filter != "" && message.ConversationID != filter {
			continue
		}
		if needle == "" || !strings.Contains(strings.ToLower(message.Message), needle) {
			continue
		}
		before, after := s.contextLocked(message)
		matches = append(matches, fleep.SearchMatch{
			ConversationID: message.ConversationID,
			MessageNr:      message.MessageNr,
			AccountID:      message.AccountID,
			Message:        message.Message,
			ContextBefore:  before,
			ContextAfter:   after,
		})
	}
	writeJSON(w, map[string]any{"matches": matches, "total": len(matches)})
}

// contextLocked returns the messages adjacent to message in its
// conversation. Caller holds s.mu.
func (s *Server) contextLocked(message *fleep.Message) (before, after []fleep.Message) {
	before, after = []fleep.Message{}, []fleep.Message{}
	messages := s.conversations[message.ConversationID].messages
	for index, candidate := range messages {
		if candidate != message {
			continue
		}
		if index > 0 {
			before = append(before, *messages[index-1])
		}
		if index+1 < len(messages) {
			after = append(after, *messages[index+1])
		}
	}
	return before, after
}

func (s *Server) handlePoll(w http.ResponseWriter, body map[string]json.RawMessage) {
	var horizon int64
	decodeField(body, "event_horizon", &horizon)

	s.mu.Lock()
	defer s.mu.Unlock()
	stream := []fleep.AccountEvent{}
	if horizon < int64(len(s.events)) {
		stream = append(stream, s.events[max(horizon, 0):]...)
	}
	writeJSON(w, map[string]any{"event_horizon": len(s.events), "stream": stream})
}

func (s *Server) handleConfigure(w http.ResponseWriter, body map[string]json.RawMessage) {
	var display string
	decodeField(body, "display_name", &display)

	s.mu.Lock()
	defer s.mu.Unlock()
	if display != "" {
		s.display = display
	}
	writeJSON(w, map[string]any{
		"account_id":   AccountID,
		"email":        s.email,
		"display_name": s.display,
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "no files in upload")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	files := make([]fleep.UploadedFile, 0, len(headers))
	for _, header := range headers {
		file := fleep.UploadedFile{
			FileName:  header.Filename,
			UploadURL: fmt.Sprintf("%s/file/%d/%s", s.httpServer.URL, len(s.uploads)+1, header.Filename),
			Size:      header.Size,
		}
		s.uploads = append(s.uploads, file)
		files = append(files, file)
	}
	writeJSON(w, map[string]any{"files": files})
}

func decodeField(body map[string]json.RawMessage, name string, target any) {
	if raw, ok := body[name]; ok {
		json.Unmarshal(raw, target)
	}
}

func writeJSON(w http.ResponseWriter, value any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, errorID, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if errorID == "" && message == "" {
		return
	}
	json.NewEncoder(w).Encode(map[string]string{
		"error_id":      errorID,
		"error_message": message,
	})
}
