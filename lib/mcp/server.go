// Copyright 2026 The fleep-mcp Authors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/fleepmcp/fleep-mcp/lib/clock"
	"github.com/fleepmcp/fleep-mcp/lib/metrics"
	"github.com/fleepmcp/fleep-mcp/lib/tool"
)

// DefaultDrainTimeout bounds how long Run waits for in-flight calls
// after its context is cancelled.
const DefaultDrainTimeout = 5 * time.Second

// maxMessageSize is the longest request line accepted.
const maxMessageSize = 1024 * 1024

// ServerConfig holds configuration for creating a Server.
type ServerConfig struct {
	// Name and Version are reported in the initialize response.
	Name    string
	Version string
	// Instructions is optional guidance returned from initialize.
	Instructions string
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Metrics is optional.
	Metrics *metrics.Metrics
	// Clock defaults to clock.Real().
	Clock clock.Clock
	// DrainTimeout defaults to DefaultDrainTimeout.
	DrainTimeout time.Duration
}

// Server serves a tool registry over newline-delimited JSON-RPC 2.0.
// tools/call requests run concurrently, one goroutine each; every other
// method is answered inline in arrival order.
type Server struct {
	registry *tool.Registry
	config   ServerConfig
	logger   *slog.Logger
	clock    clock.Clock

	initialized atomic.Bool
	calls       sync.WaitGroup
}

// NewServer creates a Server for registry.
func NewServer(registry *tool.Registry, config ServerConfig) *Server {
	if config.Name == "" {
		config.Name = "fleep-mcp"
	}
	if config.DrainTimeout <= 0 {
		config.DrainTimeout = DefaultDrainTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	serverClock := config.Clock
	if serverClock == nil {
		serverClock = clock.Real()
	}
	return &Server{
		registry: registry,
		config:   config,
		logger:   logger,
		clock:    serverClock,
	}
}

// writer serializes responses from concurrent calls onto one stream and
// remembers the first write failure.
type writer struct {
	mu      sync.Mutex
	encoder *json.Encoder
	err     error
}

func (w *writer) write(message response) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return
	}
	if err := w.encoder.Encode(message); err != nil {
		w.err = fmt.Errorf("mcp: writing response: %w", err)
	}
}

func (w *writer) result(id json.RawMessage, result any) {
	w.write(response{JSONRPC: "2.0", ID: id, Result: result})
}

func (w *writer) error(id json.RawMessage, code int, message string) {
	w.write(response{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: message}})
}

func (w *writer) failed() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Run reads requests from input and writes responses to output until
// input reaches EOF, a response cannot be written, or ctx is cancelled.
// On EOF it waits for every in-flight call. On cancellation the calls'
// contexts are cancelled and Run waits up to the drain timeout before
// returning ctx.Err().
//
// The reading goroutine may stay blocked on input after a cancellation
// until input is closed; callers serving os.Stdin exit the process
// shortly after.
func (s *Server) Run(ctx context.Context, input io.Reader, output io.Writer) error {
	out := &writer{encoder: json.NewEncoder(output)}

	lines := make(chan []byte)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(input)
		scanner.Buffer(make([]byte, 0, 64*1024), maxMessageSize)
		for scanner.Scan() {
			line := bytes.Clone(scanner.Bytes())
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			s.drain()
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				s.calls.Wait()
				if err := out.failed(); err != nil {
					return err
				}
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("mcp: reading requests: %w", err)
					}
				default:
				}
				return ctx.Err()
			}
			s.handleLine(ctx, out, line)
			if err := out.failed(); err != nil {
				s.calls.Wait()
				return err
			}
		}
	}
}

// drain waits for in-flight calls, giving up after the drain timeout.
func (s *Server) drain() {
	done := make(chan struct{})
	go func() {
		s.calls.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-s.clock.After(s.config.DrainTimeout):
		s.logger.Warn("mcp shutdown: abandoning in-flight tool calls", "drain_timeout", s.config.DrainTimeout)
	}
}

func (s *Server) handleLine(ctx context.Context, out *writer, line []byte) {
	if len(bytes.TrimSpace(line)) == 0 {
		return
	}

	var req request
	if err := json.Unmarshal(line, &req); err != nil {
		out.error(json.RawMessage("null"), codeParseError, "parse error: "+err.Error())
		return
	}

	if req.JSONRPC != "2.0" {
		if !req.isNotification() {
			out.error(req.ID, codeInvalidRequest, "unsupported JSON-RPC version")
		}
		return
	}

	// Notifications (initialized, cancelled, ...) get no response.
	if req.isNotification() {
		return
	}

	switch req.Method {
	case "initialize":
		s.handleInitialize(out, &req)
	case "ping":
		out.result(req.ID, map[string]any{})
	case "tools/list":
		if !s.initialized.Load() {
			out.error(req.ID, codeInvalidRequest, "server not initialized (call initialize first)")
			return
		}
		s.handleToolsList(out, &req)
	case "tools/call":
		if !s.initialized.Load() {
			out.error(req.ID, codeInvalidRequest, "server not initialized (call initialize first)")
			return
		}
		s.calls.Add(1)
		go func() {
			defer s.calls.Done()
			s.handleToolsCall(ctx, out, &req)
		}()
	default:
		out.error(req.ID, codeMethodNotFound, "unknown method: "+req.Method)
	}
}

func (s *Server) handleInitialize(out *writer, req *request) {
	if len(req.Params) == 0 {
		out.error(req.ID, codeInvalidParams, "params required for initialize")
		return
	}
	var params initializeParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		out.error(req.ID, codeInvalidParams, "invalid initialize params: "+err.Error())
		return
	}

	s.initialized.Store(true)
	s.logger.Info("mcp client connected",
		"client", params.ClientInfo.Name,
		"client_version", params.ClientInfo.Version,
		"requested_protocol", params.ProtocolVersion,
	)

	out.result(req.ID, initializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    serverCapabilities{Tools: &toolCapability{}},
		ServerInfo:      serverInfo{Name: s.config.Name, Version: s.config.Version},
		Instructions:    s.config.Instructions,
	})
}

func (s *Server) handleToolsList(out *writer, req *request) {
	descriptions := []toolDescription{}
	for _, t := range s.registry.Tools() {
		descriptions = append(descriptions, toolDescription{
			Name:         t.Name,
			Title:        t.Title,
			Description:  t.Description,
			InputSchema:  t.InputSchema,
			OutputSchema: t.OutputSchema,
			Annotations:  t.Annotations,
		})
	}
	out.result(req.ID, toolsListResult{Tools: descriptions})
}

func (s *Server) handleToolsCall(ctx context.Context, out *writer, req *request) {
	if len(req.Params) == 0 {
		out.error(req.ID, codeInvalidParams, "params required for tools/call")
		return
	}
	var params toolsCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		out.error(req.ID, codeInvalidParams, "invalid tools/call params: "+err.Error())
		return
	}
	t, ok := s.registry.Lookup(params.Name)
	if !ok {
		out.error(req.ID, codeInvalidParams, "unknown tool: "+params.Name)
		return
	}

	requestID := uuid.NewString()
	logger := s.logger.With("request_id", requestID, "tool", t.Name)
	finished := s.config.Metrics.ToolCallStarted()
	start := s.clock.Now()

	payload, runErr := s.call(ctx, t, params.Arguments)

	duration := clock.Since(s.clock, start)
	finished()

	result, kind := buildToolResult(s.registry.Classify, payload, runErr)
	s.config.Metrics.ObserveToolCall(t.Name, kind, duration)
	if runErr != nil {
		logger.Warn("tool call failed", "kind", kind, "duration", duration, "error", runErr)
	} else {
		logger.Info("tool call", "duration", duration)
	}

	out.result(req.ID, result)
}

// call runs the tool, turning a panic in tool code into an internal
// error so one bad call cannot take the server down.
func (s *Server) call(ctx context.Context, t *tool.Tool, arguments json.RawMessage) (payload any, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = tool.Internal("tool %s panicked: %v", t.Name, recovered)
		}
	}()
	return t.Call(ctx, arguments)
}

// buildToolResult shapes a payload or error into a tools/call result and
// returns the kind label recorded for it. classify must not return nil
// for a non-nil error.
func buildToolResult(classify tool.Classifier, payload any, runErr error) (toolsCallResult, string) {
	if runErr != nil {
		classified := classify(runErr)
		return toolsCallResult{
			Content: []contentBlock{{Type: "text", Text: classified.Error()}},
			IsError: true,
			ErrorInfo: &errorInfo{
				Kind:      string(classified.Kind),
				Field:     classified.Field,
				Retryable: classified.Kind.Retryable(),
			},
		}, string(classified.Kind)
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		// A result type that cannot be serialized is a bug in the tool.
		return buildToolResult(classify, nil, tool.Internal("encoding result: %w", err))
	}
	var structured any
	if err := json.Unmarshal(encoded, &structured); err != nil {
		return buildToolResult(classify, nil, tool.Internal("encoding result: %w", err))
	}
	return toolsCallResult{
		Content:           []contentBlock{{Type: "text", Text: string(encoded)}},
		StructuredContent: structured,
	}, metrics.ResultOK
}
