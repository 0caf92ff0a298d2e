// Copyright 2026 The fleep-mcp Authors
// SPDX-License-Identifier: Apache-2.0

package fleep

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fleepmcp/fleep-mcp/lib/netutil"
	"github.com/fleepmcp/fleep-mcp/lib/secret"
)

// DefaultBaseURL is the public Fleep API root.
const DefaultBaseURL = "https://fleep.io/api"

// DefaultTimeout bounds each request when ClientConfig supplies neither an
// HTTPClient nor a Timeout.
const DefaultTimeout = 30 * time.Second

// tokenCookie is the cookie carrying the session token on every request.
const tokenCookie = "token_id"

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// BaseURL is the API root (e.g., "https://fleep.io/api"). Default: DefaultBaseURL.
	BaseURL string
	// HTTPClient is used for all requests. If nil, a client with Timeout is created.
	HTTPClient *http.Client
	// Timeout applies only when HTTPClient is nil. Default: DefaultTimeout.
	Timeout time.Duration
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
	// MaxResponseSize caps each response body. Default: netutil.MaxResponseSize.
	MaxResponseSize int64
}

// Client is an unauthenticated Fleep client. It holds the API root and the
// HTTP transport; Sessions built on it share both.
type Client struct {
	baseURL         string
	httpClient      *http.Client
	logger          *slog.Logger
	maxResponseSize int64
}

// NewClient creates a new unauthenticated Fleep client.
func NewClient(config ClientConfig) (*Client, error) {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("fleep: invalid BaseURL %q: %w", baseURL, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("fleep: BaseURL %q must be absolute", baseURL)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	maxResponseSize := config.MaxResponseSize
	if maxResponseSize <= 0 {
		maxResponseSize = netutil.MaxResponseSize
	}

	return &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		httpClient:      httpClient,
		logger:          logger,
		maxResponseSize: maxResponseSize,
	}, nil
}

// CloseIdleConnections drops pooled connections in the transport.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

// LoginResult is a freshly issued session. The caller owns TokenID and must
// Close it.
type LoginResult struct {
	TokenID     *secret.Buffer
	Ticket      string
	AccountID   string
	DisplayName string
}

// Login exchanges an email and password for a session token and ticket.
// The password buffer is read but not closed. Every failure, including a
// transport failure, is returned as *AuthError.
func (c *Client) Login(ctx context.Context, email string, password *secret.Buffer) (*LoginResult, error) {
	if email == "" {
		return nil, &AuthError{Reason: "email is required"}
	}
	if password == nil {
		return nil, &AuthError{Reason: "password is required"}
	}

	// The password becomes a heap string only for the JSON encoding.
	request, err := c.newJSONRequest(ctx, "account/login", nil, loginRequest{
		Email:    email,
		Password: password.String(),
	})
	if err != nil {
		return nil, &AuthError{Reason: "building login request", Err: err}
	}

	body, response, err := c.send(request, "account/login")
	if err != nil {
		return nil, &AuthError{Reason: "login rejected", Err: err}
	}

	var parsed loginResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &AuthError{Reason: "unparseable login response", Err: err}
	}
	if parsed.Ticket == "" {
		return nil, &AuthError{Reason: "login response has no ticket"}
	}

	var tokenValue string
	for _, cookie := range response.Cookies() {
		if cookie.Name == tokenCookie {
			tokenValue = cookie.Value
		}
	}
	if tokenValue == "" {
		return nil, &AuthError{Reason: "login response has no " + tokenCookie + " cookie"}
	}
	tokenID, err := secret.FromString(tokenValue)
	if err != nil {
		return nil, &AuthError{Reason: "protecting session token", Err: err}
	}

	c.logger.Info("logged in to fleep",
		"account_id", parsed.AccountID,
		"display_name", parsed.DisplayName,
	)

	return &LoginResult{
		TokenID:     tokenID,
		Ticket:      parsed.Ticket,
		AccountID:   parsed.AccountID,
		DisplayName: parsed.DisplayName,
	}, nil
}

// sessionToken is a point-in-time copy of a Session's credentials, taken
// under the session lock so requests never read the secret buffer
// concurrently with its replacement.
type sessionToken struct {
	tokenID    string
	ticket     string
	generation uint64
}

// postJSON sends an authenticated JSON POST and returns the response body.
func (c *Client) postJSON(ctx context.Context, path string, token sessionToken, body any) ([]byte, error) {
	request, err := c.newJSONRequest(ctx, path, &token, body)
	if err != nil {
		return nil, err
	}
	responseBody, _, err := c.send(request, path)
	return responseBody, err
}

// newJSONRequest builds a POST to path. With a token, the ticket is added
// to the JSON object and the token rides in the token_id cookie.
func (c *Client) newJSONRequest(ctx context.Context, path string, token *sessionToken, body any) (*http.Request, error) {
	ticket := ""
	if token != nil {
		ticket = token.ticket
	}
	encoded, err := encodeBody(body, ticket)
	if err != nil {
		return nil, err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("fleep: failed to create request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	if token != nil {
		request.AddCookie(&http.Cookie{Name: tokenCookie, Value: token.tokenID})
	}
	return request, nil
}

// encodeBody marshals body, which must encode as a JSON object (or be
// nil), and adds the ticket field.
func encodeBody(body any, ticket string) ([]byte, error) {
	fields := make(map[string]json.RawMessage)
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("fleep: failed to encode request body: %w", err)
		}
		if err := json.Unmarshal(encoded, &fields); err != nil {
			return nil, fmt.Errorf("fleep: request body must be a JSON object: %w", err)
		}
	}
	if ticket != "" {
		quoted, err := json.Marshal(ticket)
		if err != nil {
			return nil, fmt.Errorf("fleep: failed to encode ticket: %w", err)
		}
		fields["ticket"] = quoted
	}
	return json.Marshal(fields)
}

// send performs request and classifies the outcome. On success it returns
// the body and the response (for cookies); the response body is already
// consumed and closed. Transport failures become *NetworkError; service
// rejections and bodies over the size cap become *APIError.
func (c *Client) send(request *http.Request, path string) ([]byte, *http.Response, error) {
	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, nil, &NetworkError{Path: path, Err: err}
	}
	defer response.Body.Close()

	body, err := netutil.ReadResponseLimit(response.Body, c.maxResponseSize)
	if errors.Is(err, netutil.ErrResponseTooLarge) {
		// An oversized body is the service's answer, not a transport
		// failure: retrying gets the same body.
		return nil, nil, &APIError{
			StatusCode: response.StatusCode,
			Path:       path,
			Message:    fmt.Sprintf("response body exceeds %d bytes", c.maxResponseSize),
		}
	}
	if err != nil {
		return nil, nil, &NetworkError{Path: path, Err: err}
	}

	success := response.StatusCode >= 200 && response.StatusCode < 300
	if success && !hasErrorEnvelope(body) {
		return body, response, nil
	}

	apiErr := &APIError{StatusCode: response.StatusCode, Path: path}
	if jsonErr := json.Unmarshal(body, apiErr); jsonErr != nil || (apiErr.ErrorID == "" && apiErr.Message == "") {
		// Not an error envelope: keep a bounded slice of the raw body.
		apiErr.Message = strings.TrimSpace(netutil.Snippet(body, 512))
	}
	return nil, nil, apiErr
}

// hasErrorEnvelope reports whether a 2xx body is actually an error: the
// service sometimes answers 200 with an error_id.
func hasErrorEnvelope(body []byte) bool {
	var envelope struct {
		ErrorID string `json:"error_id"`
	}
	if json.Unmarshal(body, &envelope) != nil {
		return false
	}
	return envelope.ErrorID != ""
}

// postMultipart sends an authenticated multipart upload. Multipart bodies
// cannot carry the ticket as a JSON field, so it goes in the query string.
func (c *Client) postMultipart(ctx context.Context, path string, token sessionToken, contentType string, body io.Reader) ([]byte, error) {
	requestURL := c.baseURL + "/" + path + "?" + url.Values{"ticket": {token.ticket}}.Encode()
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, body)
	if err != nil {
		return nil, fmt.Errorf("fleep: failed to create request: %w", err)
	}
	request.Header.Set("Content-Type", contentType)
	request.AddCookie(&http.Cookie{Name: tokenCookie, Value: token.tokenID})

	responseBody, _, err := c.send(request, path)
	return responseBody, err
}

// conversationPath joins an endpoint with an escaped conversation id.
func conversationPath(endpoint, conversationID string) string {
	return endpoint + "/" + url.PathEscape(conversationID)
}
