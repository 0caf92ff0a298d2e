// Copyright 2026 The fleep-mcp Authors
// SPDX-License-Identifier: Apache-2.0

package fleep

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/fleepmcp/fleep-mcp/lib/secret"
)

// State is the authentication state of a Session.
type State int

const (
	// StateUnauthenticated: no login has been attempted, or the session
	// was logged out.
	StateUnauthenticated State = iota
	// StateAuthenticated: a token and ticket are held.
	StateAuthenticated
	// StateReauthenticating: the held token was rejected and a re-login
	// is in flight. Requests started before the rejection still carry the
	// old token.
	StateReauthenticating
	// StateFailed: the last login failed, or a request was still rejected
	// after re-authenticating. The next request attempts a fresh login.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateReauthenticating:
		return "reauthenticating"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Login reasons reported to a LoginObserver.
const (
	LoginInitial = "initial"
	LoginReauth  = "reauth"
)

// LoginObserver is told about every login attempt the session makes.
// Implementations must be safe for concurrent use.
type LoginObserver interface {
	ObserveLogin(reason string, success bool)
}

// SessionConfig holds configuration for creating a Session.
type SessionConfig struct {
	// Email is the account login.
	Email string
	// Password is the account password. The Session takes ownership and
	// closes it in Close.
	Password *secret.Buffer
	// Observer is notified of logins. Optional.
	Observer LoginObserver
	// Logger defaults to the client's logger.
	Logger *slog.Logger
}

// Session is one authenticated identity on the Fleep service. It is safe
// for concurrent use: ordinary requests run in parallel, and only the
// re-login step is serialized.
type Session struct {
	client   *Client
	email    string
	password *secret.Buffer
	observer LoginObserver
	logger   *slog.Logger

	logins singleflight.Group

	mu          sync.Mutex
	state       State
	tokenID     *secret.Buffer
	ticket      string
	generation  uint64
	accountID   string
	displayName string
}

// NewSession creates an unauthenticated Session. No network call is made
// until Authenticate or the first request.
func NewSession(client *Client, config SessionConfig) (*Session, error) {
	if client == nil {
		return nil, errors.New("fleep: NewSession requires a client")
	}
	if config.Email == "" {
		return nil, errors.New("fleep: session email is required")
	}
	if config.Password == nil {
		return nil, errors.New("fleep: session password is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = client.logger
	}
	return &Session{
		client:   client,
		email:    config.Email,
		password: config.Password,
		observer: config.Observer,
		logger:   logger,
	}, nil
}

// State returns the current authentication state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// AccountID returns the account id from the most recent login, or "" if
// the session has never logged in.
func (s *Session) AccountID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accountID
}

// Authenticate logs in if the session does not already hold a token.
func (s *Session) Authenticate(ctx context.Context) error {
	_, err := s.current(ctx)
	return err
}

// AuthorizedRequest POSTs body to path with the session's credentials and
// returns the raw response body. body must encode as a JSON object, or be
// nil. An authentication-expired response triggers one re-login and one
// retry; if the retry is also rejected the session moves to StateFailed
// and the error is an *AuthError.
func (s *Session) AuthorizedRequest(ctx context.Context, path string, body any) ([]byte, error) {
	return s.authorized(ctx, path, func(token sessionToken) ([]byte, error) {
		return s.client.postJSON(ctx, path, token, body)
	})
}

// call runs AuthorizedRequest and decodes the response into result, which
// may be nil when the response carries nothing of interest.
func (s *Session) call(ctx context.Context, path string, body, result any) error {
	raw, err := s.AuthorizedRequest(ctx, path, body)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return &DecodeError{Path: path, Err: err}
	}
	return nil
}

// authorized runs send with the current token, re-authenticating once if
// the service reports the token expired.
func (s *Session) authorized(ctx context.Context, path string, send func(sessionToken) ([]byte, error)) ([]byte, error) {
	token, err := s.current(ctx)
	if err != nil {
		return nil, err
	}

	body, err := send(token)
	if err == nil || !IsAuthExpired(err) {
		return body, err
	}

	s.logger.Info("fleep session expired, re-authenticating",
		"path", path,
		"generation", token.generation,
	)
	token, err = s.login(ctx, token.generation, LoginReauth)
	if err != nil {
		return nil, err
	}

	body, err = send(token)
	if err != nil && IsAuthExpired(err) {
		s.mu.Lock()
		if s.generation == token.generation {
			s.state = StateFailed
		}
		s.mu.Unlock()
		s.logger.Warn("fleep request rejected after re-authentication", "path", path)
		return nil, &AuthError{Reason: "request rejected after re-authentication", Err: err}
	}
	return body, err
}

// current returns the held token, logging in first if there is none or
// the session has failed.
func (s *Session) current(ctx context.Context) (sessionToken, error) {
	s.mu.Lock()
	switch s.state {
	case StateAuthenticated, StateReauthenticating:
		token := s.tokenLocked()
		s.mu.Unlock()
		return token, nil
	}
	generation := s.generation
	s.mu.Unlock()
	return s.login(ctx, generation, LoginInitial)
}

// login replaces the token observed at staleGeneration. Concurrent callers
// that saw the same generation share one login through the singleflight
// group; a caller arriving after the replacement already happened gets the
// new token without logging in again.
func (s *Session) login(ctx context.Context, staleGeneration uint64, reason string) (sessionToken, error) {
	// The shared login must not die with whichever caller started it.
	loginContext := context.WithoutCancel(ctx)

	result, err, _ := s.logins.Do(strconv.FormatUint(staleGeneration, 10), func() (any, error) {
		s.mu.Lock()
		if s.generation != staleGeneration && s.state == StateAuthenticated {
			token := s.tokenLocked()
			s.mu.Unlock()
			return token, nil
		}
		if s.state == StateAuthenticated {
			s.state = StateReauthenticating
		}
		s.mu.Unlock()

		login, err := s.client.Login(loginContext, s.email, s.password)
		if s.observer != nil {
			s.observer.ObserveLogin(reason, err == nil)
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if err != nil {
			s.state = StateFailed
			return sessionToken{}, err
		}
		if s.tokenID != nil {
			s.tokenID.Close()
		}
		s.tokenID = login.TokenID
		s.ticket = login.Ticket
		s.accountID = login.AccountID
		s.displayName = login.DisplayName
		s.generation++
		s.state = StateAuthenticated
		return s.tokenLocked(), nil
	})
	if err != nil {
		return sessionToken{}, err
	}
	return result.(sessionToken), nil
}

// tokenLocked snapshots the credentials. Caller holds s.mu.
func (s *Session) tokenLocked() sessionToken {
	return sessionToken{
		tokenID:    s.tokenID.String(),
		ticket:     s.ticket,
		generation: s.generation,
	}
}

// Logout ends the session on the service, best-effort, and drops the held
// token. The session can log in again afterwards.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateAuthenticated && s.state != StateReauthenticating {
		s.mu.Unlock()
		return nil
	}
	token := s.tokenLocked()
	s.mu.Unlock()

	_, err := s.client.postJSON(ctx, "account/logout", token, nil)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation == token.generation {
		s.clearLocked()
	}
	if err != nil {
		return fmt.Errorf("fleep: logout: %w", err)
	}
	return nil
}

// clearLocked drops the token. Caller holds s.mu.
func (s *Session) clearLocked() {
	if s.tokenID != nil {
		s.tokenID.Close()
		s.tokenID = nil
	}
	s.ticket = ""
	s.state = StateUnauthenticated
	s.generation++
}

// Close releases the password and token memory. The Session must not be
// used afterwards.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
	return s.password.Close()
}
