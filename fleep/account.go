// Copyright 2026 The fleep-mcp Authors
// SPDX-License-Identifier: Apache-2.0

package fleep

import "context"

// SyncContacts returns every contact known to the account.
func (s *Session) SyncContacts(ctx context.Context) ([]Contact, error) {
	var result contactsResponse
	if err := s.call(ctx, "contact/sync/all", nil, &result); err != nil {
		return nil, err
	}
	return result.Contacts, nil
}

// Poll returns account events after options.EventHorizon. With Wait set
// the service holds the request open until an event arrives or its own
// long-poll timeout passes, so the client timeout must exceed it.
func (s *Session) Poll(ctx context.Context, options PollOptions) (*PollResult, error) {
	var result PollResult
	if err := s.call(ctx, "account/poll", options, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Configure updates account settings and returns the resulting profile.
func (s *Session) Configure(ctx context.Context, request ConfigureRequest) (*Profile, error) {
	var result Profile
	if err := s.call(ctx, "account/configure", request, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
