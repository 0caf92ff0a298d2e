// Copyright 2026 The fleep-mcp Authors
// SPDX-License-Identifier: Apache-2.0

// Package tool describes callable tools: a name, a typed parameter
// struct, a typed result, and the JSON Schemas derived from both.
//
// Parameter schemas come from struct tags on the parameter type:
//
//	type sendParams struct {
//	    ConversationID string   `json:"conversation_id" desc:"conversation to post in" required:"true"`
//	    Message        string   `json:"message" desc:"message text" required:"true"`
//	    Attachments    []string `json:"attachments" desc:"attachment URLs"`
//	    Invite         bool     `json:"is_invite" desc:"send invitations" default:"true"`
//	}
//
// [Validate] checks raw JSON arguments against that schema before any
// tool code runs: the arguments must be an object, required properties
// must be present and non-null, present properties must have the
// declared kind, and unknown properties are rejected. Defaults from
// default tags fill in missing optional properties.
//
// Every failure a tool returns is classified into a [Kind] by
// [Registry.Classify]. The registry consults its [Classifier], which the
// owner installs to map domain errors, and falls back to [Classify] for
// anything the classifier does not recognize.
package tool
