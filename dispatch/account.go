// Copyright 2026 The fleep-mcp Authors
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"

	"github.com/fleepmcp/fleep-mcp/fleep"
	"github.com/fleepmcp/fleep-mcp/lib/tool"
)

type noParams struct{}

type contactsResult struct {
	Contacts []fleep.Contact `json:"contacts"`
}

type pollParams struct {
	EventHorizon int64 `json:"event_horizon" desc:"cursor returned by a previous poll; 0 starts from the beginning"`
	Wait         bool  `json:"wait"          desc:"long-poll until an event arrives" default:"false"`
}

type pollResult struct {
	EventHorizon int64                `json:"event_horizon"`
	Events       []fleep.AccountEvent `json:"events"`
}

type configureParams struct {
	DisplayName   string `json:"display_name"   desc:"new display name"`
	EmailInterval string `json:"email_interval" desc:"email notification interval, for example never or daily"`
}

type configureResult struct {
	AccountID   string `json:"account_id"`
	DisplayName string `json:"display_name"`
}

type uploadParams struct {
	FilePaths []string `json:"file_paths" desc:"local files to upload" required:"true"`
}

type uploadResult struct {
	Files []fleep.UploadedFile `json:"files"`
}

func (d *dispatcher) accountTools() []*tool.Tool {
	return []*tool.Tool{
		tool.Define(tool.Spec{
			Name:        "sync_contacts",
			Description: "List every contact known to the account.",
			Annotations: tool.ReadOnly("Sync contacts"),
		}, func(ctx context.Context, _ noParams) (contactsResult, error) {
			contacts, err := d.session.SyncContacts(ctx)
			if err != nil {
				return contactsResult{}, err
			}
			return contactsResult{Contacts: nonNil(contacts)}, nil
		}),

		tool.Define(tool.Spec{
			Name:        "poll_account",
			Description: "Fetch account events newer than event_horizon. Pass the returned event_horizon to the next poll.",
			Annotations: tool.ReadOnly("Poll account events"),
		}, func(ctx context.Context, params pollParams) (pollResult, error) {
			if err := requireNonNegative("event_horizon", params.EventHorizon); err != nil {
				return pollResult{}, err
			}
			result, err := d.session.Poll(ctx, fleep.PollOptions{
				EventHorizon: params.EventHorizon,
				Wait:         params.Wait,
			})
			if err != nil {
				return pollResult{}, err
			}
			return pollResult{EventHorizon: result.EventHorizon, Events: nonNil(result.Stream)}, nil
		}),

		tool.Define(tool.Spec{
			Name:        "configure_account",
			Description: "Change account settings. Omitted settings are left unchanged.",
			Annotations: tool.Idempotent("Configure account"),
		}, func(ctx context.Context, params configureParams) (configureResult, error) {
			profile, err := d.session.Configure(ctx, fleep.ConfigureRequest{
				DisplayName:   params.DisplayName,
				EmailInterval: params.EmailInterval,
			})
			if err != nil {
				return configureResult{}, err
			}
			return configureResult{AccountID: profile.AccountID, DisplayName: profile.DisplayName}, nil
		}),

		tool.Define(tool.Spec{
			Name:        "upload_files",
			Description: "Upload local files. Pass the returned upload_url values to send_message as attachments.",
			Annotations: tool.Create("Upload files"),
		}, func(ctx context.Context, params uploadParams) (uploadResult, error) {
			files, err := readFiles("file_paths", params.FilePaths)
			if err != nil {
				return uploadResult{}, err
			}
			uploaded, err := d.session.Upload(ctx, files)
			if err != nil {
				return uploadResult{}, err
			}
			return uploadResult{Files: nonNil(uploaded)}, nil
		}),
	}
}
