// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/parley-ops/parley/cmd/parley/cli"
	"github.com/parley-ops/parley/lib/ledger"
)

// verifyParams holds the parameters for the verify command.
type verifyParams struct {
	cli.JSONOutput
	RunID          string `flag:"run"          desc:"verify this run from the ledger"`
	ConversationID string `flag:"conversation" desc:"verify a whole conversation from the ledger"`
	File           string `flag:"file"         desc:"verify a capture file instead of the ledger"`
	Identity       string `flag:"identity"     desc:"age identity file for sealed captures"`
}

// VerifyCommand returns the "verify" command: prove that replaying a
// persisted event log reproduces the live streaming result.
func VerifyCommand() *cli.Command {
	var params verifyParams

	return &cli.Command{
		Name:    "verify",
		Summary: "Check that a persisted run replays deterministically",
		Description: `Apply one event log through two independent paths, once streamed
through the wire framing exactly as live traffic arrives and once via
the replay path, then fingerprint both final states.

Matching fingerprints prove the persisted log reproduces the live
result byte for byte. A mismatch prints both fingerprints and exits
with code 1.`,
		Usage: "parley verify [flags]",
		Examples: []cli.Example{
			{
				Description: "Verify a run from the ledger",
				Command:     "parley verify --run run-42",
			},
			{
				Description: "Verify a capture file before sharing it",
				Command:     "parley verify --file incident.plycap",
			},
			{
				Description: "Verify in a script",
				Command:     "parley verify --run run-42 --json",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("unexpected argument: %s", args[0])
			}

			events, descriptor, err := resolveReplaySource(ctx, replaySource{
				RunID:          params.RunID,
				ConversationID: params.ConversationID,
				File:           params.File,
				Identity:       params.Identity,
			}, logger)
			if err != nil {
				return err
			}

			result, err := ledger.VerifyEvents(ctx, events, descriptor, logger)
			if err != nil {
				return cli.Internal("verify: %w", err)
			}

			if done, err := params.EmitJSON(verifyReport{
				WireFingerprint:   ledger.FormatHash(result.WireHash),
				ReplayFingerprint: ledger.FormatHash(result.ReplayHash),
				EventCount:        result.EventCount,
				Match:             result.Match(),
			}); done {
				if err != nil {
					return err
				}
				if !result.Match() {
					return &cli.ExitError{Code: 1}
				}
				return nil
			}

			fmt.Printf("wire:   %s\n", ledger.FormatHash(result.WireHash))
			fmt.Printf("replay: %s\n", ledger.FormatHash(result.ReplayHash))
			fmt.Printf("events: %d\n", result.EventCount)
			if !result.Match() {
				fmt.Println("fingerprint mismatch")
				return &cli.ExitError{Code: 1}
			}
			fmt.Println("fingerprints match")
			return nil
		},
	}
}

// verifyReport is the JSON shape of a verification outcome.
type verifyReport struct {
	WireFingerprint   string `json:"wire_fingerprint"`
	ReplayFingerprint string `json:"replay_fingerprint"`
	EventCount        int    `json:"event_count"`
	Match             bool   `json:"match"`
}
