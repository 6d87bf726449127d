// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/parley-ops/parley/lib/conversation"
	"github.com/parley-ops/parley/lib/envelope"
	"github.com/parley-ops/parley/lib/stream"
	"github.com/parley-ops/parley/lib/workflow"
)

// VerifyResult holds the fingerprints from both application paths of
// one event list.
type VerifyResult struct {
	// WireHash fingerprints the state built by streaming the events
	// through the frame scanner and the live apply path.
	WireHash Hash

	// ReplayHash fingerprints the state built by the ledger replay
	// path.
	ReplayHash Hash

	// EventCount is the number of events verified.
	EventCount int
}

// Match reports whether both paths produced identical state.
func (r VerifyResult) Match() bool {
	return r.WireHash == r.ReplayHash
}

// VerifyEvents applies one event list through two fresh controllers,
// once streamed through the wire framing and once via the replay path,
// and fingerprints both final states. Equal hashes demonstrate that
// replaying the persisted log reproduces the live result exactly.
func VerifyEvents(ctx context.Context, events []*envelope.Envelope, descriptor *workflow.Descriptor, logger *slog.Logger) (VerifyResult, error) {
	wireHash, err := WireFingerprint(ctx, events, descriptor, logger)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("wire pass: %w", err)
	}

	replayHash, _, err := ReplayFingerprint(ctx, events, descriptor, logger)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("replay pass: %w", err)
	}

	return VerifyResult{
		WireHash:   wireHash,
		ReplayHash: replayHash,
		EventCount: len(events),
	}, nil
}

// WireFingerprint rebuilds a wire body from the events, streams it
// through a fresh controller via the same scanner and decode path as
// live traffic, and fingerprints the resulting state.
func WireFingerprint(ctx context.Context, events []*envelope.Envelope, descriptor *workflow.Descriptor, logger *slog.Logger) (Hash, error) {
	body, err := stream.EncodeEventStream(events)
	if err != nil {
		return Hash{}, err
	}

	config := conversation.Config{
		ConversationID: conversationIDOf(events),
		Logger:         logger,
	}
	if descriptor != nil {
		store, err := workflow.NewNodeStore(descriptor)
		if err != nil {
			return Hash{}, fmt.Errorf("building workflow store: %w", err)
		}
		config.Workflow = store
	}

	controller := conversation.New(config)
	wireStream := stream.NewStream(ctx, io.NopCloser(bytes.NewReader(body)), logger)
	if err := controller.LoadStream(ctx, wireStream); err != nil {
		return Hash{}, err
	}

	return Fingerprint(controller.Snapshot())
}
