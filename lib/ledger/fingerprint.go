// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/parley-ops/parley/lib/codec"
	"github.com/parley-ops/parley/lib/conversation"
	"github.com/parley-ops/parley/lib/envelope"
	"github.com/parley-ops/parley/lib/projection"
	"github.com/parley-ops/parley/lib/workflow"
)

// stateDigest is the fingerprint input: the replay-stable subset of a
// snapshot. Phase, stream ID, suppression counters, and errors are
// session artifacts of one particular connection and are excluded, so
// two replays of the same ledger always digest identically.
type stateDigest struct {
	ConversationID string                     `json:"conversation_id"`
	RunStatus      string                     `json:"run_status"`
	Entries        []conversation.Entry       `json:"entries"`
	Reasoning      []projection.ReasoningSlot `json:"reasoning"`
	Tools          []projection.ToolStream    `json:"tools"`
	Guardrails     []envelope.GuardrailResult `json:"guardrails"`
	Result         *envelope.FinalResult      `json:"result"`
	Usage          envelope.Usage             `json:"usage"`
	ActiveNode     *workflow.Node             `json:"active_node"`
	AnimatedEdge   *workflow.Edge             `json:"animated_edge"`
	EventCount     int                        `json:"event_count"`
}

// Fingerprint hashes the replay-stable state in a snapshot. The
// digest is CBOR with deterministic encoding, keyed-hashed in the
// state domain, so equal state always yields an equal hash and the
// hash means nothing outside this context.
func Fingerprint(snapshot conversation.Snapshot) (Hash, error) {
	digest := stateDigest{
		ConversationID: snapshot.ConversationID,
		RunStatus:      snapshot.RunStatus,
		Entries:        snapshot.Entries,
		Reasoning:      snapshot.Reasoning,
		Tools:          snapshot.Tools,
		Guardrails:     snapshot.Guardrails,
		Result:         snapshot.Result,
		Usage:          snapshot.Usage,
		ActiveNode:     snapshot.ActiveNode,
		AnimatedEdge:   snapshot.AnimatedEdge,
		EventCount:     snapshot.EventCount,
	}
	encoded, err := codec.Marshal(&digest)
	if err != nil {
		return Hash{}, fmt.Errorf("encoding state digest: %w", err)
	}
	return keyedHash(stateDomainKey, encoded), nil
}

// ReplayFingerprint applies an event list through a fresh controller
// and fingerprints the resulting state. Verification runs it twice,
// or once against a capture and once against the API ledger, and
// compares hashes: equal hashes mean the reducers produced identical
// state from both sources.
func ReplayFingerprint(ctx context.Context, events []*envelope.Envelope, descriptor *workflow.Descriptor, logger *slog.Logger) (Hash, conversation.Snapshot, error) {
	config := conversation.Config{
		ConversationID: conversationIDOf(events),
		Ledger:         &StaticSource{Events: events},
		Logger:         logger,
	}
	if descriptor != nil {
		store, err := workflow.NewNodeStore(descriptor)
		if err != nil {
			return Hash{}, conversation.Snapshot{}, fmt.Errorf("building workflow store: %w", err)
		}
		config.Workflow = store
	}

	controller := conversation.New(config)
	if err := controller.LoadConversation(ctx); err != nil {
		return Hash{}, conversation.Snapshot{}, err
	}

	snapshot := controller.Snapshot()
	hash, err := Fingerprint(snapshot)
	if err != nil {
		return Hash{}, conversation.Snapshot{}, err
	}
	return hash, snapshot, nil
}

// conversationIDOf finds the first conversation ID in an event list.
func conversationIDOf(events []*envelope.Envelope) string {
	for _, env := range events {
		if env.ConversationID != "" {
			return env.ConversationID
		}
	}
	return ""
}
