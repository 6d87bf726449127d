// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"context"

	"github.com/parley-ops/parley/lib/conversation"
	"github.com/parley-ops/parley/lib/envelope"
)

// Client and StaticSource both feed controller replays.
var (
	_ conversation.LedgerSource = (*Client)(nil)
	_ conversation.LedgerSource = (*StaticSource)(nil)
)

// StaticSource serves a fixed event list as a ledger, regardless of
// the requested ID. It backs capture-file replay and the verify
// command, where the events were already read from disk.
type StaticSource struct {
	Events []*envelope.Envelope
}

// RunEvents returns the fixed event list.
func (s *StaticSource) RunEvents(ctx context.Context, runID string) ([]*envelope.Envelope, error) {
	return s.Events, nil
}

// ConversationEvents returns the fixed event list.
func (s *StaticSource) ConversationEvents(ctx context.Context, conversationID string) ([]*envelope.Envelope, error) {
	return s.Events, nil
}
