// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package conversation

import (
	"github.com/parley-ops/parley/lib/envelope"
)

// Transcript entry roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Entry is one ordered transcript element: a user message appended
// locally, or an agent output item accumulated from envelopes.
type Entry struct {
	// ItemID keys agent items; empty for locally appended user
	// messages.
	ItemID string

	Role        string
	Agent       string
	ResponseID  string
	OutputIndex int

	// Text accumulates message deltas until the item closes.
	Text string

	// Status is streaming until the item's output_item.done or the
	// run's final envelope, done afterward.
	Status string
}

// Done reports whether the entry is closed. Closed entries ignore
// further deltas.
func (e *Entry) Done() bool {
	return e.Status == envelope.StatusDone
}

// Transcript is the ordered list of entries for one conversation.
// Agent entries are created on the first envelope referencing a new
// item_id, updated by deltas, and closed by output_item.done or final.
type Transcript struct {
	entries []*Entry
	byItem  map[string]int
}

func NewTranscript() *Transcript {
	return &Transcript{byItem: make(map[string]int)}
}

// AppendUser records a locally sent user message. User entries are
// closed immediately; no envelope ever references them.
func (t *Transcript) AppendUser(text string) {
	t.entries = append(t.entries, &Entry{
		Role:   RoleUser,
		Text:   text,
		Status: envelope.StatusDone,
	})
}

// Apply folds one envelope into the transcript. Tool-scoped envelopes
// belong to the tool sub-stream accumulator and are skipped here, even
// when they share an item_id with top-level entries. Kinds the
// transcript does not track are no-ops.
func (t *Transcript) Apply(env *envelope.Envelope) {
	if env.Scoped() {
		return
	}

	switch env.Kind {
	case envelope.KindOutputItemAdded:
		if env.ItemType != envelope.ItemTypeMessage {
			return
		}
		t.ensure(env)

	case envelope.KindMessageDelta:
		entry := t.ensure(env)
		if entry.Done() {
			// Duplicate replay overlap at a reconnect boundary.
			return
		}
		entry.Text += env.Delta

	case envelope.KindOutputItemDone:
		if env.ItemType != envelope.ItemTypeMessage {
			return
		}
		entry := t.ensure(env)
		if entry.Done() {
			return
		}
		if env.Text != "" {
			// The done envelope's text is authoritative.
			entry.Text = env.Text
		}
		entry.Status = envelope.StatusDone

	case envelope.KindFinal:
		for _, entry := range t.entries {
			if !entry.Done() {
				entry.Status = envelope.StatusDone
			}
		}
	}
}

// ensure returns the entry for the envelope's item_id, creating it in
// streaming state if this is the first sight. Identity fields are
// filled from the first envelope that carries them and never
// overwritten.
func (t *Transcript) ensure(env *envelope.Envelope) *Entry {
	if index, ok := t.byItem[env.ItemID]; ok {
		entry := t.entries[index]
		if entry.Agent == "" {
			entry.Agent = env.Agent
		}
		if entry.ResponseID == "" {
			entry.ResponseID = env.ResponseID
		}
		return entry
	}

	role := env.Role
	if role == "" {
		role = RoleAssistant
	}
	entry := &Entry{
		ItemID:      env.ItemID,
		Role:        role,
		Agent:       env.Agent,
		ResponseID:  env.ResponseID,
		OutputIndex: env.OutputIndex,
		Status:      envelope.StatusStreaming,
	}
	t.byItem[env.ItemID] = len(t.entries)
	t.entries = append(t.entries, entry)
	return entry
}

// Entries returns value copies of all entries in order.
func (t *Transcript) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	for i, entry := range t.entries {
		out[i] = *entry
	}
	return out
}

// Reset discards all entries.
func (t *Transcript) Reset() {
	t.entries = nil
	t.byItem = make(map[string]int)
}
