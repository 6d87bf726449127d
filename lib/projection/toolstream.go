// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package projection

import "github.com/parley-ops/parley/lib/envelope"

// ToolStream is the projection of one nested tool invocation's
// sub-conversation: identity copied from the scope tag, accumulated
// text, and whether the invocation is still streaming.
type ToolStream struct {
	ToolCallID string
	ToolName   string
	Agent      string
	Text       string

	// IsStreaming is true between the tool-scoped output_item.added
	// and its matching output_item.done.
	IsStreaming bool
}

// ToolState accumulates tool sub-streams keyed by tool call ID.
// Create with [NewToolState]; zero value is not usable.
type ToolState struct {
	streams map[string]*ToolStream

	// order preserves first-sight order so Streams is deterministic
	// without depending on map iteration.
	order []string

	recovered     int
	lastRecovered error
}

// NewToolState returns an empty tool sub-stream accumulator.
func NewToolState() *ToolState {
	return &ToolState{streams: make(map[string]*ToolStream)}
}

// Apply folds one envelope into the state. Envelopes without an
// agent_tool scope are ignored entirely: they are never attributed to
// any tool stream and never create an entry, even when they share an
// item_id with a scoped envelope. For scoped envelopes the entry is
// created lazily on first sight (identity fields copied from the
// scope and immutable afterwards), then:
//
//   - output_item.added with item_type "message" marks the stream
//     live (isStreaming true).
//   - message.delta appends the fragment to the text. A delta
//     arriving before any added still lands: the lazily-created
//     entry counts as a recovered [ReducerError].
//   - output_item.done marks the stream finished (isStreaming false).
//
// Other scoped kinds only ensure the entry exists.
func (s *ToolState) Apply(env *envelope.Envelope) {
	if !env.Scoped() {
		return
	}

	switch env.Kind {
	case envelope.KindOutputItemAdded:
		entry := s.ensure(env.Scope)
		if env.ItemType == envelope.ItemTypeMessage {
			entry.IsStreaming = true
		}

	case envelope.KindMessageDelta:
		entry, existed := s.lookup(env.Scope)
		if !existed {
			s.recovered++
			s.lastRecovered = &ReducerError{
				Reducer: "tool",
				Key:     env.Scope.ToolCallID,
				EventID: env.EventID,
			}
		}
		entry.Text += env.Delta

	case envelope.KindOutputItemDone:
		entry := s.ensure(env.Scope)
		entry.IsStreaming = false

	default:
		s.ensure(env.Scope)
	}
}

// ensure returns the entry for the scope's tool call, creating it on
// first sight.
func (s *ToolState) ensure(scope *envelope.Scope) *ToolStream {
	entry, _ := s.lookup(scope)
	return entry
}

// lookup returns the entry and whether it already existed. A missing
// entry is created with the scope's identity fields; an existing
// entry only has empty identity fields filled in, never overwritten.
func (s *ToolState) lookup(scope *envelope.Scope) (*ToolStream, bool) {
	if entry, ok := s.streams[scope.ToolCallID]; ok {
		if entry.ToolName == "" {
			entry.ToolName = scope.ToolName
		}
		if entry.Agent == "" {
			entry.Agent = scope.Agent
		}
		return entry, true
	}
	entry := &ToolStream{
		ToolCallID: scope.ToolCallID,
		ToolName:   scope.ToolName,
		Agent:      scope.Agent,
	}
	s.streams[scope.ToolCallID] = entry
	s.order = append(s.order, scope.ToolCallID)
	return entry, false
}

// Stream returns a copy of the sub-stream for one tool call, and
// whether it exists. Read-only: mutating the copy does not touch the
// state.
func (s *ToolState) Stream(toolCallID string) (ToolStream, bool) {
	entry, ok := s.streams[toolCallID]
	if !ok {
		return ToolStream{}, false
	}
	return *entry, true
}

// Streams returns copies of all sub-streams in first-sight order.
func (s *ToolState) Streams() []ToolStream {
	out := make([]ToolStream, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.streams[id])
	}
	return out
}

// Recovered reports how many entries were created by a delta with no
// preceding added, and the most recent repair (nil when zero).
func (s *ToolState) Recovered() (int, error) {
	return s.recovered, s.lastRecovered
}

// Reset discards all sub-streams and repair records.
func (s *ToolState) Reset() {
	s.streams = make(map[string]*ToolStream)
	s.order = nil
	s.recovered = 0
	s.lastRecovered = nil
}
