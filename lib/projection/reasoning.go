// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package projection

import (
	"fmt"
	"sort"

	"github.com/parley-ops/parley/lib/envelope"
)

// SlotKey identifies one reasoning summary slot. The composite is a
// single comparable value on purpose: map keys built from nested
// optional fields invite equality bugs, a flat struct does not.
type SlotKey struct {
	OutputIndex  int
	ItemID       string
	SummaryIndex int
}

func (k SlotKey) String() string {
	return fmt.Sprintf("%d/%s/%d", k.OutputIndex, k.ItemID, k.SummaryIndex)
}

// ReasoningSlot is the projection of one reasoning summary slot:
// status plus accumulated (or, once done, authoritative) text.
type ReasoningSlot struct {
	Key      SlotKey
	PartType string
	Status   string
	Text     string
}

// Done reports whether the slot has been finalized.
func (s ReasoningSlot) Done() bool { return s.Status == envelope.StatusDone }

// ReasoningState accumulates reasoning summary slots. Create with
// [NewReasoningState]; zero value is not usable.
type ReasoningState struct {
	slots map[SlotKey]*ReasoningSlot

	recovered     int
	lastRecovered error
}

// NewReasoningState returns an empty reasoning accumulator.
func NewReasoningState() *ReasoningState {
	return &ReasoningState{slots: make(map[SlotKey]*ReasoningSlot)}
}

// Apply folds one envelope into the state. Non-reasoning kinds are
// no-ops. The three reasoning kinds behave as:
//
//   - part.added ensures the slot exists with the envelope's initial
//     text and streaming status. An existing slot keeps its
//     accumulated text: added-after-delta happens when a producer
//     retransmits across a reconnect, and the deltas are the newer
//     information.
//   - delta appends to the slot, creating it first if the producer
//     never sent part.added. Deltas for a done slot are dropped:
//     the slot is closed, and late duplicates at replay boundaries
//     must not corrupt it.
//   - part.done replaces the slot text with the envelope's
//     authoritative text and closes the slot. The first done wins;
//     a slot never changes again afterwards.
func (s *ReasoningState) Apply(env *envelope.Envelope) {
	switch env.Kind {
	case envelope.KindReasoningPartAdded:
		key := slotKeyOf(env)
		slot, ok := s.slots[key]
		if !ok {
			s.slots[key] = &ReasoningSlot{
				Key:      key,
				PartType: env.PartType,
				Status:   envelope.StatusStreaming,
				Text:     env.Text,
			}
			return
		}
		if slot.Done() {
			return
		}
		if slot.PartType == "" {
			slot.PartType = env.PartType
		}

	case envelope.KindReasoningDelta:
		slot := s.ensureSlot(env)
		if slot.Done() {
			return
		}
		slot.Text += env.Delta

	case envelope.KindReasoningPartDone:
		slot := s.ensureSlot(env)
		if slot.Done() {
			return
		}
		slot.Text = env.Text
		slot.Status = envelope.StatusDone
		if env.PartType != "" {
			slot.PartType = env.PartType
		}
	}
}

// ensureSlot returns the slot for the envelope's key, auto-creating
// it (and recording the repair) when the producer never opened it.
func (s *ReasoningState) ensureSlot(env *envelope.Envelope) *ReasoningSlot {
	key := slotKeyOf(env)
	if slot, ok := s.slots[key]; ok {
		return slot
	}
	slot := &ReasoningSlot{Key: key, Status: envelope.StatusStreaming}
	s.slots[key] = slot
	s.recovered++
	s.lastRecovered = &ReducerError{Reducer: "reasoning", Key: key.String(), EventID: env.EventID}
	return slot
}

// Project returns the slots ordered by summary index (ties broken by
// output index, then item ID, so the order is total and stable). The
// returned slice is a copy; mutating it does not touch the state.
func (s *ReasoningState) Project() []ReasoningSlot {
	out := make([]ReasoningSlot, 0, len(s.slots))
	for _, slot := range s.slots {
		out = append(out, *slot)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Key, out[j].Key
		if a.SummaryIndex != b.SummaryIndex {
			return a.SummaryIndex < b.SummaryIndex
		}
		if a.OutputIndex != b.OutputIndex {
			return a.OutputIndex < b.OutputIndex
		}
		return a.ItemID < b.ItemID
	})
	return out
}

// Recovered reports how many slots were auto-created for deltas that
// arrived before their part.added, and the most recent repair (nil
// when the count is zero).
func (s *ReasoningState) Recovered() (int, error) {
	return s.recovered, s.lastRecovered
}

// Reset discards all slots and repair records. The state is fresh, as
// if newly created.
func (s *ReasoningState) Reset() {
	s.slots = make(map[SlotKey]*ReasoningSlot)
	s.recovered = 0
	s.lastRecovered = nil
}

func slotKeyOf(env *envelope.Envelope) SlotKey {
	return SlotKey{
		OutputIndex:  env.OutputIndex,
		ItemID:       env.ItemID,
		SummaryIndex: env.SummaryIndex,
	}
}
