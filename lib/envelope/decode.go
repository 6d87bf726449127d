// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package envelope

import (
	"encoding/json"
	"fmt"
)

// Decode parses one JSON-encoded envelope. The returned envelope has
// passed [Envelope.Validate]: syntactically well-formed JSON with a
// missing required field is an error here, so the caller can drop the
// single envelope and keep the stream alive.
func Decode(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parsing envelope: %w", err)
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}
	return &env, nil
}

// Validate checks the per-kind required fields. Unknown kinds validate
// successfully: they decode, apply as no-ops everywhere, and keep old
// consoles compatible with new producers. A known kind missing a field
// the reducers key on is rejected so it can be dropped with a warning
// instead of corrupting a projection.
func (e *Envelope) Validate() error {
	if e.Kind == "" {
		return fmt.Errorf("envelope missing kind")
	}
	if e.StreamID == "" {
		return fmt.Errorf("%s envelope missing stream_id", e.Kind)
	}

	switch e.Kind {
	case KindMessageDelta:
		if e.ItemID == "" {
			return fmt.Errorf("%s envelope missing item_id", e.Kind)
		}
	case KindOutputItemAdded, KindOutputItemDone:
		if e.ItemID == "" {
			return fmt.Errorf("%s envelope missing item_id", e.Kind)
		}
		if e.ItemType == "" {
			return fmt.Errorf("%s envelope missing item_type", e.Kind)
		}
	case KindReasoningPartAdded, KindReasoningDelta, KindReasoningPartDone:
		if e.ItemID == "" {
			return fmt.Errorf("%s envelope missing item_id", e.Kind)
		}
	case KindGuardrailResult:
		if e.Guardrail == nil {
			return fmt.Errorf("%s envelope missing guardrail payload", e.Kind)
		}
	case KindFinal:
		if e.Final == nil {
			return fmt.Errorf("%s envelope missing final payload", e.Kind)
		}
	}

	if e.Scope != nil && e.Scope.Type == ScopeAgentTool && e.Scope.ToolCallID == "" {
		return fmt.Errorf("%s envelope has agent_tool scope without tool_call_id", e.Kind)
	}

	return nil
}
