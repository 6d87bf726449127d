// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package projection

import "fmt"

// ReducerError records a state repair made while applying an
// envelope: the producer referenced a slot it never opened, and the
// reducer created it on the fly instead of failing. Producers are not
// guaranteed to emit *.added before the first delta, so repair is the
// normal path; the error value exists so the controller can log how
// often its feed needed it.
type ReducerError struct {
	// Reducer names the accumulator that repaired ("reasoning",
	// "tool").
	Reducer string

	// Key describes the slot that was auto-created.
	Key string

	// EventID is the envelope that triggered the repair.
	EventID int64
}

func (e *ReducerError) Error() string {
	return fmt.Sprintf("projection: %s delta for unopened slot %s (event %d); slot auto-created",
		e.Reducer, e.Key, e.EventID)
}
