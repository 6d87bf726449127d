// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import "fmt"

// ReplayError reports a failure to fetch or decode persisted run
// history, from the ledger API or from a capture file. StatusCode is
// zero when the failure was not an HTTP response.
type ReplayError struct {
	// Entity names what was being fetched, such as "run run-7" or a
	// capture file path.
	Entity     string
	StatusCode int
	Message    string
	Err        error
}

func (e *ReplayError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("replaying %s: status %d: %s", e.Entity, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("replaying %s: %v", e.Entity, e.Err)
	}
	return fmt.Sprintf("replaying %s: %s", e.Entity, e.Message)
}

func (e *ReplayError) Unwrap() error { return e.Err }
