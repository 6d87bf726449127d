// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/parley-ops/parley/lib/envelope"
)

func TestFollowAppliesInitialAndUpdates(t *testing.T) {
	t.Parallel()

	directory := t.TempDir()
	path := filepath.Join(directory, "live.plycap")
	if err := WriteCaptureFile(path, testHeader(), captureEnvelopes(1), WriterOptions{}); err != nil {
		t.Fatalf("WriteCaptureFile failed: %v", err)
	}

	updates := make(chan int, 16)
	stop, err := Follow(path, func(header Header, events []*envelope.Envelope) {
		updates <- len(events)
	})
	if err != nil {
		t.Fatalf("Follow failed: %v", err)
	}
	defer stop()

	// The initial contents are applied before Follow returns.
	select {
	case n := <-updates:
		if n != 2 {
			t.Fatalf("initial apply saw %d envelopes, want 2", n)
		}
	default:
		t.Fatal("Follow should apply the initial contents before returning")
	}

	// Replace the capture atomically, as a recorder checkpoint does.
	if err := WriteCaptureFile(path, testHeader(), captureEnvelopes(4), WriterOptions{}); err != nil {
		t.Fatalf("rewriting capture failed: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case n := <-updates:
			if n == 5 {
				return
			}
			// A re-read of intermediate content is allowed; keep
			// waiting for the final state.
		case <-deadline:
			t.Fatal("watcher did not observe the replaced capture")
		}
	}
}

func TestFollowMissingFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "absent.plycap")
	if _, err := Follow(path, func(Header, []*envelope.Envelope) {}); err == nil {
		t.Error("Follow should fail when the capture does not exist")
	}
}

func TestFollowStopIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "live.plycap")
	if err := WriteCaptureFile(path, testHeader(), captureEnvelopes(1), WriterOptions{}); err != nil {
		t.Fatalf("WriteCaptureFile failed: %v", err)
	}

	stop, err := Follow(path, func(Header, []*envelope.Envelope) {})
	if err != nil {
		t.Fatalf("Follow failed: %v", err)
	}
	stop()
	stop()
}
