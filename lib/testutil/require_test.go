// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

// fatalRecorder satisfies the Require helper constraint and records
// the failure instead of stopping the test.
type fatalRecorder struct {
	failed  bool
	message string
}

func (r *fatalRecorder) Helper() {}

func (r *fatalRecorder) Fatalf(format string, args ...any) {
	r.failed = true
	r.message = fmt.Sprintf(format, args...)
}

func TestRequireClosed_ClosedChannelPasses(t *testing.T) {
	t.Parallel()

	ch := make(chan struct{})
	close(ch)

	recorder := &fatalRecorder{}
	RequireClosed(recorder, ch, time.Second, "should not fire")
	if recorder.failed {
		t.Errorf("RequireClosed failed on a closed channel: %s", recorder.message)
	}
}

func TestRequireClosed_TimeoutFails(t *testing.T) {
	t.Parallel()

	recorder := &fatalRecorder{}
	RequireClosed(recorder, make(chan struct{}), 10*time.Millisecond, "worker %s never exited", "w-1")
	if !recorder.failed {
		t.Fatal("RequireClosed did not fail on an open channel")
	}
	if !strings.Contains(recorder.message, "worker w-1 never exited") {
		t.Errorf("message = %q, want the formatted context", recorder.message)
	}
}

func TestFormatMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		msgAndArgs []any
		want       string
	}{
		{"empty", nil, "(no message)"},
		{"bare string", []any{"waiting"}, "waiting"},
		{"format string", []any{"run %s, attempt %d", "run-1", 2}, "run run-1, attempt 2"},
		{"non-string lead", []any{42}, "42"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := formatMessage(test.msgAndArgs); got != test.want {
				t.Errorf("formatMessage(%v) = %q, want %q", test.msgAndArgs, got, test.want)
			}
		})
	}
}

func TestCaptureStdout(t *testing.T) {
	got := CaptureStdout(t, func() {
		fmt.Println("hello")
	})
	if got != "hello\n" {
		t.Errorf("CaptureStdout = %q, want %q", got, "hello\n")
	}
}
