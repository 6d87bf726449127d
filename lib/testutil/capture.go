// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"io"
	"os"
	"testing"
)

// CaptureStdout redirects os.Stdout for the duration of fn and returns
// what was written. fn must finish its writes before returning; output
// from goroutines that outlive fn is not captured.
func CaptureStdout(t *testing.T, fn func()) string {
	t.Helper()

	readEnd, writeEnd, err := os.Pipe()
	if err != nil {
		t.Fatalf("creating pipe: %v", err)
	}
	original := os.Stdout
	os.Stdout = writeEnd
	defer func() { os.Stdout = original }()

	fn()

	writeEnd.Close()
	output, err := io.ReadAll(readEnd)
	if err != nil {
		t.Fatalf("reading captured stdout: %v", err)
	}
	return string(output)
}
