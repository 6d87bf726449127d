// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateRequestID creates a random 16-byte hex string for
// correlating CLI requests with console API logs. Every client a
// command opens shares this generator, so one invocation's requests
// are traceable end to end. Falls back to a fixed value on entropy
// failure rather than failing the request over a diagnostic header.
func GenerateRequestID() string {
	var buffer [16]byte
	if _, err := rand.Read(buffer[:]); err != nil {
		return "0000000000000000"
	}
	return hex.EncodeToString(buffer[:])
}
