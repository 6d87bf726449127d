// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"crypto/rand"
	"encoding/hex"
)

// randomRequestID creates a random 16-byte hex string for correlating
// a request with the producer's logs. Falls back to a fixed value on
// entropy failure rather than failing the request over a diagnostic
// header.
func randomRequestID() string {
	var buffer [16]byte
	if _, err := rand.Read(buffer[:]); err != nil {
		return "0000000000000000"
	}
	return hex.EncodeToString(buffer[:])
}
