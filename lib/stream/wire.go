// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/parley-ops/parley/lib/envelope"
)

// EncodeEventStream renders envelopes as a text/event-stream body, one
// data frame per envelope, terminated the way the live transport
// delimits frames. Verification uses it to rebuild a wire body from
// captured events so they can be re-read through the same scanner and
// decode path as live traffic.
func EncodeEventStream(envelopes []*envelope.Envelope) ([]byte, error) {
	var body bytes.Buffer
	for i, env := range envelopes {
		encoded, err := json.Marshal(env)
		if err != nil {
			return nil, fmt.Errorf("encoding envelope %d: %w", i, err)
		}
		body.WriteString("data: ")
		body.Write(encoded)
		body.WriteString("\n\n")
	}
	return body.Bytes(), nil
}
