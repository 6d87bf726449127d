// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides parley's standard CBOR encoding configuration.
//
// parley uses two serialization formats with a clear boundary:
//
//   - JSON for the console API wire: live stream frames, the ledger
//     replay endpoint, the workflow descriptor endpoint, and CLI
//     --json output.
//   - CBOR for everything parley writes itself: capture file blocks
//     and the canonical state encodings that replay-determinism
//     fingerprints are computed over.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2):
// sorted map keys, smallest integer encoding, no indefinite-length
// items. Same logical data always produces identical bytes, the
// property that makes "fingerprint the projections, compare live
// against replay" a meaningful equality check rather than a
// serialization lottery.
//
// For buffer-oriented operations (fingerprints, block payloads):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations (reading capture files):
//
//	decoder := codec.NewDecoder(file)
//
// Envelope types carry `json` tags only; fxamacker/cbor v2 reads
// them as fallback when `cbor` tags are absent, so one tag controls
// field naming and omitempty for both formats.
package codec
