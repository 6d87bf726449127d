// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package stream is the transport-framing layer of the event feed: it
// turns the chunked byte stream of a live response into an ordered
// sequence of decoded envelopes.
//
// Three layers, each consuming the previous:
//
//   - [Scanner] splits raw bytes into frames. Frames follow the
//     Server-Sent Events shape: "data:" lines carry the payload and a
//     blank line terminates the frame. The scanner buffers bytes, so
//     multi-byte UTF-8 sequences split across delivered chunks
//     reassemble before any decoding happens.
//   - [Stream] decodes each frame payload into an
//     [github.com/parley-ops/parley/lib/envelope.Envelope]. A
//     malformed frame is counted, logged, and skipped; it never
//     terminates the sequence.
//   - [Client] opens the live HTTP stream for a conversation and
//     hands its body to a Stream.
//
// Each opened stream is one pass: a Stream is not resumable after its
// source ends or its context is cancelled. Reconnection is a new
// request (and a new stream_id) driven by the conversation controller.
package stream
