// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package envelope defines the wire schema of the tenant event feed:
// the Envelope struct, the closed set of event kinds, and the optional
// workflow and tool-scope metadata blocks that route an envelope to
// the right projection.
//
// One envelope is one protocol message. The same schema serves both
// delivery paths: the live chunked stream (frames carrying JSON
// payloads, see [github.com/parley-ops/parley/lib/stream]) and the
// persisted ledger returned by the replay endpoint. Consumers fold
// envelopes into state; this package deliberately contains no state
// of its own.
package envelope
