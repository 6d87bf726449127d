// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package ledger is the read side of the tenant event feed: fetching
// persisted event logs and workflow descriptors from the tenant API,
// and writing, reading, sealing, and following local capture files.
//
// A capture file is a self-contained record of one run's envelopes,
// written as checksummed CBOR blocks with per-block compression. The
// same envelope list drives the conversation controller's replay path,
// so a capture taken during a live session reproduces the session's
// final state bit for bit. Fingerprint hashes over the replayed state
// make that property checkable from the command line.
//
// Captures may be sealed with age encryption before leaving the
// operator's machine, and a capture being written by one process can
// be followed live by another.
package ledger
