// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// hashSize is the byte length of a digest and of a keyed-hash key.
const hashSize = 32

// Hash is a 32-byte BLAKE3 digest. Capture block checksums and state
// fingerprints are this size.
type Hash [hashSize]byte

// domainKey is a 32-byte key for BLAKE3 keyed hashing. Domain
// separation ensures the same input bytes produce different hashes in
// different contexts.
type domainKey [32]byte

// Domain separation keys. Fixed protocol constants: changing one
// invalidates every existing hash in that domain. The byte values are
// the ASCII encoding of the domain name, zero-padded to 32 bytes, so
// the keys stay readable in hex dumps.
var (
	headerDomainKey = domainKey{
		'p', 'a', 'r', 'l', 'e', 'y', '.', 'c', 'a', 'p', 't', 'u', 'r', 'e', '.',
		'h', 'e', 'a', 'd', 'e', 'r', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}

	blockDomainKey = domainKey{
		'p', 'a', 'r', 'l', 'e', 'y', '.', 'c', 'a', 'p', 't', 'u', 'r', 'e', '.',
		'b', 'l', 'o', 'c', 'k', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}

	stateDomainKey = domainKey{
		'p', 'a', 'r', 'l', 'e', 'y', '.', 's', 't', 'a', 't', 'e', '.',
		'f', 'i', 'n', 'g', 'e', 'r', 'p', 'r', 'i', 'n', 't', 0, 0, 0, 0, 0, 0, 0, 0,
	}
)

// HashBlock computes the block-domain keyed hash of an uncompressed
// capture block payload. Checksums are always computed on uncompressed
// bytes so they stay valid across compression changes.
func HashBlock(data []byte) Hash {
	return keyedHash(blockDomainKey, data)
}

// HashHeader computes the header-domain keyed hash of an encoded
// capture header.
func HashHeader(data []byte) Hash {
	return keyedHash(headerDomainKey, data)
}

// FormatHash returns the hex encoding of a hash, the canonical form
// for CLI output and logs.
func FormatHash(hash Hash) string {
	return hex.EncodeToString(hash[:])
}

// ParseHash parses a 64-character hex string into a Hash.
func ParseHash(hexString string) (Hash, error) {
	var hash Hash
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return hash, fmt.Errorf("parsing hash: %w", err)
	}
	if len(decoded) != 32 {
		return hash, fmt.Errorf("hash is %d bytes, want 32", len(decoded))
	}
	copy(hash[:], decoded)
	return hash, nil
}

// keyedHash computes the BLAKE3 keyed hash with the given domain key.
func keyedHash(key domainKey, data []byte) Hash {
	// NewKeyed only fails on a wrong key length, which domainKey
	// rules out.
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("ledger: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	var hash Hash
	copy(hash[:], hasher.Sum(nil))
	return hash
}
