// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"filippo.io/age"
)

// Capture files can hold unreleased agent output, so exports support
// age sealing: a sealed capture is the capture byte stream encrypted
// to one or more x25519 recipients. Sealing streams file to file; the
// plaintext of a large capture is never held in memory.

// GenerateIdentity creates a new age x25519 keypair. The private key
// is in AGE-SECRET-KEY-1... format and must not be logged; the public
// key is safe to share.
func GenerateIdentity() (privateKey, publicKey string, err error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return "", "", fmt.Errorf("generating age keypair: %w", err)
	}
	return identity.String(), identity.Recipient().String(), nil
}

// LoadIdentities reads age identities from a key file in the standard
// age-keygen format (comment lines allowed).
func LoadIdentities(path string) ([]age.Identity, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening identity file: %w", err)
	}
	defer file.Close()

	identities, err := age.ParseIdentities(file)
	if err != nil {
		return nil, fmt.Errorf("parsing identity file %s: %w", path, err)
	}
	return identities, nil
}

// Seal returns a writer that encrypts everything written to it to the
// given recipient public keys. The caller must Close it to flush the
// final ciphertext chunk.
func Seal(dst io.Writer, recipientKeys []string) (io.WriteCloser, error) {
	if len(recipientKeys) == 0 {
		return nil, fmt.Errorf("at least one recipient is required")
	}
	recipients := make([]age.Recipient, 0, len(recipientKeys))
	for _, key := range recipientKeys {
		recipient, err := age.ParseX25519Recipient(key)
		if err != nil {
			return nil, fmt.Errorf("parsing recipient key %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}

	writer, err := age.Encrypt(dst, recipients...)
	if err != nil {
		return nil, fmt.Errorf("creating age encryptor: %w", err)
	}
	return writer, nil
}

// Unseal returns a reader of the plaintext behind an age ciphertext
// stream, decrypted with whichever identity matches.
func Unseal(src io.Reader, identities []age.Identity) (io.Reader, error) {
	reader, err := age.Decrypt(src, identities...)
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w", err)
	}
	return reader, nil
}

// SealFile encrypts src to dst atomically.
func SealFile(src, dst string, recipientKeys []string) error {
	input, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening capture: %w", err)
	}
	defer input.Close()

	return writeFileAtomic(dst, func(w io.Writer) error {
		sealer, err := Seal(w, recipientKeys)
		if err != nil {
			return err
		}
		if _, err := io.Copy(sealer, input); err != nil {
			return fmt.Errorf("sealing capture: %w", err)
		}
		if err := sealer.Close(); err != nil {
			return fmt.Errorf("finalizing seal: %w", err)
		}
		return nil
	})
}

// UnsealFile decrypts src to dst atomically, using identities from the
// given key file.
func UnsealFile(src, dst, identityPath string) error {
	identities, err := LoadIdentities(identityPath)
	if err != nil {
		return err
	}
	input, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening sealed capture: %w", err)
	}
	defer input.Close()

	return writeFileAtomic(dst, func(w io.Writer) error {
		plaintext, err := Unseal(input, identities)
		if err != nil {
			return err
		}
		if _, err := io.Copy(w, plaintext); err != nil {
			return fmt.Errorf("unsealing capture: %w", err)
		}
		return nil
	})
}

// writeFileAtomic writes through a temp file in the target directory
// and renames into place after a successful sync.
func writeFileAtomic(path string, fill func(io.Writer) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".parley-*")
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := fill(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing output file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing output file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("installing output file: %w", err)
	}
	return nil
}
