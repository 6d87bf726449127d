// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func TestCompressionTagString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tag  CompressionTag
		want string
	}{
		{CompressionNone, "none"},
		{CompressionLZ4, "lz4"},
		{CompressionZstd, "zstd"},
		{CompressionTag(99), "unknown(99)"},
	}

	for _, tt := range tests {
		if got := tt.tag.String(); got != tt.want {
			t.Errorf("CompressionTag(%d).String() = %q, want %q", tt.tag, got, tt.want)
		}
	}
}

func TestParseCompressionTag(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"none", "lz4", "zstd"} {
		tag, err := ParseCompressionTag(name)
		if err != nil {
			t.Fatalf("ParseCompressionTag(%q) failed: %v", name, err)
		}
		if tag.String() != name {
			t.Errorf("roundtrip: ParseCompressionTag(%q).String() = %q", name, tag.String())
		}
	}

	if _, err := ParseCompressionTag("gzip"); err == nil {
		t.Error("ParseCompressionTag(\"gzip\") should fail")
	}
}

func TestCompressBlockNone(t *testing.T) {
	t.Parallel()

	data := []byte("uncompressed data should pass through unchanged")

	compressed, tag, err := CompressBlock(data, CompressionNone)
	if err != nil {
		t.Fatalf("CompressBlock(none) failed: %v", err)
	}
	if tag != CompressionNone {
		t.Errorf("tag = %v, want none", tag)
	}
	// CompressionNone returns the same slice, not a copy.
	if &compressed[0] != &data[0] {
		t.Error("CompressionNone should return the same slice")
	}

	decompressed, err := DecompressBlock(compressed, CompressionNone, len(data))
	if err != nil {
		t.Fatalf("DecompressBlock(none) failed: %v", err)
	}
	if !bytes.Equal(decompressed, data) {
		t.Error("none roundtrip mismatch")
	}
}

func TestDecompressBlockNoneSizeMismatch(t *testing.T) {
	t.Parallel()

	data := []byte("five bytes extra")
	if _, err := DecompressBlock(data, CompressionNone, len(data)+5); err == nil {
		t.Error("DecompressBlock(none) should fail when size does not match")
	}
}

func TestCompressBlockLZ4(t *testing.T) {
	t.Parallel()

	// Compressible data: repeated pattern.
	data := make([]byte, 64*1024)
	for i := range data {
		data[i] = byte(i % 17)
	}

	compressed, tag, err := CompressBlock(data, CompressionLZ4)
	if err != nil {
		t.Fatalf("CompressBlock(lz4) failed: %v", err)
	}
	if tag != CompressionLZ4 {
		t.Fatalf("tag = %v, want lz4", tag)
	}
	if len(compressed) >= len(data) {
		t.Errorf("LZ4 did not compress: %d bytes to %d bytes", len(data), len(compressed))
	}

	decompressed, err := DecompressBlock(compressed, CompressionLZ4, len(data))
	if err != nil {
		t.Fatalf("DecompressBlock(lz4) failed: %v", err)
	}
	if !bytes.Equal(decompressed, data) {
		t.Fatal("lz4 roundtrip mismatch")
	}
}

func TestCompressBlockZstd(t *testing.T) {
	t.Parallel()

	// Text-like data: a repeated envelope JSON body.
	unit := []byte(`{"schema":"tenant.events.v1","kind":"message.delta","event_id":42,"stream_id":"stream-a","item_id":"item-1","delta":"partial text"}`)
	data := make([]byte, 0, 64*1024)
	for len(data) < 64*1024 {
		data = append(data, unit...)
	}

	compressed, tag, err := CompressBlock(data, CompressionZstd)
	if err != nil {
		t.Fatalf("CompressBlock(zstd) failed: %v", err)
	}
	if tag != CompressionZstd {
		t.Fatalf("tag = %v, want zstd", tag)
	}

	ratio := float64(len(data)) / float64(len(compressed))
	if ratio < 2.0 {
		t.Errorf("zstd compression ratio %.2fx is unexpectedly low for repetitive JSON", ratio)
	}

	decompressed, err := DecompressBlock(compressed, CompressionZstd, len(data))
	if err != nil {
		t.Fatalf("DecompressBlock(zstd) failed: %v", err)
	}
	if !bytes.Equal(decompressed, data) {
		t.Fatal("zstd roundtrip mismatch")
	}
}

func TestCompressBlockIncompressibleFallsBack(t *testing.T) {
	t.Parallel()

	// Random data does not shrink; the writer stores it raw instead
	// of failing.
	data := make([]byte, 64*1024)
	rand.Read(data)

	for _, requested := range []CompressionTag{CompressionLZ4, CompressionZstd} {
		compressed, tag, err := CompressBlock(data, requested)
		if err != nil {
			t.Fatalf("CompressBlock(%v) failed: %v", requested, err)
		}
		if tag != CompressionNone {
			t.Errorf("CompressBlock(%v) tag = %v, want fallback to none", requested, tag)
		}
		if !bytes.Equal(compressed, data) {
			t.Errorf("CompressBlock(%v) fallback should return the input bytes", requested)
		}
	}
}

func TestDecompressBlockSizeMismatch(t *testing.T) {
	t.Parallel()

	data := make([]byte, 8*1024)
	for i := range data {
		data[i] = byte(i % 5)
	}
	compressed, tag, err := CompressBlock(data, CompressionZstd)
	if err != nil || tag != CompressionZstd {
		t.Fatalf("CompressBlock setup failed: tag=%v err=%v", tag, err)
	}

	if _, err := DecompressBlock(compressed, tag, len(data)-1); err == nil {
		t.Error("DecompressBlock should fail on a wrong uncompressed size")
	}
}

func TestCompressBlockUnknownTag(t *testing.T) {
	t.Parallel()

	if _, _, err := CompressBlock([]byte("data"), CompressionTag(7)); err == nil {
		t.Error("CompressBlock should reject an unknown tag")
	}
	if _, err := DecompressBlock([]byte("data"), CompressionTag(7), 4); err == nil {
		t.Error("DecompressBlock should reject an unknown tag")
	}
}
