// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/parley-ops/parley/lib/codec"
	"github.com/parley-ops/parley/lib/envelope"
)

// Capture file layout:
//
//	magic    6 bytes  "PLYCAP"
//	version  2 bytes  big-endian uint16
//	header block:
//	  4 bytes   header length, big-endian
//	  32 bytes  keyed BLAKE3 of the header bytes
//	  N bytes   CBOR-encoded Header
//	data blocks, repeated until EOF:
//	  1 byte    compression tag
//	  4 bytes   compressed payload length, big-endian
//	  4 bytes   uncompressed payload length, big-endian
//	  32 bytes  keyed BLAKE3 of the uncompressed payload
//	  M bytes   payload, a CBOR-encoded envelope batch
//
// EOF at a block boundary is a clean end of file. EOF inside a block
// is corruption and surfaces as an error.

var captureMagic = [6]byte{'P', 'L', 'Y', 'C', 'A', 'P'}

// captureVersion is the on-disk format version.
const captureVersion uint16 = 1

// maxBlockPayload caps a single block's payload size. A length field
// above this means the file is corrupt, not that the run was large.
const maxBlockPayload = 64 << 20

// Header describes the run a capture file holds.
type Header struct {
	SchemaVersion  string `json:"schema_version"`
	ConversationID string `json:"conversation_id,omitempty"`
	RunID          string `json:"run_id,omitempty"`
	WorkflowKey    string `json:"workflow_key,omitempty"`

	// CapturedAt is an RFC 3339 timestamp, kept as the verbatim
	// string like envelope timestamps are.
	CapturedAt string `json:"captured_at,omitempty"`
}

// Time parses CapturedAt. Zero time when absent or malformed.
func (h *Header) Time() time.Time {
	if h.CapturedAt == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339Nano, h.CapturedAt)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

// WriterOptions tune capture writing. The zero value gets defaults.
type WriterOptions struct {
	// Compression selects the block compression. Default zstd.
	Compression CompressionTag

	// BlockSize is the number of envelopes per block. Default 256.
	BlockSize int
}

// Writer appends envelopes to a capture stream, batching them into
// checksummed blocks. Not safe for concurrent use.
type Writer struct {
	w           io.Writer
	compression CompressionTag
	blockSize   int
	pending     []*envelope.Envelope
}

// NewWriter writes the capture preamble and header block to w and
// returns a Writer for the data blocks.
func NewWriter(w io.Writer, header Header, options WriterOptions) (*Writer, error) {
	if options.Compression == CompressionNone {
		options.Compression = CompressionZstd
	}
	if options.BlockSize <= 0 {
		options.BlockSize = 256
	}

	headerBytes, err := codec.Marshal(&header)
	if err != nil {
		return nil, fmt.Errorf("encoding capture header: %w", err)
	}

	preamble := make([]byte, 0, len(captureMagic)+2+4+hashSize+len(headerBytes))
	preamble = append(preamble, captureMagic[:]...)
	preamble = binary.BigEndian.AppendUint16(preamble, captureVersion)
	preamble = binary.BigEndian.AppendUint32(preamble, uint32(len(headerBytes)))
	headerHash := HashHeader(headerBytes)
	preamble = append(preamble, headerHash[:]...)
	preamble = append(preamble, headerBytes...)

	if _, err := w.Write(preamble); err != nil {
		return nil, fmt.Errorf("writing capture header: %w", err)
	}
	return &Writer{
		w:           w,
		compression: options.Compression,
		blockSize:   options.BlockSize,
	}, nil
}

// Append buffers one envelope, flushing a block when the batch is full.
func (cw *Writer) Append(env *envelope.Envelope) error {
	cw.pending = append(cw.pending, env)
	if len(cw.pending) >= cw.blockSize {
		return cw.Flush()
	}
	return nil
}

// Flush writes any buffered envelopes as one block. Flushing an empty
// buffer is a no-op.
func (cw *Writer) Flush() error {
	if len(cw.pending) == 0 {
		return nil
	}
	payload, err := codec.Marshal(cw.pending)
	if err != nil {
		return fmt.Errorf("encoding capture block: %w", err)
	}
	cw.pending = cw.pending[:0]

	checksum := HashBlock(payload)
	compressed, tag, err := CompressBlock(payload, cw.compression)
	if err != nil {
		return fmt.Errorf("compressing capture block: %w", err)
	}

	blockHeader := make([]byte, 0, 1+4+4+hashSize)
	blockHeader = append(blockHeader, byte(tag))
	blockHeader = binary.BigEndian.AppendUint32(blockHeader, uint32(len(compressed)))
	blockHeader = binary.BigEndian.AppendUint32(blockHeader, uint32(len(payload)))
	blockHeader = append(blockHeader, checksum[:]...)

	if _, err := cw.w.Write(blockHeader); err != nil {
		return fmt.Errorf("writing capture block: %w", err)
	}
	if _, err := cw.w.Write(compressed); err != nil {
		return fmt.Errorf("writing capture block: %w", err)
	}
	return nil
}

// Close flushes the final partial block. It does not close the
// underlying writer.
func (cw *Writer) Close() error {
	return cw.Flush()
}

// Reader iterates the envelopes of a capture stream, verifying every
// block checksum. Captures are local evidence of what a run did, so a
// checksum mismatch is a hard error rather than a skip.
type Reader struct {
	r       io.Reader
	header  Header
	queue   []*envelope.Envelope
	current *envelope.Envelope
	err     error
	done    bool
}

// NewReader validates the capture preamble and decodes the header.
func NewReader(r io.Reader) (*Reader, error) {
	var magic [6]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, fmt.Errorf("reading capture magic: %w", err)
	}
	if magic != captureMagic {
		return nil, fmt.Errorf("not a capture file: bad magic %q", magic[:])
	}

	var fixed [2 + 4]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		return nil, fmt.Errorf("reading capture header: %w", err)
	}
	version := binary.BigEndian.Uint16(fixed[0:2])
	if version != captureVersion {
		return nil, fmt.Errorf("unsupported capture version %d", version)
	}
	headerLen := binary.BigEndian.Uint32(fixed[2:6])
	if headerLen > maxBlockPayload {
		return nil, fmt.Errorf("capture header length %d exceeds limit", headerLen)
	}

	var checksum Hash
	if _, err := io.ReadFull(r, checksum[:]); err != nil {
		return nil, fmt.Errorf("reading capture header: %w", err)
	}
	headerBytes := make([]byte, headerLen)
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return nil, fmt.Errorf("reading capture header: %w", err)
	}
	if HashHeader(headerBytes) != checksum {
		return nil, errors.New("capture header checksum mismatch")
	}

	var header Header
	if err := codec.Unmarshal(headerBytes, &header); err != nil {
		return nil, fmt.Errorf("decoding capture header: %w", err)
	}
	return &Reader{r: r, header: header}, nil
}

// Header returns the capture header.
func (cr *Reader) Header() Header {
	return cr.header
}

// Next advances to the next envelope. It returns false at clean end of
// file and on error; Err distinguishes the two.
func (cr *Reader) Next() bool {
	if cr.err != nil || cr.done {
		return false
	}
	for len(cr.queue) == 0 {
		if !cr.readBlock() {
			return false
		}
	}
	cr.current = cr.queue[0]
	cr.queue = cr.queue[1:]
	return true
}

// Envelope returns the envelope Next advanced to.
func (cr *Reader) Envelope() *envelope.Envelope {
	return cr.current
}

// Err returns the first error encountered. Nil after a clean end of
// file.
func (cr *Reader) Err() error {
	return cr.err
}

// readBlock reads and verifies one block into the queue. False at EOF
// or error.
func (cr *Reader) readBlock() bool {
	var tagByte [1]byte
	if _, err := io.ReadFull(cr.r, tagByte[:]); err != nil {
		if errors.Is(err, io.EOF) {
			cr.done = true
		} else {
			cr.err = fmt.Errorf("reading capture block: %w", err)
		}
		return false
	}

	var lengths [8]byte
	if _, err := io.ReadFull(cr.r, lengths[:]); err != nil {
		cr.err = fmt.Errorf("truncated capture block: %w", noEOF(err))
		return false
	}
	compressedLen := binary.BigEndian.Uint32(lengths[0:4])
	uncompressedLen := binary.BigEndian.Uint32(lengths[4:8])
	if compressedLen > maxBlockPayload || uncompressedLen > maxBlockPayload {
		cr.err = fmt.Errorf("capture block length %d exceeds limit", max(compressedLen, uncompressedLen))
		return false
	}

	var checksum Hash
	if _, err := io.ReadFull(cr.r, checksum[:]); err != nil {
		cr.err = fmt.Errorf("truncated capture block: %w", noEOF(err))
		return false
	}
	compressed := make([]byte, compressedLen)
	if _, err := io.ReadFull(cr.r, compressed); err != nil {
		cr.err = fmt.Errorf("truncated capture block: %w", noEOF(err))
		return false
	}

	payload, err := DecompressBlock(compressed, CompressionTag(tagByte[0]), int(uncompressedLen))
	if err != nil {
		cr.err = fmt.Errorf("decompressing capture block: %w", err)
		return false
	}
	if HashBlock(payload) != checksum {
		cr.err = errors.New("capture block checksum mismatch")
		return false
	}

	var batch []*envelope.Envelope
	if err := codec.Unmarshal(payload, &batch); err != nil {
		cr.err = fmt.Errorf("decoding capture block: %w", err)
		return false
	}
	cr.queue = batch
	return true
}

// noEOF converts a bare EOF from a partial ReadFull into
// ErrUnexpectedEOF so the wrapped message is not misleading.
func noEOF(err error) error {
	if errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// WriteCaptureFile writes a complete capture atomically: envelopes go
// to a temp file in the target directory, which is renamed into place
// only after a successful close.
func WriteCaptureFile(path string, header Header, envelopes []*envelope.Envelope, options WriterOptions) error {
	return writeFileAtomic(path, func(w io.Writer) error {
		writer, err := NewWriter(w, header, options)
		if err != nil {
			return err
		}
		for _, env := range envelopes {
			if err := writer.Append(env); err != nil {
				return err
			}
		}
		return writer.Close()
	})
}

// ReadCaptureFile reads a complete capture file.
func ReadCaptureFile(path string) (Header, []*envelope.Envelope, error) {
	file, err := os.Open(path)
	if err != nil {
		return Header{}, nil, fmt.Errorf("opening capture file: %w", err)
	}
	defer file.Close()

	reader, err := NewReader(file)
	if err != nil {
		return Header{}, nil, fmt.Errorf("%s: %w", path, err)
	}
	var envelopes []*envelope.Envelope
	for reader.Next() {
		envelopes = append(envelopes, reader.Envelope())
	}
	if err := reader.Err(); err != nil {
		return Header{}, nil, fmt.Errorf("%s: %w", path, err)
	}
	return reader.Header(), envelopes, nil
}
