// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"encoding/binary"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"github.com/parley-ops/parley/lib/envelope"
)

// Follow reads a capture file and re-reads it whenever it changes,
// calling apply with the full header and envelope list each time. The
// console's follow mode uses it to mirror a capture another process
// is still recording; consumers reconcile repeated full lists through
// their applied-count logic.
//
// apply runs on the watcher goroutine and must not block for long.
// The returned stop function shuts the watcher down; it is safe to
// call more than once.
func Follow(path string, apply func(Header, []*envelope.Envelope)) (func(), error) {
	absolutePath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	header, envelopes, err := ReadCaptureFile(absolutePath)
	if err != nil {
		return nil, err
	}
	apply(header, envelopes)

	// Watch the parent directory, not the file. Atomic replacers
	// write a temp file and rename it over the target, creating a new
	// inode that a file-level watch on the old inode never sees.
	directory := filepath.Dir(absolutePath)
	filename := filepath.Base(absolutePath)

	fd, err := unix.InotifyInit1(unix.IN_NONBLOCK | unix.IN_CLOEXEC)
	if err != nil {
		return nil, err
	}
	_, err = unix.InotifyAddWatch(fd, directory, unix.IN_CLOSE_WRITE|unix.IN_MOVED_TO|unix.IN_MODIFY)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}

	stopChannel := make(chan struct{})
	go followLoop(fd, absolutePath, filename, apply, stopChannel)

	stopped := false
	stop := func() {
		if stopped {
			return
		}
		stopped = true
		close(stopChannel)
	}
	return stop, nil
}

// followLoop polls the inotify fd for changes to the target file and
// re-reads the capture on each one.
//
// Uses poll(2) with a 100ms timeout for responsive stop-channel
// checking. After detecting a change, waits 50ms and drains queued
// events to coalesce a burst of appended blocks into one re-read.
func followLoop(
	fd int,
	path string,
	filename string,
	apply func(Header, []*envelope.Envelope),
	stopChannel <-chan struct{},
) {
	defer unix.Close(fd)

	buffer := make([]byte, 4096)

	for {
		select {
		case <-stopChannel:
			return
		default:
		}

		pollDescriptors := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		count, err := unix.Poll(pollDescriptors, 100)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			// Fatal poll error. The follower exits and the view
			// degrades to the last applied state.
			return
		}
		if count == 0 {
			continue
		}

		bytesRead, err := unix.Read(fd, buffer)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EINTR {
				continue
			}
			return
		}

		if !inotifyMatchesFile(buffer[:bytesRead], filename) {
			continue
		}

		time.Sleep(50 * time.Millisecond)
		drainInotifyEvents(fd, buffer)

		header, envelopes, err := ReadCaptureFile(path)
		if err != nil {
			// Mid-write or briefly absent during an atomic replace.
			// Skip; the event from the completed write will succeed.
			continue
		}
		apply(header, envelopes)
	}
}

// inotifyMatchesFile checks whether any inotify event in the buffer
// names the target file. Layout from inotify(7):
//
//	struct inotify_event {
//	    int32_t  wd;     // offset 0
//	    uint32_t mask;   // offset 4
//	    uint32_t cookie; // offset 8
//	    uint32_t len;    // offset 12
//	    char     name[]; // offset 16, null-padded to alignment
//	};
func inotifyMatchesFile(buffer []byte, targetFilename string) bool {
	offset := 0
	for offset+unix.SizeofInotifyEvent <= len(buffer) {
		nameLength := int(binary.NativeEndian.Uint32(buffer[offset+12 : offset+16]))
		eventSize := unix.SizeofInotifyEvent + nameLength
		if offset+eventSize > len(buffer) {
			break
		}

		if nameLength > 0 {
			nameBytes := buffer[offset+unix.SizeofInotifyEvent : offset+eventSize]
			if nullTerminatedString(nameBytes) == targetFilename {
				return true
			}
		}

		offset += eventSize
	}
	return false
}

// nullTerminatedString extracts a string from a null-padded byte
// slice, stopping at the first null byte.
func nullTerminatedString(data []byte) string {
	for i, b := range data {
		if b == 0 {
			return string(data[:i])
		}
	}
	return string(data)
}

// drainInotifyEvents reads and discards pending inotify events after
// the debounce sleep.
func drainInotifyEvents(fd int, buffer []byte) {
	for {
		_, err := unix.Read(fd, buffer)
		if err != nil {
			// EAGAIN means no more events; any other error, stop.
			return
		}
	}
}
