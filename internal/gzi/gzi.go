// Package gzi reads bgzip's .gzi sidecar index, a plain list of BGZF block
// boundaries recorded as (compressed offset, uncompressed offset) pairs. It
// exists purely to let internal/refine tighten a chunk's byte range down to
// an exact BGZF block boundary without re-scanning the compressed file.
package gzi

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Entry records where one BGZF block (other than the first) begins, both in
// the compressed file and in the decompressed stream it produces.
type Entry struct {
	CompressedOffset   uint64
	UncompressedOffset uint64
}

// Read parses a .gzi file. The first block of the file is never listed (it
// always starts at offset 0 in both spaces), so every returned Entry
// describes a later block's start.
func Read(r io.Reader) ([]Entry, error) {
	var count uint64
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("reading entry count: %v", err)
	}

	entries := make([]Entry, count)
	for i := range entries {
		if err := binary.Read(r, binary.LittleEndian, &entries[i]); err != nil {
			return nil, fmt.Errorf("reading entry %d: %v", i, err)
		}
	}
	return entries, nil
}

// CompressedOffset returns the compressed-file byte offset of the BGZF block
// that contains uncompressedOffset, i.e. the start of the last block whose
// UncompressedOffset is <= uncompressedOffset. ok is false if
// uncompressedOffset precedes the first recorded block, in which case the
// caller should use offset 0 (the file's first block).
func CompressedOffset(entries []Entry, uncompressedOffset uint64) (offset uint64, ok bool) {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].UncompressedOffset <= uncompressedOffset {
			return entries[i].CompressedOffset, true
		}
	}
	return 0, false
}
