// Package refine tightens the byte ranges internal/csi, internal/bai, and
// internal/tabix produce so they land on exact BGZF block boundaries in the
// compressed file, using a .gzi sidecar when one is available.
//
// A bgzf.Chunk's End is an inclusive virtual offset: its DataOffset is
// usually nonzero, meaning "include up through this byte inside this block".
// That is the right unit for decompressing data, but the wrong unit for an
// outbound HTTP Range header, which needs a real byte offset in the
// compressed file. Converting "partway into this block" into "the start of
// the following block" normally requires decoding the block at End to learn
// its compressed size; a .gzi table already lists every block boundary, so
// Refine looks it up instead.
package refine

import (
	"sort"

	"github.com/ga4gh/htsget-core/internal/bgzf"
	"github.com/ga4gh/htsget-core/internal/gzi"
)

// Chunks returns copies of chunks with each End address snapped forward to
// the compressed-file offset of the block immediately following it. entries
// may be nil, in which case chunks is returned unmodified: callers without a
// .gzi sidecar fall back to decoding the block at End to learn its
// compressed size instead (see internal/resolver's resolveChunkEnd).
func Chunks(chunks []*bgzf.Chunk, entries []gzi.Entry) []*bgzf.Chunk {
	if entries == nil {
		return chunks
	}

	out := make([]*bgzf.Chunk, len(chunks))
	for i, c := range chunks {
		refined := *c
		refined.End = End(c.End, entries)
		out[i] = &refined
	}
	return out
}

// End snaps a single inclusive virtual offset forward to the start of its
// following BGZF block. An address already sitting exactly on a block
// boundary (DataOffset 0) is returned unchanged.
func End(end bgzf.Address, entries []gzi.Entry) bgzf.Address {
	if end.DataOffset() == 0 {
		return end
	}

	next, ok := nextBlockOffset(entries, end.BlockOffset())
	if !ok {
		return end
	}
	return bgzf.NewAddress(next, 0)
}

func nextBlockOffset(entries []gzi.Entry, blockOffset uint64) (uint64, bool) {
	i := sort.Search(len(entries), func(i int) bool {
		return entries[i].CompressedOffset > blockOffset
	})
	if i == len(entries) {
		return 0, false
	}
	return entries[i].CompressedOffset, true
}
