package bgzf

import (
	"bufio"
	"io"
)

// TrackingReader presents a BGZF stream as a single continuous decompressed
// io.Reader, like gzip.Reader's automatic multistream concatenation, while
// also exposing the compressed byte offset of the block boundary
// immediately following the last byte handed back by Read. internal/header
// uses it to compute a data file's header_end: the coffset where the
// header's last BGZF block ends and the first body block begins.
type TrackingReader struct {
	src        *bufio.Reader
	cur        []byte
	pos        int
	coffset    uint64
	pendingLen uint64
}

// NewTrackingReader returns a TrackingReader decoding the BGZF stream read
// from r, starting at compressed offset 0.
func NewTrackingReader(r io.Reader) *TrackingReader {
	return &TrackingReader{src: bufio.NewReader(r)}
}

// Read implements io.Reader, transparently decoding successive BGZF blocks
// as needed.
func (t *TrackingReader) Read(p []byte) (int, error) {
	if t.pos >= len(t.cur) {
		block, blockLen, err := DecodeBlock(t.src)
		if err != nil {
			return 0, err
		}
		t.cur = block
		t.pos = 0
		t.pendingLen = uint64(blockLen)
	}

	n := copy(p, t.cur[t.pos:])
	t.pos += n
	if t.pos >= len(t.cur) {
		t.coffset += t.pendingLen
	}
	return n, nil
}

// NextBlockOffset returns the compressed coffset of the BGZF block
// immediately after the block containing the last byte Read has returned.
// Callers that have consumed exactly through a format's header use this as
// header_end: the header is always rounded up to whole BGZF blocks.
func (t *TrackingReader) NextBlockOffset() uint64 {
	if t.pos < len(t.cur) {
		return t.coffset + t.pendingLen
	}
	return t.coffset
}
