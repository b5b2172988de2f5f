// Package block splices the BGZF blocks addressed by a single bgzf.Chunk
// into a small, self-contained BGZF stream: a partial first block, any
// whole intermediate blocks, and a partial last block, each re-framed with
// its own gzip trailer.  It backs the local Storage variant's data-block
// server, which serves the individual byte ranges named in a ticket.
package block

import (
	"bytes"
	"fmt"
	"io"
	"io/ioutil"

	"github.com/ga4gh/htsget-core/internal/bgzf"
)

// RangeReader returns a reader over length bytes of the backing object
// starting at start.
type RangeReader func(start int64, length int64) (io.ReadCloser, error)

type multiReadCloser struct {
	io.Reader
	closers []io.Closer
}

func (m *multiReadCloser) Close() error {
	var errs []error
	for _, c := range m.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("closing blocks: %v", errs)
	}
	return nil
}

// ReadBlock returns a reader over the bytes addressed by chunk, read through
// file, re-encoded as a minimal standalone BGZF stream.
func ReadBlock(file RangeReader, chunk bgzf.Chunk) (io.ReadCloser, error) {
	start, end := chunk.Start, chunk.End
	head, tail := int64(start.BlockOffset()), int64(end.BlockOffset())

	// The chunk resides entirely inside one block.
	if head == tail {
		raw, err := file(head, bgzf.MaximumBlockSize)
		if err != nil {
			return nil, fmt.Errorf("opening block: %v", err)
		}
		defer raw.Close()

		decoded, _, err := bgzf.DecodeBlock(raw)
		if err != nil {
			return nil, fmt.Errorf("decoding block: %v", err)
		}
		decoded = decoded[start.DataOffset():end.DataOffset()]

		encoded, err := bgzf.EncodeBlock(decoded)
		if err != nil {
			return nil, fmt.Errorf("encoding block: %v", err)
		}
		return ioutil.NopCloser(bytes.NewReader(encoded)), nil
	}

	var readers []io.Reader
	var closers []io.Closer

	// Reconstruct the first block's suffix, starting at the requested offset.
	if start.DataOffset() != 0 {
		first, err := file(head, bgzf.MaximumBlockSize)
		if err != nil {
			return nil, fmt.Errorf("opening first block: %v", err)
		}
		defer first.Close()

		decoded, length, err := bgzf.DecodeBlock(first)
		if err != nil {
			return nil, fmt.Errorf("decoding first block: %v", err)
		}
		head += int64(length)

		encoded, err := bgzf.EncodeBlock(decoded[start.DataOffset():])
		if err != nil {
			return nil, fmt.Errorf("encoding first block: %v", err)
		}
		readers = append(readers, ioutil.NopCloser(bytes.NewReader(encoded)))
	}

	// Any whole blocks in between need no re-encoding.
	if tail-head > 0 {
		r, err := file(head, tail-head)
		if err != nil {
			return nil, fmt.Errorf("opening intermediate blocks: %v", err)
		}
		readers = append(readers, r)
		closers = append(closers, r)
	}

	// Reconstruct the last block's prefix, ending at the requested offset.
	if end.DataOffset() != 0 {
		last, err := file(tail, bgzf.MaximumBlockSize)
		if err != nil {
			return nil, fmt.Errorf("opening last block: %v", err)
		}
		defer last.Close()

		decoded, _, err := bgzf.DecodeBlock(last)
		if err != nil {
			return nil, fmt.Errorf("decoding last block: %v", err)
		}
		encoded, err := bgzf.EncodeBlock(decoded[:end.DataOffset()])
		if err != nil {
			return nil, fmt.Errorf("encoding last block: %v", err)
		}
		readers = append(readers, ioutil.NopCloser(bytes.NewReader(encoded)))
	}

	return &multiReadCloser{
		Reader:  io.MultiReader(readers...),
		closers: closers,
	}, nil
}
