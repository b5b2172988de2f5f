// Package local provides a RangeReader over a local *os.File, used by the
// local storage backend's companion data-block server (internal/httpapi's
// block handler).
package local

import (
	"io"
	"os"

	"github.com/ga4gh/htsget-core/internal/block"
)

// fileOffsetReader reads at most Length bytes starting at Start from File.
type fileOffsetReader struct {
	Start  int64
	Length int64
	File   *os.File
}

func (f *fileOffsetReader) Read(b []byte) (int, error) {
	if f.Length <= 0 {
		return 0, io.EOF
	}
	if int64(len(b)) > f.Length {
		b = b[:f.Length]
	}
	n, err := f.File.Read(b)
	f.Start += int64(n)
	f.Length -= int64(n)
	return n, err
}

// Close is a no-op: the underlying *os.File is owned by the caller.
func (f *fileOffsetReader) Close() error {
	return nil
}

// NewFileRangeReader returns a block.RangeReader that serves byte ranges
// from file.
func NewFileRangeReader(file *os.File) block.RangeReader {
	return func(start int64, length int64) (io.ReadCloser, error) {
		if _, err := file.Seek(start, io.SeekStart); err != nil {
			return nil, err
		}
		return &fileOffsetReader{Start: start, Length: length, File: file}, nil
	}
}
