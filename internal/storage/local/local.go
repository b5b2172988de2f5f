// Package local implements internal/storage.Backend over a directory on
// local disk. It has no teacher precedent (the original server only ever
// read from Google Cloud Storage); it is grounded on sources/local's
// range-scoped *os.File reader, wired behind the storage.Backend interface
// instead of block.RangeReader so internal/resolver can treat it the same
// way as every remote backend. RangeURL reuses api.go's serveReads
// gob-encoded-chunk-in-query-string convention for addressing the sibling
// data-block server (internal/httpapi's block handler), rather than
// object-store presigning, since a bare local file has nothing to sign.
package local

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ga4gh/htsget-core/internal/bgzf"
	"github.com/ga4gh/htsget-core/internal/storage"
)

// Backend serves objects rooted under Root. Object keys are interpreted as
// slash-separated paths relative to Root; a key that escapes Root (via ".."
// or an absolute path) is rejected.
//
// BlockBaseURL, when set, is the external base URL of the sibling
// data-block server (e.g. "https://example.com/block"); RangeURL is only
// offered when it is configured.
type Backend struct {
	Root         string
	BlockBaseURL string
}

// New returns a Backend rooted at root with no data-block server configured;
// RangeURL will fail until one is set via NewWithBlockServer.
func New(root string) *Backend {
	return &Backend{Root: root}
}

// NewWithBlockServer returns a Backend rooted at root whose RangeURL results
// point at the data-block server reachable at blockBaseURL.
func NewWithBlockServer(root, blockBaseURL string) *Backend {
	return &Backend{Root: root, BlockBaseURL: blockBaseURL}
}

func (b *Backend) path(object storage.Object) (string, error) {
	if filepath.IsAbs(object.Key) || strings.Contains(object.Key, "..") {
		return "", fmt.Errorf("invalid object key %q", object.Key)
	}
	return filepath.Join(b.Root, filepath.FromSlash(object.Key)), nil
}

// OpenFile opens the validated path for object, for use by the data-block
// server that decodes RangeURL's query string back into a byte range.
func (b *Backend) OpenFile(object storage.Object) (*os.File, error) {
	path, err := b.path(object)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, storage.ErrNotExist
		}
		return nil, err
	}
	return f, nil
}

// Get implements storage.Backend.
func (b *Backend) Get(ctx context.Context, object storage.Object, offset, length int64) (io.ReadCloser, error) {
	path, err := b.path(object)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, storage.ErrNotExist
		}
		return nil, err
	}

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("seeking to offset %d: %v", offset, err)
	}

	if length < 0 {
		return f, nil
	}
	return &limitedFile{file: f, r: io.LimitReader(f, length)}, nil
}

// Size implements storage.Backend.
func (b *Backend) Size(ctx context.Context, object storage.Object) (int64, error) {
	path, err := b.path(object)
	if err != nil {
		return 0, err
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, storage.ErrNotExist
		}
		return 0, err
	}
	return info.Size(), nil
}

// SupportsRangeURL implements storage.Backend: local files have no
// signed-URL mechanism of their own, so a range URL is only offered when a
// data-block server has been configured to proxy bytes on this backend's
// behalf.
func (b *Backend) SupportsRangeURL() bool {
	return b.BlockBaseURL != ""
}

// RangeURL implements storage.Backend, encoding [offset, offset+length) as a
// bgzf.Chunk (with zero data-offsets, since callers only ever request
// block-aligned ranges) in the query string of a data-block server URL.
func (b *Backend) RangeURL(ctx context.Context, object storage.Object, offset, length int64) (string, map[string]string, error) {
	if b.BlockBaseURL == "" {
		return "", nil, errors.New("local backend has no data-block server configured")
	}
	if length < 0 {
		return "", nil, errors.New("local backend requires a bounded length")
	}

	chunk := bgzf.Chunk{
		Start: bgzf.NewAddress(uint64(offset), 0),
		End:   bgzf.NewAddress(uint64(offset+length), 0),
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(chunk); err != nil {
		return "", nil, fmt.Errorf("encoding chunk: %v", err)
	}
	encoded := base64.URLEncoding.EncodeToString(buf.Bytes())

	url := fmt.Sprintf("%s/%s?chunk=%s", strings.TrimRight(b.BlockBaseURL, "/"), object.Key, encoded)
	return url, nil, nil
}

type limitedFile struct {
	file *os.File
	r    io.Reader
}

func (l *limitedFile) Read(b []byte) (int, error) { return l.r.Read(b) }
func (l *limitedFile) Close() error                { return l.file.Close() }
