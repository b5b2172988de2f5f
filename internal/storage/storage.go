// Package storage defines the backend capability every object source (local
// disk, GCS, S3, Azure Blob, a plain HTTP remote, or a Crypt4GH-wrapped
// layer over any of those) implements, so internal/resolver never needs to
// know which one it's talking to.
package storage

import (
	"context"
	"io"
)

// Object names a single file inside a Backend: htsget addresses data files
// and their companion indexes the same way, so both are just Objects at
// different Keys.
type Object struct {
	Key string
}

// Backend is the capability every storage variant must provide: reading a
// byte range out of an object, and optionally handing back a signed URL that
// lets a client fetch that range directly instead of proxying the bytes
// through htsget itself.
type Backend interface {
	// Get returns a reader over length bytes of the object starting at
	// offset. length of -1 means read to the end of the object.
	Get(ctx context.Context, object Object, offset, length int64) (io.ReadCloser, error)

	// Size returns the total size of the object, in bytes.
	Size(ctx context.Context, object Object) (int64, error)

	// SupportsRangeURL reports whether RangeURL can be called for this
	// backend. Backends that can only proxy bytes (e.g. internal/storage/
	// crypt4gh, or internal/storage/local with no data-block server
	// configured) return false.
	SupportsRangeURL() bool

	// RangeURL returns a URL the client can fetch directly for length
	// bytes of object starting at offset, plus any extra headers the
	// client must send along with it (e.g. a bearer token the backend
	// required to authorize the request that produced the URL). Only
	// valid when SupportsRangeURL returns true.
	RangeURL(ctx context.Context, object Object, offset, length int64) (url string, headers map[string]string, err error)
}

// ErrNotExist is returned by Backend.Get and Backend.Size when the requested
// object does not exist.
var ErrNotExist = notExistError{}

type notExistError struct{}

func (notExistError) Error() string { return "object does not exist" }
