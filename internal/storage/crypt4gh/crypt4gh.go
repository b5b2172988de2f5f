// Package crypt4gh decorates any internal/storage.Backend with Crypt4GH
// (https://samtools.github.io/hts-specs/crypt4gh.pdf) awareness: it
// re-encrypts a Crypt4GH object's header for the requesting client's public
// key and translates plaintext byte ranges into the ciphertext segment
// ranges that actually need to be fetched from the wrapped backend.
//
// Crypt4GH encrypts a file's data in independent, fixed-size segments under
// one symmetric data key; only the header (which carries that data key,
// wrapped per recipient) differs between recipients. That means serving a
// range of a Crypt4GH object to a new recipient never requires touching the
// ciphertext at all: only the header packets need decrypting with the
// server's key and re-encrypting with the client's.
//
// github.com/neicnordic/crypt4gh is the one dependency in this module with
// no precedent anywhere in the example pool; no other example repo
// implements Crypt4GH, so there is nothing to ground its use on beyond the
// spec it implements and its own documented API.
package crypt4gh

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/neicnordic/crypt4gh/headers"
	"github.com/neicnordic/crypt4gh/keys"

	"github.com/ga4gh/htsget-core/internal/storage"
)

const (
	// magicLength is the length of the Crypt4GH magic + version fields
	// preceding the header packet count.
	magicLength = 8

	// plainSegmentSize is the number of plaintext bytes encrypted into
	// each Crypt4GH data segment.
	plainSegmentSize = 65536

	// cipherSegmentSize is the size of one encrypted data segment: a
	// 12-byte nonce, the plaintext segment, and a 16-byte Poly1305 tag.
	cipherSegmentSize = 12 + plainSegmentSize + 16
)

// Backend wraps an inner storage.Backend holding Crypt4GH-encrypted objects,
// re-keying their headers for recipientPublicKey.
type Backend struct {
	inner              storage.Backend
	serverPrivateKey   [32]byte
	recipientPublicKey [32]byte

	// proxyBaseURL is the external base URL of the sibling body-proxy
	// route BodyURL addresses, set per-request via WithProxyBaseURL the
	// same way internal/storage/local.Backend.BlockBaseURL is.
	proxyBaseURL string
}

// New returns a Backend that decrypts header packets in objects served by
// inner using serverPrivateKey and re-encrypts them for recipientPublicKey.
func New(inner storage.Backend, serverPrivateKey, recipientPublicKey [32]byte) *Backend {
	return &Backend{inner: inner, serverPrivateKey: serverPrivateKey, recipientPublicKey: recipientPublicKey}
}

// WithProxyBaseURL returns a copy of b whose BodyURL results point at
// proxyBaseURL, the per-request address of the body-proxy route.
func (b *Backend) WithProxyBaseURL(proxyBaseURL string) *Backend {
	clone := *b
	clone.proxyBaseURL = proxyBaseURL
	return &clone
}

// BodyURL returns the URL the client should fetch object's ciphertext body
// segments from. Unlike RangeURL, it addresses the whole body: Crypt4GH
// objects are served without server-side region slicing (see
// internal/resolver's resolveCrypt4GH), so there is only ever one body URL
// per object.
func (b *Backend) BodyURL(object storage.Object) (string, error) {
	if b.proxyBaseURL == "" {
		return "", fmt.Errorf("crypt4gh backend has no body-proxy server configured")
	}
	return strings.TrimRight(b.proxyBaseURL, "/") + "/" + object.Key, nil
}

// ParsePublicKeyFile reads a Crypt4GH public key file in the format produced
// by crypt4gh-keygen.
func ParsePublicKeyFile(path string) ([32]byte, error) {
	return keys.GetPublicKey(path)
}

// header reads and parses the Crypt4GH header (magic, version, packet list)
// from the start of object, returning the parsed header and the byte offset
// where the encrypted data segments begin (h_e, "encrypted_header_size" in
// the spec's terms).
func (b *Backend) header(ctx context.Context, object storage.Object) (*headers.Header, int64, error) {
	r, err := b.inner.Get(ctx, object, 0, -1)
	if err != nil {
		return nil, 0, fmt.Errorf("opening object: %v", err)
	}
	defer r.Close()

	parsed, err := headers.NewHeader(r, b.serverPrivateKey)
	if err != nil {
		return nil, 0, fmt.Errorf("reading crypt4gh header: %v", err)
	}

	headerEnd, err := headerLength(parsed)
	if err != nil {
		return nil, 0, err
	}
	return parsed, headerEnd, nil
}

func headerLength(h *headers.Header) (int64, error) {
	n, err := h.Length()
	if err != nil {
		return 0, fmt.Errorf("computing header length: %v", err)
	}
	return int64(n), nil
}

// RewrappedHeader returns a new Crypt4GH header for object, with its data
// key packets decrypted using the server's key and re-encrypted for the
// recipient's public key. Callers prepend this to the ciphertext data
// segments Get returns to produce a file the recipient can decrypt with
// their own private key.
func (b *Backend) RewrappedHeader(ctx context.Context, object storage.Object) ([]byte, error) {
	parsed, _, err := b.header(ctx, object)
	if err != nil {
		return nil, err
	}

	rewrapped, err := parsed.ReEncrypt(b.serverPrivateKey, [][32]byte{b.recipientPublicKey})
	if err != nil {
		return nil, fmt.Errorf("re-encrypting header: %v", err)
	}
	return rewrapped.MarshalBinary()
}

// Get returns the ciphertext data segments of object covering the plaintext
// byte range [offset, offset+length). Because Crypt4GH segments are only
// decryptable as whole units, the returned bytes may extend slightly before
// offset and after offset+length, up to the containing segment boundaries;
// RewrappedHeader's header plus these segments together form a valid,
// independently decryptable Crypt4GH file for the requested range.
func (b *Backend) Get(ctx context.Context, object storage.Object, offset, length int64) (io.ReadCloser, error) {
	_, headerEnd, err := b.header(ctx, object)
	if err != nil {
		return nil, err
	}

	firstSegment := offset / plainSegmentSize
	cipherOffset := headerEnd + firstSegment*cipherSegmentSize

	var cipherLength int64 = -1
	if length >= 0 {
		lastSegment := (offset + length - 1) / plainSegmentSize
		segmentCount := lastSegment - firstSegment + 1
		cipherLength = segmentCount * cipherSegmentSize
	}

	return b.inner.Get(ctx, object, cipherOffset, cipherLength)
}

// Size implements storage.Backend, returning the size of the underlying
// encrypted object (header plus all ciphertext segments), not the plaintext
// size. Callers that need the plaintext size should consult the cleartext
// data file's own format header instead (e.g. a BAM reference table),
// which is unaffected by Crypt4GH's envelope.
func (b *Backend) Size(ctx context.Context, object storage.Object) (int64, error) {
	return b.inner.Size(ctx, object)
}

// SupportsRangeURL implements storage.Backend: the inner backend's
// pre-signed URLs point at ciphertext the recipient cannot decrypt without
// the rewrapped header, which only this wrapper can produce, so direct URL
// delivery is never offered for Crypt4GH objects.
func (b *Backend) SupportsRangeURL() bool {
	return false
}

// RangeURL implements storage.Backend.
func (b *Backend) RangeURL(ctx context.Context, object storage.Object, offset, length int64) (string, map[string]string, error) {
	return "", nil, fmt.Errorf("crypt4gh objects must be proxied, not linked directly")
}
