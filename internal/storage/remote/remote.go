// Package remote implements internal/storage.Backend by issuing HTTP Range
// requests against a plain URL-addressable origin (no bucket API of its
// own). Grounded on ricardobranco777/httpseek's ReaderAtHTTP: a HEAD request
// confirms Content-Length and Accept-Ranges up front, and each read becomes
// a ranged GET with an explicit byte range, rather than httpseek's
// io.ReaderAt, since htsget only ever reads a contiguous chunk at a time.
package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/ga4gh/htsget-core/internal/storage"
)

// Backend reads byte ranges out of a single HTTP(S) URL.
type Backend struct {
	client *http.Client
	url    string
	// extraHeaders are attached to every outbound request, used to forward
	// an Authorization header an origin server requires.
	extraHeaders map[string]string
}

// New returns a Backend for url. If client is nil, http.DefaultClient is
// used. Object.Key is ignored: Backend addresses exactly one URL, so callers
// construct one Backend per object.
func New(url string, client *http.Client, extraHeaders map[string]string) (*Backend, error) {
	if client == nil {
		client = http.DefaultClient
	}
	return &Backend{client: client, url: url, extraHeaders: extraHeaders}, nil
}

func (b *Backend) newRequest(ctx context.Context, method string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, b.url, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range b.extraHeaders {
		req.Header.Set(k, v)
	}
	return req, nil
}

// Get implements storage.Backend.
func (b *Backend) Get(ctx context.Context, object storage.Object, offset, length int64) (io.ReadCloser, error) {
	req, err := b.newRequest(ctx, http.MethodGet)
	if err != nil {
		return nil, err
	}

	if length < 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	} else {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+length-1))
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting range: %v", err)
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusPartialContent:
		return resp.Body, nil
	case http.StatusNotFound:
		resp.Body.Close()
		return nil, storage.ErrNotExist
	default:
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status fetching range: %s", resp.Status)
	}
}

// Size implements storage.Backend, issuing a HEAD request and reading
// Content-Length.
func (b *Backend) Size(ctx context.Context, object storage.Object) (int64, error) {
	req, err := b.newRequest(ctx, http.MethodHead)
	if err != nil {
		return 0, err
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("requesting HEAD: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, storage.ErrNotExist
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("unexpected status from HEAD: %s", resp.Status)
	}

	cl := resp.Header.Get("Content-Length")
	if cl == "" {
		return 0, fmt.Errorf("origin did not return Content-Length")
	}
	size, err := strconv.ParseInt(cl, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid Content-Length %q: %v", cl, err)
	}

	if !strings.Contains(resp.Header.Get("Accept-Ranges"), "bytes") {
		return 0, fmt.Errorf("origin does not advertise Range support")
	}
	return size, nil
}

// SupportsRangeURL implements storage.Backend: the backend's own URL is
// already directly fetchable, so RangeURL just hands it back with the Range
// header a client should send.
func (b *Backend) SupportsRangeURL() bool {
	return true
}

// RangeURL implements storage.Backend.
func (b *Backend) RangeURL(ctx context.Context, object storage.Object, offset, length int64) (string, map[string]string, error) {
	var rangeHeader string
	if length < 0 {
		rangeHeader = fmt.Sprintf("bytes=%d-", offset)
	} else {
		rangeHeader = fmt.Sprintf("bytes=%d-%d", offset, offset+length-1)
	}

	headers := map[string]string{"Range": rangeHeader}
	for k, v := range b.extraHeaders {
		headers[k] = v
	}
	return b.url, headers, nil
}
