// Package cache implements the one piece of state the core is allowed to
// own: a bounded on-disk cache of outbound HTTP responses (JWKS fetches,
// remote-backend metadata lookups), stored as a single opaque file at the
// path given to Open. The file is not placed in the system temp directory:
// htsget-server puts it under Config.HTTPCacheDir and runs without a cache
// when that is empty. No example repo in the pool carries a
// general-purpose HTTP cache library, so this is a stdlib-only
// net/http.RoundTripper wrapper rather than an adopted dependency (see
// DESIGN.md).
package cache

import (
	"bytes"
	"encoding/gob"
	"io"
	"net/http"
	"os"
	"sync"
	"time"
)

// DefaultPath is the file name of the single cache file the core persists;
// callers join it onto the directory they pass to Open.
const DefaultPath = "htsget_core_client_cache"

type entry struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	StoredAt   time.Time
}

// Cache is a bounded, file-backed cache of GET response bodies, keyed by
// request URL. It is safe for concurrent use.
type Cache struct {
	path    string
	ttl     time.Duration
	maxSize int

	mu      sync.Mutex
	entries map[string]entry
}

// Open loads path (creating it lazily on first Save) as a response cache.
// Entries older than ttl are treated as misses; maxSize bounds the number
// of entries retained, evicting arbitrarily once exceeded.
func Open(path string, ttl time.Duration, maxSize int) (*Cache, error) {
	c := &Cache{path: path, ttl: ttl, maxSize: maxSize, entries: make(map[string]entry)}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, err
	}
	defer f.Close()

	if err := gob.NewDecoder(f).Decode(&c.entries); err != nil && err != io.EOF {
		// A corrupt or foreign-format cache file is treated as empty rather
		// than a fatal error: the cache is a pure optimization.
		c.entries = make(map[string]entry)
	}
	return c, nil
}

// RoundTripper wraps next with a cache that serves GET requests from its
// in-memory entries (loaded by Open, written back by Save) when a fresh
// entry exists, and stores a fresh next.RoundTrip response
// otherwise. Non-GET requests and non-200 responses bypass the cache.
func (c *Cache) RoundTripper(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &roundTripper{cache: c, next: next}
}

type roundTripper struct {
	cache *Cache
	next  http.RoundTripper
}

func (rt *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet {
		return rt.next.RoundTrip(req)
	}

	key := req.URL.String()
	if cached, ok := rt.cache.lookup(key); ok {
		return cached, nil
	}

	resp, err := rt.next.RoundTrip(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		return resp, err
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	rt.cache.store(key, entry{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
		StoredAt:   time.Now(),
	})
	return resp, nil
}

func (c *Cache) lookup(key string) (*http.Response, bool) {
	c.mu.Lock()
	e, ok := c.entries[key]
	c.mu.Unlock()
	if !ok || (c.ttl > 0 && time.Since(e.StoredAt) > c.ttl) {
		return nil, false
	}
	return &http.Response{
		StatusCode: e.StatusCode,
		Header:     e.Header.Clone(),
		Body:       io.NopCloser(bytes.NewReader(e.Body)),
	}, true
}

func (c *Cache) store(key string, e entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxSize > 0 && len(c.entries) >= c.maxSize {
		for k := range c.entries {
			delete(c.entries, k)
			break
		}
	}
	c.entries[key] = e
}

// Save persists the cache to its backing file. Callers decide when to call
// it (e.g. on an interval, or at shutdown) rather than on every store, to
// keep the common request path free of disk I/O.
func (c *Cache) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.Create(c.path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewEncoder(f).Encode(c.entries)
}
