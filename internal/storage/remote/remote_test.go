package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ga4gh/htsget-core/internal/storage"
)

func newTestServer(t *testing.T, data []byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Accept-Ranges", "bytes")
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", "10")
			return
		}
		rng := r.Header.Get("Range")
		if rng == "" {
			w.Write(data)
			return
		}
		var start, end int
		if _, err := fmt.Sscanf(rng, "bytes=%d-%d", &start, &end); err != nil {
			t.Fatalf("parsing test range %q: %v", rng, err)
		}
		w.WriteHeader(http.StatusPartialContent)
		w.Write(data[start : end+1])
	}))
}

func TestGet(t *testing.T) {
	srv := newTestServer(t, []byte("0123456789"))
	defer srv.Close()

	b, err := New(srv.URL, nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	r, err := b.Get(context.Background(), storage.Object{}, 2, 4)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer r.Close()

	got, _ := io.ReadAll(r)
	if string(got) != "2345" {
		t.Errorf("got %q, want %q", got, "2345")
	}
}

func TestSize(t *testing.T) {
	srv := newTestServer(t, []byte("0123456789"))
	defer srv.Close()

	b, _ := New(srv.URL, nil, nil)
	size, err := b.Size(context.Background(), storage.Object{})
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	if size != 10 {
		t.Errorf("got %d, want 10", size)
	}
}

func TestRangeURL(t *testing.T) {
	b, _ := New("http://example.com/reads.bam", nil, map[string]string{"Authorization": "Bearer tok"})
	url, headers, err := b.RangeURL(context.Background(), storage.Object{}, 5, 10)
	if err != nil {
		t.Fatalf("RangeURL failed: %v", err)
	}
	if url != "http://example.com/reads.bam" {
		t.Errorf("got url %q", url)
	}
	if headers["Range"] != "bytes=5-14" {
		t.Errorf("got Range header %q", headers["Range"])
	}
	if headers["Authorization"] != "Bearer tok" {
		t.Errorf("expected forwarded Authorization header, got %+v", headers)
	}
}
