package cache

import (
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripperCachesGET(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte("hello"))
	}))
	defer server.Close()

	c, err := Open(filepath.Join(t.TempDir(), DefaultPath), time.Minute, 100)
	require.NoError(t, err)

	client := &http.Client{Transport: c.RoundTripper(http.DefaultTransport)}

	for i := 0; i < 3; i++ {
		resp, err := client.Get(server.URL)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		assert.Equal(t, "hello", string(body))
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

func TestRoundTripperExpiresEntries(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte("hello"))
	}))
	defer server.Close()

	c, err := Open(filepath.Join(t.TempDir(), DefaultPath), time.Nanosecond, 100)
	require.NoError(t, err)
	client := &http.Client{Transport: c.RoundTripper(http.DefaultTransport)}

	_, err = client.Get(server.URL)
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	_, err = client.Get(server.URL)
	require.NoError(t, err)

	assert.EqualValues(t, 2, atomic.LoadInt32(&hits))
}

func TestSaveAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultPath)

	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte("hello"))
	}))
	defer server.Close()

	c, err := Open(path, time.Minute, 100)
	require.NoError(t, err)
	client := &http.Client{Transport: c.RoundTripper(http.DefaultTransport)}
	_, err = client.Get(server.URL)
	require.NoError(t, err)
	require.NoError(t, c.Save())

	reopened, err := Open(path, time.Minute, 100)
	require.NoError(t, err)
	client2 := &http.Client{Transport: reopened.RoundTripper(http.DefaultTransport)}
	resp, err := client2.Get(server.URL)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "hello", string(body))
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}
