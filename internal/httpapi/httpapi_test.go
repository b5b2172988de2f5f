package httpapi

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ga4gh/htsget-core/internal/analytics"
	"github.com/ga4gh/htsget-core/internal/bgzf"
	"github.com/ga4gh/htsget-core/internal/storage/local"
)

func bamBytes(refName string, refLength int32) []byte {
	var raw bytes.Buffer
	raw.WriteString("BAM\x01")

	text := []byte("@HD\tVN:1.6\n")
	binary.Write(&raw, binary.LittleEndian, int32(len(text)))
	raw.Write(text)

	binary.Write(&raw, binary.LittleEndian, int32(1))
	name := append([]byte(refName), 0)
	binary.Write(&raw, binary.LittleEndian, int32(len(name)))
	raw.Write(name)
	binary.Write(&raw, binary.LittleEndian, refLength)

	header, err := bgzf.EncodeBlock(raw.Bytes())
	if err != nil {
		panic(err)
	}
	body, err := bgzf.EncodeBlock([]byte("some-alignment-record-bytes"))
	if err != nil {
		panic(err)
	}
	eof, err := bgzf.EncodeBlock(nil)
	if err != nil {
		panic(err)
	}

	var out bytes.Buffer
	out.Write(header)
	out.Write(body)
	out.Write(eof)
	return out.Bytes()
}

func newTestRouter(t *testing.T) (*gin.Engine, string) {
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "sample.bam"), bamBytes("chr1", 1000), 0o644)
	require.NoError(t, err)

	router := New(Config{
		Backend: local.New(dir),
		ServiceInfo: ServiceInfo{
			ID:      "htsget-core",
			Name:    "htsget-core test server",
			Version: "test",
		},
	})
	return router, dir
}

type htsgetEnvelope struct {
	Htsget struct {
		Format string `json:"format"`
		URLs   []struct {
			URL     string            `json:"url"`
			Headers map[string]string `json:"headers,omitempty"`
			Class   string            `json:"class,omitempty"`
		} `json:"urls"`
	} `json:"htsget"`
}

func TestHandleReadsWholeFile(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/reads/sample", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body htsgetEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "BAM", body.Htsget.Format)
	require.Len(t, body.Htsget.URLs, 2)
	assert.Contains(t, body.Htsget.URLs[0].URL, "/block/sample.bam?chunk=")
	assert.Equal(t, "data:;base64,H4sIBAAAAAAA/wYAQkMCABsAAwAAAAAAAAAAAA==", body.Htsget.URLs[1].URL)
}

func TestHandleReadsUnknownObjectReturnsNotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/reads/missing", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleServiceInfo(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/reads/service-info", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "htsget-core", body["id"])
}

func TestBlockProxyRoundTrip(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/reads/sample", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body htsgetEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotEmpty(t, body.Htsget.URLs)

	blockURL, err := url.Parse(body.Htsget.URLs[0].URL)
	require.NoError(t, err)

	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, blockURL.RequestURI(), nil)
	router.ServeHTTP(w2, req2)

	require.Equal(t, http.StatusOK, w2.Code)
	assert.NotEmpty(t, w2.Body.Bytes())
}

func TestHandleReadsMissingID(t *testing.T) {
	router, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/reads/", nil)
	router.ServeHTTP(w, req)

	assert.NotEqual(t, http.StatusOK, w.Code)
}

func TestHandleReadsRecordsAnalyticsHit(t *testing.T) {
	router, _ := newTestRouter(t)

	var hits []analytics.Hit
	handler := analytics.TrackingHandler(router, func(h []analytics.Hit) { hits = h })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/reads/sample", nil)
	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, hits, 1)
	assert.Equal(t, "resolve", hits[0]["ea"])
}
