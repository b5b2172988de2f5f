package resolver

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"testing"

	"github.com/ga4gh/htsget-core/internal/bgzf"
	"github.com/ga4gh/htsget-core/internal/storage"
	"github.com/ga4gh/htsget-core/internal/ticket"
)

// memBackend is a minimal in-memory storage.Backend for exercising the
// resolver without a real filesystem or network, keyed by object name.
type memBackend struct {
	objects map[string][]byte
}

func (m *memBackend) Get(ctx context.Context, object storage.Object, offset, length int64) (io.ReadCloser, error) {
	data, ok := m.objects[object.Key]
	if !ok {
		return nil, storage.ErrNotExist
	}
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	data = data[offset:]
	if length >= 0 && length < int64(len(data)) {
		data = data[:length]
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memBackend) Size(ctx context.Context, object storage.Object) (int64, error) {
	data, ok := m.objects[object.Key]
	if !ok {
		return 0, storage.ErrNotExist
	}
	return int64(len(data)), nil
}

func (m *memBackend) SupportsRangeURL() bool { return true }

func (m *memBackend) RangeURL(ctx context.Context, object storage.Object, offset, length int64) (string, map[string]string, error) {
	return fmt.Sprintf("mem://%s?offset=%d&length=%d", object.Key, offset, length), nil, nil
}

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

	block, err := bgzf.EncodeBlock(raw.Bytes())
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
	out.Write(block)
	out.Write(body)
	out.Write(eof)
	return out.Bytes()
}

func cramBytes(samText string) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(0x4d415243))
	buf.WriteByte(2)
	buf.WriteByte(1)
	buf.Write(make([]byte, 20))

	containerLength := int32(5 + 4 + len(samText))
	binary.Write(&buf, binary.LittleEndian, containerLength)
	for i := 0; i < 7; i++ {
		buf.WriteByte(0)
	}
	buf.WriteByte(0)

	buf.WriteByte(0)
	buf.WriteByte(0)
	buf.WriteByte(0)
	buf.WriteByte(0)
	buf.WriteByte(0)

	binary.Write(&buf, binary.LittleEndian, int32(len(samText)))
	buf.WriteString(samText)
	buf.WriteString("trailing-container-bytes")
	return buf.Bytes()
}

func TestResolveBAMWholeFile(t *testing.T) {
	backend := &memBackend{objects: map[string][]byte{
		"sample.bam": bamBytes("chr1", 1000),
	}}

	resp, err := Resolve(context.Background(), backend, Query{ID: "sample", Format: BAM})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if resp.Format != "BAM" {
		t.Errorf("got format %q, want BAM", resp.Format)
	}
	// Whole-file, single-class (Mixed collapses to one merged range since
	// header and body are contiguous), so class should be omitted and the
	// EOF marker appended as the final URL.
	if len(resp.URLs) != 2 {
		t.Fatalf("got %d urls, want 2 (data range + EOF marker): %+v", len(resp.URLs), resp.URLs)
	}
	if resp.URLs[0].Class != "" {
		t.Errorf("got class %q, want omitted for a single contiguous range", resp.URLs[0].Class)
	}
	if resp.URLs[1].URL != ticket.BGZFEOFMarker() {
		t.Errorf("got last url %q, want the BGZF EOF marker", resp.URLs[1].URL)
	}
}

func TestResolveBAMHeaderOnly(t *testing.T) {
	backend := &memBackend{objects: map[string][]byte{
		"sample.bam": bamBytes("chr1", 1000),
	}}

	resp, err := Resolve(context.Background(), backend, Query{ID: "sample", Format: BAM, Class: ticket.ClassHeader})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	// One header range plus the EOF marker: a header-only response must
	// still be a parseable, empty-bodied BGZF stream on its own.
	if len(resp.URLs) != 2 {
		t.Fatalf("got %d urls, want 2: %+v", len(resp.URLs), resp.URLs)
	}
}

func TestResolveBAMReferenceNotFound(t *testing.T) {
	backend := &memBackend{objects: map[string][]byte{
		"sample.bam": bamBytes("chr1", 1000),
	}}

	_, err := Resolve(context.Background(), backend, Query{ID: "sample", Format: BAM, ReferenceName: "chrX"})
	if err == nil {
		t.Fatal("expected an error for an unknown reference name")
	}
}

func TestResolveCRAMWholeFile(t *testing.T) {
	samText := "@HD\tVN:1.6\n@SQ\tSN:chr1\tLN:1000\n"
	backend := &memBackend{objects: map[string][]byte{
		"sample.cram": cramBytes(samText),
	}}

	resp, err := Resolve(context.Background(), backend, Query{ID: "sample", Format: CRAM})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if resp.Format != "CRAM" {
		t.Errorf("got format %q, want CRAM", resp.Format)
	}
	// CRAM carries no BGZF EOF marker, so a whole-file response (header and
	// body merged since they're contiguous) is exactly one URL.
	if len(resp.URLs) != 1 {
		t.Fatalf("got %d urls, want 1: %+v", len(resp.URLs), resp.URLs)
	}
}

func TestResolveMissingID(t *testing.T) {
	backend := &memBackend{objects: map[string][]byte{}}

	if _, err := Resolve(context.Background(), backend, Query{Format: BAM}); err == nil {
		t.Error("expected an error when id is empty")
	}
}

func TestResolveStartWithoutReferenceName(t *testing.T) {
	backend := &memBackend{objects: map[string][]byte{}}

	_, err := Resolve(context.Background(), backend, Query{ID: "sample", Format: BAM, HasStart: true, Start: 10})
	if err == nil {
		t.Error("expected an error when start is given without a referenceName")
	}
}

func TestResolveEndBeforeStart(t *testing.T) {
	backend := &memBackend{objects: map[string][]byte{}}

	_, err := Resolve(context.Background(), backend, Query{
		ID: "sample", Format: BAM, ReferenceName: "chr1",
		HasStart: true, Start: 100, HasEnd: true, End: 10,
	})
	if err == nil {
		t.Error("expected an error when end precedes start")
	}
}

func TestResolveUnsupportedFormat(t *testing.T) {
	backend := &memBackend{objects: map[string][]byte{}}

	_, err := Resolve(context.Background(), backend, Query{ID: "sample", Format: "GFF"})
	if err == nil {
		t.Error("expected an error for an unsupported format")
	}
}

func TestResolveUnknownObject(t *testing.T) {
	backend := &memBackend{objects: map[string][]byte{}}

	_, err := Resolve(context.Background(), backend, Query{ID: "missing", Format: BAM})
	if err == nil {
		t.Error("expected an error when the data object does not exist")
	}
}
