package header

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"testing"

	"github.com/ga4gh/htsget-core/internal/bgzf"
)

func writeBAM(refs []struct {
	name   string
	length int32
}) []byte {
	var raw bytes.Buffer
	raw.WriteString(bamMagic)

	text := []byte("@HD\tVN:1.6\n")
	binary.Write(&raw, binary.LittleEndian, int32(len(text)))
	raw.Write(text)

	binary.Write(&raw, binary.LittleEndian, int32(len(refs)))
	for _, ref := range refs {
		name := append([]byte(ref.name), 0)
		binary.Write(&raw, binary.LittleEndian, int32(len(name)))
		raw.Write(name)
		binary.Write(&raw, binary.LittleEndian, ref.length)
	}

	var gz bytes.Buffer
	w := gzip.NewWriter(&gz)
	w.Write(raw.Bytes())
	w.Close()
	return gz.Bytes()
}

func TestReadBAM(t *testing.T) {
	data := writeBAM([]struct {
		name   string
		length int32
	}{
		{"chr1", 1000},
		{"chr2", 2000},
	})

	refs, err := ReadBAM(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadBAM failed: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("got %d references, want 2", len(refs))
	}
	if refs[0].Name != "chr1" || refs[0].Length != 1000 {
		t.Errorf("unexpected reference 0: %+v", refs[0])
	}
	if refs[1].Name != "chr2" || refs[1].Length != 2000 {
		t.Errorf("unexpected reference 1: %+v", refs[1])
	}
}

func TestResolveBAM(t *testing.T) {
	data := writeBAM([]struct {
		name   string
		length int32
	}{
		{"chr1", 1000},
		{"chr2", 2000},
	})

	id, err := ResolveBAM(bytes.NewReader(data), "chr2")
	if err != nil {
		t.Fatalf("ResolveBAM failed: %v", err)
	}
	if id != 1 {
		t.Errorf("got ID %d, want 1", id)
	}

	if _, err := ResolveBAM(bytes.NewReader(data), "chr9"); err == nil {
		t.Error("expected error for unknown reference")
	}
}

// rawBAM builds the uncompressed bytes of a BAM header plus reference table,
// without gzip-wrapping them, for use with bgzf.EncodeBlock.
func rawBAM(refs []struct {
	name   string
	length int32
}) []byte {
	var raw bytes.Buffer
	raw.WriteString(bamMagic)

	text := []byte("@HD\tVN:1.6\n")
	binary.Write(&raw, binary.LittleEndian, int32(len(text)))
	raw.Write(text)

	binary.Write(&raw, binary.LittleEndian, int32(len(refs)))
	for _, ref := range refs {
		name := append([]byte(ref.name), 0)
		binary.Write(&raw, binary.LittleEndian, int32(len(name)))
		raw.Write(name)
		binary.Write(&raw, binary.LittleEndian, ref.length)
	}
	return raw.Bytes()
}

func TestBAMHeaderEndSingleBlock(t *testing.T) {
	raw := rawBAM([]struct {
		name   string
		length int32
	}{{"chr1", 1000}})

	block, err := bgzf.EncodeBlock(raw)
	if err != nil {
		t.Fatalf("EncodeBlock failed: %v", err)
	}
	// Append a second, empty trailing block so header_end (the boundary
	// after the header's one block) falls strictly before the stream ends.
	eof, err := bgzf.EncodeBlock(nil)
	if err != nil {
		t.Fatalf("EncodeBlock failed: %v", err)
	}

	refs, headerEnd, err := BAMHeaderEnd(bytes.NewReader(append(block, eof...)))
	if err != nil {
		t.Fatalf("BAMHeaderEnd failed: %v", err)
	}
	if len(refs) != 1 || refs[0].Name != "chr1" {
		t.Fatalf("unexpected references: %+v", refs)
	}
	if headerEnd != uint64(len(block)) {
		t.Errorf("got header_end %d, want %d", headerEnd, len(block))
	}
}
