package gzi

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func writeGZI(entries []Entry) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint64(len(entries)))
	for _, e := range entries {
		binary.Write(&buf, binary.LittleEndian, e)
	}
	return buf.Bytes()
}

func TestRead(t *testing.T) {
	want := []Entry{
		{CompressedOffset: 100, UncompressedOffset: 65536},
		{CompressedOffset: 250, UncompressedOffset: 131072},
	}

	got, err := Read(bytes.NewReader(writeGZI(want)))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestCompressedOffset(t *testing.T) {
	entries := []Entry{
		{CompressedOffset: 100, UncompressedOffset: 65536},
		{CompressedOffset: 250, UncompressedOffset: 131072},
	}

	if _, ok := CompressedOffset(entries, 1000); ok {
		t.Error("expected no match before the first recorded block")
	}

	offset, ok := CompressedOffset(entries, 65536)
	if !ok || offset != 100 {
		t.Errorf("got (%d, %v), want (100, true)", offset, ok)
	}

	offset, ok = CompressedOffset(entries, 200000)
	if !ok || offset != 250 {
		t.Errorf("got (%d, %v), want (250, true)", offset, ok)
	}
}
