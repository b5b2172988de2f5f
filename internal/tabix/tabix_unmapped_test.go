package tabix

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ga4gh/htsget-core/internal/bgzf"
	"github.com/ga4gh/htsget-core/internal/genomics"
	"github.com/ga4gh/htsget-core/internal/index"
)

func writeTabixBin(t *testing.T, w *bytes.Buffer, id uint32, chunks []bgzf.Chunk) {
	t.Helper()
	require.NoError(t, binary.Write(w, binary.LittleEndian, index.Bin{ID: id, Offset: 0, Chunks: int32(len(chunks))}))
	for _, c := range chunks {
		require.NoError(t, binary.Write(w, binary.LittleEndian, c))
	}
}

// buildTabix gzip-encodes a single-reference TABIX index with one ordinary
// bin and, optionally, a metadata pseudo-bin (ID 37450).
func buildTabix(t *testing.T, ordinary []bgzf.Chunk, metadata []bgzf.Chunk) []byte {
	t.Helper()
	var raw bytes.Buffer
	raw.WriteString(tabixMagic)
	require.NoError(t, binary.Write(&raw, binary.LittleEndian, int32(1))) // references

	names := "chr1\x00"
	require.NoError(t, binary.Write(&raw, binary.LittleEndian, formatHeader{
		Format: 2, ColSeq: 1, ColBeg: 2, ColEnd: 0, Meta: '#', Skip: 0, NameSize: int32(len(names)),
	}))
	raw.WriteString(names)

	binCount := int32(0)
	if len(ordinary) > 0 {
		binCount++
	}
	if len(metadata) > 0 {
		binCount++
	}
	require.NoError(t, binary.Write(&raw, binary.LittleEndian, binCount))
	if len(ordinary) > 0 {
		writeTabixBin(t, &raw, 0, ordinary)
	}
	if len(metadata) > 0 {
		writeTabixBin(t, &raw, metadataBinID, metadata)
	}
	require.NoError(t, binary.Write(&raw, binary.LittleEndian, int32(0))) // intervals

	var gz bytes.Buffer
	w := gzip.NewWriter(&gz)
	_, err := w.Write(raw.Bytes())
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return gz.Bytes()
}

func TestReadUnmappedUsesMetadataBinEndOffset(t *testing.T) {
	data := buildTabix(t, nil, []bgzf.Chunk{
		{Start: 1000, End: 5000},
		{Start: 10, End: 2}, // read counts, not offsets
	})

	chunks, err := Read(bytes.NewReader(data), genomics.Unplaced)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, bgzf.Address(5000), chunks[1].Start)
	assert.Equal(t, bgzf.LastAddress, chunks[1].End)
}

func TestReadUnmappedWithNoMetadataBinReturnsHeaderOnly(t *testing.T) {
	data := buildTabix(t, []bgzf.Chunk{{Start: 0, End: 100}}, nil)

	chunks, err := Read(bytes.NewReader(data), genomics.Unplaced)
	require.NoError(t, err)
	assert.Len(t, chunks, 1)
}
