// Package tabix contains support for processing TBI index files, the
// companion index to bgzipped VCF (http://samtools.github.io/hts-specs/tabix.pdf).
//
// TABIX reuses the BAI/CSI binning scheme (a fixed 14-bit minimum interval,
// 5-level binning tree) but, unlike BAI and CSI, precedes the per-reference
// bin data with a format header that embeds the reference name table. So
// unlike internal/bai and internal/csi, this package does not route through
// internal/index's generic Read: the field order differs enough (name table
// between the reference count and the per-reference loop, rather than
// nowhere at all) that forcing it through the shared walker would obscure
// more than it would save.  The per-bin/per-chunk walk below is the same
// shape as internal/index.Read, applied directly to TABIX's own layout.
package tabix

import (
	"compress/gzip"
	"fmt"
	"io"
	"strings"

	"github.com/ga4gh/htsget-core/internal/bgzf"
	"github.com/ga4gh/htsget-core/internal/binary"
	"github.com/ga4gh/htsget-core/internal/genomics"
	"github.com/ga4gh/htsget-core/internal/index"
)

const (
	tabixMagic = "TBI\x01"

	// TABIX always uses a 14-bit minimum interval, 5-level (depth = 5)
	// binning scheme, matching BAI.
	minShift = 14
	depth    = 5

	// This ID is used as a virtual bin ID for (unused) chunk metadata,
	// matching BAI/CSI's convention.
	metadataBinID = 37450
)

// formatHeader holds the fixed-size fields following the reference count.
type formatHeader struct {
	Format   int32
	ColSeq   int32
	ColBeg   int32
	ColEnd   int32
	Meta     int32
	Skip     int32
	NameSize int32
}

// Names reads the TABIX reference name table, returning the reference names
// in reference_id order.  This is TABIX's one structural difference from
// BAI/CSI: it carries its own name table. internal/resolver does not call
// Names; it resolves a VCF referenceName from the data file's own header
// (internal/header.VCFHeaderEnd).
func Names(r io.Reader) ([]string, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("initializing gzip reader: %v", err)
	}
	defer gz.Close()

	_, names, err := readPreamble(gz)
	return names, err
}

func readPreamble(gz io.Reader) (references int32, names []string, err error) {
	if err := binary.ExpectBytes(gz, []byte(tabixMagic)); err != nil {
		return 0, nil, fmt.Errorf("reading magic: %v", err)
	}
	if err := binary.Read(gz, &references); err != nil {
		return 0, nil, fmt.Errorf("reading reference count: %v", err)
	}

	var h formatHeader
	if err := binary.Read(gz, &h); err != nil {
		return 0, nil, fmt.Errorf("reading tabix header: %v", err)
	}

	raw := make([]byte, h.NameSize)
	if _, err := io.ReadFull(gz, raw); err != nil {
		return 0, nil, fmt.Errorf("reading name table: %v", err)
	}

	names = strings.Split(strings.TrimRight(string(raw), "\x00"), "\x00")
	if int32(len(names)) != references {
		return 0, nil, fmt.Errorf("name table has %d entries, want %d", len(names), references)
	}
	return references, names, nil
}

// Read reads TABIX formatted index data from r and returns a set of BGZF
// chunks covering the header and all records inside the specified region.
// The first chunk is always the (inferred) VCF header.
func Read(r io.Reader, region genomics.Region) ([]*bgzf.Chunk, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("initializing gzip reader: %v", err)
	}
	defer gz.Close()

	references, _, err := readPreamble(gz)
	if err != nil {
		return nil, err
	}

	bins := index.BinsForRange(region.Start, region.End, minShift, depth)

	header := &bgzf.Chunk{End: bgzf.LastAddress}
	chunks := []*bgzf.Chunk{header}
	var unmappedStart bgzf.Address
	for i := int32(0); i < references; i++ {
		var binCount int32
		if err := binary.Read(gz, &binCount); err != nil {
			return nil, fmt.Errorf("reading bin count: %v", err)
		}

		var candidates []*bgzf.Chunk
		for j := int32(0); j < binCount; j++ {
			var bin index.Bin
			if err := binary.Read(gz, &bin); err != nil {
				return nil, fmt.Errorf("reading bin: %v", err)
			}

			includeChunks := index.RegionContainsBin(region, i, bin.ID, bins)
			for k := int32(0); k < bin.Chunks; k++ {
				var chunk bgzf.Chunk
				if err := binary.Read(gz, &chunk); err != nil {
					return nil, fmt.Errorf("reading chunk: %v", err)
				}
				if bin.ID == metadataBinID {
					// The metadata pseudo-bin's first chunk carries the
					// virtual file offset range of this reference's
					// unmapped reads; its second reuses the chunk encoding
					// to store mapped/unmapped read counts, not offsets.
					if k == 0 && chunk.End > unmappedStart {
						unmappedStart = chunk.End
					}
					continue
				}
				if includeChunks {
					candidates = append(candidates, &chunk)
				}
				if header.End > chunk.Start {
					header.End = chunk.Start
				}
			}
		}

		var intervals int32
		if err := binary.Read(gz, &intervals); err != nil {
			return nil, fmt.Errorf("reading interval count: %v", err)
		}
		if intervals < 0 {
			return nil, fmt.Errorf("invalid interval count (%d intervals)", intervals)
		}
		offsets := make([]uint64, intervals)
		if err := binary.Read(gz, &offsets); err != nil {
			return nil, fmt.Errorf("reading linear index: %v", err)
		}

		var firstRecordOffset bgzf.Address
		if idx := int(region.Start >> minShift); idx < len(offsets) {
			firstRecordOffset = bgzf.Address(offsets[idx])
		}

		for _, chunk := range candidates {
			if chunk.End < firstRecordOffset {
				continue
			}
			chunks = append(chunks, chunk)
		}
	}

	if region.Unmapped {
		// Unplaced unmapped reads have no bin of their own: they're written
		// after the last reference's mapped records. unmappedStart, the
		// furthest metadata-bin end offset seen across all references, is
		// where they begin; they run to EOF.
		if unmappedStart == 0 {
			return chunks[:1], nil
		}
		return []*bgzf.Chunk{header, {Start: unmappedStart, End: bgzf.LastAddress}}, nil
	}
	return chunks, nil
}
