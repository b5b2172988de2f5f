// Copyright 2017 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package bai parses BAI index files, the companion index to BAM.
package bai

import (
	"fmt"
	"io"

	"github.com/ga4gh/htsget-core/internal/bgzf"
	"github.com/ga4gh/htsget-core/internal/binary"
	"github.com/ga4gh/htsget-core/internal/genomics"
	"github.com/ga4gh/htsget-core/internal/index"
)

const (
	baiMagic = "BAI\x01"

	// This ID is used as a virtual bin ID for (unused) chunk metadata.
	metadataID = 37450

	// The size of each tiling window from the linear index, as specified in the
	// SAM specification section 5.1.3.
	linearWindowSize = 1 << 14
)

// Read reads index data from bai and returns a set of BGZF chunks covering
// the header and all mapped reads that fall inside the specified region.  The
// first chunk is always the (inferred) BAM header.
func Read(bai io.Reader, region genomics.Region) ([]*bgzf.Chunk, error) {
	if err := binary.ExpectBytes(bai, []byte(baiMagic)); err != nil {
		return nil, fmt.Errorf("reading magic: %v", err)
	}

	var references int32
	if err := binary.Read(bai, &references); err != nil {
		return nil, fmt.Errorf("reading reference count: %v", err)
	}

	// BAM uses a 6 level (depth = 5) CSI-style binning scheme with a minimum
	// width of 14 bits.
	bins := index.BinsForRange(region.Start, region.End, 14, 5)

	header := &bgzf.Chunk{End: bgzf.LastAddress}
	chunks := []*bgzf.Chunk{header}
	var unmappedStart bgzf.Address
	for i := int32(0); i < references; i++ {
		var binCount int32
		if err := binary.Read(bai, &binCount); err != nil {
			return nil, fmt.Errorf("reading bin count: %v", err)
		}
		var candidates []*bgzf.Chunk
		for j := int32(0); j < binCount; j++ {
			var bin struct {
				ID     uint32
				Chunks int32
			}
			if err := binary.Read(bai, &bin); err != nil {
				return nil, fmt.Errorf("reading bin header: %v", err)
			}

			includeChunks := region.Unmapped == false && index.RegionContainsBin(region, i, bin.ID, bins)
			for k := int32(0); k < bin.Chunks; k++ {
				var chunk bgzf.Chunk
				if err := binary.Read(bai, &chunk); err != nil {
					return nil, fmt.Errorf("reading chunk: %v", err)
				}
				if bin.ID == metadataID {
					// The metadata pseudo-bin always has exactly two
					// chunks: chunk 0 is the virtual file offset range of
					// this reference's unmapped reads; chunk 1 reuses the
					// chunk encoding to store mapped/unmapped read counts,
					// not offsets, and is not useful here.
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
		if err := binary.Read(bai, &intervals); err != nil {
			return nil, fmt.Errorf("reading interval count: %v", err)
		}
		if intervals < 0 {
			return nil, fmt.Errorf("invalid interval count (%d intervals)", intervals)
		}
		offsets := make([]uint64, intervals)
		if err := binary.Read(bai, &offsets); err != nil {
			return nil, fmt.Errorf("reading offsets: %v", err)
		}

		var firstReadOffset bgzf.Address
		if idx := int(region.Start / linearWindowSize); idx < len(offsets) {
			firstReadOffset = bgzf.Address(offsets[idx])
		}

		for _, chunk := range candidates {
			if chunk.End < firstReadOffset {
				continue
			}
			chunks = append(chunks, chunk)
		}
	}

	if region.Unmapped {
		// Unplaced unmapped reads (referenceName="*") have no bin of their
		// own: they're written after the last reference's mapped records.
		// unmappedStart, the furthest metadata-bin end offset seen across
		// all references, is where they begin; they run to EOF.
		if unmappedStart == 0 {
			return chunks[:1], nil
		}
		return []*bgzf.Chunk{header, {Start: unmappedStart, End: bgzf.LastAddress}}, nil
	}

	return chunks, nil
}
