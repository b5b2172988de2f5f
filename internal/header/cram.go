package header

import (
	"fmt"
	"io"

	"github.com/ga4gh/htsget-core/internal/cram"
	"github.com/ga4gh/htsget-core/internal/sam"
)

// ReadCRAM reads the embedded SAM header's @SQ lines from a CRAM file and
// returns its reference table.
func ReadCRAM(r io.Reader) ([]Reference, error) {
	refs, _, err := CRAMHeaderEnd(r)
	return refs, err
}

// CRAMHeaderEnd reads a CRAM file's reference table, like ReadCRAM, and
// additionally returns header_end: the byte offset where the file's header
// container ends and its first data container begins. CRAM addresses
// content by container offset directly rather than by BGZF virtual offset,
// so header_end here is an exact container boundary, not a BGZF block
// boundary.
func CRAMHeaderEnd(r io.Reader) ([]Reference, uint64, error) {
	samHeader, headerEnd, err := cram.OpenSAMHeader(r)
	if err != nil {
		return nil, 0, fmt.Errorf("opening embedded SAM header: %v", err)
	}

	refs, err := sam.GetReferences(samHeader)
	if err != nil {
		return nil, 0, fmt.Errorf("reading references: %v", err)
	}

	out := make([]Reference, len(refs))
	for i, ref := range refs {
		out[i] = Reference{Name: ref.Name, Length: ref.Length}
	}
	return out, headerEnd, nil
}

// ResolveCRAM returns the reference_id of reference in a CRAM file's embedded
// SAM header, matching either a reference's primary or an alternate name.
func ResolveCRAM(r io.Reader, reference string) (int32, error) {
	samHeader, _, err := cram.OpenSAMHeader(r)
	if err != nil {
		return 0, fmt.Errorf("opening embedded SAM header: %v", err)
	}
	id, err := sam.GetReferenceID(samHeader, reference)
	if err != nil {
		return 0, err
	}
	return id, nil
}
