package header

import (
	"compress/gzip"
	"fmt"
	"io"
	"io/ioutil"

	"github.com/ga4gh/htsget-core/internal/bgzf"
	"github.com/ga4gh/htsget-core/internal/binary"
)

const (
	bamMagic = "BAM\x01"

	// This is just to prevent arbitrarily long allocations due to malformed
	// data.  No reference name should be longer than this in practice.
	maximumNameLength = 1024
)

// ReadBAM reads the reference name table from a BAM file's header.  r need
// only cover the BGZF-decompressed header plus reference table; it does not
// need to extend to the first alignment record.
func ReadBAM(bam io.Reader) ([]Reference, error) {
	gz, err := gzip.NewReader(bam)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %v", err)
	}
	defer gz.Close()

	return readBAMReferences(gz)
}

// BAMHeaderEnd reads the reference name table from a BAM file's header,
// like ReadBAM, and additionally returns header_end: the compressed byte
// offset of the BGZF block immediately after the header's last block. bam
// must start at the BAM file's first byte (compressed offset 0).
func BAMHeaderEnd(bam io.Reader) ([]Reference, uint64, error) {
	tracking := bgzf.NewTrackingReader(bam)
	refs, err := readBAMReferences(tracking)
	if err != nil {
		return nil, 0, err
	}
	return refs, tracking.NextBlockOffset(), nil
}

func readBAMReferences(r io.Reader) ([]Reference, error) {
	if err := binary.ExpectBytes(r, []byte(bamMagic)); err != nil {
		return nil, fmt.Errorf("reading magic: %v", err)
	}

	var textLength int32
	if err := binary.Read(r, &textLength); err != nil {
		return nil, fmt.Errorf("reading SAM header length: %v", err)
	}
	if _, err := io.CopyN(ioutil.Discard, r, int64(textLength)); err != nil {
		return nil, fmt.Errorf("reading past SAM header: %v", err)
	}

	var count int32
	if err := binary.Read(r, &count); err != nil {
		return nil, fmt.Errorf("reading reference count: %v", err)
	}

	refs := make([]Reference, count)
	for i := int32(0); i < count; i++ {
		var nameLength int32
		if err := binary.Read(r, &nameLength); err != nil {
			return nil, fmt.Errorf("reading name length: %v", err)
		}
		// The name length includes a null terminating character.
		if nameLength < 1 || nameLength > maximumNameLength {
			return nil, fmt.Errorf("invalid name length (%d bytes)", nameLength)
		}
		name := make([]byte, nameLength)
		if _, err := io.ReadFull(r, name); err != nil {
			return nil, fmt.Errorf("reading name: %v", err)
		}

		var refLength int32
		if err := binary.Read(r, &refLength); err != nil {
			return nil, fmt.Errorf("reading reference length: %v", err)
		}

		refs[i] = Reference{Name: string(name[:nameLength-1]), Length: uint32(refLength)}
	}
	return refs, nil
}

// ResolveBAM returns the reference_id of reference in a BAM file's header.
func ResolveBAM(bam io.Reader, reference string) (int32, error) {
	refs, err := ReadBAM(bam)
	if err != nil {
		return 0, err
	}
	return ResolveID(refs, reference)
}
