package header

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ga4gh/htsget-core/internal/bgzf"
	"github.com/ga4gh/htsget-core/internal/binary"
)

const (
	bcfMagic = "BCF\x02\x02"
)

// ReadBCF reads the contig table from a BCF file's VCF-text header block.
// Contigs are returned in reference_id order: a contig's ID: explicit IDX=
// field (BCF lets contigs declare their own index, out of header order)
// takes precedence over its position among ##contig lines.
func ReadBCF(bcf io.Reader) ([]Reference, error) {
	gzr, err := gzip.NewReader(bcf)
	if err != nil {
		return nil, fmt.Errorf("initializing gzip reader: %v", err)
	}
	defer gzr.Close()

	return readBCFReferences(gzr)
}

// BCFHeaderEnd reads a BCF file's contig table, like ReadBCF, and
// additionally returns header_end: the compressed byte offset of the BGZF
// block immediately after the header's last block.
func BCFHeaderEnd(bcf io.Reader) ([]Reference, uint64, error) {
	tracking := bgzf.NewTrackingReader(bcf)
	refs, err := readBCFReferences(tracking)
	if err != nil {
		return nil, 0, err
	}
	return refs, tracking.NextBlockOffset(), nil
}

func readBCFReferences(r io.Reader) ([]Reference, error) {
	if err := binary.ExpectBytes(r, []byte(bcfMagic)); err != nil {
		return nil, fmt.Errorf("checking magic: %v", err)
	}

	var length uint32
	if err := binary.Read(r, &length); err != nil {
		return nil, fmt.Errorf("reading header length: %v", err)
	}

	var refs []Reference
	seq := 0
	scanner := bufio.NewScanner(io.LimitReader(r, int64(length)))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "##contig") {
			continue
		}

		ref := Reference{Name: contigField(line, "ID")}
		if ln := contigField(line, "length"); ln != "" {
			if n, err := strconv.ParseUint(ln, 10, 32); err == nil {
				ref.Length = uint32(n)
			}
		}

		idx := seq
		if explicit, err := getIdx(line); err != nil {
			return nil, fmt.Errorf("parsing IDX: %v", err)
		} else if explicit > -1 {
			idx = explicit
		}
		seq++

		for idx >= len(refs) {
			refs = append(refs, Reference{})
		}
		refs[idx] = ref
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning header: %v", err)
	}
	return refs, nil
}

// ResolveBCF returns the reference_id of reference in a BCF file's contig
// table.
func ResolveBCF(bcf io.Reader, reference string) (int32, error) {
	refs, err := ReadBCF(bcf)
	if err != nil {
		return 0, err
	}
	return ResolveID(refs, reference)
}

func contigField(input, name string) string {
	field := fmt.Sprintf("%s=", name)
	for {
		start := strings.Index(input, field)
		if start == -1 {
			return ""
		}
		if start > 0 && !isDelimiter(input[start-1]) {
			input = input[start+len(field):]
			continue
		}
		input = input[start+len(field):]
		if end := strings.IndexAny(input, ",>"); end > 0 {
			return input[:end]
		}
		return input
	}
}

func isDelimiter(chr byte) bool {
	return chr == ',' || chr == '<'
}

func getIdx(contig string) (int, error) {
	idx := contigField(contig, "IDX")
	if idx == "" {
		return -1, nil
	}
	return strconv.Atoi(idx)
}
