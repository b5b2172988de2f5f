package header

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ga4gh/htsget-core/internal/bgzf"
)

// ReadVCF reads the contig table from a bgzipped VCF file's text header
// (the ##contig meta-lines preceding the #CHROM column line).
func ReadVCF(vcf io.Reader) ([]Reference, error) {
	refs, _, err := readVCFReferences(bgzf.NewTrackingReader(vcf))
	return refs, err
}

// VCFHeaderEnd reads a bgzipped VCF file's contig table, like ReadVCF, and
// additionally returns header_end: the compressed byte offset of the BGZF
// block immediately after the header's last block. Unlike BAM and BCF, a
// VCF header has no length prefix, so the boundary is found by scanning text
// lines until the first one that isn't a "#" meta or column line.
func VCFHeaderEnd(vcf io.Reader) ([]Reference, uint64, error) {
	tracking := bgzf.NewTrackingReader(vcf)
	refs, _, err := readVCFReferences(tracking)
	if err != nil {
		return nil, 0, err
	}
	return refs, tracking.NextBlockOffset(), nil
}

// readVCFReferences scans r's VCF text line by line, collecting the contig
// table from ##contig meta-lines, and reports whether the #CHROM column
// line (and so the end of the header) was reached.
//
// Lines are read one byte at a time rather than through a buffered
// line-scanner: VCFHeaderEnd relies on r never being read past the exact
// byte the header ends on, so it can report header_end as the boundary of
// the BGZF block that byte falls in, not some later block a read-ahead
// buffer happened to pull in.
func readVCFReferences(r io.Reader) ([]Reference, bool, error) {
	var refs []Reference
	seq := 0

	for {
		line, err := readLine(r)
		if line == "" && err != nil {
			if err == io.EOF {
				return refs, false, nil
			}
			return nil, false, fmt.Errorf("reading header: %v", err)
		}

		if !strings.HasPrefix(line, "#") || strings.HasPrefix(line, "#CHROM") {
			return refs, true, nil
		}
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
			return nil, false, fmt.Errorf("parsing IDX: %v", err)
		} else if explicit > -1 {
			idx = explicit
		}
		seq++

		for idx >= len(refs) {
			refs = append(refs, Reference{})
		}
		refs[idx] = ref

		if err == io.EOF {
			return refs, false, nil
		}
	}
}

// readLine reads a single "\n"-terminated line from r one byte at a time,
// trimming any trailing "\r". The trailing newline is consumed but not
// included in the returned line. If r ends without a trailing newline, the
// final partial line is returned alongside io.EOF.
func readLine(r io.Reader) (string, error) {
	var line []byte
	var b [1]byte
	for {
		n, err := r.Read(b[:])
		if n > 0 {
			if b[0] == '\n' {
				return strings.TrimSuffix(string(line), "\r"), nil
			}
			line = append(line, b[0])
		}
		if err != nil {
			return strings.TrimSuffix(string(line), "\r"), err
		}
	}
}

// ResolveVCF returns the reference_id of reference in a bgzipped VCF file's
// contig table.
func ResolveVCF(vcf io.Reader, reference string) (int32, error) {
	refs, err := ReadVCF(vcf)
	if err != nil {
		return 0, err
	}
	return ResolveID(refs, reference)
}
