// Package sam provides support for parsing the textual SAM header shared by
// BAM and CRAM.
package sam

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

var tagRe = regexp.MustCompile(`\b(SN|LN|AN):(\S+)\b`)

// Reference names one @SQ line of a SAM header: its primary name, any
// alternate names, and its length in bases (0 if the LN: tag was absent or
// unparsable).
type Reference struct {
	Name      string
	Length    uint32
	Alternate []string
}

// GetReferences reads every @SQ line from the SAM header in r and returns the
// references in header order.
func GetReferences(r io.Reader) ([]Reference, error) {
	var refs []Reference

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "@SQ") {
			continue
		}

		var ref Reference
		for _, tag := range tagRe.FindAllStringSubmatch(line, -1) {
			switch tag[1] {
			case "SN":
				ref.Name = tag[2]
			case "LN":
				if n, err := strconv.ParseUint(tag[2], 10, 32); err == nil {
					ref.Length = uint32(n)
				}
			case "AN":
				ref.Alternate = strings.Split(tag[2], ",")
			}
		}
		refs = append(refs, ref)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading header: %v", err)
	}
	return refs, nil
}

// GetReferenceID returns the ID (header order, 0-based) of the named
// reference, matching either its primary or an alternate name.
func GetReferenceID(r io.Reader, reference string) (int32, error) {
	refs, err := GetReferences(r)
	if err != nil {
		return 0, err
	}
	for i, ref := range refs {
		if ref.Name == reference {
			return int32(i), nil
		}
		for _, alt := range ref.Alternate {
			if alt == reference {
				return int32(i), nil
			}
		}
	}
	return 0, fmt.Errorf("reference %q not found", reference)
}
