// Package header resolves a query's referenceName against a data file's
// header, producing the reference-name table that Region.ReferenceID indexes
// into.  Each format's header lives in a different envelope (BAM's binary
// SAM-header-in-BGZF, CRAM's own container header, BCF's length-prefixed VCF
// header block, VCF.gz's ##contig meta-lines) so each gets its own reader in
// this package, alongside the shared Reference shape and the "name not
// found" error all four report uniformly.
package header

import "fmt"

// Reference names one entry of a data file's reference table, in the same
// order the file's companion index assigns reference_id values.
type Reference struct {
	Name   string
	Length uint32
}

// ErrReferenceNotFound is returned when a queried referenceName does not
// appear in the data file's reference table.  This is distinct from a
// reference being present but empty in the index (internal/resolver treats
// that as a valid, empty-body response rather than an error).
type ErrReferenceNotFound struct {
	Name string
}

func (e *ErrReferenceNotFound) Error() string {
	return fmt.Sprintf("reference %q not found", e.Name)
}

// ResolveID returns the index of the first Reference matching name.
func ResolveID(refs []Reference, name string) (int32, error) {
	for i, ref := range refs {
		if ref.Name == name {
			return int32(i), nil
		}
	}
	return 0, &ErrReferenceNotFound{Name: name}
}
