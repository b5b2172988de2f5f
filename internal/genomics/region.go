// Package genomics contains definitions related to Genomic data.
package genomics

import "fmt"

// AnyReference is the sentinel ReferenceID used when a query does not name a
// specific reference sequence (a whole-file body request).
const AnyReference = int32(-1)

// AllMappedReads defines a Region that matches all mapped reads, regardless
// of which reference they align to.
var AllMappedReads = Region{ReferenceID: AnyReference}

// Unplaced defines a Region that matches only unmapped reads (a
// referenceName of "*" in the htsget query).
var Unplaced = Region{ReferenceID: AnyReference, Unmapped: true}

// Region defines a region of genomic interest.
type Region struct {
	// ReferenceID specifies the reference to match.  If it is negative, any
	// reference matches the region, unless Unmapped is set.
	ReferenceID int32
	// Start and End specify the open range (in base pairs) relative to the
	// reference.  If End is zero, it is treated as though it was set to the
	// last possible read position.
	Start, End uint32
	// Unmapped selects the index's unplaced/unmapped region instead of a
	// named or whole-file region.  Set when the query's referenceName is "*".
	Unmapped bool
}

func (region Region) String() string {
	if region.Unmapped {
		return "[region: unmapped]"
	}
	return fmt.Sprintf("[region:%d, start:%d, end:%d]", region.ReferenceID, region.Start, region.End)
}

// WholeFile reports whether the region places no constraint at all: no named
// reference, no interval, and not restricted to unplaced reads.
func (region Region) WholeFile() bool {
	return !region.Unmapped && region.ReferenceID == AnyReference && region.Start == 0 && region.End == 0
}
