// Package ticket assembles the final htsget JSON response from a merged set
// of interval.BytesPosition ranges: it resolves each range to a fetchable URL
// through a storage.Backend and appends the format's trailing EOF marker as
// an inline data URI. Grounded on api.go's serveReads, which built the same
// "urls" array (base64-encoded chunk query strings plus a literal
// eofMarkerDataURL constant) by hand; this package generalizes that to any
// storage.Backend and to the BAM/CRAM/VCF/BCF formats the BAM-only teacher
// never needed to distinguish.
package ticket

import (
	"context"
	"fmt"

	"github.com/ga4gh/htsget-core/internal/interval"
	"github.com/ga4gh/htsget-core/internal/storage"
)

// bgzfEOF is the 28-byte BGZF end-of-file marker, reproduced verbatim from
// api.go's eofMarkerDataURL constant.
const bgzfEOF = "data:;base64,H4sIBAAAAAAA/wYAQkMCABsAAwAAAAAAAAAAAA=="

// Class labels a URL's contribution to the reconstructed file.
type Class string

const (
	ClassHeader Class = "header"
	ClassBody   Class = "body"
)

// URL is one entry of the htsget "urls" array.
type URL struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Class   Class             `json:"class,omitempty"`
}

// Response is the payload nested under the wire envelope's "htsget" key.
type Response struct {
	Format string `json:"format"`
	URLs   []URL  `json:"urls"`
}

// Envelope is the top-level htsget success response body.
type Envelope struct {
	Htsget Response `json:"htsget"`
}

// ErrorBody is the top-level htsget error response body.
type ErrorBody struct {
	Htsget struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	} `json:"htsget"`
}

func classOf(c interval.Class) Class {
	switch c {
	case interval.Header:
		return ClassHeader
	default:
		return ClassBody
	}
}

// Assemble resolves positions (already merged by interval.Merge, in
// ascending file order) against backend into a Response for object, with a
// non-empty eofMarker appended inline as the final URL.
//
// Per-URL "class" is included only when the positions mix classes; a
// single-class response (the common case for most queries) omits it, per
// the htsget wire format's "class is present only on responses mixing
// classes" rule.
func Assemble(ctx context.Context, backend storage.Backend, object storage.Object, format string, positions []interval.BytesPosition, eofMarker string, requestHeaders map[string]string) (*Response, error) {
	mixed := classesMixed(positions)

	urls := make([]URL, 0, len(positions)+1)
	for _, pos := range positions {
		length := int64(pos.Hi-pos.Lo) + 1
		url, headers, err := backend.RangeURL(ctx, object, int64(pos.Lo), length)
		if err != nil {
			return nil, fmt.Errorf("resolving range [%d,%d]: %v", pos.Lo, pos.Hi, err)
		}

		merged := mergeHeaders(headers, requestHeaders)
		entry := URL{URL: url, Headers: merged}
		if mixed {
			entry.Class = classOf(pos.Class)
		}
		urls = append(urls, entry)
	}

	if eofMarker != "" {
		urls = append(urls, URL{URL: eofMarker})
	}

	return &Response{Format: format, URLs: urls}, nil
}

// BGZFEOFMarker returns the inline data URI for the 28-byte BGZF EOF block,
// the trailing marker every BAM/VCF.gz response must append.
func BGZFEOFMarker() string {
	return bgzfEOF
}

func classesMixed(positions []interval.BytesPosition) bool {
	if len(positions) == 0 {
		return false
	}
	first := positions[0].Class
	for _, p := range positions[1:] {
		if p.Class != first {
			return true
		}
	}
	return false
}

// mergeHeaders combines a backend-produced header set (e.g. a Range header
// for a direct object-store URL) with headers the original request carried
// and that the storage layer is configured to forward (e.g. Authorization
// for a remote-URL backend). Backend headers win on collision.
func mergeHeaders(backendHeaders, requestHeaders map[string]string) map[string]string {
	if len(backendHeaders) == 0 && len(requestHeaders) == 0 {
		return nil
	}
	merged := make(map[string]string, len(backendHeaders)+len(requestHeaders))
	for k, v := range requestHeaders {
		merged[k] = v
	}
	for k, v := range backendHeaders {
		merged[k] = v
	}
	return merged
}
