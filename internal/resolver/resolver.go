// Package resolver implements the core htsget byte-range resolution state
// machine: Parse -> Resolve -> OpenStorage -> ReadHeader -> ReadIndex ->
// Chunks -> Refine -> Merge -> Assemble. It is format-agnostic at the
// package boundary (Resolve dispatches on Query.Format) but each format's
// header/index readers are format-specific, wired in from internal/header,
// internal/bai, internal/csi, internal/tabix, and internal/cram.
package resolver

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/ga4gh/htsget-core/internal/bai"
	"github.com/ga4gh/htsget-core/internal/bgzf"
	"github.com/ga4gh/htsget-core/internal/cram"
	"github.com/ga4gh/htsget-core/internal/csi"
	"github.com/ga4gh/htsget-core/internal/genomics"
	"github.com/ga4gh/htsget-core/internal/gzi"
	"github.com/ga4gh/htsget-core/internal/header"
	"github.com/ga4gh/htsget-core/internal/httpserr"
	"github.com/ga4gh/htsget-core/internal/interval"
	"github.com/ga4gh/htsget-core/internal/refine"
	"github.com/ga4gh/htsget-core/internal/storage"
	"github.com/ga4gh/htsget-core/internal/tabix"
	"github.com/ga4gh/htsget-core/internal/ticket"
)

// Format names one of the four data file formats the resolver understands.
type Format string

const (
	BAM  Format = "BAM"
	CRAM Format = "CRAM"
	VCF  Format = "VCF"
	BCF  Format = "BCF"
)

// Query is the resolver's entrypoint input: a fully parsed htsget request,
// independent of whatever HTTP framing the outer router used to build it.
// Fields/Tags/NoTags are carried for completeness but do not affect byte
// range resolution: the resolver never decodes records, so field and tag
// filtering is left to a client applying them to the decoded subset.
type Query struct {
	ID     string
	Format Format
	Class  ticket.Class // zero value selects the default (header+body) response

	ReferenceName string // "" selects the whole file; "*" selects unplaced/unmapped reads
	HasStart      bool
	Start         uint32
	HasEnd        bool
	End           uint32

	Fields         []string
	Tags           []string
	NoTags         []string
	RequestHeaders map[string]string
}

// crypt4ghBackend is the narrow capability internal/storage/crypt4gh.Backend
// offers beyond storage.Backend: a per-recipient rewrapped header and a URL
// for the ciphertext body, both already resolved against the request's
// client public key by the time Resolve sees the backend. Declared here
// rather than importing the concrete type, so Resolve depends only on the
// capability it actually uses.
type crypt4ghBackend interface {
	storage.Backend
	RewrappedHeader(ctx context.Context, object storage.Object) ([]byte, error)
	BodyURL(object storage.Object) (string, error)
}

// Resolve runs the full state machine for query against backend, returning
// the assembled ticket response.
func Resolve(ctx context.Context, backend storage.Backend, query Query) (*ticket.Response, error) {
	if err := validate(query); err != nil {
		return nil, err
	}

	if cb, ok := backend.(crypt4ghBackend); ok {
		return resolveCrypt4GH(ctx, cb, query)
	}

	switch query.Format {
	case BAM, VCF, BCF:
		return resolveBGZF(ctx, backend, query)
	case CRAM:
		return resolveCRAM(ctx, backend, query)
	default:
		return nil, httpserr.WrapUnsupportedFormat(fmt.Errorf("unknown format %q", query.Format))
	}
}

// dataExtension returns the on-disk suffix Resolve appends to query.ID for
// format, shared between the plaintext BGZF/CRAM paths and
// resolveCrypt4GH's encrypted-object naming.
func dataExtension(format Format) (string, bool) {
	if cfg, ok := bgzfFormats[format]; ok {
		return cfg.dataExt, true
	}
	if format == CRAM {
		return ".cram", true
	}
	return "", false
}

// resolveCrypt4GH serves a Crypt4GH-wrapped object. Because the server
// never decrypts the wrapped data itself (only the envelope header, to
// re-key it for the requesting client), it has no plaintext BAM/CRAM header
// or index to resolve a genomic region against, so it offers the object
// whole: one inline URL for the header rewrapped for the client's public
// key, and one URL for the ciphertext body, proxied back through the
// backend's own base URL. A region-restricted query is rejected rather
// than silently ignored. Unlike resolveBGZF/resolveCRAM's single-class
// omission rule, class is always present here: a Crypt4GH response always
// separates header from body (there is no merged byte range to collapse
// into), so omitting it would be misleading rather than simplifying.
func resolveCrypt4GH(ctx context.Context, backend crypt4ghBackend, query Query) (*ticket.Response, error) {
	ext, ok := dataExtension(query.Format)
	if !ok {
		return nil, httpserr.WrapUnsupportedFormat(fmt.Errorf("unknown format %q", query.Format))
	}
	object := storage.Object{Key: query.ID + ext + ".c4gh"}

	rewrapped, err := backend.RewrappedHeader(ctx, object)
	if err != nil {
		return nil, wrapStorageErr("rewrapping crypt4gh header", err)
	}

	urls := []ticket.URL{{URL: inlineHeaderURL(rewrapped), Class: ticket.ClassHeader}}
	if query.Class == ticket.ClassHeader {
		return &ticket.Response{Format: string(query.Format), URLs: urls}, nil
	}

	if query.ReferenceName != "" || query.HasStart || query.HasEnd {
		return nil, httpserr.WrapInvalidRange(fmt.Errorf("crypt4gh objects only support whole-file retrieval, not region queries"))
	}

	bodyURL, err := backend.BodyURL(object)
	if err != nil {
		return nil, httpserr.WrapInternal("resolving crypt4gh body url", err)
	}
	urls = append(urls, ticket.URL{URL: bodyURL, Class: ticket.ClassBody})

	return &ticket.Response{Format: string(query.Format), URLs: urls}, nil
}

func inlineHeaderURL(header []byte) string {
	return "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(header)
}

func validate(query Query) error {
	if query.ID == "" {
		return httpserr.WrapInvalidInput("validating query", fmt.Errorf("id is required"))
	}
	if query.ReferenceName == "" && (query.HasStart || query.HasEnd) {
		return httpserr.WrapInvalidInput("validating query", fmt.Errorf("start/end require a referenceName"))
	}
	if query.HasStart && query.HasEnd && query.Start > query.End {
		return httpserr.WrapInvalidInput("validating query", fmt.Errorf("end %d is before start %d", query.End, query.Start))
	}
	if query.Class != "" && query.Class != ticket.ClassHeader && query.Class != ticket.ClassBody {
		return httpserr.WrapInvalidInput("validating query", fmt.Errorf("unknown class %q", query.Class))
	}
	return nil
}

func (q Query) region() genomics.Region {
	region := genomics.AllMappedReads
	region.Start, region.End = q.Start, q.End
	if q.ReferenceName == "*" {
		return genomics.Unplaced
	}
	return region
}

type bgzfFormat struct {
	dataExt, indexExt string
	readHeader        func(io.Reader) ([]header.Reference, uint64, error)
	readIndex         func(io.Reader, genomics.Region) ([]*bgzf.Chunk, error)
}

var bgzfFormats = map[Format]bgzfFormat{
	BAM: {dataExt: ".bam", indexExt: ".bai", readHeader: header.BAMHeaderEnd, readIndex: bai.Read},
	BCF: {dataExt: ".bcf", indexExt: ".csi", readHeader: header.BCFHeaderEnd, readIndex: csi.Read},
	VCF: {dataExt: ".vcf.gz", indexExt: ".tbi", readHeader: header.VCFHeaderEnd, readIndex: tabix.Read},
}

func resolveBGZF(ctx context.Context, backend storage.Backend, query Query) (*ticket.Response, error) {
	cfg := bgzfFormats[query.Format]
	dataObject := storage.Object{Key: query.ID + cfg.dataExt}
	indexObject := storage.Object{Key: query.ID + cfg.indexExt}

	headerReader, err := backend.Get(ctx, dataObject, 0, -1)
	if err != nil {
		return nil, wrapStorageErr("opening data object", err)
	}
	refs, headerEnd, err := cfg.readHeader(headerReader)
	headerReader.Close()
	if err != nil {
		return nil, httpserr.WrapParseError("reading header", err)
	}

	size, err := backend.Size(ctx, dataObject)
	if err != nil {
		return nil, wrapStorageErr("sizing data object", err)
	}
	eof := size - bgzfEOFLength

	region, err := resolveRegion(query, refs)
	if err != nil {
		return nil, err
	}

	var positions []interval.BytesPosition
	if query.Class != ticket.ClassHeader {
		switch {
		case query.ReferenceName == "":
			positions = append(positions, interval.BytesPosition{
				Lo: headerEnd, Hi: uint64(eof) - 1, Class: interval.Body,
			})
		default:
			chunks, err := readBGZFIndex(ctx, backend, indexObject, cfg.readIndex, region)
			if err != nil {
				return nil, err
			}
			bodyPositions, err := bgzfChunksToPositions(ctx, backend, dataObject, chunks, headerEnd, uint64(eof))
			if err != nil {
				return nil, err
			}
			positions = append(positions, bodyPositions...)
		}
	}
	// The header range is always present: even a named-region response must
	// remain a syntactically valid file on its own, which class=header's
	// exclusive behavior above is the only exception to.
	positions = append([]interval.BytesPosition{{Lo: 0, Hi: headerEnd - 1, Class: interval.Header}}, positions...)

	merged := interval.Merge(positions, headerEnd)
	resp, err := ticket.Assemble(ctx, backend, dataObject, string(query.Format), merged, ticket.BGZFEOFMarker(), query.RequestHeaders)
	if err != nil {
		return nil, httpserr.WrapInternal("assembling ticket", err)
	}
	return resp, nil
}

// readBGZFIndex loads and parses indexObject's index data, skipping the
// inferred header chunk every index.Read-based reader prepends (entry 0):
// the resolver already has an authoritative header_end from the data file's
// own header, so the index's approximation is redundant here.
func readBGZFIndex(ctx context.Context, backend storage.Backend, indexObject storage.Object, readIndex func(io.Reader, genomics.Region) ([]*bgzf.Chunk, error), region genomics.Region) ([]*bgzf.Chunk, error) {
	r, err := backend.Get(ctx, indexObject, 0, -1)
	if err != nil {
		return nil, wrapStorageErr("opening index object", err)
	}
	defer r.Close()

	chunks, err := readIndex(r, region)
	if err != nil {
		return nil, httpserr.WrapParseError("reading index", err)
	}
	if len(chunks) == 0 {
		return nil, nil
	}
	return chunks[1:], nil
}

// bgzfChunksToPositions converts index chunks (virtual offsets) into closed
// compressed-byte intervals, using a .gzi sidecar when present to snap each
// chunk's end to an exact block boundary, and falling back to decoding the
// block at that offset (internal/bgzf.DecodeBlock, the same primitive
// internal/block's splicer uses) when no sidecar is available.
func bgzfChunksToPositions(ctx context.Context, backend storage.Backend, dataObject storage.Object, chunks []*bgzf.Chunk, headerEnd, eof uint64) ([]interval.BytesPosition, error) {
	entries, err := readGZISidecar(ctx, backend, dataObject)
	if err != nil {
		return nil, err
	}
	refined := refine.Chunks(chunks, entries)

	positions := make([]interval.BytesPosition, 0, len(refined))
	for _, c := range refined {
		lo := c.Start.BlockOffset()
		if lo < headerEnd {
			lo = headerEnd
		}
		hi, err := resolveChunkEnd(ctx, backend, dataObject, c.End, eof)
		if err != nil {
			return nil, err
		}
		if hi < lo {
			continue
		}
		positions = append(positions, interval.BytesPosition{Lo: lo, Hi: hi, Class: interval.Body})
	}
	return positions, nil
}

// readGZISidecar returns dataObject's .gzi sidecar entries, or nil if no
// sidecar exists for it.
func readGZISidecar(ctx context.Context, backend storage.Backend, dataObject storage.Object) ([]gzi.Entry, error) {
	r, err := backend.Get(ctx, storage.Object{Key: dataObject.Key + ".gzi"}, 0, -1)
	if errors.Is(err, storage.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapStorageErr("opening gzi sidecar", err)
	}
	defer r.Close()

	entries, err := gzi.Read(r)
	if err != nil {
		return nil, httpserr.WrapParseError("reading gzi sidecar", err)
	}
	return entries, nil
}

// resolveChunkEnd converts end, an inclusive virtual offset, into the
// inclusive byte offset of the last byte of the BGZF block it falls in.
func resolveChunkEnd(ctx context.Context, backend storage.Backend, dataObject storage.Object, end bgzf.Address, eof uint64) (uint64, error) {
	if end == bgzf.LastAddress {
		return eof - 1, nil
	}
	if end.DataOffset() == 0 {
		return end.BlockOffset() - 1, nil
	}

	r, err := backend.Get(ctx, dataObject, int64(end.BlockOffset()), bgzf.MaximumBlockSize)
	if err != nil {
		return 0, wrapStorageErr("reading block for refinement", err)
	}
	defer r.Close()

	_, blockLen, err := bgzf.DecodeBlock(r)
	if err != nil {
		return 0, httpserr.WrapParseError("decoding block for refinement", err)
	}
	return end.BlockOffset() + uint64(blockLen) - 1, nil
}

func resolveRegion(query Query, refs []header.Reference) (genomics.Region, error) {
	region := query.region()
	if query.ReferenceName == "" || query.ReferenceName == "*" {
		return region, nil
	}

	id, err := header.ResolveID(refs, query.ReferenceName)
	if err != nil {
		return region, httpserr.WrapNotFound("resolving reference name", err)
	}
	region.ReferenceID = id
	return region, nil
}

func resolveCRAM(ctx context.Context, backend storage.Backend, query Query) (*ticket.Response, error) {
	dataObject := storage.Object{Key: query.ID + ".cram"}
	indexObject := storage.Object{Key: query.ID + ".crai"}

	headerReader, err := backend.Get(ctx, dataObject, 0, -1)
	if err != nil {
		return nil, wrapStorageErr("opening data object", err)
	}
	refs, headerEnd, err := header.CRAMHeaderEnd(headerReader)
	headerReader.Close()
	if err != nil {
		return nil, httpserr.WrapParseError("reading header", err)
	}

	size, err := backend.Size(ctx, dataObject)
	if err != nil {
		return nil, wrapStorageErr("sizing data object", err)
	}

	region, err := resolveRegion(query, refs)
	if err != nil {
		return nil, err
	}

	var positions []interval.BytesPosition
	if query.Class != ticket.ClassHeader {
		switch {
		case query.ReferenceName == "":
			positions = append(positions, interval.BytesPosition{
				Lo: headerEnd, Hi: uint64(size) - 1, Class: interval.Body,
			})
		default:
			idx, err := readCRAIIndex(ctx, backend, indexObject)
			if err != nil {
				return nil, err
			}
			for _, c := range idx.GetChunksForRegion(region)[1:] {
				lo := c.Start
				if lo < headerEnd {
					lo = headerEnd
				}
				end := c.End
				if end == 0 || end > uint64(size) {
					end = uint64(size)
				}
				if end-1 < lo {
					continue
				}
				positions = append(positions, interval.BytesPosition{Lo: lo, Hi: end - 1, Class: interval.Body})
			}
		}
	}
	positions = append([]interval.BytesPosition{{Lo: 0, Hi: headerEnd - 1, Class: interval.Header}}, positions...)

	merged := interval.Merge(positions, headerEnd)
	resp, err := ticket.Assemble(ctx, backend, dataObject, string(query.Format), merged, "", query.RequestHeaders)
	if err != nil {
		return nil, httpserr.WrapInternal("assembling ticket", err)
	}
	return resp, nil
}

func readCRAIIndex(ctx context.Context, backend storage.Backend, indexObject storage.Object) (*cram.Index, error) {
	r, err := backend.Get(ctx, indexObject, 0, -1)
	if err != nil {
		return nil, wrapStorageErr("opening index object", err)
	}
	defer r.Close()

	idx, err := cram.ReadIndex(r)
	if err != nil {
		return nil, httpserr.WrapParseError("reading index", err)
	}
	return idx, nil
}

// bgzfEOFLength is the size, in bytes, of the canonical BGZF EOF marker
// every BGZF-backed data file ends with. Body ranges stop short of it since
// internal/ticket appends the same canonical bytes as an inline data URI
// instead of fetching them.
const bgzfEOFLength = 28

func wrapStorageErr(context string, err error) error {
	if errors.Is(err, storage.ErrNotExist) {
		return httpserr.WrapNotFound(context, err)
	}
	return httpserr.WrapIoError(context, err)
}
