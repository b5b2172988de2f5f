// Package cram provides support for parsing CRAM files.
package cram

import (
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
)

type fileDefinition struct {
	Magic        uint32
	MajorVersion uint8
	MinorVersion uint8
	ID           [20]byte
}

type blockHeader struct {
	Method      byte
	ContentType byte
	ContentID   int32
	Length      int32
	RawLength   int32
}

const (
	// Magic number for identifying CRAM files.
	magic = 0x4d415243
)

// OpenSAMHeader consumes a CRAM file definition, its first container's
// header, and that container's header block, returning a reader positioned
// at the start of the embedded SAM header text (@HD/@SQ lines and all),
// limited to exactly that text's length, and headerEnd: the byte offset
// where the first (header) container ends and the first data container
// begins. r need only cover the file definition through the header block;
// it does not need to extend to the first data container.
func OpenSAMHeader(r io.Reader) (samHeader io.Reader, headerEnd uint64, err error) {
	counting := &countingReader{r: r}

	var cram fileDefinition
	if err := read(counting, &cram); err != nil {
		return nil, 0, fmt.Errorf("reading file definition: %v", err)
	}
	if cram.Magic != magic {
		return nil, 0, fmt.Errorf("invalid magic value, got: %08x, want: %08x", cram.Magic, magic)
	}

	containerLength, err := cram.skipContainerHeader(counting)
	if err != nil {
		return nil, 0, fmt.Errorf("reading container header: %v", err)
	}
	headerEnd = counting.n + uint64(containerLength)

	bh, err := cram.readblockHeader(counting)
	if err != nil {
		return nil, 0, fmt.Errorf("reading block header: %v", err)
	}

	var body io.Reader = counting
	if bh.Method == 1 {
		gz, err := gzip.NewReader(counting)
		if err != nil {
			return nil, 0, fmt.Errorf("reading gzipped header: %v", err)
		}

		// Without this, the gzip reader may read past the end of the header archive.
		gz.Multistream(false)
		body = gz
	}

	var limit int32
	if err := read(body, &limit); err != nil {
		return nil, 0, fmt.Errorf("reading header length: %v", err)
	}
	return io.LimitReader(body, int64(limit)), headerEnd, nil
}

// countingReader wraps an io.Reader, tracking the cumulative number of bytes
// it has returned, so OpenSAMHeader can compute the header container's end
// offset from its length field without buffering the whole container.
type countingReader struct {
	r io.Reader
	n uint64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += uint64(n)
	return n, err
}

// skipContainerHeader reads past a container header, returning the
// container's content length (the number of bytes, starting immediately
// after the container header, occupied by its blocks).
func (cram *fileDefinition) skipContainerHeader(r io.Reader) (int32, error) {
	var length int32
	if err := read(r, &length); err != nil {
		return 0, fmt.Errorf("reading length: %v", err)
	}

	var skip int32
	for i := 0; i < 7; i++ {
		if err := readITF8(r, &skip); err != nil {
			return 0, fmt.Errorf("skipping header field: %v", err)
		}
	}

	var landmarkCount int32
	if err := readITF8(r, &landmarkCount); err != nil {
		return 0, fmt.Errorf("skipping landmark count: %v", err)
	}
	for i := 0; i < int(landmarkCount); i++ {
		if err := readITF8(r, &skip); err != nil {
			return 0, fmt.Errorf("skipping landmark %d: %v", i, err)
		}
	}

	if cram.MajorVersion >= 3 {
		if err := read(r, &skip); err != nil {
			return 0, fmt.Errorf("skipping CRC: %v", err)
		}
	}

	return length, nil
}

func (cram *fileDefinition) readblockHeader(r io.Reader) (*blockHeader, error) {
	var block blockHeader
	if err := read(r, &block.Method); err != nil {
		return nil, fmt.Errorf("reading method: %v", err)
	}
	if err := read(r, &block.ContentType); err != nil {
		return nil, fmt.Errorf("reading content type: %v", err)
	}

	if err := readITF8(r, &block.ContentID); err != nil {
		return nil, fmt.Errorf("reading content ID: %v", err)
	}
	if err := readITF8(r, &block.Length); err != nil {
		return nil, fmt.Errorf("reading length: %v", err)
	}
	if err := readITF8(r, &block.RawLength); err != nil {
		return nil, fmt.Errorf("reading raw length: %v", err)
	}

	return &block, nil
}

func readITF8(r io.Reader, i *int32) error {
	bytes := make([]byte, 1, 5)
	if _, err := io.ReadFull(r, bytes); err != nil {
		return fmt.Errorf("reading first byte: %v", err)
	}

	bytes = bytes[:countLeadingOnes(bytes[0])+1]
	if _, err := io.ReadFull(r, bytes[1:]); err != nil {
		return fmt.Errorf("reading remaining bytes: %v", err)
	}

	switch n := len(bytes); n {
	case 1:
		*i = int32(bytes[0])
	case 2:
		*i = int32(uint32(bytes[0]&0x7f)<<8 | uint32(bytes[1]))
	case 3:
		*i = int32(uint32(bytes[0]&0x3f)<<16 | uint32(bytes[1])<<8 | uint32(bytes[2]))
	case 4:
		*i = int32(uint32(bytes[0]&0x1f)<<24 | uint32(bytes[1])<<16 | uint32(bytes[2])<<8 | uint32(bytes[3]))
	case 5:
		*i = int32(uint32(bytes[0]&0x0f)<<28 | uint32(bytes[1])<<20 | uint32(bytes[2])<<12 | uint32(bytes[3])<<4 | uint32(bytes[4]&0x0f))
	default:
		panic(fmt.Sprintf("invalid ITF8 length: %d", n))
	}

	return nil
}

func countLeadingOnes(b byte) int {
	for i := 0; i < 4; i++ {
		if b&0x80 == 0 {
			return i
		}
		b <<= 1
	}
	return 4
}

func read(r io.Reader, v interface{}) error {
	return binary.Read(r, binary.LittleEndian, v)
}
