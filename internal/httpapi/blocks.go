package httpapi

import (
	"bytes"
	"encoding/base64"
	"encoding/gob"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ga4gh/htsget-core/internal/bgzf"
	"github.com/ga4gh/htsget-core/internal/block"
	"github.com/ga4gh/htsget-core/internal/httpserr"
	"github.com/ga4gh/htsget-core/internal/storage"
	"github.com/ga4gh/htsget-core/internal/storage/local"
	sourcelocal "github.com/ga4gh/htsget-core/sources/local"
)

// newBlockHandler serves the byte ranges a local.Backend.RangeURL addressed:
// it decodes the gob+base64 bgzf.Chunk query param RangeURL encoded and
// splices exactly those bytes out of the object through internal/block,
// reusing the teacher's file.NewBlockHandler request shape.
func newBlockHandler(backend *local.Backend) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Param("key")
		if key == "" {
			httpserr.Write(c.Writer, httpserr.WrapInvalidInput("parsing block request", errMissingID))
			return
		}

		var chunk bgzf.Chunk
		if err := decodeChunk(c.Query("chunk"), &chunk); err != nil {
			httpserr.Write(c.Writer, httpserr.WrapInvalidInput("decoding chunk", err))
			return
		}

		f, err := backend.OpenFile(storage.Object{Key: key})
		if err != nil {
			httpserr.Write(c.Writer, wrapOpenErr(err))
			return
		}
		defer f.Close()

		reader, err := block.ReadBlock(sourcelocal.NewFileRangeReader(f), chunk)
		if err != nil {
			httpserr.Write(c.Writer, httpserr.WrapParseError("splicing block", err))
			return
		}
		defer reader.Close()

		c.Header("Content-Type", "application/octet-stream")
		c.Status(http.StatusOK)
		if _, err := io.Copy(c.Writer, reader); err != nil {
			httpserr.Write(c.Writer, httpserr.WrapIoError("writing block response", err))
			return
		}
	}
}

func decodeChunk(rawQuery string, chunk *bgzf.Chunk) error {
	b, err := base64.URLEncoding.DecodeString(rawQuery)
	if err != nil {
		return err
	}
	return gob.NewDecoder(bytes.NewReader(b)).Decode(chunk)
}

func wrapOpenErr(err error) error {
	if err == storage.ErrNotExist {
		return httpserr.WrapNotFound("opening object", err)
	}
	return httpserr.WrapIoError("opening object", err)
}

