package httpapi

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ga4gh/htsget-core/internal/httpserr"
	"github.com/ga4gh/htsget-core/internal/storage"
	"github.com/ga4gh/htsget-core/internal/storage/crypt4gh"
)

// newCrypt4GHBodyHandler serves the ciphertext body bytes internal/resolver's
// resolveCrypt4GH addressed via backend.BodyURL: the client fetches this
// alongside the inline rewrapped header and concatenates both to reconstruct
// a file it can decrypt with its own private key.
func newCrypt4GHBodyHandler(backend *crypt4gh.Backend) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Param("key")
		if key == "" {
			httpserr.Write(c.Writer, httpserr.WrapInvalidInput("parsing crypt4gh body request", errMissingID))
			return
		}

		r, err := backend.Get(c.Request.Context(), storage.Object{Key: key}, 0, -1)
		if err != nil {
			httpserr.Write(c.Writer, wrapOpenErr(err))
			return
		}
		defer r.Close()

		c.Header("Content-Type", "application/octet-stream")
		c.Status(http.StatusOK)
		if _, err := io.Copy(c.Writer, r); err != nil {
			httpserr.Write(c.Writer, httpserr.WrapIoError("writing crypt4gh body response", err))
			return
		}
	}
}
