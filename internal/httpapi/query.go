package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ga4gh/htsget-core/internal/resolver"
	"github.com/ga4gh/htsget-core/internal/ticket"
)

// wireQuery is the shape of both the GET query string and the POST JSON
// body, per the htsget wire format: the same field set either way.
type wireQuery struct {
	Format        string   `json:"format"`
	Class         string   `json:"class"`
	ReferenceName string   `json:"referenceName"`
	Start         *uint32  `json:"start"`
	End           *uint32  `json:"end"`
	Fields        []string `json:"fields"`
	Tags          []string `json:"tags"`
	NoTags        []string `json:"notags"`
}

// forwardableRequestHeaders are the request headers propagated into a
// ticket's per-URL headers when the backend needs them to authorize a
// direct client fetch (e.g. a bearer token a remote backend re-forwards).
var forwardableRequestHeaders = []string{"Authorization"}

// parseQuery builds a resolver.Query from c, reading a JSON body for POST
// and the query string for GET, and defaultFormat when the caller omitted
// "format" (BAM for /reads, VCF for /variants).
func parseQuery(c *gin.Context, id string, defaultFormat resolver.Format) (resolver.Query, error) {
	var wire wireQuery

	if c.Request.Method == http.MethodPost {
		if err := json.NewDecoder(c.Request.Body).Decode(&wire); err != nil {
			return resolver.Query{}, fmt.Errorf("decoding request body: %v", err)
		}
	} else {
		wire.Format = c.Query("format")
		wire.Class = c.Query("class")
		wire.ReferenceName = c.Query("referenceName")
		if v := c.Query("start"); v != "" {
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return resolver.Query{}, fmt.Errorf("parsing start: %v", err)
			}
			u := uint32(n)
			wire.Start = &u
		}
		if v := c.Query("end"); v != "" {
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return resolver.Query{}, fmt.Errorf("parsing end: %v", err)
			}
			u := uint32(n)
			wire.End = &u
		}
		wire.Fields = splitCSV(c.Query("fields"))
		wire.Tags = splitCSV(c.Query("tags"))
		wire.NoTags = splitCSV(c.Query("notags"))
	}

	query := resolver.Query{
		ID:             id,
		Format:         defaultFormat,
		Class:          ticket.Class(strings.ToLower(wire.Class)),
		ReferenceName:  wire.ReferenceName,
		Fields:         wire.Fields,
		Tags:           wire.Tags,
		NoTags:         wire.NoTags,
		RequestHeaders: forwardedHeaders(c),
	}
	if wire.Format != "" {
		query.Format = resolver.Format(strings.ToUpper(wire.Format))
	}
	if wire.Start != nil {
		query.HasStart, query.Start = true, *wire.Start
	}
	if wire.End != nil {
		query.HasEnd, query.End = true, *wire.End
	}
	return query, nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func forwardedHeaders(c *gin.Context) map[string]string {
	headers := make(map[string]string)
	for _, name := range forwardableRequestHeaders {
		if v := c.GetHeader(name); v != "" {
			headers[name] = v
		}
	}
	if len(headers) == 0 {
		return nil
	}
	return headers
}
