package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ga4gh/htsget-core/internal/auth"
	"github.com/ga4gh/htsget-core/internal/httpserr"
	"github.com/ga4gh/htsget-core/internal/resolver"
	"github.com/ga4gh/htsget-core/internal/ticket"
)

const claimsContextKey = "htsget.claims"

// authMiddleware enforces bearer-token verification when verifier is
// configured. A nil verifier leaves every request anonymous, matching the
// teacher's own auth-less deployments. Requests with a missing or invalid
// token are rejected before any resolver work happens.
func authMiddleware(verifier *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if verifier == nil {
			c.Next()
			return
		}
		claims, err := verifier.Verify(c.GetHeader("Authorization"))
		if err != nil {
			httpserr.Write(c.Writer, httpserr.WrapInvalidAuthentication("authenticating request", err))
			c.Abort()
			return
		}
		c.Set(claimsContextKey, claims)
		c.Next()
	}
}

func claimsFromContext(c *gin.Context) auth.Claims {
	v, ok := c.Get(claimsContextKey)
	if !ok {
		return nil
	}
	claims, _ := v.(auth.Claims)
	return claims
}

// allowedRegion names one genomic interval a token's claims permit access
// to. An empty ReferenceName, or "*", matches any reference.
type allowedRegion struct {
	ReferenceName string `json:"referenceName"`
	Start         uint32 `json:"start"`
	End           uint32 `json:"end"`
}

// htsgetRegionsClaim is the claim name carrying the caller's allowed
// regions, following the same htsget_ prefix convention htsget deployments
// use for protocol-specific private claims. Its absence means the caller's
// token carries no region restriction (every region is permitted).
const htsgetRegionsClaim = "htsget_regions"

// restrictQuery narrows query to the intersection of its requested region
// and the regions claims permits, per spec.md §7's "suppress errors" mode:
// a request for a disallowed region is trimmed rather than rejected. It
// reports whether any part of the requested region survived the
// restriction.
func restrictQuery(query resolver.Query, claims auth.Claims) (resolver.Query, bool) {
	regions, restricted := allowedRegionsFromClaims(claims)
	if !restricted {
		return query, true
	}

	for _, region := range regions {
		if !referenceNameMatches(region.ReferenceName, query.ReferenceName) {
			continue
		}
		start, end, ok := intersect(query, region)
		if !ok {
			continue
		}
		query.HasStart, query.Start = true, start
		query.HasEnd, query.End = end > 0, end
		return query, true
	}
	return query, false
}

func referenceNameMatches(allowed, requested string) bool {
	return allowed == "" || allowed == "*" || allowed == requested
}

func intersect(query resolver.Query, region allowedRegion) (uint32, uint32, bool) {
	start := region.Start
	if query.HasStart && query.Start > start {
		start = query.Start
	}
	end := region.End
	if query.HasEnd && (end == 0 || query.End < end) {
		end = query.End
	}
	if end != 0 && start >= end {
		return 0, 0, false
	}
	return start, end, true
}

func allowedRegionsFromClaims(claims auth.Claims) ([]allowedRegion, bool) {
	if claims == nil {
		return nil, false
	}
	raw, ok := claims[htsgetRegionsClaim]
	if !ok {
		return nil, false
	}
	entries, ok := raw.([]interface{})
	if !ok {
		return nil, false
	}

	regions := make([]allowedRegion, 0, len(entries))
	for _, entry := range entries {
		fields, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		region := allowedRegion{}
		if name, ok := fields["referenceName"].(string); ok {
			region.ReferenceName = name
		}
		region.Start = uint32AtKey(fields, "start")
		region.End = uint32AtKey(fields, "end")
		regions = append(regions, region)
	}
	return regions, true
}

func uint32AtKey(fields map[string]interface{}, key string) uint32 {
	n, ok := fields[key].(float64)
	if !ok || n < 0 {
		return 0
	}
	return uint32(n)
}

func writeForbiddenRegion(c *gin.Context, format resolver.Format) {
	c.Header("Content-Type", "application/json")
	c.JSON(http.StatusOK, gin.H{
		"htsget": gin.H{
			"format": string(format),
			"urls":   []ticket.URL{},
			"allowed": gin.H{
				"reason": "requested region is outside the bearer token's permitted regions",
			},
		},
	})
}
