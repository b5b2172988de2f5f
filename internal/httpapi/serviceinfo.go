package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleServiceInfo reports the GA4GH service-info document for dataType
// ("reads" or "variants"), per GET /{type}/service-info.
func (s *server) handleServiceInfo(dataType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		formats, ok := s.cfg.ServiceInfo.SupportedTypes[dataType]
		if !ok {
			formats = defaultFormatsFor(dataType)
		}

		htsget := gin.H{
			"datatype":                 dataType,
			"formats":                  formats,
			"fieldsParameterEffective": false,
			"tagsParameterEffective":   false,
		}
		if s.cfg.ServiceInfo.Crypt4GHPublicKey != "" {
			htsget["crypt4GHPublicKey"] = s.cfg.ServiceInfo.Crypt4GHPublicKey
		}

		c.JSON(http.StatusOK, gin.H{
			"id":      s.cfg.ServiceInfo.ID,
			"name":    s.cfg.ServiceInfo.Name,
			"version": s.cfg.ServiceInfo.Version,
			"organization": gin.H{
				"name": s.cfg.ServiceInfo.Organization.Name,
				"url":  s.cfg.ServiceInfo.Organization.URL,
			},
			"type": gin.H{
				"group":    "org.ga4gh",
				"artifact": "htsget",
				"version":  "1.3.0",
			},
			"htsget": htsget,
		})
	}
}

func defaultFormatsFor(dataType string) []string {
	if dataType == "variants" {
		return []string{"VCF", "BCF"}
	}
	return []string{"BAM", "CRAM"}
}
