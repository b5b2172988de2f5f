// Package metrics exposes htsget-server's request counters and resolution
// latency histogram via github.com/prometheus/client_golang, the direct
// instrumentation client for the client_model/common wire-format packages
// the teacher pool already pulls in transitively through
// leo-pony-model-runner. No example repo in the pool instruments itself
// with client_golang directly, so the metric names/labels below follow
// Prometheus's own naming conventions rather than a pack precedent (see
// DESIGN.md).
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "htsget_requests_total",
		Help: "Total number of htsget ticket requests handled, by data type and outcome.",
	}, []string{"datatype", "status"})

	resolveDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "htsget_resolve_duration_seconds",
		Help:    "Time spent resolving a ticket, from parsed query to assembled response.",
		Buckets: prometheus.DefBuckets,
	}, []string{"datatype"})
)

// ObserveRequest records one handled request's outcome and resolution
// latency in seconds.
func ObserveRequest(datatype string, status int, durationSeconds float64) {
	requestsTotal.WithLabelValues(datatype, statusClass(status)).Inc()
	resolveDuration.WithLabelValues(datatype).Observe(durationSeconds)
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	default:
		return "2xx"
	}
}

// Handler returns the gin handler serving /metrics in the Prometheus text
// exposition format.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
