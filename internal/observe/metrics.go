// Package observe holds the Prometheus metrics registry and the HTTP
// middleware that feeds it, plus access logging.
package observe

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pan1c/payload-analyzer/internal/lifecycle"
)

// Status classes used as metric labels. Coarse by design: raw status codes
// per route would multiply cardinality without helping the dashboards.
const (
	ClassSuccess     = "success"
	ClassClientError = "client_error"
	ClassServerError = "server_error"
)

// routeUnmatched is recorded for requests that hit no declared route, so
// arbitrary request paths can never grow the label set.
const routeUnmatched = "unmatched"

var (
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestErrors   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
)

var validLabelKey = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ParseMetricsLabels parses a comma-separated list of key=value pairs into
// Prometheus labels. Values support ${VAR} / $VAR environment variable
// expansion. Label values may not contain commas. Returns nil for an empty
// string.
func ParseMetricsLabels(s string) (prometheus.Labels, error) {
	s = os.Expand(s, os.Getenv)
	if s == "" {
		return nil, nil
	}
	labels := prometheus.Labels{}
	for _, pair := range strings.Split(s, ",") {
		idx := strings.IndexByte(pair, '=')
		if idx < 0 {
			return nil, fmt.Errorf("invalid label %q: expected key=value", pair)
		}
		k, v := pair[:idx], pair[idx+1:]
		if !validLabelKey.MatchString(k) {
			return nil, fmt.Errorf("invalid label key %q: must match [a-zA-Z_][a-zA-Z0-9_]*", k)
		}
		labels[k] = v
	}
	return labels, nil
}

var initMetricsOnce sync.Once

// InitMetrics registers all Prometheus metrics with the given constant
// labels, and a gauge reflecting the in-flight request counter. Must be
// called before the HTTP server starts. Safe to call multiple times; only
// the first call registers.
func InitMetrics(constLabels prometheus.Labels, inflight *lifecycle.InFlight) {
	initMetricsOnce.Do(func() {
		initMetricsInner(constLabels, inflight)
	})
}

func initMetricsInner(constLabels prometheus.Labels, inflight *lifecycle.InFlight) {
	reg := prometheus.WrapRegistererWith(constLabels, prometheus.DefaultRegisterer)
	f := promauto.With(reg)

	httpRequestsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payload_analyzer_request_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status_class"},
	)

	httpRequestErrors = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payload_analyzer_request_errors_total",
			Help: "Total HTTP error responses (status >= 400)",
		},
		[]string{"route", "method", "status_class"},
	)

	httpRequestDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payload_analyzer_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	f.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "payload_analyzer_inflight_requests",
			Help: "Number of requests currently being processed",
		},
		func() float64 { return float64(inflight.Count()) },
	)
}

// ClassifyStatus maps an HTTP status code to its status class.
func ClassifyStatus(status int) string {
	switch {
	case status >= 500:
		return ClassServerError
	case status >= 400:
		return ClassClientError
	default:
		return ClassSuccess
	}
}

// Record adds one observation for the given route/method/status outcome.
// It is a pure side effect: if metrics were never initialized it degrades
// to a no-op rather than failing the caller's request.
func Record(route, method string, status int, elapsed time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	class := ClassifyStatus(status)
	httpRequestsTotal.WithLabelValues(route, method, class).Inc()
	if status >= 400 {
		httpRequestErrors.WithLabelValues(route, method, class).Inc()
	}
	httpRequestDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// MetricsMiddleware wraps every request: it tracks the in-flight count and
// records the outcome regardless of which handler ran or how it failed.
// Every route must pass through it; mount it before any route handlers.
func MetricsMiddleware(inflight *lifecycle.InFlight) gin.HandlerFunc {
	return func(c *gin.Context) {
		inflight.Begin()
		start := time.Now()
		defer func() {
			// The decrement and the metric observation resolve this
			// request's contribution before the drain wait can see zero.
			Record(routeLabel(c), c.Request.Method, c.Writer.Status(), time.Since(start))
			inflight.End()
		}()
		c.Next()
	}
}

// routeLabel returns the declared route template, never the raw URL path.
func routeLabel(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return routeUnmatched
}
