// Package obs holds the service's Prometheus metrics and the HTTP
// instrumentation middleware.
package obs

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	remoteCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remote_calls_total",
			Help: "Remote backend calls by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)

	cacheDegradedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_degraded_total",
			Help: "Cache writes that failed and were silently degraded.",
		},
		[]string{"collection"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

var initOnce sync.Once

// Init registers the metrics with the default registry. Safe to call more
// than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(remoteCallsTotal, cacheDegradedTotal,
			httpRequestsTotal, httpRequestDuration)
	})
}

// Handler serves the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RemoteCall records the outcome of one remote backend call.
func RemoteCall(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	remoteCallsTotal.WithLabelValues(op, outcome).Inc()
}

// CacheDegraded records a swallowed cache-write failure.
func CacheDegraded(collection string) {
	cacheDegradedTotal.WithLabelValues(collection).Inc()
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Instrument wraps an HTTP handler with request count and latency metrics.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		status := strconv.Itoa(sw.code)
		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(time.Since(start).Seconds())
	})
}
