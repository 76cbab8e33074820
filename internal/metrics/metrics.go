// Package metrics provides Prometheus metrics for the metadata service and
// its front-ends.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filemetadata_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filemetadata_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Backend lookup metrics
	lookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filemetadata_lookups_total",
			Help: "Total metadata lookups served, by kind and result code",
		},
		[]string{"kind", "code"},
	)

	lookupNodes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filemetadata_lookup_nodes",
			Help:    "Number of nodes in a lookup response",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		},
		[]string{"kind"},
	)

	// Client-side lookup metrics (view component)
	clientLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filemetadata_client_lookups_total",
			Help: "Total lookups dispatched by the view, by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	clientLookupDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filemetadata_client_lookup_duration_seconds",
			Help:    "Time from dispatch to completion of a view lookup",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	clientLookupsInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "filemetadata_client_lookups_in_flight",
			Help: "Lookups dispatched by the view and not yet completed",
		},
		[]string{"kind"},
	)

	// SSE metrics
	sseConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "filemetadata_sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	sseEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filemetadata_sse_events_total",
			Help: "Total SSE events published",
		},
		[]string{"type"},
	)

	rateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "filemetadata_rate_limit_hits_total",
			Help: "Total requests rejected by the rate limiter",
		},
	)

	// Auth metrics
	authAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filemetadata_auth_attempts_total",
			Help: "Total authentication attempts",
		},
		[]string{"result"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordLookup records a backend lookup. nodes is ignored for failed lookups.
func RecordLookup(kind, code string, nodes int) {
	lookupsTotal.WithLabelValues(kind, code).Inc()
	if code == "OK" {
		lookupNodes.WithLabelValues(kind).Observe(float64(nodes))
	}
}

// LookupDispatched marks a view lookup as in flight.
func LookupDispatched(kind string) {
	clientLookupsInFlight.WithLabelValues(kind).Inc()
}

// LookupCompleted records the outcome of a view lookup.
func LookupCompleted(kind string, success bool, duration time.Duration) {
	clientLookupsInFlight.WithLabelValues(kind).Dec()
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	clientLookupsTotal.WithLabelValues(kind, outcome).Inc()
	clientLookupDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// SetSSEConnectionsActive sets the number of active SSE connections.
func SetSSEConnectionsActive(count int64) {
	sseConnectionsActive.Set(float64(count))
}

// RecordSSEEvent records an SSE event publication.
func RecordSSEEvent(eventType string) {
	sseEventsTotal.WithLabelValues(eventType).Inc()
}

// RecordRateLimitHit records a request rejected by the rate limiter.
func RecordRateLimitHit() {
	rateLimitHits.Inc()
}

// RecordAuthAttempt records an authentication attempt.
func RecordAuthAttempt(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	authAttemptsTotal.WithLabelValues(result).Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware returns HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		RecordHTTPRequest(r.Method, r.URL.Path, rw.statusCode, time.Since(start))
	})
}
