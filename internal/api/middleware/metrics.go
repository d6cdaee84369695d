package middleware

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector counts requests for the stats endpoint and records them
// in prometheus.
type MetricsCollector struct {
	requestCount *atomic.Int64
	errorCount   *atomic.Int64

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetricsCollector creates a collector. Its prometheus metrics are
// registered on reg when reg is not nil.
func NewMetricsCollector(requestCount, errorCount *atomic.Int64, reg prometheus.Registerer) *MetricsCollector {
	mc := &MetricsCollector{
		requestCount: requestCount,
		errorCount:   errorCount,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bdi",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bdi",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	if reg != nil {
		reg.MustRegister(mc.requests, mc.duration)
	}
	return mc
}

// Middleware returns middleware that counts requests and errors.
func (mc *MetricsCollector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mc.requestCount.Add(1)
		start := time.Now()

		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)

		// 4xx and 5xx
		if rw.statusCode >= 400 {
			mc.errorCount.Add(1)
		}
		route := routePattern(r)
		mc.requests.WithLabelValues(route, r.Method, strconv.Itoa(rw.statusCode)).Inc()
		mc.duration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
