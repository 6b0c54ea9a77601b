package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	iamdRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "iamd_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	iamdRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "iamd_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	iamdPacketsServed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "iamd_packets_served_total",
		Help: "Total validated packets returned to readers.",
	})

	iamdDependencyChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "iamd_dependency_checks_total",
		Help: "Total dependency health probes by dependency and result.",
	}, []string{"dependency", "result"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		iamdRequestsTotal.WithLabelValues(method, path, status).Inc()
		iamdRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordPacketsRead counts packets returned by a read.
func RecordPacketsRead(n int) {
	iamdPacketsServed.Add(float64(n))
}

// RecordDependencyCheck counts one dependency probe result.
func RecordDependencyCheck(name string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	iamdDependencyChecks.WithLabelValues(name, result).Inc()
}
