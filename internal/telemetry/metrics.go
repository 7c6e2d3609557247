// Package telemetry provides logging, metrics and tracing setup for the
// PropertyDesk API.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are
// served by the side-channel HTTP server started by main.go:
//
//	GET http://<host>:<PD_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// The endpoint is not part of the Gin router.
//
// # Label Cardinality
//
// HTTP metrics use c.FullPath() (route template such as /api/v1/conditions/:id)
// rather than the raw request URL so record ids never become label values.
package telemetry

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics, labelled by method, route template and status code.
//
// Example PromQL queries:
//   - Error rate (%):      sum(rate(http_requests_total{status=~"5.."}[5m])) / sum(rate(http_requests_total[5m])) * 100
//   - p99 latency/route:   histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// ResourceOperationsTotal counts lifecycle operations by resource kind,
// operation and outcome. outcome is "ok" or one of the error kinds
// (not_found, forbidden, no_valid_updates, invalid, internal).
//
// Example PromQL queries:
//   - Denials by resource:  sum by (resource) (rate(resource_operations_total{outcome="forbidden"}[1h]))
var ResourceOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "resource_operations_total",
		Help: "Total number of resource lifecycle operations, by resource, operation, and outcome.",
	},
	[]string{"resource", "operation", "outcome"},
)

// Cache metrics for the public property listing cache.
var (
	ListingCacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "listing_cache_hits_total",
			Help: "Total number of property listing requests served from cache.",
		},
	)

	ListingCacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "listing_cache_misses_total",
			Help: "Total number of property listing requests that missed the cache.",
		},
	)
)

// RateLimitRejectionsTotal counts requests rejected by the rate limiter, by backend.
var RateLimitRejectionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rate_limit_rejections_total",
		Help: "Total number of requests rejected by the rate limiter, by backend.",
	},
	[]string{"backend"},
)

// BackgroundPanicsTotal counts panics recovered by safego, by goroutine name.
var BackgroundPanicsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "background_panics_total",
		Help: "Total number of panics recovered in background goroutines.",
	},
	[]string{"goroutine"},
)

// InspectionRemindersSentTotal is incremented once per reminder email
// delivered by the inspection reminder job.
var InspectionRemindersSentTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "inspection_reminders_sent_total",
		Help: "Total number of inspection reminder emails successfully sent.",
	},
)

// DBOpenConnections tracks the number of open connections held by the pool.
// It is sampled every 30 seconds by StartDBStatsCollector.
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector samples sql.DB pool statistics every 30 seconds
// until ctx is cancelled or the database becomes unreachable.
func StartDBStatsCollector(ctx context.Context, db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := db.PingContext(ctx); err != nil {
					slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
					return
				}
				DBOpenConnections.Set(float64(db.Stats().OpenConnections))
			}
		}
	}()
}
