package metrics

import (
	"fmt"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Session pool metrics
	PoolSessionsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "odoo_pool_sessions_idle",
		Help: "The current number of idle sessions retained by the pool.",
	})
	PoolSessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "odoo_pool_sessions_active",
		Help: "The current number of sessions checked out of the pool.",
	})
	PoolSessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "odoo_pool_sessions_created_total",
		Help: "The total number of sessions created via upstream authentication.",
	})
	PoolSessionsReused = promauto.NewCounter(prometheus.CounterOpts{
		Name: "odoo_pool_sessions_reused_total",
		Help: "The total number of pooled sessions handed out again.",
	})

	// Reload metrics
	CacheReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_reloads_total",
		Help: "The total number of cache reloads by outcome.",
	}, []string{"outcome"})
	CacheReloadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_reload_duration_seconds",
		Help:    "Duration of full cache reloads (fetch, resolve, write).",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	// Read-path metrics
	CacheFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_read_fallbacks_total",
		Help: "The total number of remote reads that fell back to the local store.",
	}, []string{"collection"})

	// Resolver metrics
	ResolutionAnomalies = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_resolution_anomalies_total",
		Help: "The total number of attribute values dropped during resolution.",
	}, []string{"kind"})

	// Broker metrics
	BrokerEventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "broker_events_published_total",
		Help: "The total number of reload events published to the message broker.",
	}, []string{"broker_type"})
	BrokerPublishRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "broker_publish_retries_total",
		Help: "The total number of retries when publishing to the message broker.",
	}, []string{"broker_type"})
)

// StartServer starts the HTTP server for Prometheus metrics.
func StartServer(port int, path string) {
	http.Handle(path, promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	log.Printf("Starting metrics server on %s%s", addr, path)

	go func() {
		if err := http.ListenAndServe(addr, nil); err != nil {
			log.Fatalf("Failed to start metrics server: %v", err)
		}
	}()
}
