package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Webhook metrics
	WebhookReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_received_total",
			Help: "Total number of webhooks received",
		},
		[]string{"event_type", "status"},
	)

	WebhookProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_processed_total",
			Help: "Total number of webhook events applied to the store",
		},
		[]string{"event_type"},
	)

	WebhookDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_dropped_total",
			Help: "Total number of webhook events dropped for referencing unknown resources",
		},
		[]string{"event_type"},
	)

	// Billing metrics
	CheckoutSessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkout_sessions_created_total",
			Help: "Total number of checkout sessions created",
		},
	)

	PortalSessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "portal_sessions_created_total",
			Help: "Total number of billing portal sessions created",
		},
	)

	CustomersCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "billing_customers_created_total",
			Help: "Total number of billing customers created",
		},
	)

	// Cache metrics
	CatalogCacheHit = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_cache_hit_total",
			Help: "Total number of catalog cache hits",
		},
	)

	CatalogCacheMiss = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_cache_miss_total",
			Help: "Total number of catalog cache misses",
		},
	)

	// Database metrics
	DatabaseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)
