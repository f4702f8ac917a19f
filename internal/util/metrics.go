package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_orders_placed_total",
		Help: "Total number of orders placed",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_orders_failed_total",
		Help: "Total number of order placements that failed, by error kind",
	}, []string{"reason"})

	OrderPlacementLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "storefront_order_placement_latency_seconds",
		Help:    "Latency of order placement including retries",
		Buckets: prometheus.DefBuckets,
	})

	IdempotentReplaysTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_idempotent_replays_total",
		Help: "Total number of order requests answered from an earlier result",
	})

	OrderStatusTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_order_status_transitions_total",
		Help: "Total number of order status changes, by new status",
	}, []string{"status"})

	CartMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_cart_mutations_total",
		Help: "Total number of cart mutations",
	}, []string{"op", "outcome"})

	ReviewsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_reviews_total",
		Help: "Total number of review submissions and deletions",
	}, []string{"op"})

	IdentityEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_identity_events_total",
		Help: "Total number of identity events handled",
	}, []string{"type", "outcome"})

	StoreRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_store_retries_total",
		Help: "Total number of retried store operations",
	}, []string{"op"})

	ImageOperationsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_image_operations_failed_total",
		Help: "Total number of failed image uploads and deletions",
	}, []string{"op"})

	EventsPublishFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_events_publish_failed_total",
		Help: "Total number of domain events that could not be published",
	}, []string{"type"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
