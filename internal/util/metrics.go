package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProductsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "products_created_total",
		Help: "Total number of products created",
	})

	ProductsUpdatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "products_updated_total",
		Help: "Total number of products updated",
	})

	ProductsDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "products_deleted_total",
		Help: "Total number of products deleted",
	})

	ProductCompensationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "product_compensations_total",
		Help: "Total number of compensating actions taken after a failed product operation",
	}, []string{"operation", "result"})

	AssetOperationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "asset_operation_latency_seconds",
		Help:    "Latency of asset store operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	AssetFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "asset_failures_total",
		Help: "Total number of failed asset store operations",
	}, []string{"op"})

	InconsistentAssetsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inconsistent_assets_total",
		Help: "Total number of detected disagreements between product rows and stored assets",
	}, []string{"kind"})

	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders created",
	})

	OrdersRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_rejected_total",
		Help: "Total number of rejected order operations",
	}, []string{"reason"})

	OrderStatusTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_transitions_total",
		Help: "Total number of order status changes",
	}, []string{"from", "to"})

	OrdersDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_deleted_total",
		Help: "Total number of deleted orders",
	})

	PriceCacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "price_cache_lookups_total",
		Help: "Total number of price cache lookups by result",
	}, []string{"result"})

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
