package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CheckoutAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_attempts_total",
		Help: "Total number of checkout initiation attempts",
	})

	CheckoutSuccessTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_success_total",
		Help: "Total number of successfully initiated checkouts",
	})

	CheckoutFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_failed_total",
		Help: "Total number of failed checkout initiations",
	}, []string{"reason"})

	PriceTamperingTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "price_tampering_detected_total",
		Help: "Total number of cart lines rejected for price tampering",
	})

	UnresolvableProductsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "unresolvable_products_total",
		Help: "Total number of cart lines referencing unknown products",
	})

	RateLimitRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_limit_rejected_total",
		Help: "Total number of requests rejected by the rate limiter",
	}, []string{"route"})

	PaymentsVerifiedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_verified_total",
		Help: "Total number of payment verification attempts",
	}, []string{"result"})

	GatewayOrderLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gateway_order_latency_seconds",
		Help:    "Latency of payment gateway order creation",
		Buckets: prometheus.DefBuckets,
	})

	CatalogLookupLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_lookup_latency_seconds",
		Help:    "Latency of batch catalog price lookups",
		Buckets: prometheus.DefBuckets,
	})

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
