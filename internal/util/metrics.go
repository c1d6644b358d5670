package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of draft orders created",
	})

	MutationsAcceptedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_mutations_accepted_total",
		Help: "Total number of accepted order mutations by action",
	}, []string{"action"})

	MutationsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_mutations_rejected_total",
		Help: "Total number of rejected order mutations by reason",
	}, []string{"reason"})

	StaleEditConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_stale_edit_conflicts_total",
		Help: "Total number of commits rejected by the version check",
	})

	OrdersCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_cancelled_total",
		Help: "Total number of cancelled orders",
	})

	PaymentsRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_recorded_total",
		Help: "Total number of payments recorded against orders",
	})

	TierQuotesServedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tier_quotes_served_total",
		Help: "Total number of tier quotes served",
	})

	UpsellSuggestionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tier_upsell_suggestions_total",
		Help: "Total number of quotes carrying a next-tier upsell hint",
	})

	StockWarningsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "line_item_stock_warnings_total",
		Help: "Total number of line items priced above available stock",
	})

	CommitLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_commit_latency_seconds",
		Help:    "Latency of edit session commits, lock to persisted",
		Buckets: prometheus.DefBuckets,
	})

	VariantCacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "variant_cache_requests_total",
		Help: "Variant catalog cache lookups by outcome",
	}, []string{"outcome"})

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
