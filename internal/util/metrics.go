package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CartMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_total",
		Help: "Total number of cart mutations issued",
	}, []string{"op"})

	CartRollbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_rollbacks_total",
		Help: "Total number of optimistic cart mutations rolled back",
	}, []string{"reason"})

	WishlistMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wishlist_mutations_total",
		Help: "Total number of wishlist mutations issued",
	}, []string{"op"})

	WishlistRollbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wishlist_rollbacks_total",
		Help: "Total number of optimistic wishlist mutations rolled back",
	}, []string{"reason"})

	RefreshFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "refresh_failures_total",
		Help: "Total number of failed authoritative refreshes",
	}, []string{"engine"})

	StaleResultsDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stale_results_discarded_total",
		Help: "Total number of in-flight results discarded after an identity change",
	})

	RemoteRequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "remote_request_latency_seconds",
		Help:    "Latency of store backend requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	SessionsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessions_created_total",
		Help: "Total number of client sessions created",
	})

	SessionsExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sessions_expired_total",
		Help: "Total number of idle client sessions expired",
	})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "active_sessions",
		Help: "Number of client sessions currently held in memory",
	})

	SessionLoginsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "session_logins_total",
		Help: "Total number of successful logins",
	})

	SessionLogoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "session_logouts_total",
		Help: "Total number of logouts",
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
