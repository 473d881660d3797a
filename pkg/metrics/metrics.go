package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records account operations by name (login|refresh|register|reset|oauth)
	// and result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authcore_auth_attempts_total",
			Help: "Total number of authentication and account operations",
		},
		[]string{"operation", "result"},
	)

	// ActiveSessions tracks refresh sessions issued minus those revoked or purged.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "authcore_active_sessions",
			Help: "Number of active refresh sessions",
		},
	)

	// ActionTokens counts single-use token events by purpose and event (issued|consumed|rejected).
	ActionTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authcore_action_tokens_total",
			Help: "Single-use action token lifecycle events",
		},
		[]string{"purpose", "event"},
	)

	// Notifications counts outbound notifications by kind and result (sent|failed|dropped|skipped).
	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authcore_notifications_total",
			Help: "Outbound notification deliveries",
		},
		[]string{"kind", "result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "authcore_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
