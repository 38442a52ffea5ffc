// Package tmmetrics exposes Prometheus metrics for the textmill service.
package tmmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OutputsCreatedTotal counts stored generation outputs by owner kind.
	OutputsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "textmill",
		Name:      "outputs_created_total",
		Help:      "Total generation outputs stored, by owner kind.",
	}, []string{"owner_kind"})

	// AccessDecisionsTotal counts access decisions by tier served.
	AccessDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "textmill",
		Name:      "access_decisions_total",
		Help:      "Access decisions by tier served (full/preview/denied).",
	}, []string{"tier"})

	// WebhookRequestsTotal counts Stripe webhook requests by event type and status.
	WebhookRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "textmill",
		Subsystem: "billing",
		Name:      "webhook_requests_total",
		Help:      "Total Stripe webhook requests by event type and HTTP status.",
	}, []string{"event_type", "status"})

	// WebhookDuration tracks Stripe webhook processing latency.
	WebhookDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "textmill",
		Subsystem: "billing",
		Name:      "webhook_duration_seconds",
		Help:      "Stripe webhook processing duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"event_type"})

	// SessionMigrationsTotal counts outputs claimed during login/registration.
	SessionMigrationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "textmill",
		Name:      "session_migrations_total",
		Help:      "Total anonymous outputs migrated to user accounts.",
	})
)
