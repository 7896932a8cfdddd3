package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Billing-domain collectors, registered on the default registry so they are
// exported by the same listener as the HTTP metrics.
var (
	SubscriptionCreations = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "billing",
		Name:      "subscription_creations_total",
		Help:      "Subscription creation attempts partitioned by outcome.",
	}, []string{"outcome"})

	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "billing",
		Name:      "webhook_events_total",
		Help:      "Gateway webhook deliveries partitioned by event type and outcome.",
	}, []string{"event_type", "outcome"})

	WebhookProcessingMs = promauto.NewHistogram(prometheus.HistogramOpts{
		Subsystem: "billing",
		Name:      "webhook_processing_ms",
		Help:      "Webhook processing latency in milliseconds.",
		Buckets:   HistogramBuckets,
	})

	PaymentVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "billing",
		Name:      "payment_verifications_total",
		Help:      "Client payment verification calls partitioned by result.",
	}, []string{"result"})
)
