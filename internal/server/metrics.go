package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics holds the control plane's Prometheus collectors on a private
// registry so concurrent servers in tests do not collide.
type metrics struct {
	registry *prometheus.Registry

	webhookDeliveries *prometheus.CounterVec
	messagesRelayed   prometheus.Counter
	usageIngested     prometheus.Counter
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &metrics{
		registry: registry,
		webhookDeliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "clawdeck_webhook_deliveries_total",
			Help: "Webhook deliveries received, by outcome.",
		}, []string{"outcome"}),
		messagesRelayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "clawdeck_messages_relayed_total",
			Help: "Messages relayed to a provider and answered.",
		}),
		usageIngested: factory.NewCounter(prometheus.CounterOpts{
			Name: "clawdeck_usage_events_ingested_total",
			Help: "Usage events accepted by the ingestion endpoint.",
		}),
	}
}
