package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BillingMetrics records purchase and webhook outcomes.
type BillingMetrics struct {
	purchases      *prometheus.CounterVec
	webhookEvents  *prometheus.CounterVec
	gatewayLatency *prometheus.HistogramVec
}

// NewBillingMetrics registers the billing metrics on the provided registerer.
func NewBillingMetrics(reg prometheus.Registerer) *BillingMetrics {
	if reg == nil {
		return &BillingMetrics{}
	}
	purchases := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_purchases_total",
		Help: "Purchase attempts by classification and outcome.",
	}, []string{"kind", "outcome"})
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_webhook_events_total",
		Help: "Inbound gateway webhook events by type and outcome.",
	}, []string{"type", "outcome"})
	gatewayLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "billing_gateway_request_seconds",
		Help:    "Latency of outbound payment gateway calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	reg.MustRegister(purchases, webhookEvents, gatewayLatency)
	return &BillingMetrics{
		purchases:      purchases,
		webhookEvents:  webhookEvents,
		gatewayLatency: gatewayLatency,
	}
}

// IncPurchase increments the purchase counter for the given classification.
func (b *BillingMetrics) IncPurchase(kind, outcome string) {
	if b == nil || b.purchases == nil {
		return
	}
	b.purchases.WithLabelValues(normalizeLabel(kind), normalizeLabel(outcome)).Inc()
}

// IncWebhookEvent increments the webhook counter for the given event type.
func (b *BillingMetrics) IncWebhookEvent(eventType, outcome string) {
	if b == nil || b.webhookEvents == nil {
		return
	}
	b.webhookEvents.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// ObserveGatewayLatency records the duration of an outbound gateway call.
func (b *BillingMetrics) ObserveGatewayLatency(operation string, duration time.Duration) {
	if b == nil || b.gatewayLatency == nil {
		return
	}
	b.gatewayLatency.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
