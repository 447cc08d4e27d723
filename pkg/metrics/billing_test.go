package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestBillingMetricsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBillingMetrics(reg)

	m.IncPurchase("upgrade", "success")
	m.IncPurchase("upgrade", "success")
	m.IncWebhookEvent("subscription.updated", "applied")
	m.ObserveGatewayLatency("create_payment_intent", 120*time.Millisecond)

	if got := testutil.ToFloat64(m.purchases.WithLabelValues("upgrade", "success")); got != 2 {
		t.Fatalf("expected 2 purchases, got %v", got)
	}
	if got := testutil.ToFloat64(m.webhookEvents.WithLabelValues("subscription.updated", "applied")); got != 1 {
		t.Fatalf("expected 1 webhook event, got %v", got)
	}
}

func TestBillingMetricsNilSafe(t *testing.T) {
	var m *BillingMetrics
	m.IncPurchase("new", "success")
	m.IncWebhookEvent("", "")
	m.ObserveGatewayLatency("", 0)

	empty := NewBillingMetrics(nil)
	empty.IncPurchase("new", "success")
}
