package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CheckoutSessionsTotal counts checkout session creation outcomes.
	CheckoutSessionsTotal *prometheus.CounterVec
	// StripeWebhookTotal counts inbound Stripe webhook processing outcomes.
	StripeWebhookTotal *prometheus.CounterVec
	// OrderForwardTotal tracks supplier forwarding outcomes by delivery mode.
	OrderForwardTotal *prometheus.CounterVec
	// OrderForwardLatency records supplier forwarding latency in milliseconds.
	OrderForwardLatency *prometheus.HistogramVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CheckoutSessionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_sessions_total",
			Help:      "Count of checkout session creation outcomes.",
		}, []string{"result"})
		StripeWebhookTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stripe_webhook_total",
			Help:      "Count of processed Stripe webhooks by outcome.",
		}, []string{"result"})
		OrderForwardTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_forward_total",
			Help:      "Count of supplier forwarding outcomes.",
		}, []string{"mode", "result"})
		OrderForwardLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_forward_duration_ms",
			Help:      "Latency for supplier forwarding attempts in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"result"})

		registerCollector(reg, CheckoutSessionsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CheckoutSessionsTotal = v
			}
		})
		registerCollector(reg, StripeWebhookTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				StripeWebhookTotal = v
			}
		})
		registerCollector(reg, OrderForwardTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				OrderForwardTotal = v
			}
		})
		registerCollector(reg, OrderForwardLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				OrderForwardLatency = v
			}
		})
	})
}

func registerCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
