package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// QuoteCalculationsTotal counts quote calculation outcomes.
	QuoteCalculationsTotal *prometheus.CounterVec
	// QuoteStageDuration records per-stage pipeline latency in milliseconds.
	QuoteStageDuration *prometheus.HistogramVec
	// QuoteEventsEmittedTotal counts quote.calculated emissions by outcome.
	QuoteEventsEmittedTotal *prometheus.CounterVec
	// WebhookDeliveriesTotal tracks webhook dispatch outcomes.
	WebhookDeliveriesTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers the quotation
// domain's Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		QuoteCalculationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_calculations_total",
			Help:      "Count of quote calculation outcomes.",
		}, []string{"result"})
		QuoteStageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quote_stage_duration_ms",
			Help:      "Latency of each pricing pipeline stage in milliseconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100},
		}, []string{"stage"})
		QuoteEventsEmittedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_events_emitted_total",
			Help:      "Count of quote.calculated notifications by outcome.",
		}, []string{"result"})
		WebhookDeliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_deliveries_total",
			Help:      "Count of webhook delivery outcomes.",
		}, []string{"result"})

		QuoteCalculationsTotal = registerCounterVec(reg, QuoteCalculationsTotal)
		QuoteStageDuration = registerHistogramVec(reg, QuoteStageDuration)
		QuoteEventsEmittedTotal = registerCounterVec(reg, QuoteEventsEmittedTotal)
		WebhookDeliveriesTotal = registerCounterVec(reg, WebhookDeliveriesTotal)
	})
}
