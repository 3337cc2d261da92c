package resilience

import "github.com/prometheus/client_golang/prometheus"

var (
	WebhookBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "pricing",
			Name:      "webhook_breaker_state",
			Help:      "Current webhook delivery breaker state: 0=closed,1=open,2=half-open",
		},
		[]string{"endpoint"},
	)
	WebhookBreakerTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pricing",
			Name:      "webhook_breaker_transitions_total",
			Help:      "Count of webhook delivery breaker state transitions",
		},
		[]string{"endpoint", "from", "to"},
	)
	WebhookBreakerOpenedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pricing",
			Name:      "webhook_breaker_opened_total",
			Help:      "Number of times the webhook delivery breaker opened",
		},
		[]string{"endpoint"},
	)
)

func init() {
	prometheus.MustRegister(WebhookBreakerState, WebhookBreakerTransitions, WebhookBreakerOpenedTotal)
}
