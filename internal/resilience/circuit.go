// Package resilience guards outbound webhook delivery with a
// failure-ratio circuit breaker. Retry scheduling lives in the task
// queue, so the breaker's job is only to stop hammering an endpoint
// that is already failing.
package resilience

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

var breakerNopLogger = zerolog.Nop()

// ErrOpenCircuit is returned when the breaker refuses a delivery attempt.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

// State represents the current breaker state.
type State int

const (
	// Closed accepts all deliveries and tracks failures.
	Closed State = iota
	// Open rejects deliveries until the cool-off period expires.
	Open
	// HalfOpen allows a single probe delivery to test recovery.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Breaker implements a failure-ratio circuit breaker around one logical
// delivery endpoint.
type Breaker struct {
	mu           sync.Mutex
	state        State
	failures     int
	successes    int
	minSamples   int
	failureRatio float64
	openedAt     time.Time
	cooloff      time.Duration
	endpoint     string
	logger       *zerolog.Logger
}

// NewBreaker constructs a breaker that opens once the rolling failure
// ratio exceeds the threshold over at least minSamples deliveries.
func NewBreaker(minSamples int, failureRatio float64, cooloff time.Duration) *Breaker {
	if minSamples <= 0 {
		minSamples = 1
	}
	if failureRatio <= 0 {
		failureRatio = 0.5
	}
	if failureRatio > 1 {
		failureRatio = 1
	}
	if cooloff <= 0 {
		cooloff = 30 * time.Second
	}
	return &Breaker{
		state:        Closed,
		minSamples:   minSamples,
		failureRatio: failureRatio,
		cooloff:      cooloff,
	}
}

// Allow reports whether a delivery may proceed. An open breaker permits
// one attempt after the cool-off and moves to half-open to sample the
// subscriber endpoint.
func (b *Breaker) Allow(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		if time.Since(b.openedAt) >= b.cooloff {
			b.changeStateLocked(ctx, HalfOpen)
			return true
		}
		return false
	default:
		return true
	}
}

// Report records a delivery outcome and transitions the state machine
// when thresholds are exceeded.
func (b *Breaker) Report(ctx context.Context, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		// Outcomes reported while open carry no signal.
		return
	case HalfOpen:
		if success {
			b.changeStateLocked(ctx, Closed)
			return
		}
		b.changeStateLocked(ctx, Open)
		return
	}

	if success {
		b.successes++
	} else {
		b.failures++
	}

	total := b.failures + b.successes
	if total < b.minSamples {
		return
	}
	ratio := float64(b.failures) / float64(total)
	if ratio >= b.failureRatio {
		b.changeStateLocked(ctx, Open)
	} else if total > b.minSamples*2 {
		// keep the rolling window bounded
		b.successes = int(math.Ceil(float64(b.successes) * 0.5))
		b.failures = int(math.Ceil(float64(b.failures) * 0.5))
	}
}

// WithEndpoint sets the logical endpoint identifier used for telemetry
// labels, e.g. "webhook-delivery".
func (b *Breaker) WithEndpoint(endpoint string) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.endpoint = strings.TrimSpace(endpoint)
	b.recordStateLocked()
	return b
}

// WithLogger configures the logger used for transition events.
func (b *Breaker) WithLogger(logger zerolog.Logger) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logger = &logger
	return b
}

func (b *Breaker) changeStateLocked(ctx context.Context, next State) {
	prev := b.state
	if prev == next {
		b.recordStateLocked()
		return
	}
	b.state = next
	if next == Open {
		b.openedAt = time.Now()
	}
	if next == Closed {
		b.openedAt = time.Time{}
	}
	b.failures = 0
	b.successes = 0
	b.recordStateLocked()
	b.recordTransition(ctx, prev, next)
}

func (b *Breaker) recordStateLocked() {
	if WebhookBreakerState == nil {
		return
	}
	WebhookBreakerState.WithLabelValues(b.endpointLabel()).Set(stateGaugeValue(b.state))
}

func (b *Breaker) recordTransition(ctx context.Context, from, to State) {
	label := b.endpointLabel()
	if WebhookBreakerTransitions != nil {
		WebhookBreakerTransitions.WithLabelValues(label, from.String(), to.String()).Inc()
	}
	if to == Open && WebhookBreakerOpenedTotal != nil {
		WebhookBreakerOpenedTotal.WithLabelValues(label).Inc()
	}
	logger := b.loggerFor(ctx)
	traceID := traceIDFromContext(ctx)
	evt := logger.Info().Str("endpoint", label).Str("from_state", from.String()).Str("to_state", to.String())
	if traceID != "" {
		evt = evt.Str("trace_id", traceID)
	}
	evt.Msg("webhook_breaker_transition")
}

func (b *Breaker) endpointLabel() string {
	trimmed := strings.TrimSpace(b.endpoint)
	if trimmed == "" {
		return "default"
	}
	return trimmed
}

func (b *Breaker) loggerFor(ctx context.Context) *zerolog.Logger {
	if ctxLogger := zerolog.Ctx(ctx); ctxLogger != nil {
		logger := ctxLogger.With().Logger()
		return &logger
	}
	if b.logger == nil {
		return &breakerNopLogger
	}
	return b.logger
}

func stateGaugeValue(state State) float64 {
	switch state {
	case Closed:
		return 0
	case Open:
		return 1
	case HalfOpen:
		return 2
	default:
		return -1
	}
}

func traceIDFromContext(ctx context.Context) string {
	span := trace.SpanContextFromContext(ctx)
	if span.IsValid() {
		return span.TraceID().String()
	}
	return ""
}
