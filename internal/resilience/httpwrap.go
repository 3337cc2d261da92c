package resilience

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// HTTPClient gates outbound webhook posts behind a circuit breaker and a
// per-delivery timeout. It performs exactly one attempt per call: retry
// scheduling belongs to the task queue, which re-enqueues failed
// deliveries with its own backoff.
type HTTPClient struct {
	Client  *http.Client
	Breaker *Breaker
	Timeout time.Duration
}

// Do executes one delivery attempt. Refused attempts return
// ErrOpenCircuit; a 5xx response counts as a failure toward the breaker
// but is still returned to the caller so the delivery row records the
// subscriber's status.
func (cl HTTPClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if cl.Client == nil {
		return nil, errors.New("resilience: http client not configured")
	}
	breaker := cl.Breaker
	if breaker == nil {
		// closed breaker that never trips
		breaker = NewBreaker(1, 1, time.Second)
	}
	if !breaker.Allow(ctx) {
		return nil, ErrOpenCircuit
	}

	timeout := cl.Timeout
	if timeout <= 0 {
		timeout = cl.Client.Timeout
	}
	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	resp, err := cl.Client.Do(req.WithContext(callCtx))
	if err != nil {
		breaker.Report(ctx, false)
		return nil, err
	}
	breaker.Report(ctx, resp.StatusCode < http.StatusInternalServerError)
	return resp, nil
}
