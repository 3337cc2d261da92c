package resilience_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/valeo-erp/pricing-service/internal/resilience"
)

func TestBreakerOpensOnFailingDeliveries(t *testing.T) {
	breaker := resilience.NewBreaker(2, 0.5, 50*time.Millisecond)
	ctx := context.Background()

	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)
	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)

	require.False(t, breaker.Allow(ctx), "breaker should open after threshold exceeded")

	time.Sleep(60 * time.Millisecond)
	require.True(t, breaker.Allow(ctx), "breaker should move to half-open after cool off")
	breaker.Report(ctx, true)
	require.True(t, breaker.Allow(ctx), "breaker should close after successful probe")
}

func TestBreakerReopensOnFailedProbe(t *testing.T) {
	breaker := resilience.NewBreaker(1, 0.5, 20*time.Millisecond)
	ctx := context.Background()

	breaker.Report(ctx, false)
	require.False(t, breaker.Allow(ctx))

	time.Sleep(30 * time.Millisecond)
	require.True(t, breaker.Allow(ctx), "half-open attempt allowed")
	breaker.Report(ctx, false)
	require.False(t, breaker.Allow(ctx), "failed half-open attempt reopens the breaker")
}

func TestHTTPClientRefusesWhenOpen(t *testing.T) {
	breaker := resilience.NewBreaker(1, 0.5, time.Minute)
	ctx := context.Background()
	breaker.Report(ctx, false)

	client := resilience.HTTPClient{Client: &http.Client{}, Breaker: breaker}
	req, err := http.NewRequest(http.MethodPost, "http://127.0.0.1:1/hook", nil)
	require.NoError(t, err)

	_, err = client.Do(ctx, req)
	require.True(t, errors.Is(err, resilience.ErrOpenCircuit))
}

func TestHTTPClientReportsServerErrors(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	breaker := resilience.NewBreaker(1, 0.5, time.Minute)
	client := resilience.HTTPClient{Client: srv.Client(), Breaker: breaker}
	ctx := context.Background()

	req, err := http.NewRequest(http.MethodPost, srv.URL, nil)
	require.NoError(t, err)
	resp, err := client.Do(ctx, req)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	_ = resp.Body.Close()
	require.Equal(t, 1, hits, "exactly one attempt per call, the queue owns retries")

	require.False(t, breaker.Allow(ctx), "5xx outcome must count as a failure")
}

func TestHTTPClientSuccessKeepsBreakerClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	breaker := resilience.NewBreaker(1, 0.5, time.Minute)
	client := resilience.HTTPClient{Client: srv.Client(), Breaker: breaker}
	ctx := context.Background()

	req, err := http.NewRequest(http.MethodPost, srv.URL, nil)
	require.NoError(t, err)
	resp, err := client.Do(ctx, req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	require.True(t, breaker.Allow(ctx))
}
