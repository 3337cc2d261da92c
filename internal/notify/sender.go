package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/valeo-erp/pricing-service/internal/obs"
	"github.com/valeo-erp/pricing-service/internal/repo"
)

// DeliverStore is the persistence surface the sender needs.
type DeliverStore interface {
	GetDeliveryDetail(ctx context.Context, deliveryID string) (repo.DeliveryDetail, error)
	MarkDelivery(ctx context.Context, deliveryID, status, lastError string) error
}

// HTTPDoer executes one outbound request. resilience.HTTPClient satisfies
// it, adding a circuit breaker around flapping endpoints.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// ClientDoer adapts a plain http.Client to HTTPDoer.
type ClientDoer struct {
	Client *http.Client
}

// Do executes the request with the wrapped client.
func (d ClientDoer) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	return d.Client.Do(req.WithContext(ctx))
}

// Sender executes webhook deliveries scheduled by the Dispatcher. It is
// registered as the asynq handler for TaskTypeWebhookDeliver.
type Sender struct {
	Store DeliverStore
	HTTP  HTTPDoer
	Log   zerolog.Logger
}

// HandleDeliver loads the delivery, posts the signed payload and records
// the outcome. A non-2xx response or transport error is returned so the
// queue retries with its backoff.
func (s *Sender) HandleDeliver(ctx context.Context, task *asynq.Task) error {
	var payload DeliverPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode delivery payload: %w", asynq.SkipRetry)
	}
	if payload.DeliveryID == "" {
		return nil
	}

	detail, err := s.Store.GetDeliveryDetail(ctx, payload.DeliveryID)
	if err != nil {
		return fmt.Errorf("load delivery %s: %w", payload.DeliveryID, err)
	}
	if detail.Delivery.Status == repo.DeliveryDelivered {
		return nil
	}

	status, body, deliverErr := s.deliver(ctx, detail)
	if deliverErr == nil && status >= 200 && status < 300 {
		if obs.WebhookDeliveriesTotal != nil {
			obs.WebhookDeliveriesTotal.WithLabelValues("delivered").Inc()
		}
		return s.Store.MarkDelivery(ctx, detail.Delivery.ID, repo.DeliveryDelivered, "")
	}

	reason := fmt.Sprintf("status=%d err=%v", status, deliverErr)
	if obs.WebhookDeliveriesTotal != nil {
		obs.WebhookDeliveriesTotal.WithLabelValues("failed").Inc()
	}
	if markErr := s.Store.MarkDelivery(ctx, detail.Delivery.ID, repo.DeliveryFailed, reason); markErr != nil {
		s.Log.Error().Err(markErr).Str("delivery_id", detail.Delivery.ID).Msg("mark delivery failed")
	}
	s.Log.Warn().
		Str("delivery_id", detail.Delivery.ID).
		Str("topic", detail.Event.Topic).
		Int("status", status).
		Msg("webhook delivery attempt failed")
	if len(body) > 0 {
		s.Log.Debug().Str("delivery_id", detail.Delivery.ID).Str("body", body).Msg("webhook response body")
	}
	return fmt.Errorf("deliver %s: status=%d: %w", detail.Delivery.ID, status, errOrStatus(deliverErr, status))
}

func errOrStatus(err error, status int) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("unexpected response status %d", status)
}

func (s *Sender) deliver(ctx context.Context, detail repo.DeliveryDetail) (int, string, error) {
	if s.HTTP == nil {
		s.HTTP = ClientDoer{Client: HTTPClient(5 * time.Second)}
	}
	ctx, span := otel.Tracer("notify.Sender").Start(ctx, "Sender.deliver")
	defer span.End()
	span.SetAttributes(
		attribute.String("webhook.subscription_id", detail.Subscription.ID),
		attribute.String("webhook.delivery_id", detail.Delivery.ID),
		attribute.String("webhook.topic", detail.Event.Topic),
	)

	if err := validateURL(detail.Subscription.URL); err != nil {
		span.RecordError(err)
		return 0, "", err
	}

	envelope := struct {
		EventID    string          `json:"eventId"`
		Topic      string          `json:"topic"`
		Data       json.RawMessage `json:"data"`
		OccurredAt time.Time       `json:"occurredAt"`
	}{
		EventID:    strconv.FormatInt(detail.Event.ID, 10),
		Topic:      detail.Event.Topic,
		Data:       json.RawMessage(detail.Event.Payload),
		OccurredAt: detail.Event.OccurredAt,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		span.RecordError(err)
		return 0, "", err
	}

	ts := time.Now().Unix()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, detail.Subscription.URL, bytes.NewReader(body))
	if err != nil {
		span.RecordError(err)
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "pricing-service-webhooks/1.0")
	req.Header.Set("X-Event-ID", envelope.EventID)
	req.Header.Set("X-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Idempotency-Key", detail.Delivery.ID)
	req.Header.Set("X-Signature", ComputeSignature(detail.Subscription.Secret, ts, envelope.EventID, body))

	resp, err := s.HTTP.Do(ctx, req)
	if err != nil {
		span.RecordError(err)
		return 0, "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	responseBody, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		span.RecordError(err)
		return resp.StatusCode, "", err
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	return resp.StatusCode, string(responseBody), nil
}

func validateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid subscription url: %w", err)
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return errors.New("webhook url must be http or https")
	}
	if parsed.Scheme == "http" {
		host := parsed.Hostname()
		if host != "localhost" && host != "127.0.0.1" {
			return errors.New("http webhook only allowed for localhost")
		}
	}
	if parsed.Host == "" {
		return errors.New("webhook url must include host")
	}
	return nil
}

// ComputeSignature calculates the webhook signature for the provided payload.
// The format is HMAC-SHA256 over "<ts>.<eventID>.<body>" using the
// subscription secret.
func ComputeSignature(secret string, ts int64, eventID string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(strconv.FormatInt(ts, 10)))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write([]byte(eventID))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// HTTPClient returns an HTTP client configured for webhook delivery.
func HTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(&http.Transport{}),
	}
}
