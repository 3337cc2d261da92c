package repo

import (
	"context"
	"fmt"
	"time"
)

// WebhookSubscription is a tenant endpoint registered for a topic.
type WebhookSubscription struct {
	ID       string
	TenantID string
	Topic    string
	URL      string
	Secret   string
	Active   bool
}

// WebhookDelivery tracks one scheduled delivery of an event to a subscription.
type WebhookDelivery struct {
	ID             string
	SubscriptionID string
	EventID        int64
	Status         string
	Attempts       int
	LastError      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Delivery statuses.
const (
	DeliveryPending   = "pending"
	DeliveryDelivered = "delivered"
	DeliveryFailed    = "failed"
)

// SubscriptionsForTopic lists active subscriptions of a tenant for a topic.
// Tenant comes as an argument rather than the context: the worker processes
// deliveries outside any request scope.
func (s *Store) SubscriptionsForTopic(ctx context.Context, tenantID, topic string) ([]WebhookSubscription, error) {
	const query = `
		SELECT id, tenant_id, topic, url, secret, active
		FROM webhook_subscriptions
		WHERE tenant_id = $1 AND topic = $2 AND active = TRUE`
	rows, err := s.Pool.Query(ctx, query, tenantID, topic)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []WebhookSubscription
	for rows.Next() {
		var sub WebhookSubscription
		if err := rows.Scan(&sub.ID, &sub.TenantID, &sub.Topic, &sub.URL, &sub.Secret, &sub.Active); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// InsertDelivery records a pending delivery and returns its id.
func (s *Store) InsertDelivery(ctx context.Context, subscriptionID string, eventID int64) (string, error) {
	const query = `
		INSERT INTO webhook_deliveries (subscription_id, event_id, status)
		VALUES ($1, $2, 'pending')
		RETURNING id`
	var id string
	if err := s.Pool.QueryRow(ctx, query, subscriptionID, eventID).Scan(&id); err != nil {
		return "", fmt.Errorf("insert delivery: %w", err)
	}
	return id, nil
}

// DeliveryDetail joins a delivery with its subscription endpoint and the
// event payload for dispatch.
type DeliveryDetail struct {
	Delivery     WebhookDelivery
	Subscription WebhookSubscription
	Event        DomainEvent
}

// GetDeliveryDetail loads everything the worker needs to post one delivery.
func (s *Store) GetDeliveryDetail(ctx context.Context, deliveryID string) (DeliveryDetail, error) {
	const query = `
		SELECT d.id, d.subscription_id, d.event_id, d.status, d.attempts, COALESCE(d.last_error, ''),
		       d.created_at, d.updated_at,
		       s.id, s.tenant_id, s.topic, s.url, s.secret, s.active,
		       e.id, e.tenant_id, e.topic, e.aggregate_id, e.payload, e.occurred_at
		FROM webhook_deliveries d
		JOIN webhook_subscriptions s ON s.id = d.subscription_id
		JOIN domain_events e ON e.id = d.event_id
		WHERE d.id = $1`

	var detail DeliveryDetail
	err := s.Pool.QueryRow(ctx, query, deliveryID).Scan(
		&detail.Delivery.ID, &detail.Delivery.SubscriptionID, &detail.Delivery.EventID,
		&detail.Delivery.Status, &detail.Delivery.Attempts, &detail.Delivery.LastError,
		&detail.Delivery.CreatedAt, &detail.Delivery.UpdatedAt,
		&detail.Subscription.ID, &detail.Subscription.TenantID, &detail.Subscription.Topic,
		&detail.Subscription.URL, &detail.Subscription.Secret, &detail.Subscription.Active,
		&detail.Event.ID, &detail.Event.TenantID, &detail.Event.Topic,
		&detail.Event.AggregateID, &detail.Event.Payload, &detail.Event.OccurredAt,
	)
	if err != nil {
		return DeliveryDetail{}, fmt.Errorf("get delivery detail: %w", err)
	}
	return detail, nil
}

// MarkDelivery updates the delivery outcome after an attempt.
func (s *Store) MarkDelivery(ctx context.Context, deliveryID, status, lastError string) error {
	const query = `
		UPDATE webhook_deliveries
		SET status = $2, attempts = attempts + 1, last_error = NULLIF($3, ''), updated_at = now()
		WHERE id = $1`
	if _, err := s.Pool.Exec(ctx, query, deliveryID, status, lastError); err != nil {
		return fmt.Errorf("mark delivery: %w", err)
	}
	return nil
}
