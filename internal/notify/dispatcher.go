// Package notify schedules and delivers webhook notifications for
// domain events. Scheduling records one delivery row per active
// subscription and hands the delivery id to the task queue; the worker
// posts the signed payload and records the outcome.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/valeo-erp/pricing-service/internal/repo"
)

// TaskTypeWebhookDeliver identifies webhook delivery tasks on the queue.
const TaskTypeWebhookDeliver = "webhook:deliver"

// DeliverPayload is the task payload carrying the delivery to execute.
type DeliverPayload struct {
	DeliveryID string `json:"deliveryId"`
}

// ScheduleStore is the persistence surface the dispatcher needs.
type ScheduleStore interface {
	SubscriptionsForTopic(ctx context.Context, tenantID, topic string) ([]repo.WebhookSubscription, error)
	InsertDelivery(ctx context.Context, subscriptionID string, eventID int64) (string, error)
}

// TaskEnqueuer abstracts the asynq client for testing.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher schedules webhook deliveries for emitted events. It
// implements events.Notifier.
type Dispatcher struct {
	Store       ScheduleStore
	Tasks       TaskEnqueuer
	MaxAttempts int
}

// Notify records a pending delivery per active subscription and
// enqueues a delivery task for each.
func (d *Dispatcher) Notify(ctx context.Context, event repo.DomainEvent) error {
	if d == nil || d.Store == nil || d.Tasks == nil {
		return nil
	}
	if strings.TrimSpace(event.Topic) == "" {
		return nil
	}
	subs, err := d.Store.SubscriptionsForTopic(ctx, event.TenantID, event.Topic)
	if err != nil {
		return fmt.Errorf("list subscriptions: %w", err)
	}

	maxAttempts := d.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 6
	}

	var joined error
	for _, sub := range subs {
		deliveryID, err := d.Store.InsertDelivery(ctx, sub.ID, event.ID)
		if err != nil {
			joined = errors.Join(joined, fmt.Errorf("schedule delivery for %s: %w", sub.ID, err))
			continue
		}
		payload, err := json.Marshal(DeliverPayload{DeliveryID: deliveryID})
		if err != nil {
			joined = errors.Join(joined, err)
			continue
		}
		task := asynq.NewTask(TaskTypeWebhookDeliver, payload, asynq.MaxRetry(maxAttempts-1))
		if _, err := d.Tasks.EnqueueContext(ctx, task); err != nil {
			joined = errors.Join(joined, fmt.Errorf("enqueue delivery %s: %w", deliveryID, err))
		}
	}
	return joined
}
