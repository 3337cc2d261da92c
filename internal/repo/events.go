package repo

import (
	"context"
	"fmt"
	"time"
)

// DomainEvent is one persisted bus emission.
type DomainEvent struct {
	ID          int64
	TenantID    string
	Topic       string
	AggregateID string
	Payload     []byte
	OccurredAt  time.Time
}

// InsertDomainEvent records an emitted event and returns the stored row.
func (s *Store) InsertDomainEvent(ctx context.Context, topic, aggregateID string, payload []byte) (DomainEvent, error) {
	tenantID, err := tenantFromContext(ctx)
	if err != nil {
		return DomainEvent{}, err
	}

	const query = `
		INSERT INTO domain_events (tenant_id, topic, aggregate_id, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING id, tenant_id, topic, aggregate_id, payload, occurred_at`

	var event DomainEvent
	err = s.Pool.QueryRow(ctx, query, tenantID, topic, aggregateID, payload).Scan(
		&event.ID, &event.TenantID, &event.Topic, &event.AggregateID, &event.Payload, &event.OccurredAt,
	)
	if err != nil {
		return DomainEvent{}, fmt.Errorf("insert domain event: %w", err)
	}
	return event, nil
}
