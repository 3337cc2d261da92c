package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/valeo-erp/pricing-service/internal/pricing"
)

// InsertQuote persists one immutable quote row. There is no update path.
func (s *Store) InsertQuote(ctx context.Context, quote pricing.PriceQuote) error {
	tenantID, err := tenantFromContext(ctx)
	if err != nil {
		return err
	}

	components, err := json.Marshal(quote.Components)
	if err != nil {
		return fmt.Errorf("encode components: %w", err)
	}

	const query = `
		INSERT INTO price_quotes (
			id, tenant_id, customer_id, sku, qty, channel, components,
			total_net, total_gross, currency, calculated_at, expires_at, created_by, signature
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err = s.Pool.Exec(ctx, query,
		quote.ID, tenantID, quote.CustomerID, quote.SKU, quote.Qty, quote.Channel, components,
		quote.TotalNet, quote.TotalGross, quote.Currency, quote.CalculatedAt, quote.ExpiresAt,
		nullable(quote.CreatedBy), nullable(quote.Signature),
	)
	if err != nil {
		return fmt.Errorf("insert quote: %w", err)
	}
	return nil
}

// GetQuote fetches a quote by id scoped to the caller's tenant. Expiry is
// not evaluated here; the service decides what an expired row means.
func (s *Store) GetQuote(ctx context.Context, id string) (pricing.PriceQuote, error) {
	tenantID, err := tenantFromContext(ctx)
	if err != nil {
		return pricing.PriceQuote{}, err
	}

	const query = `
		SELECT id, tenant_id, customer_id, sku, qty, channel, components,
		       total_net, total_gross, currency, calculated_at, expires_at,
		       COALESCE(created_by, ''), COALESCE(signature, '')
		FROM price_quotes
		WHERE id = $1 AND tenant_id = $2`

	var quote pricing.PriceQuote
	var components []byte
	err = s.Pool.QueryRow(ctx, query, id, tenantID).Scan(
		&quote.ID, &quote.TenantID, &quote.CustomerID, &quote.SKU, &quote.Qty, &quote.Channel, &components,
		&quote.TotalNet, &quote.TotalGross, &quote.Currency, &quote.CalculatedAt, &quote.ExpiresAt,
		&quote.CreatedBy, &quote.Signature,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return pricing.PriceQuote{}, pricing.ErrQuoteNotFound
	}
	if err != nil {
		return pricing.PriceQuote{}, fmt.Errorf("get quote: %w", err)
	}
	if len(components) > 0 {
		if err := json.Unmarshal(components, &quote.Components); err != nil {
			return pricing.PriceQuote{}, fmt.Errorf("decode components: %w", err)
		}
	}
	return quote, nil
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}
