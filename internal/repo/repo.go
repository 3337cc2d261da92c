// Package repo holds the tenant-scoped Postgres access layer. Every query
// filters by the tenant carried on the context; reference reads are
// read-only snapshots and quotes are insert-only.
package repo

import (
	"context"
	"net/http"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/valeo-erp/pricing-service/internal/common"
	"github.com/valeo-erp/pricing-service/internal/tenant"
)

// Store bundles the repositories around one connection pool.
type Store struct {
	Pool *pgxpool.Pool
}

// NewStore wraps the pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

// RegisterDecimalCodec teaches new connections to map Postgres numeric to
// shopspring decimals. Hook it into pgxpool.Config.AfterConnect.
func RegisterDecimalCodec(_ context.Context, conn *pgx.Conn) error {
	pgxdecimal.Register(conn.TypeMap())
	return nil
}

func tenantFromContext(ctx context.Context) (string, error) {
	id, ok := tenant.FromContext(ctx)
	if !ok {
		return "", common.NewAppError("TENANT_REQUIRED", "tenant not resolved", http.StatusBadRequest, nil)
	}
	return id, nil
}
