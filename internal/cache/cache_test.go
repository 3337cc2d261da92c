package cache_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/valeo-erp/pricing-service/internal/cache"
	"github.com/valeo-erp/pricing-service/internal/tenant"
)

type snapshot struct {
	SKU   string `json:"sku"`
	Price string `json:"price"`
}

func newTestCache(t *testing.T, ttl time.Duration) (*cache.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.New(client, ttl), mr
}

func TestSetAndGetJSON(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, c.SetJSON(ctx, "refdata:c1:WHEAT-001", snapshot{SKU: "WHEAT-001", Price: "10"}))

	var got snapshot
	hit, err := c.GetJSON(ctx, "refdata:c1:WHEAT-001", &got)
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, "WHEAT-001", got.SKU)
	require.Equal(t, "10", got.Price)
}

func TestGetJSONMiss(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)

	var got snapshot
	hit, err := c.GetJSON(context.Background(), "refdata:missing", &got)
	require.NoError(t, err)
	require.False(t, hit)
}

func TestEntriesExpire(t *testing.T) {
	c, mr := newTestCache(t, 50*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, c.SetJSON(ctx, "refdata:c1:BARLEY-002", snapshot{SKU: "BARLEY-002"}))
	mr.FastForward(time.Second)

	var got snapshot
	hit, err := c.GetJSON(ctx, "refdata:c1:BARLEY-002", &got)
	require.NoError(t, err)
	require.False(t, hit)
}

func TestNilCacheIsNoop(t *testing.T) {
	var c *cache.Cache
	ctx := context.Background()

	require.NoError(t, c.SetJSON(ctx, "k", snapshot{}))
	hit, err := c.GetJSON(ctx, "k", &snapshot{})
	require.NoError(t, err)
	require.False(t, hit)
}

func TestKeyRefDataIsTenantScoped(t *testing.T) {
	bare := cache.KeyRefData(context.Background(), "c1", "WHEAT-001")
	require.Equal(t, "refdata:c1:WHEAT-001", bare)

	scoped := cache.KeyRefData(tenant.WithTenant(context.Background(), "acme"), "c1", "WHEAT-001")
	require.Equal(t, tenant.PrefixKey("acme", bare), scoped)
	require.NotEqual(t, bare, scoped)
}
