package app

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/retail/internal/domain"
	"github.com/vladislavdragonenkov/retail/internal/storage/memory"
)

func TestNewDependencies_WiresServices(t *testing.T) {
	reg := prometheus.NewRegistry()
	deps := NewDependencies(memory.New(), reg, nil)

	require.NotNil(t, deps.Logger)
	require.NotNil(t, deps.Metrics)

	web := deps.WebServices()
	require.NotNil(t, web.Catalog)
	require.NotNil(t, web.Orders)
	cli := deps.CLIServices()
	require.Same(t, deps.Payments, cli.Payments)
	require.Same(t, deps.Reports, cli.Reports)

	ctx := context.Background()
	p, err := deps.Catalog.AddProduct(ctx, domain.NewProduct{Name: "Pen", SKU: "PEN", Price: 150, Stock: 3})
	require.NoError(t, err)
	c, err := deps.Customers.AddCustomer(ctx, domain.NewCustomer{Name: "Ann", Email: "ann@example.com", Phone: "1"})
	require.NoError(t, err)
	_, err = deps.Orders.CreateOrder(ctx, c.ID, []domain.ItemRequest{{ProductID: p.ID, Quantity: 2}})
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(reg, "retail_orders_created_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)

	stats, err := deps.Store.Repositories().Outbox.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.PendingCount)
}

func TestNewDependencies_WithoutRegisterer(t *testing.T) {
	deps := NewDependencies(memory.New(), nil, nil)
	require.Nil(t, deps.Metrics)
	require.NotNil(t, deps.Orders)
}

func TestNewDependencies_ReportsUseUTC(t *testing.T) {
	deps := NewDependencies(memory.New(), nil, nil)

	got, err := deps.Reports.RevenueLastMonth(context.Background())
	require.NoError(t, err)
	require.Equal(t, time.UTC, got.From.Location())
	require.Equal(t, time.UTC, got.To.Location())
	require.Equal(t, 1, got.From.Day())
	require.Zero(t, got.From.Hour())
	require.True(t, got.To.After(got.From))
}

func TestNewDependencies_IdempotencyTTLReachesServices(t *testing.T) {
	store := memory.New()
	deps := NewDependencies(store, nil, nil).WithIdempotencyTTL(time.Minute)
	require.Equal(t, time.Minute, deps.Keeper.TTL())

	ctx := context.Background()
	c, err := deps.Customers.AddCustomer(ctx, domain.NewCustomer{Name: "Key", Email: "key@example.com", Phone: "7"})
	require.NoError(t, err)
	p, err := deps.Catalog.AddProduct(ctx, domain.NewProduct{Name: "Cup", SKU: "CUP", Price: 300, Stock: 3})
	require.NoError(t, err)

	before := time.Now().UTC()
	_, _, err = deps.Orders.CreateOrderOnce(ctx, "ttl-key", c.ID, []domain.ItemRequest{{ProductID: p.ID, Quantity: 1}})
	require.NoError(t, err)

	rec, err := store.Repositories().Idempotency.Get(ctx, "ttl-key")
	require.NoError(t, err)
	require.WithinDuration(t, before.Add(time.Minute), rec.ExpiresAt, 5*time.Second)
}
