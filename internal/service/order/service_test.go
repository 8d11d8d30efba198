package order

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vladislavdragonenkov/retail/internal/domain"
	"github.com/vladislavdragonenkov/retail/internal/metrics"
	"github.com/vladislavdragonenkov/retail/internal/storage/memory"
)

// Параллельные заказы не должны оставлять горутин после теста.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	store    *memory.Store
	svc      *Service
	customer domain.Customer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	c, err := store.Repositories().Customers.Create(context.Background(), domain.NewCustomer{
		Name: "Anil", Email: "anil@example.com", Phone: "9000000000", City: "Bengaluru",
	})
	require.NoError(t, err)
	return &fixture{store: store, svc: NewService(store, nil, nil, nil), customer: c}
}

func (f *fixture) addProduct(t *testing.T, sku string, price domain.Money, stock int64) domain.Product {
	t.Helper()
	p, err := f.store.Repositories().Products.Create(context.Background(), domain.NewProduct{
		Name: "Product " + sku, SKU: sku, Price: price, Stock: stock,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) stock(t *testing.T, id int64) int64 {
	t.Helper()
	p, err := f.store.Repositories().Products.Get(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func TestCreateOrderDrainsStockThenFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.addProduct(t, "P-1", 10000, 4)

	details, err := f.svc.CreateOrder(ctx, f.customer.ID, []domain.ItemRequest{{ProductID: p.ID, Quantity: 4}})
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusPlaced, details.Order.Status)
	require.Equal(t, domain.Money(40000), details.Order.TotalAmount)
	require.Zero(t, f.stock(t, p.ID))

	_, err = f.svc.CreateOrder(ctx, f.customer.ID, []domain.ItemRequest{{ProductID: p.ID, Quantity: 4}})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
}

func TestCreateOrderUnknownProductLeavesStockUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.addProduct(t, "A", 500, 10)
	b := f.addProduct(t, "B", 700, 3)

	_, err := f.svc.CreateOrder(ctx, f.customer.ID, []domain.ItemRequest{
		{ProductID: a.ID, Quantity: 2},
		{ProductID: b.ID, Quantity: 1},
		{ProductID: 999, Quantity: 1},
	})
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.EqualValues(t, 10, f.stock(t, a.ID))
	require.EqualValues(t, 3, f.stock(t, b.ID))

	orders, err := f.svc.ListCustomerOrders(ctx, f.customer.ID, 0)
	require.NoError(t, err)
	require.Empty(t, orders)
}

func TestCreateOrderInsufficientStockOnLaterItemLeavesEarlierItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.addProduct(t, "A", 500, 10)
	b := f.addProduct(t, "B", 700, 1)

	_, err := f.svc.CreateOrder(ctx, f.customer.ID, []domain.ItemRequest{
		{ProductID: a.ID, Quantity: 5},
		{ProductID: b.ID, Quantity: 2},
	})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	require.EqualValues(t, 10, f.stock(t, a.ID))
	require.EqualValues(t, 1, f.stock(t, b.ID))
}

func TestCreateOrderSumsRepeatedProducts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.addProduct(t, "P", 100, 5)

	_, err := f.svc.CreateOrder(ctx, f.customer.ID, []domain.ItemRequest{
		{ProductID: p.ID, Quantity: 3},
		{ProductID: p.ID, Quantity: 3},
	})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	require.EqualValues(t, 5, f.stock(t, p.ID))

	details, err := f.svc.CreateOrder(ctx, f.customer.ID, []domain.ItemRequest{
		{ProductID: p.ID, Quantity: 2},
		{ProductID: p.ID, Quantity: 3},
	})
	require.NoError(t, err)
	require.Len(t, details.Items, 2)
	require.Equal(t, domain.Money(500), details.Order.TotalAmount)
	require.Zero(t, f.stock(t, p.ID))
}

func TestCreateOrderRejectsQuantityOverflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.addProduct(t, "P", 100, 5)

	_, err := f.svc.CreateOrder(ctx, f.customer.ID, []domain.ItemRequest{
		{ProductID: p.ID, Quantity: math.MaxInt64},
		{ProductID: p.ID, Quantity: math.MaxInt64},
	})
	require.ErrorIs(t, err, domain.ErrValidation)
	require.EqualValues(t, 5, f.stock(t, p.ID))

	count, err := f.store.Repositories().Orders.CountByCustomer(ctx, f.customer.ID)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestCreateOrderRejectsAmountOverflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pricey := f.addProduct(t, "BIG", domain.Money(math.MaxInt64/2), 3)
	other := f.addProduct(t, "BIG-2", domain.Money(math.MaxInt64/2+2), 1)

	_, err := f.svc.CreateOrder(ctx, f.customer.ID, []domain.ItemRequest{{ProductID: pricey.ID, Quantity: 3}})
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.CreateOrder(ctx, f.customer.ID, []domain.ItemRequest{
		{ProductID: pricey.ID, Quantity: 1},
		{ProductID: other.ID, Quantity: 1},
	})
	require.ErrorIs(t, err, domain.ErrValidation)
	require.EqualValues(t, 3, f.stock(t, pricey.ID))
	require.EqualValues(t, 1, f.stock(t, other.ID))

	count, err := f.store.Repositories().Orders.CountByCustomer(ctx, f.customer.ID)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestCreateOrderValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.addProduct(t, "P", 100, 5)

	_, err := f.svc.CreateOrder(ctx, f.customer.ID, nil)
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.CreateOrder(ctx, f.customer.ID, []domain.ItemRequest{{ProductID: p.ID, Quantity: 0}})
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.CreateOrder(ctx, 404, []domain.ItemRequest{{ProductID: p.ID, Quantity: 1}})
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.EqualValues(t, 5, f.stock(t, p.ID))
}

func TestOrderKeepsSnapshotPrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.addProduct(t, "P", 1000, 5)

	details, err := f.svc.CreateOrder(ctx, f.customer.ID, []domain.ItemRequest{{ProductID: p.ID, Quantity: 2}})
	require.NoError(t, err)

	p.Price = 1500
	_, err = f.store.Repositories().Products.Update(ctx, p)
	require.NoError(t, err)

	got, err := f.svc.GetOrderDetails(ctx, details.Order.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	require.Equal(t, domain.Money(1000), got.Items[0].Price)
	require.Equal(t, domain.Money(1500), got.Items[0].CurrentPrice)
	require.Equal(t, domain.Money(2000), got.Items[0].Subtotal)
	require.Equal(t, domain.Money(2000), got.Order.TotalAmount)
	require.NotNil(t, got.Customer)
	require.Equal(t, f.customer.Email, got.Customer.Email)
}

func TestCancelOrderRestoresStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.addProduct(t, "A", 100, 10)
	b := f.addProduct(t, "B", 250, 4)

	details, err := f.svc.CreateOrder(ctx, f.customer.ID, []domain.ItemRequest{
		{ProductID: a.ID, Quantity: 3},
		{ProductID: b.ID, Quantity: 4},
	})
	require.NoError(t, err)
	require.EqualValues(t, 7, f.stock(t, a.ID))
	require.Zero(t, f.stock(t, b.ID))

	cancelled, err := f.svc.CancelOrder(ctx, details.Order.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusCancelled, cancelled.Status)
	require.EqualValues(t, 10, f.stock(t, a.ID))
	require.EqualValues(t, 4, f.stock(t, b.ID))

	_, err = f.svc.CancelOrder(ctx, details.Order.ID)
	require.ErrorIs(t, err, domain.ErrInvalidState)
	require.EqualValues(t, 10, f.stock(t, a.ID))

	_, err = f.svc.CancelOrder(ctx, 12345)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCancelCompletedOrderIsInvalidState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.addProduct(t, "P", 100, 2)

	details, err := f.svc.CreateOrder(ctx, f.customer.ID, []domain.ItemRequest{{ProductID: p.ID, Quantity: 1}})
	require.NoError(t, err)
	_, err = f.store.Repositories().Orders.UpdateStatus(ctx, details.Order.ID, domain.OrderStatusPlaced, domain.OrderStatusCompleted)
	require.NoError(t, err)

	_, err = f.svc.CancelOrder(ctx, details.Order.ID)
	require.ErrorIs(t, err, domain.ErrInvalidState)
	require.EqualValues(t, 1, f.stock(t, p.ID))
}

func TestOrderLifecycleEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.addProduct(t, "P", 100, 2)

	details, err := f.svc.CreateOrder(ctx, f.customer.ID, []domain.ItemRequest{{ProductID: p.ID, Quantity: 1}})
	require.NoError(t, err)
	_, err = f.svc.CancelOrder(ctx, details.Order.ID)
	require.NoError(t, err)

	events, err := f.svc.Timeline(ctx, details.Order.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, domain.EventOrderPlaced, events[0].Type)
	require.Equal(t, domain.EventOrderCancelled, events[1].Type)

	stats, err := f.store.Repositories().Outbox.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, stats.PendingCount)

	_, err = f.svc.Timeline(ctx, 999)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConcurrentOrdersDoNotOversell(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.addProduct(t, "HOT", 100, 5)

	const workers = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CreateOrder(ctx, f.customer.ID, []domain.ItemRequest{{ProductID: p.ID, Quantity: 1}})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			if !errors.Is(err, domain.ErrInsufficientStock) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 5, succeeded)
	require.Zero(t, f.stock(t, p.ID))
}

// productsWithout скрывает товар, имитируя удалённую из каталога позицию.
type productsWithout struct {
	domain.ProductRepository
	hidden int64
}

func (p productsWithout) Get(ctx context.Context, id int64) (domain.Product, error) {
	if id == p.hidden {
		return domain.Product{}, domain.NotFoundf("product %d", id)
	}
	return p.ProductRepository.Get(ctx, id)
}

type hidingStore struct {
	*memory.Store
	hidden int64
}

func (s hidingStore) Repositories() domain.Repositories {
	repos := s.Store.Repositories()
	repos.Products = productsWithout{ProductRepository: repos.Products, hidden: s.hidden}
	return repos
}

func TestGetOrderDetailsUnknownProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.addProduct(t, "GONE", 300, 3)

	details, err := f.svc.CreateOrder(ctx, f.customer.ID, []domain.ItemRequest{{ProductID: p.ID, Quantity: 2}})
	require.NoError(t, err)

	svc := NewService(hidingStore{Store: f.store, hidden: p.ID}, nil, nil, nil)
	got, err := svc.GetOrderDetails(ctx, details.Order.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	require.Equal(t, domain.UnknownProductName, got.Items[0].ProductName)
	require.Zero(t, got.Items[0].CurrentPrice)
	require.Equal(t, domain.Money(300), got.Items[0].Price)

	_, err = svc.GetOrderDetails(ctx, 777)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOrderMetrics(t *testing.T) {
	store := memory.New()
	reg := prometheus.NewRegistry()
	svc := NewService(store, nil, metrics.NewWorkflowMetricsWithRegisterer(reg), nil)
	ctx := context.Background()

	c, err := store.Repositories().Customers.Create(ctx, domain.NewCustomer{Name: "M", Email: "m@example.com", Phone: "1"})
	require.NoError(t, err)
	p, err := store.Repositories().Products.Create(ctx, domain.NewProduct{Name: "P", SKU: "P", Price: 100, Stock: 1})
	require.NoError(t, err)

	details, err := svc.CreateOrder(ctx, c.ID, []domain.ItemRequest{{ProductID: p.ID, Quantity: 1}})
	require.NoError(t, err)
	_, err = svc.CreateOrder(ctx, c.ID, []domain.ItemRequest{{ProductID: p.ID, Quantity: 1}})
	require.Error(t, err)
	_, err = svc.CancelOrder(ctx, details.Order.ID)
	require.NoError(t, err)

	require.Equal(t, 1.0, counterValue(t, reg, "retail_orders_created_total", nil))
	require.Equal(t, 1.0, counterValue(t, reg, "retail_orders_cancelled_total", nil))
	require.Equal(t, 1.0, counterValue(t, reg, "retail_workflow_rejections_total", map[string]string{
		"operation": metrics.OperationCreateOrder,
		"kind":      string(domain.KindInsufficientStock),
	}))
	require.Equal(t, 2.0, counterValue(t, reg, "retail_outbox_events_total", nil))
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, m := range family.GetMetric() {
			matched := 0
			for _, pair := range m.GetLabel() {
				if labels[pair.GetName()] == pair.GetValue() {
					matched++
				}
			}
			if matched == len(labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return 0
}

func TestCreateOrderOnceReplaysStoredResponse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.addProduct(t, "IDEM", 1500, 10)
	items := []domain.ItemRequest{{ProductID: p.ID, Quantity: 3}}

	first, replayed, err := f.svc.CreateOrderOnce(ctx, "order-key-1", f.customer.ID, items)
	require.NoError(t, err)
	require.False(t, replayed)
	require.Equal(t, int64(7), f.stock(t, p.ID))

	second, replayed, err := f.svc.CreateOrderOnce(ctx, "order-key-1", f.customer.ID, items)
	require.NoError(t, err)
	require.True(t, replayed)
	require.Equal(t, first.Order.ID, second.Order.ID)
	require.Equal(t, first.Order.TotalAmount, second.Order.TotalAmount)
	require.Len(t, second.Items, 1)
	require.Equal(t, "Product IDEM", second.Items[0].ProductName)

	require.Equal(t, int64(7), f.stock(t, p.ID))
	count, err := f.store.Repositories().Orders.CountByCustomer(ctx, f.customer.ID)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	_, _, err = f.svc.CreateOrderOnce(ctx, "order-key-1", f.customer.ID, []domain.ItemRequest{{ProductID: p.ID, Quantity: 1}})
	require.ErrorIs(t, err, domain.ErrIdempotencyHashMismatch)
	require.Equal(t, domain.KindAlreadyExists, domain.KindOf(err))
	require.Equal(t, int64(7), f.stock(t, p.ID))
}

func TestCreateOrderOnceFailureReleasesKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.addProduct(t, "LOW", 100, 1)
	items := []domain.ItemRequest{{ProductID: p.ID, Quantity: 2}}

	_, _, err := f.svc.CreateOrderOnce(ctx, "retry-key", f.customer.ID, items)
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	_, err = f.store.Repositories().Idempotency.Get(ctx, "retry-key")
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.store.Repositories().Products.AdjustStock(ctx, p.ID, 5)
	require.NoError(t, err)

	details, replayed, err := f.svc.CreateOrderOnce(ctx, "retry-key", f.customer.ID, items)
	require.NoError(t, err)
	require.False(t, replayed)
	require.Equal(t, domain.Money(200), details.Order.TotalAmount)
}

func TestCreateOrderOnceRejectsBlankKey(t *testing.T) {
	f := newFixture(t)
	p := f.addProduct(t, "BLANK", 100, 1)

	_, _, err := f.svc.CreateOrderOnce(context.Background(), "  ", f.customer.ID, []domain.ItemRequest{{ProductID: p.ID, Quantity: 1}})
	require.ErrorIs(t, err, domain.ErrValidation)
	require.Equal(t, int64(1), f.stock(t, p.ID))
}

func TestConcurrentCreateOrderOncePlacesSingleOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.addProduct(t, "RACE", 100, 50)
	items := []domain.ItemRequest{{ProductID: p.ID, Quantity: 2}}

	const workers = 10
	ids := make(chan int64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			details, _, err := f.svc.CreateOrderOnce(ctx, "same-key", f.customer.ID, items)
			if err == nil {
				ids <- details.Order.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]struct{})
	for id := range ids {
		seen[id] = struct{}{}
	}
	require.Len(t, seen, 1)
	require.Equal(t, int64(48), f.stock(t, p.ID))
}
