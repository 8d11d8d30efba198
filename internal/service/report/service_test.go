package report

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/retail/internal/domain"
	"github.com/vladislavdragonenkov/retail/internal/storage/memory"
)

func TestPreviousMonth(t *testing.T) {
	tests := []struct {
		name     string
		now      time.Time
		wantFrom time.Time
		wantTo   time.Time
	}{
		{
			name:     "mid year",
			now:      time.Date(2026, time.July, 15, 13, 0, 0, 0, time.UTC),
			wantFrom: time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC),
			wantTo:   time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "january wraps to december",
			now:      time.Date(2026, time.January, 3, 0, 0, 0, 0, time.UTC),
			wantFrom: time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC),
			wantTo:   time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:     "march after leap february",
			now:      time.Date(2028, time.March, 31, 23, 59, 0, 0, time.UTC),
			wantFrom: time.Date(2028, time.February, 1, 0, 0, 0, 0, time.UTC),
			wantTo:   time.Date(2028, time.March, 1, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to := PreviousMonth(tt.now)
			require.True(t, from.Equal(tt.wantFrom), "from = %s", from)
			require.True(t, to.Equal(tt.wantTo), "to = %s", to)
		})
	}
}

type seeded struct {
	store *memory.Store
	alice domain.Customer
	bob   domain.Customer
	tea   domain.Product
	rice  domain.Product
}

func seed(t *testing.T) seeded {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	repos := store.Repositories()

	alice, err := repos.Customers.Create(ctx, domain.NewCustomer{Name: "Alice", Email: "alice@example.com", Phone: "1"})
	require.NoError(t, err)
	bob, err := repos.Customers.Create(ctx, domain.NewCustomer{Name: "Bob", Email: "bob@example.com", Phone: "2"})
	require.NoError(t, err)
	_, err = repos.Customers.Create(ctx, domain.NewCustomer{Name: "Carol", Email: "carol@example.com", Phone: "3"})
	require.NoError(t, err)

	tea, err := repos.Products.Create(ctx, domain.NewProduct{Name: "Tea", SKU: "TEA", Price: 100, Stock: 100})
	require.NoError(t, err)
	rice, err := repos.Products.Create(ctx, domain.NewProduct{Name: "Rice", SKU: "RICE", Price: 200, Stock: 100})
	require.NoError(t, err)

	return seeded{store: store, alice: alice, bob: bob, tea: tea, rice: rice}
}

func (s seeded) order(t *testing.T, customer domain.Customer, status domain.OrderStatus, date time.Time, items ...domain.OrderItem) domain.Order {
	t.Helper()
	ctx := context.Background()
	var total domain.Money
	for _, item := range items {
		subtotal, err := item.Price.Mul(item.Quantity)
		require.NoError(t, err)
		total += subtotal
	}
	o, err := s.store.Repositories().Orders.Create(ctx, domain.Order{
		CustomerID: customer.ID, TotalAmount: total, Status: status, OrderDate: date,
	})
	require.NoError(t, err)
	_, err = s.store.Repositories().Orders.AddItems(ctx, o.ID, items)
	require.NoError(t, err)
	return o
}

func TestTopSellingProducts(t *testing.T) {
	s := seed(t)
	ctx := context.Background()
	now := time.Now().UTC()

	s.order(t, s.alice, domain.OrderStatusCompleted, now, domain.OrderItem{ProductID: s.tea.ID, Quantity: 2, Price: 100})
	s.order(t, s.bob, domain.OrderStatusPlaced, now, domain.OrderItem{ProductID: s.rice.ID, Quantity: 5, Price: 200})
	s.order(t, s.bob, domain.OrderStatusCancelled, now, domain.OrderItem{ProductID: s.tea.ID, Quantity: 50, Price: 100})

	svc := NewService(s.store, nil, nil)
	top, err := svc.TopSellingProducts(ctx, 0)
	require.NoError(t, err)
	require.Len(t, top, 2)
	require.Equal(t, "Rice", top[0].Name)
	require.EqualValues(t, 5, top[0].Quantity)
	require.Equal(t, "Tea", top[1].Name)
	require.EqualValues(t, 2, top[1].Quantity)

	top, err = svc.TopSellingProducts(ctx, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
}

func TestRevenue(t *testing.T) {
	s := seed(t)
	ctx := context.Background()
	june := time.Date(2026, time.June, 10, 12, 0, 0, 0, time.UTC)
	july := time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC)

	s.order(t, s.alice, domain.OrderStatusCompleted, june, domain.OrderItem{ProductID: s.tea.ID, Quantity: 3, Price: 100})
	s.order(t, s.bob, domain.OrderStatusCompleted, june, domain.OrderItem{ProductID: s.rice.ID, Quantity: 1, Price: 200})
	s.order(t, s.bob, domain.OrderStatusPlaced, june, domain.OrderItem{ProductID: s.rice.ID, Quantity: 1, Price: 200})
	s.order(t, s.alice, domain.OrderStatusCompleted, july, domain.OrderItem{ProductID: s.tea.ID, Quantity: 9, Price: 100})

	svc := NewService(s.store, func() time.Time { return july.Add(36 * time.Hour) }, nil)
	got, err := svc.RevenueLastMonth(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.Money(500), got.Total)
	require.True(t, got.From.Equal(time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)))
	require.True(t, got.To.Equal(july))

	_, err = svc.Revenue(ctx, july, june)
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestOrdersPerCustomer(t *testing.T) {
	s := seed(t)
	ctx := context.Background()
	now := time.Now().UTC()
	item := domain.OrderItem{ProductID: s.tea.ID, Quantity: 1, Price: 100}

	s.order(t, s.alice, domain.OrderStatusPlaced, now, item)
	s.order(t, s.bob, domain.OrderStatusPlaced, now, item)
	s.order(t, s.bob, domain.OrderStatusCancelled, now, item)
	s.order(t, s.bob, domain.OrderStatusCompleted, now, item)

	svc := NewService(s.store, nil, nil)
	counts, err := svc.OrdersPerCustomer(ctx)
	require.NoError(t, err)
	require.Equal(t, []domain.CustomerOrderCount{
		{CustomerID: s.bob.ID, Name: "Bob", Orders: 3},
		{CustomerID: s.alice.ID, Name: "Alice", Orders: 1},
	}, counts)

	loyal, err := svc.CustomersWithMoreThan(ctx, 1)
	require.NoError(t, err)
	require.Len(t, loyal, 1)
	require.Equal(t, "Bob", loyal[0].Name)

	_, err = svc.CustomersWithMoreThan(ctx, -1)
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestRevenueLastMonthDefaultsToUTC(t *testing.T) {
	s := seed(t)
	svc := NewService(s.store, nil, nil)

	got, err := svc.RevenueLastMonth(context.Background())
	require.NoError(t, err)
	require.Equal(t, time.UTC, got.From.Location())
	require.Equal(t, time.UTC, got.To.Location())
}
