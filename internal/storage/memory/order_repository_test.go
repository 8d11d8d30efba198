package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/retail/internal/domain"
	"github.com/vladislavdragonenkov/retail/internal/storage/memory"
)

func seedCustomerAndProduct(t *testing.T, repos domain.Repositories) (domain.Customer, domain.Product) {
	t.Helper()
	ctx := context.Background()

	customer, err := repos.Customers.Create(ctx, domain.NewCustomer{Name: "Ann", Email: "ann@example.com", Phone: "1"})
	if err != nil {
		t.Fatalf("create customer failed: %v", err)
	}
	product, err := repos.Products.Create(ctx, domain.NewProduct{Name: "Pen", SKU: "P1", Price: 1000, Stock: 5})
	if err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	return customer, product
}

func TestOrderRepository_CreateGetItems(t *testing.T) {
	ctx := context.Background()
	repos := memory.New().Repositories()
	customer, product := seedCustomerAndProduct(t, repos)

	order, err := repos.Orders.Create(ctx, domain.Order{CustomerID: customer.ID, TotalAmount: 2000, Status: domain.OrderStatusPlaced})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if order.ID == 0 || order.OrderDate.IsZero() {
		t.Fatalf("expected generated id and date, got %+v", order)
	}

	items, err := repos.Orders.AddItems(ctx, order.ID, []domain.OrderItem{{ProductID: product.ID, Quantity: 2, Price: 1000}})
	if err != nil {
		t.Fatalf("add items failed: %v", err)
	}
	if items[0].ID == 0 || items[0].OrderID != order.ID {
		t.Fatalf("unexpected saved item: %+v", items[0])
	}

	stored, err := repos.Orders.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.TotalAmount != 2000 || stored.Status != domain.OrderStatusPlaced {
		t.Fatalf("unexpected stored order: %+v", stored)
	}

	loaded, err := repos.Orders.Items(ctx, order.ID)
	if err != nil || len(loaded) != 1 {
		t.Fatalf("expected 1 item, got %v (%v)", loaded, err)
	}
}

func TestOrderRepository_CreateRequiresCustomer(t *testing.T) {
	repos := memory.New().Repositories()
	_, err := repos.Orders.Create(context.Background(), domain.Order{CustomerID: 42, Status: domain.OrderStatusPlaced})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestOrderRepository_ListByCustomer(t *testing.T) {
	ctx := context.Background()
	repos := memory.New().Repositories()
	customer, _ := seedCustomerAndProduct(t, repos)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if _, err := repos.Orders.Create(ctx, domain.Order{
			CustomerID: customer.ID,
			Status:     domain.OrderStatusPlaced,
			OrderDate:  base.Add(time.Duration(i) * time.Hour),
		}); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	orders, err := repos.Orders.ListByCustomer(ctx, customer.ID, 2)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(orders))
	}
	if !orders[0].OrderDate.After(orders[1].OrderDate) {
		t.Fatal("expected newest order first")
	}

	count, err := repos.Orders.CountByCustomer(ctx, customer.ID)
	if err != nil || count != 3 {
		t.Fatalf("expected 3 orders, got %d (%v)", count, err)
	}
}

func TestOrderRepository_UpdateStatusCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	repos := memory.New().Repositories()
	customer, _ := seedCustomerAndProduct(t, repos)

	order, err := repos.Orders.Create(ctx, domain.Order{CustomerID: customer.ID, Status: domain.OrderStatusPlaced})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	updated, err := repos.Orders.UpdateStatus(ctx, order.ID, domain.OrderStatusPlaced, domain.OrderStatusCancelled)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Status != domain.OrderStatusCancelled {
		t.Fatalf("unexpected status %s", updated.Status)
	}

	_, err = repos.Orders.UpdateStatus(ctx, order.ID, domain.OrderStatusPlaced, domain.OrderStatusCompleted)
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state on stale status, got %v", err)
	}

	_, err = repos.Orders.UpdateStatus(ctx, 999, domain.OrderStatusPlaced, domain.OrderStatusCompleted)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPaymentRepository_LatestByOrder(t *testing.T) {
	ctx := context.Background()
	repos := memory.New().Repositories()
	customer, _ := seedCustomerAndProduct(t, repos)
	order, err := repos.Orders.Create(ctx, domain.Order{CustomerID: customer.ID, Status: domain.OrderStatusPlaced})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	if _, err := repos.Payments.LatestByOrder(ctx, order.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found before any payment, got %v", err)
	}

	first, _ := repos.Payments.Create(ctx, domain.Payment{OrderID: order.ID, Amount: 100, Status: domain.PaymentStatusPending})
	second, _ := repos.Payments.Create(ctx, domain.Payment{OrderID: order.ID, Amount: 100, Status: domain.PaymentStatusPaid})
	if second.ID <= first.ID {
		t.Fatalf("expected increasing ids, got %d and %d", first.ID, second.ID)
	}

	latest, err := repos.Payments.LatestByOrder(ctx, order.ID)
	if err != nil || latest.ID != second.ID {
		t.Fatalf("expected latest payment %d, got %+v (%v)", second.ID, latest, err)
	}

	refunded, err := repos.Payments.UpdateStatus(ctx, latest.ID, domain.PaymentStatusPaid, domain.PaymentStatusRefunded)
	if err != nil || refunded.Status != domain.PaymentStatusRefunded {
		t.Fatalf("unexpected refund result: %+v (%v)", refunded, err)
	}
	if _, err := repos.Payments.UpdateStatus(ctx, latest.ID, domain.PaymentStatusPaid, domain.PaymentStatusRefunded); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state on second refund, got %v", err)
	}
}
