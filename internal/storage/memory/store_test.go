package memory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/retail/internal/domain"
	"github.com/vladislavdragonenkov/retail/internal/storage/memory"
)

func TestStore_WithinTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	repos := store.Repositories()

	product, err := repos.Products.Create(ctx, domain.NewProduct{Name: "Pen", SKU: "P1", Price: 100, Stock: 5})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	boom := errors.New("boom")
	err = store.WithinTx(ctx, func(tx domain.Repositories) error {
		if _, err := tx.Products.AdjustStock(ctx, product.ID, -3); err != nil {
			return err
		}
		if _, err := tx.Products.Create(ctx, domain.NewProduct{Name: "Ink", SKU: "I1", Price: 50}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	stored, err := repos.Products.Get(ctx, product.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Stock != 5 {
		t.Fatalf("stock must be restored, got %d", stored.Stock)
	}
	if _, err := repos.Products.GetBySKU(ctx, "I1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("product created in rolled back tx must not exist, got %v", err)
	}
}

func TestStore_WithinTxCommits(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	var created domain.Product
	err := store.WithinTx(ctx, func(tx domain.Repositories) error {
		var err error
		created, err = tx.Products.Create(ctx, domain.NewProduct{Name: "Pen", SKU: "P1", Price: 100, Stock: 5})
		return err
	})
	if err != nil {
		t.Fatalf("tx failed: %v", err)
	}

	if _, err := store.Repositories().Products.Get(ctx, created.ID); err != nil {
		t.Fatalf("committed product must be visible: %v", err)
	}
}

func TestStore_WithinTxCancelledContext(t *testing.T) {
	store := memory.New()
	ctx, cancel := context.WithCancel(context.Background())

	err := store.WithinTx(ctx, func(tx domain.Repositories) error {
		_, err := tx.Products.Create(ctx, domain.NewProduct{Name: "Pen", SKU: "P1", Price: 100})
		cancel()
		return err
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
	list, _ := store.Repositories().Products.List(context.Background(), domain.ProductFilter{})
	if len(list) != 0 {
		t.Fatalf("cancelled tx must not commit, got %d products", len(list))
	}
}

func TestStore_ConcurrentStockAdjustmentsNeverOversell(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	product, err := store.Repositories().Products.Create(ctx, domain.NewProduct{Name: "Pen", SKU: "P1", Price: 100, Stock: 10})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.WithinTx(ctx, func(tx domain.Repositories) error {
				_, err := tx.Products.AdjustStock(ctx, product.ID, -1)
				return err
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 10 {
		t.Fatalf("expected exactly 10 successful deductions, got %d", succeeded)
	}
	stored, _ := store.Repositories().Products.Get(ctx, product.ID)
	if stored.Stock != 0 {
		t.Fatalf("expected stock 0, got %d", stored.Stock)
	}
}

func TestStore_WithClock(t *testing.T) {
	fixed := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	store := memory.New(memory.WithClock(func() time.Time { return fixed }))

	p, err := store.Repositories().Products.Create(context.Background(), domain.NewProduct{Name: "Pen", SKU: "P1", Price: 100})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if !p.CreatedAt.Equal(fixed) {
		t.Fatalf("expected fixed clock, got %v", p.CreatedAt)
	}
}
