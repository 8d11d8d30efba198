package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/retail/internal/domain"
	"github.com/vladislavdragonenkov/retail/internal/storage/memory"
)

func newService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	return NewService(store, nil), store
}

func TestAddProductReturnsExactFields(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	inputs := []domain.NewProduct{
		{Name: "Rice 5kg", SKU: "RICE-5", Price: 45000, Stock: 12, Category: "Grocery"},
		{Name: "Soap", SKU: "SOAP-1", Price: 1, Stock: 0},
		{Name: "Kettle", SKU: "KET-2", Price: 199999, Stock: 1_000_000, Category: "Home"},
	}
	for _, in := range inputs {
		got, err := svc.AddProduct(ctx, in)
		require.NoError(t, err)
		require.NotZero(t, got.ID)
		require.Equal(t, in.Name, got.Name)
		require.Equal(t, in.SKU, got.SKU)
		require.Equal(t, in.Price, got.Price)
		require.Equal(t, in.Stock, got.Stock)
		require.Equal(t, in.Category, got.Category)
	}

	_, err := svc.AddProduct(ctx, domain.NewProduct{Name: "Other rice", SKU: "RICE-5", Price: 100, Stock: 1})
	require.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestAddProductValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	cases := map[string]domain.NewProduct{
		"empty name":     {Name: "  ", SKU: "A", Price: 100},
		"empty sku":      {Name: "A", SKU: "", Price: 100},
		"zero price":     {Name: "A", SKU: "A", Price: 0},
		"negative price": {Name: "A", SKU: "A", Price: -1},
		"negative stock": {Name: "A", SKU: "A", Price: 100, Stock: -1},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.AddProduct(ctx, in)
			require.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestAddProductTrimsInput(t *testing.T) {
	svc, _ := newService(t)
	got, err := svc.AddProduct(context.Background(), domain.NewProduct{Name: " Tea ", SKU: " TEA-1 ", Price: 500, Category: " Drinks "})
	require.NoError(t, err)
	require.Equal(t, "Tea", got.Name)
	require.Equal(t, "TEA-1", got.SKU)
	require.Equal(t, "Drinks", got.Category)
}

func TestRestockAndReduce(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	p, err := svc.AddProduct(ctx, domain.NewProduct{Name: "Pen", SKU: "PEN", Price: 1000, Stock: 5})
	require.NoError(t, err)

	p, err = svc.Restock(ctx, p.ID, 3)
	require.NoError(t, err)
	require.EqualValues(t, 8, p.Stock)

	p, err = svc.ReduceStock(ctx, p.ID, 8)
	require.NoError(t, err)
	require.Zero(t, p.Stock)

	_, err = svc.ReduceStock(ctx, p.ID, 1)
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	_, err = svc.Restock(ctx, p.ID, 0)
	require.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.ReduceStock(ctx, p.ID, -2)
	require.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.Restock(ctx, 999, 1)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteProductRequiresZeroStock(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	p, err := svc.AddProduct(ctx, domain.NewProduct{Name: "Lamp", SKU: "LAMP", Price: 2500, Stock: 2})
	require.NoError(t, err)

	_, err = svc.DeleteProduct(ctx, p.ID)
	require.ErrorIs(t, err, domain.ErrDeleteBlocked)

	_, err = svc.ReduceStock(ctx, p.ID, 2)
	require.NoError(t, err)

	deleted, err := svc.DeleteProduct(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, p.ID, deleted.ID)

	_, err = store.Repositories().Products.Get(ctx, p.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.DeleteProduct(ctx, p.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteProductReferencedByOrder(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	p, err := svc.AddProduct(ctx, domain.NewProduct{Name: "Mug", SKU: "MUG", Price: 300, Stock: 0})
	require.NoError(t, err)

	repos := store.Repositories()
	c, err := repos.Customers.Create(ctx, domain.NewCustomer{Name: "Ravi", Email: "ravi@example.com", Phone: "2"})
	require.NoError(t, err)
	o, err := repos.Orders.Create(ctx, domain.Order{CustomerID: c.ID, TotalAmount: 300, Status: domain.OrderStatusPlaced})
	require.NoError(t, err)
	_, err = repos.Orders.AddItems(ctx, o.ID, []domain.OrderItem{{ProductID: p.ID, Quantity: 1, Price: 300}})
	require.NoError(t, err)

	_, err = svc.DeleteProduct(ctx, p.ID)
	require.ErrorIs(t, err, domain.ErrDeleteBlocked)
}

func TestUpdateProduct(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	a, err := svc.AddProduct(ctx, domain.NewProduct{Name: "Chair", SKU: "CH-1", Price: 5000, Stock: 4})
	require.NoError(t, err)
	b, err := svc.AddProduct(ctx, domain.NewProduct{Name: "Table", SKU: "TB-1", Price: 9000, Stock: 1})
	require.NoError(t, err)

	unchanged, err := svc.UpdateProduct(ctx, a.ID, domain.ProductPatch{})
	require.NoError(t, err)
	require.Equal(t, a.SKU, unchanged.SKU)

	price := domain.Money(5500)
	category := "Furniture"
	updated, err := svc.UpdateProduct(ctx, a.ID, domain.ProductPatch{Price: &price, Category: &category})
	require.NoError(t, err)
	require.Equal(t, price, updated.Price)
	require.Equal(t, category, updated.Category)
	require.Equal(t, "Chair", updated.Name)

	sameSKU := a.SKU
	_, err = svc.UpdateProduct(ctx, a.ID, domain.ProductPatch{SKU: &sameSKU})
	require.NoError(t, err)

	taken := b.SKU
	_, err = svc.UpdateProduct(ctx, a.ID, domain.ProductPatch{SKU: &taken})
	require.ErrorIs(t, err, domain.ErrAlreadyExists)

	negative := int64(-1)
	_, err = svc.UpdateProduct(ctx, a.ID, domain.ProductPatch{Stock: &negative})
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.UpdateProduct(ctx, 404, domain.ProductPatch{Price: &price})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListSearchAndLowStock(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	for _, in := range []domain.NewProduct{
		{Name: "Green Tea", SKU: "T-1", Price: 100, Stock: 2, Category: "Drinks"},
		{Name: "Black tea", SKU: "T-2", Price: 100, Stock: 50, Category: "Drinks"},
		{Name: "Bread", SKU: "B-1", Price: 100, Stock: 5, Category: "Bakery"},
	} {
		_, err := svc.AddProduct(ctx, in)
		require.NoError(t, err)
	}

	all, err := svc.ListProducts(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)

	drinks, err := svc.ListProducts(ctx, "Drinks", 0)
	require.NoError(t, err)
	require.Len(t, drinks, 2)

	limited, err := svc.ListProducts(ctx, "", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)

	teas, err := svc.SearchProducts(ctx, "TEA", 0)
	require.NoError(t, err)
	require.Len(t, teas, 2)

	_, err = svc.SearchProducts(ctx, " ", 0)
	require.ErrorIs(t, err, domain.ErrValidation)

	low, err := svc.LowStock(ctx, DefaultLowStockThreshold)
	require.NoError(t, err)
	require.Len(t, low, 2)

	_, err = svc.LowStock(ctx, -1)
	require.ErrorIs(t, err, domain.ErrValidation)
}
