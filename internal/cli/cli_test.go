package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/retail/internal/domain"
	"github.com/vladislavdragonenkov/retail/internal/service/catalog"
	"github.com/vladislavdragonenkov/retail/internal/service/customer"
	"github.com/vladislavdragonenkov/retail/internal/service/order"
	"github.com/vladislavdragonenkov/retail/internal/service/payment"
	"github.com/vladislavdragonenkov/retail/internal/service/report"
	"github.com/vladislavdragonenkov/retail/internal/storage/memory"
)

type harness struct {
	cli *CLI
	out *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memory.New()
	out := &bytes.Buffer{}
	return &harness{
		cli: New(Services{
			Catalog:   catalog.NewService(store, nil),
			Customers: customer.NewService(store, nil),
			Orders:    order.NewService(store, nil, nil, nil),
			Payments:  payment.NewService(store, nil, nil, nil),
			Reports:   report.NewService(store, nil, nil),
		}, out, nil),
		out: out,
	}
}

// run выполняет команду и возвращает её вывод.
func (h *harness) run(args ...string) string {
	h.out.Reset()
	h.cli.Run(context.Background(), args)
	return h.out.String()
}

// result проверяет заголовок и декодирует JSON после него.
func result[T any](t *testing.T, output, heading string) T {
	t.Helper()
	first, body, ok := strings.Cut(output, "\n")
	require.True(t, ok, output)
	require.Equal(t, heading, first, output)
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v), output)
	return v
}

func id(v int64) string { return strconv.FormatInt(v, 10) }

func TestCLI_EndToEndScenario(t *testing.T) {
	h := newHarness(t)

	p := result[domain.Product](t,
		h.run("product", "add", "--name", "P1", "--sku", "P1", "--price", "100", "--stock", "10"),
		"Created product:")
	require.Equal(t, domain.Money(10000), p.Price)

	c := result[domain.Customer](t,
		h.run("customer", "add", "--name", "C1", "--email", "c1@example.com", "--phone", "555"),
		"Created customer:")

	created := result[domain.OrderDetails](t,
		h.run("order", "create", "--customer", id(c.ID), "--item", id(p.ID)+":3"),
		"Order created:")
	require.Equal(t, domain.Money(30000), created.Order.TotalAmount)
	require.Equal(t, domain.OrderStatusPlaced, created.Order.Status)

	shown := result[domain.Product](t, h.run("product", "show", "--id", id(p.ID)), "Product:")
	require.EqualValues(t, 7, shown.Stock)

	cancelled := result[domain.Order](t, h.run("order", "cancel", "--order", id(created.Order.ID)), "Order cancelled (updated):")
	require.Equal(t, domain.OrderStatusCancelled, cancelled.Status)

	shown = result[domain.Product](t, h.run("product", "show", "--id", id(p.ID)), "Product:")
	require.EqualValues(t, 10, shown.Stock)

	refunded := result[domain.Payment](t, h.run("payment", "refund", "--order", id(created.Order.ID)), "Payment refunded:")
	require.Equal(t, domain.PaymentStatusRefunded, refunded.Status)

	require.True(t, strings.HasPrefix(
		h.run("payment", "refund", "--order", id(created.Order.ID)), "Error: invalid state: payment"))
}

func TestCLI_PayAndReports(t *testing.T) {
	h := newHarness(t)
	p := result[domain.Product](t, h.run("product", "add", "--name", "Rice", "--sku", "R", "--price", "2.50", "--stock", "4"), "Created product:")
	c := result[domain.Customer](t, h.run("customer", "add", "--name", "A", "--email", "a@example.com", "--phone", "1"), "Created customer:")
	o := result[domain.OrderDetails](t, h.run("order", "create", "--customer", id(c.ID), "--item", id(p.ID)+":1", "--item", id(p.ID)+":1"), "Order created:")
	require.Len(t, o.Items, 2)
	require.Equal(t, domain.Money(500), o.Order.TotalAmount)

	paid := result[domain.Payment](t, h.run("payment", "pay", "--order", id(o.Order.ID), "--method", "UPI"), "Payment processed:")
	require.Equal(t, domain.PaymentStatusPaid, paid.Status)
	require.Equal(t, domain.Money(500), paid.Amount)

	top := result[[]domain.ProductSales](t, h.run("report", "top-products"), "Top selling products:")
	require.Len(t, top, 1)
	require.EqualValues(t, 2, top[0].Quantity)

	revenue := result[domain.RevenueReport](t, h.run("report", "revenue", "--from", "2000-01-01", "--to", "2100-01-01"), "Revenue:")
	require.Equal(t, domain.Money(500), revenue.Total)

	perCustomer := result[[]domain.CustomerOrderCount](t, h.run("report", "orders-per-customer"), "Orders per customer:")
	require.Len(t, perCustomer, 1)
	require.EqualValues(t, 1, perCustomer[0].Orders)

	loyal := result[[]domain.CustomerOrderCount](t, h.run("report", "loyal-customers", "--min", "0"), "Loyal customers:")
	require.Len(t, loyal, 1)

	require.True(t, strings.HasPrefix(h.run("report", "revenue", "--from", "nope", "--to", "2100-01-01"), "Error: validation error"))
}

func TestCLI_ProductCommands(t *testing.T) {
	h := newHarness(t)
	p := result[domain.Product](t, h.run("product", "add", "--name", "Green Tea", "--sku", "GT", "--price", "3", "--stock", "2", "--category", "Drinks"), "Created product:")

	updated := result[domain.Product](t, h.run("product", "update", "--id", id(p.ID), "--price", "4.20", "--category", ""), "Updated product:")
	require.Equal(t, domain.Money(420), updated.Price)
	require.Equal(t, "", updated.Category)
	require.Equal(t, "Green Tea", updated.Name)

	restocked := result[domain.Product](t, h.run("product", "restock", "--id", id(p.ID), "--delta", "3"), "Restocked product:")
	require.EqualValues(t, 5, restocked.Stock)

	require.True(t, strings.HasPrefix(h.run("product", "reduce", "--id", id(p.ID), "--delta", "9"), "Error: insufficient stock"))

	found := result[[]domain.Product](t, h.run("product", "search", "--name", "tea"), "Products:")
	require.Len(t, found, 1)

	low := result[[]domain.Product](t, h.run("product", "low-stock", "--threshold", "5"), "Low stock products:")
	require.Len(t, low, 1)

	require.True(t, strings.HasPrefix(h.run("product", "delete", "--id", id(p.ID)), "Error: delete blocked"))
	result[domain.Product](t, h.run("product", "reduce", "--id", id(p.ID), "--delta", "5"), "Reduced stock:")
	result[domain.Product](t, h.run("product", "delete", "--id", id(p.ID)), "Deleted product:")

	list := result[[]domain.Product](t, h.run("product", "list"), "Products:")
	require.Empty(t, list)
}

func TestCLI_CustomerCommands(t *testing.T) {
	h := newHarness(t)
	c := result[domain.Customer](t, h.run("customer", "add", "--name", "B", "--email", "b@example.com", "--phone", "2", "--city", "Pune"), "Created customer:")

	require.True(t, strings.HasPrefix(
		h.run("customer", "add", "--name", "B2", "--email", "b@example.com", "--phone", "3"), "Error: already exists"))

	updated := result[domain.Customer](t, h.run("customer", "update", "--id", id(c.ID), "--city", "Delhi"), "Updated customer:")
	require.Equal(t, "Delhi", updated.City)
	require.Equal(t, "2", updated.Phone)

	require.Equal(t, "Error: validation error: no fields to update\n", h.run("customer", "update", "--id", id(c.ID)))

	byCity := result[[]domain.Customer](t, h.run("customer", "search", "--city", "Delhi"), "Customers:")
	require.Len(t, byCity, 1)

	all := result[[]domain.Customer](t, h.run("customer", "list"), "Customers:")
	require.Len(t, all, 1)

	result[domain.Customer](t, h.run("customer", "delete", "--id", id(c.ID)), "Deleted customer:")
	require.True(t, strings.HasPrefix(h.run("customer", "delete", "--id", id(c.ID)), "Error: not found"))
}

func TestCLI_UsageAndFlagErrors(t *testing.T) {
	h := newHarness(t)

	require.Contains(t, h.run(), "usage: retail")
	require.Contains(t, h.run("warehouse", "list"), "usage: retail")
	require.Contains(t, h.run("product", "explode"), "usage: retail")

	require.Equal(t, "Error: flag --sku is required\n", h.run("product", "add", "--name", "X", "--price", "1"))
	require.Equal(t, "Error: flag provided but not defined: -color\n", h.run("product", "list", "--color", "red"))
	require.Contains(t, h.run("order", "create", "--customer", "1", "--item", "abc"), "invalid item format")
	require.True(t, strings.HasPrefix(h.run("payment", "pay", "--order", "1", "--method", "Cheque"), "Error: validation error"))
	require.True(t, strings.HasPrefix(h.run("product", "add", "--name", "X", "--sku", "X", "--price", "1.999"), "Error: validation error"))
}

func TestParseItem(t *testing.T) {
	item, err := parseItem(" 12:3 ")
	require.NoError(t, err)
	require.Equal(t, domain.ItemRequest{ProductID: 12, Quantity: 3}, item)

	for _, raw := range []string{"12", "x:1", "1:y", ""} {
		_, err := parseItem(raw)
		require.Error(t, err, raw)
	}

	var list itemList
	require.NoError(t, list.Set("1:2"))
	require.NoError(t, list.Set("3:4"))
	require.Equal(t, "1:2,3:4", list.String())
}
