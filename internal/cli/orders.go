package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

// itemList — повторяемый флаг --item PRODID:QTY.
type itemList []domain.ItemRequest

func (l *itemList) String() string {
	parts := make([]string, 0, len(*l))
	for _, item := range *l {
		parts = append(parts, fmt.Sprintf("%d:%d", item.ProductID, item.Quantity))
	}
	return strings.Join(parts, ",")
}

func (l *itemList) Set(raw string) error {
	item, err := parseItem(raw)
	if err != nil {
		return err
	}
	*l = append(*l, item)
	return nil
}

func parseItem(raw string) (domain.ItemRequest, error) {
	pid, qty, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok {
		return domain.ItemRequest{}, fmt.Errorf("invalid item format %q, expected PRODID:QTY", raw)
	}
	productID, err := strconv.ParseInt(pid, 10, 64)
	if err != nil {
		return domain.ItemRequest{}, fmt.Errorf("invalid item format %q: bad product id", raw)
	}
	quantity, err := strconv.ParseInt(qty, 10, 64)
	if err != nil {
		return domain.ItemRequest{}, fmt.Errorf("invalid item format %q: bad quantity", raw)
	}
	return domain.ItemRequest{ProductID: productID, Quantity: quantity}, nil
}

func (c *CLI) orderCreate(ctx context.Context, args []string) error {
	fs := newFlagSet("order create")
	customerID := fs.Int64("customer", 0, "customer id")
	var items itemList
	fs.Var(&items, "item", "PRODID:QTY (repeatable)")
	if err := parse(fs, args, "customer", "item"); err != nil {
		return err
	}
	details, err := c.svc.Orders.CreateOrder(ctx, *customerID, items)
	if err != nil {
		return err
	}
	return c.print("Order created:", details)
}

func (c *CLI) orderShow(ctx context.Context, args []string) error {
	fs := newFlagSet("order show")
	id := fs.Int64("order", 0, "order id")
	if err := parse(fs, args, "order"); err != nil {
		return err
	}
	details, err := c.svc.Orders.GetOrderDetails(ctx, *id)
	if err != nil {
		return err
	}
	return c.print("Order:", details)
}

func (c *CLI) orderCancel(ctx context.Context, args []string) error {
	fs := newFlagSet("order cancel")
	id := fs.Int64("order", 0, "order id")
	if err := parse(fs, args, "order"); err != nil {
		return err
	}
	o, err := c.svc.Orders.CancelOrder(ctx, *id)
	if err != nil {
		return err
	}
	return c.print("Order cancelled (updated):", o)
}

func (c *CLI) paymentPay(ctx context.Context, args []string) error {
	fs := newFlagSet("payment pay")
	id := fs.Int64("order", 0, "order id")
	method := fs.String("method", "", "Cash, Card or UPI")
	if err := parse(fs, args, "order", "method"); err != nil {
		return err
	}
	p, err := c.svc.Payments.Pay(ctx, *id, *method)
	if err != nil {
		return err
	}
	return c.print("Payment processed:", p)
}

func (c *CLI) paymentRefund(ctx context.Context, args []string) error {
	fs := newFlagSet("payment refund")
	id := fs.Int64("order", 0, "order id")
	if err := parse(fs, args, "order"); err != nil {
		return err
	}
	p, err := c.svc.Payments.Refund(ctx, *id)
	if err != nil {
		return err
	}
	return c.print("Payment refunded:", p)
}
