package cli

import (
	"context"
	"time"

	"github.com/vladislavdragonenkov/retail/internal/domain"
	"github.com/vladislavdragonenkov/retail/internal/service/report"
)

func (c *CLI) reportTopProducts(ctx context.Context, args []string) error {
	fs := newFlagSet("report top-products")
	limit := fs.Int("limit", report.DefaultTopLimit, "number of products")
	if err := parse(fs, args); err != nil {
		return err
	}
	rows, err := c.svc.Reports.TopSellingProducts(ctx, *limit)
	if err != nil {
		return err
	}
	return c.print("Top selling products:", rows)
}

// reportRevenue без --from/--to считает выручку за прошлый календарный месяц.
func (c *CLI) reportRevenue(ctx context.Context, args []string) error {
	fs := newFlagSet("report revenue")
	from := fs.String("from", "", "start date YYYY-MM-DD (inclusive)")
	to := fs.String("to", "", "end date YYYY-MM-DD (exclusive)")
	if err := parse(fs, args); err != nil {
		return err
	}

	var (
		result domain.RevenueReport
		err    error
	)
	if *from == "" && *to == "" {
		result, err = c.svc.Reports.RevenueLastMonth(ctx)
	} else {
		var start, end time.Time
		if start, err = parseDate("from", *from); err != nil {
			return err
		}
		if end, err = parseDate("to", *to); err != nil {
			return err
		}
		result, err = c.svc.Reports.Revenue(ctx, start, end)
	}
	if err != nil {
		return err
	}
	return c.print("Revenue:", result)
}

func parseDate(name, raw string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, domain.Validationf("invalid --%s %q, expected YYYY-MM-DD", name, raw)
	}
	return t, nil
}

func (c *CLI) reportOrdersPerCustomer(ctx context.Context, args []string) error {
	if err := parse(newFlagSet("report orders-per-customer"), args); err != nil {
		return err
	}
	rows, err := c.svc.Reports.OrdersPerCustomer(ctx)
	if err != nil {
		return err
	}
	return c.print("Orders per customer:", rows)
}

func (c *CLI) reportLoyalCustomers(ctx context.Context, args []string) error {
	fs := newFlagSet("report loyal-customers")
	minOrders := fs.Int64("min", 1, "customers with more than this many orders")
	if err := parse(fs, args); err != nil {
		return err
	}
	rows, err := c.svc.Reports.CustomersWithMoreThan(ctx, *minOrders)
	if err != nil {
		return err
	}
	return c.print("Loyal customers:", rows)
}
