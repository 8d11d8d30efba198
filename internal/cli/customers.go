package cli

import (
	"context"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

func (c *CLI) customerAdd(ctx context.Context, args []string) error {
	fs := newFlagSet("customer add")
	name := fs.String("name", "", "customer name")
	email := fs.String("email", "", "unique email")
	phone := fs.String("phone", "", "phone number")
	city := fs.String("city", "", "city")
	if err := parse(fs, args, "name", "email", "phone"); err != nil {
		return err
	}
	cust, err := c.svc.Customers.AddCustomer(ctx, domain.NewCustomer{
		Name:  *name,
		Email: *email,
		Phone: *phone,
		City:  *city,
	})
	if err != nil {
		return err
	}
	return c.print("Created customer:", cust)
}

func (c *CLI) customerUpdate(ctx context.Context, args []string) error {
	fs := newFlagSet("customer update")
	id := fs.Int64("id", 0, "customer id")
	phone := fs.String("phone", "", "new phone")
	city := fs.String("city", "", "new city")
	if err := parse(fs, args, "id"); err != nil {
		return err
	}
	cust, err := c.svc.Customers.UpdateCustomer(ctx, *id, domain.CustomerPatch{Phone: *phone, City: *city})
	if err != nil {
		return err
	}
	return c.print("Updated customer:", cust)
}

func (c *CLI) customerDelete(ctx context.Context, args []string) error {
	fs := newFlagSet("customer delete")
	id := fs.Int64("id", 0, "customer id")
	if err := parse(fs, args, "id"); err != nil {
		return err
	}
	cust, err := c.svc.Customers.DeleteCustomer(ctx, *id)
	if err != nil {
		return err
	}
	return c.print("Deleted customer:", cust)
}

func (c *CLI) customerList(ctx context.Context, args []string) error {
	fs := newFlagSet("customer list")
	limit := fs.Int("limit", 100, "max rows")
	if err := parse(fs, args); err != nil {
		return err
	}
	customers, err := c.svc.Customers.ListCustomers(ctx, *limit)
	if err != nil {
		return err
	}
	return c.print("Customers:", customers)
}

func (c *CLI) customerSearch(ctx context.Context, args []string) error {
	fs := newFlagSet("customer search")
	email := fs.String("email", "", "exact email")
	city := fs.String("city", "", "city")
	if err := parse(fs, args); err != nil {
		return err
	}
	customers, err := c.svc.Customers.SearchCustomers(ctx, domain.CustomerFilter{Email: *email, City: *city})
	if err != nil {
		return err
	}
	return c.print("Customers:", customers)
}
