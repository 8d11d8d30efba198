package cli

import (
	"context"

	"github.com/vladislavdragonenkov/retail/internal/domain"
	"github.com/vladislavdragonenkov/retail/internal/service/catalog"
)

func (c *CLI) productAdd(ctx context.Context, args []string) error {
	fs := newFlagSet("product add")
	name := fs.String("name", "", "product name")
	sku := fs.String("sku", "", "stock keeping unit")
	price := fs.String("price", "", "unit price, e.g. 99.90")
	stock := fs.Int64("stock", 0, "initial stock")
	category := fs.String("category", "", "category")
	if err := parse(fs, args, "name", "sku", "price"); err != nil {
		return err
	}

	amount, err := domain.ParseMoney(*price)
	if err != nil {
		return err
	}
	p, err := c.svc.Catalog.AddProduct(ctx, domain.NewProduct{
		Name:     *name,
		SKU:      *sku,
		Price:    amount,
		Stock:    *stock,
		Category: *category,
	})
	if err != nil {
		return err
	}
	return c.print("Created product:", p)
}

func (c *CLI) productList(ctx context.Context, args []string) error {
	fs := newFlagSet("product list")
	category := fs.String("category", "", "filter by category")
	limit := fs.Int("limit", 100, "max rows")
	if err := parse(fs, args); err != nil {
		return err
	}
	products, err := c.svc.Catalog.ListProducts(ctx, *category, *limit)
	if err != nil {
		return err
	}
	return c.print("Products:", products)
}

func (c *CLI) productShow(ctx context.Context, args []string) error {
	fs := newFlagSet("product show")
	id := fs.Int64("id", 0, "product id")
	if err := parse(fs, args, "id"); err != nil {
		return err
	}
	p, err := c.svc.Catalog.GetProduct(ctx, *id)
	if err != nil {
		return err
	}
	return c.print("Product:", p)
}

// productUpdate меняет только явно переданные поля.
func (c *CLI) productUpdate(ctx context.Context, args []string) error {
	fs := newFlagSet("product update")
	id := fs.Int64("id", 0, "product id")
	name := fs.String("name", "", "new name")
	sku := fs.String("sku", "", "new sku")
	price := fs.String("price", "", "new price")
	stock := fs.Int64("stock", 0, "new stock")
	category := fs.String("category", "", "new category")
	if err := parse(fs, args, "id"); err != nil {
		return err
	}

	set := visited(fs)
	var patch domain.ProductPatch
	if set["name"] {
		patch.Name = name
	}
	if set["sku"] {
		patch.SKU = sku
	}
	if set["price"] {
		amount, err := domain.ParseMoney(*price)
		if err != nil {
			return err
		}
		patch.Price = &amount
	}
	if set["stock"] {
		patch.Stock = stock
	}
	if set["category"] {
		patch.Category = category
	}

	p, err := c.svc.Catalog.UpdateProduct(ctx, *id, patch)
	if err != nil {
		return err
	}
	return c.print("Updated product:", p)
}

func (c *CLI) productRestock(ctx context.Context, args []string) error {
	return c.adjustStock(ctx, "product restock", args, "Restocked product:", c.svc.Catalog.Restock)
}

func (c *CLI) productReduce(ctx context.Context, args []string) error {
	return c.adjustStock(ctx, "product reduce", args, "Reduced stock:", c.svc.Catalog.ReduceStock)
}

func (c *CLI) adjustStock(
	ctx context.Context,
	name string,
	args []string,
	heading string,
	apply func(ctx context.Context, id, delta int64) (domain.Product, error),
) error {
	fs := newFlagSet(name)
	id := fs.Int64("id", 0, "product id")
	delta := fs.Int64("delta", 0, "quantity, > 0")
	if err := parse(fs, args, "id", "delta"); err != nil {
		return err
	}
	p, err := apply(ctx, *id, *delta)
	if err != nil {
		return err
	}
	return c.print(heading, p)
}

func (c *CLI) productDelete(ctx context.Context, args []string) error {
	fs := newFlagSet("product delete")
	id := fs.Int64("id", 0, "product id")
	if err := parse(fs, args, "id"); err != nil {
		return err
	}
	p, err := c.svc.Catalog.DeleteProduct(ctx, *id)
	if err != nil {
		return err
	}
	return c.print("Deleted product:", p)
}

func (c *CLI) productSearch(ctx context.Context, args []string) error {
	fs := newFlagSet("product search")
	name := fs.String("name", "", "substring of the product name")
	limit := fs.Int("limit", 100, "max rows")
	if err := parse(fs, args, "name"); err != nil {
		return err
	}
	products, err := c.svc.Catalog.SearchProducts(ctx, *name, *limit)
	if err != nil {
		return err
	}
	return c.print("Products:", products)
}

func (c *CLI) productLowStock(ctx context.Context, args []string) error {
	fs := newFlagSet("product low-stock")
	threshold := fs.Int64("threshold", catalog.DefaultLowStockThreshold, "stock threshold")
	if err := parse(fs, args); err != nil {
		return err
	}
	products, err := c.svc.Catalog.LowStock(ctx, *threshold)
	if err != nil {
		return err
	}
	return c.print("Low stock products:", products)
}
