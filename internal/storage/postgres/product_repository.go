package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

const productColumns = `id, name, sku, price_minor, stock, category, created_at, updated_at`

type productRepository struct {
	db dbtx
}

// NewProductRepository создаёт PostgreSQL-реализацию ProductRepository вне транзакции.
func NewProductRepository(store *Store) domain.ProductRepository {
	return &productRepository{db: store.DB()}
}

func (r *productRepository) Create(ctx context.Context, p domain.NewProduct) (domain.Product, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	created, err := scanProduct(r.db.QueryRowContext(ctx, `
		INSERT INTO products (name, sku, price_minor, stock, category)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING `+productColumns,
		p.Name, p.SKU, int64(p.Price), p.Stock, p.Category,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Product{}, fmt.Errorf("%w: product with sku %q", domain.ErrAlreadyExists, p.SKU)
		}
		return domain.Product{}, fmt.Errorf("insert product: %w", err)
	}
	return created, nil
}

func (r *productRepository) Get(ctx context.Context, id int64) (domain.Product, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	p, err := scanProduct(r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.NotFoundf("product %d", id)
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}
	return p, nil
}

func (r *productRepository) GetBySKU(ctx context.Context, sku string) (domain.Product, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	p, err := scanProduct(r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE sku = $1`, sku))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.NotFoundf("product with sku %q", sku)
		}
		return domain.Product{}, fmt.Errorf("select product by sku: %w", err)
	}
	return p, nil
}

func (r *productRepository) List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if filter.Category != "" {
		conds = append(conds, "category = "+arg(filter.Category))
	}
	if filter.NameContains != "" {
		conds = append(conds, "name ILIKE "+arg("%"+escapeLike(filter.NameContains)+"%"))
	}
	if filter.MaxStock != nil {
		conds = append(conds, "stock <= "+arg(*filter.MaxStock))
	}

	query := `SELECT ` + productColumns + ` FROM products`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}

	return products, nil
}

func (r *productRepository) Update(ctx context.Context, p domain.Product) (domain.Product, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	updated, err := scanProduct(r.db.QueryRowContext(ctx, `
		UPDATE products
		SET name = $2,
		    sku = $3,
		    price_minor = $4,
		    stock = $5,
		    category = $6,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING `+productColumns,
		p.ID, p.Name, p.SKU, int64(p.Price), p.Stock, p.Category,
	))
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return domain.Product{}, domain.NotFoundf("product %d", p.ID)
		case isUniqueViolation(err):
			return domain.Product{}, fmt.Errorf("%w: product with sku %q", domain.ErrAlreadyExists, p.SKU)
		}
		return domain.Product{}, fmt.Errorf("update product: %w", err)
	}
	return updated, nil
}

func (r *productRepository) Delete(ctx context.Context, id int64) (domain.Product, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	deleted, err := scanProduct(r.db.QueryRowContext(ctx, `DELETE FROM products WHERE id = $1 RETURNING `+productColumns, id))
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return domain.Product{}, domain.NotFoundf("product %d", id)
		case isForeignKeyViolation(err):
			return domain.Product{}, fmt.Errorf("%w: product %d is referenced by orders", domain.ErrDeleteBlocked, id)
		}
		return domain.Product{}, fmt.Errorf("delete product: %w", err)
	}
	return deleted, nil
}

// AdjustStock меняет остаток условным UPDATE: строка не обновится, если остаток ушёл бы в минус.
func (r *productRepository) AdjustStock(ctx context.Context, id int64, delta int64) (domain.Product, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	updated, err := scanProduct(r.db.QueryRowContext(ctx, `
		UPDATE products
		SET stock = stock + $2,
		    updated_at = NOW()
		WHERE id = $1
		  AND stock + $2 >= 0
		RETURNING `+productColumns,
		id, delta,
	))
	switch {
	case err == nil:
		return updated, nil
	case isOutOfRange(err):
		return domain.Product{}, domain.Validationf("stock of product %d cannot change by %d", id, delta)
	case !errors.Is(err, sql.ErrNoRows):
		return domain.Product{}, fmt.Errorf("adjust product stock: %w", err)
	}

	var stock int64
	if err := r.db.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = $1`, id).Scan(&stock); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.NotFoundf("product %d", id)
		}
		return domain.Product{}, fmt.Errorf("check product stock: %w", err)
	}
	return domain.Product{}, fmt.Errorf("%w: product %d has %d, requested %d", domain.ErrInsufficientStock, id, stock, -delta)
}

func scanProduct(row scanner) (domain.Product, error) {
	var (
		p     domain.Product
		price int64
	)
	if err := row.Scan(&p.ID, &p.Name, &p.SKU, &price, &p.Stock, &p.Category, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return domain.Product{}, err
	}
	p.Price = domain.Money(price)
	if p.Stock < 0 || p.Price <= 0 {
		return domain.Product{}, fmt.Errorf("%w: product %d has stock %d and price %s", domain.ErrStoreIntegrity, p.ID, p.Stock, p.Price)
	}
	return p, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

var _ domain.ProductRepository = (*productRepository)(nil)
