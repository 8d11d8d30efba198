package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

const orderColumns = `id, customer_id, total_minor, status, order_date, updated_at`

type orderRepository struct {
	db dbtx
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository вне транзакции.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

func (r *orderRepository) Create(ctx context.Context, order domain.Order) (domain.Order, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	var orderDate any
	if !order.OrderDate.IsZero() {
		orderDate = order.OrderDate
	}

	created, err := scanOrder(r.db.QueryRowContext(ctx, `
		INSERT INTO orders (customer_id, total_minor, status, order_date)
		VALUES ($1, $2, $3, COALESCE($4::timestamptz, NOW()))
		RETURNING `+orderColumns,
		order.CustomerID, int64(order.TotalAmount), string(order.Status), orderDate,
	))
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.Order{}, domain.NotFoundf("customer %d", order.CustomerID)
		}
		return domain.Order{}, fmt.Errorf("insert order: %w", err)
	}
	return created, nil
}

func (r *orderRepository) AddItems(ctx context.Context, orderID int64, items []domain.OrderItem) ([]domain.OrderItem, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	saved := make([]domain.OrderItem, 0, len(items))
	for _, item := range items {
		var price int64
		stored := domain.OrderItem{}
		err := r.db.QueryRowContext(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity, price_minor)
			VALUES ($1,$2,$3,$4)
			RETURNING id, order_id, product_id, quantity, price_minor
		`,
			orderID, item.ProductID, item.Quantity, int64(item.Price),
		).Scan(&stored.ID, &stored.OrderID, &stored.ProductID, &stored.Quantity, &price)
		if err != nil {
			if isForeignKeyViolation(err) {
				return nil, domain.NotFoundf("order %d or product %d", orderID, item.ProductID)
			}
			return nil, fmt.Errorf("insert order item: %w", err)
		}
		stored.Price = domain.Money(price)
		saved = append(saved, stored)
	}
	return saved, nil
}

func (r *orderRepository) Get(ctx context.Context, id int64) (domain.Order, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	order, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.NotFoundf("order %d", id)
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}
	return order, nil
}

// GetForUpdate берёт блокировку строки заказа (SELECT ... FOR UPDATE). Вне транзакции
// блокировка снимается сразу после запроса.
func (r *orderRepository) GetForUpdate(ctx context.Context, id int64) (domain.Order, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	order, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.NotFoundf("order %d", id)
		}
		return domain.Order{}, fmt.Errorf("lock order: %w", err)
	}
	return order, nil
}

func (r *orderRepository) Items(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, quantity, price_minor
		FROM order_items
		WHERE order_id = $1
		ORDER BY id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		var (
			item  domain.OrderItem
			price int64
		)
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &price); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: order item %d has quantity %d", domain.ErrStoreIntegrity, item.ID, item.Quantity)
		}
		item.Price = domain.Money(price)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	return items, nil
}

func (r *orderRepository) ListByCustomer(ctx context.Context, customerID int64, limit int) ([]domain.Order, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE customer_id = $1
		ORDER BY order_date DESC, id DESC
	`

	var (
		rows *sql.Rows
		err  error
	)

	if limit > 0 {
		rows, err = r.db.QueryContext(ctx, query+" LIMIT $2", customerID, limit)
	} else {
		rows, err = r.db.QueryContext(ctx, query, customerID)
	}
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	return orders, nil
}

func (r *orderRepository) CountByCustomer(ctx context.Context, customerID int64) (int, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE customer_id = $1`, customerID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count customer orders: %w", err)
	}
	return count, nil
}

// UpdateStatus меняет статус условным UPDATE по ожидаемому текущему статусу.
func (r *orderRepository) UpdateStatus(ctx context.Context, id int64, from, to domain.OrderStatus) (domain.Order, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	updated, err := scanOrder(r.db.QueryRowContext(ctx, `
		UPDATE orders
		SET status = $3,
		    updated_at = NOW()
		WHERE id = $1
		  AND status = $2
		RETURNING `+orderColumns,
		id, string(from), string(to),
	))
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, fmt.Errorf("update order status: %w", err)
	}

	current, err := r.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	return domain.Order{}, fmt.Errorf("%w: order %d is %s, expected %s", domain.ErrInvalidState, id, current.Status, from)
}

func scanOrder(row scanner) (domain.Order, error) {
	var (
		order  domain.Order
		total  int64
		status string
	)
	if err := row.Scan(&order.ID, &order.CustomerID, &total, &status, &order.OrderDate, &order.UpdatedAt); err != nil {
		return domain.Order{}, err
	}
	parsed, err := domain.ParseOrderStatus(status)
	if err != nil {
		return domain.Order{}, err
	}
	order.Status = parsed
	order.TotalAmount = domain.Money(total)
	return order, nil
}

var _ domain.OrderRepository = (*orderRepository)(nil)
