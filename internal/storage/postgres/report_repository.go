package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

type reportRepository struct {
	db dbtx
}

// NewReportRepository создаёт PostgreSQL-реализацию ReportRepository.
func NewReportRepository(store *Store) domain.ReportRepository {
	return &reportRepository{db: store.DB()}
}

func (r *reportRepository) TopSellingProducts(ctx context.Context, limit int) ([]domain.ProductSales, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	// LIMIT NULL в PostgreSQL означает выборку без ограничения.
	var lim any
	if limit > 0 {
		lim = limit
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT oi.product_id, COALESCE(p.name, $2), SUM(oi.quantity) AS total_qty
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		LEFT JOIN products p ON p.id = oi.product_id
		WHERE o.status <> 'CANCELLED'
		GROUP BY oi.product_id, p.name
		ORDER BY total_qty DESC, oi.product_id ASC
		LIMIT $1::bigint
	`, lim, domain.UnknownProductName)
	if err != nil {
		return nil, fmt.Errorf("top selling products: %w", err)
	}
	defer rows.Close()

	result := make([]domain.ProductSales, 0)
	for rows.Next() {
		var row domain.ProductSales
		if err := rows.Scan(&row.ProductID, &row.Name, &row.Quantity); err != nil {
			return nil, fmt.Errorf("scan top selling row: %w", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate top selling rows: %w", err)
	}
	return result, nil
}

func (r *reportRepository) Revenue(ctx context.Context, from, to time.Time) (domain.Money, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	var total int64
	if err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_minor), 0)
		FROM orders
		WHERE status = 'COMPLETED'
		  AND order_date >= $1
		  AND order_date < $2
	`, from, to).Scan(&total); err != nil {
		return 0, fmt.Errorf("revenue query: %w", err)
	}
	return domain.Money(total), nil
}

func (r *reportRepository) OrdersPerCustomer(ctx context.Context) ([]domain.CustomerOrderCount, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT o.customer_id, c.name, COUNT(o.id) AS total_orders
		FROM orders o
		JOIN customers c ON c.id = o.customer_id
		GROUP BY o.customer_id, c.name
		ORDER BY total_orders DESC, o.customer_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("orders per customer: %w", err)
	}
	defer rows.Close()

	result := make([]domain.CustomerOrderCount, 0)
	for rows.Next() {
		var row domain.CustomerOrderCount
		if err := rows.Scan(&row.CustomerID, &row.Name, &row.Orders); err != nil {
			return nil, fmt.Errorf("scan orders per customer row: %w", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders per customer rows: %w", err)
	}
	return result, nil
}

var _ domain.ReportRepository = (*reportRepository)(nil)
