package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

const paymentColumns = `id, order_id, amount_minor, status, method, reference, created_at, updated_at`

type paymentRepository struct {
	db dbtx
}

// NewPaymentRepository создаёт PostgreSQL-реализацию PaymentRepository вне транзакции.
func NewPaymentRepository(store *Store) domain.PaymentRepository {
	return &paymentRepository{db: store.DB()}
}

func (r *paymentRepository) Create(ctx context.Context, p domain.Payment) (domain.Payment, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	created, err := scanPayment(r.db.QueryRowContext(ctx, `
		INSERT INTO payments (order_id, amount_minor, status, method, reference)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING `+paymentColumns,
		p.OrderID, int64(p.Amount), string(p.Status), string(p.Method), p.Reference,
	))
	if err != nil {
		switch {
		case isForeignKeyViolation(err):
			return domain.Payment{}, domain.NotFoundf("order %d", p.OrderID)
		case isUniqueViolation(err):
			return domain.Payment{}, domain.InvalidStatef("order %d is already refunded", p.OrderID)
		}
		return domain.Payment{}, fmt.Errorf("insert payment: %w", err)
	}
	return created, nil
}

func (r *paymentRepository) LatestByOrder(ctx context.Context, orderID int64) (domain.Payment, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	p, err := scanPayment(r.db.QueryRowContext(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE order_id = $1
		ORDER BY id DESC
		LIMIT 1
	`, orderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Payment{}, domain.NotFoundf("payment for order %d", orderID)
		}
		return domain.Payment{}, fmt.Errorf("select latest payment: %w", err)
	}
	return p, nil
}

func (r *paymentRepository) UpdateStatus(ctx context.Context, id int64, from, to domain.PaymentStatus) (domain.Payment, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	updated, err := scanPayment(r.db.QueryRowContext(ctx, `
		UPDATE payments
		SET status = $3,
		    updated_at = NOW()
		WHERE id = $1
		  AND status = $2
		RETURNING `+paymentColumns,
		id, string(from), string(to),
	))
	switch {
	case err == nil:
		return updated, nil
	case isUniqueViolation(err):
		return domain.Payment{}, domain.InvalidStatef("payment %d: order is already refunded", id)
	case !errors.Is(err, sql.ErrNoRows):
		return domain.Payment{}, fmt.Errorf("update payment status: %w", err)
	}

	var status string
	if err := r.db.QueryRowContext(ctx, `SELECT status FROM payments WHERE id = $1`, id).Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Payment{}, domain.NotFoundf("payment %d", id)
		}
		return domain.Payment{}, fmt.Errorf("check payment status: %w", err)
	}
	return domain.Payment{}, fmt.Errorf("%w: payment %d is %s, expected %s", domain.ErrInvalidState, id, status, from)
}

func scanPayment(row scanner) (domain.Payment, error) {
	var (
		p      domain.Payment
		amount int64
		status string
		method string
	)
	if err := row.Scan(&p.ID, &p.OrderID, &amount, &status, &method, &p.Reference, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return domain.Payment{}, err
	}
	parsed, err := domain.ParsePaymentStatus(status)
	if err != nil {
		return domain.Payment{}, err
	}
	p.Status = parsed
	p.Amount = domain.Money(amount)
	if method != "" {
		if p.Method, err = domain.ParsePaymentMethod(method); err != nil {
			return domain.Payment{}, fmt.Errorf("%w: payment %d has method %q", domain.ErrStoreIntegrity, p.ID, method)
		}
	}
	return p, nil
}

var _ domain.PaymentRepository = (*paymentRepository)(nil)
