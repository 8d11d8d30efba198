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

const customerColumns = `id, name, email, phone, city, created_at`

type customerRepository struct {
	db dbtx
}

// NewCustomerRepository создаёт PostgreSQL-реализацию CustomerRepository вне транзакции.
func NewCustomerRepository(store *Store) domain.CustomerRepository {
	return &customerRepository{db: store.DB()}
}

func (r *customerRepository) Create(ctx context.Context, c domain.NewCustomer) (domain.Customer, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	created, err := scanCustomer(r.db.QueryRowContext(ctx, `
		INSERT INTO customers (name, email, phone, city)
		VALUES ($1,$2,$3,$4)
		RETURNING `+customerColumns,
		c.Name, c.Email, c.Phone, c.City,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Customer{}, fmt.Errorf("%w: customer with email %q", domain.ErrAlreadyExists, c.Email)
		}
		return domain.Customer{}, fmt.Errorf("insert customer: %w", err)
	}
	return created, nil
}

func (r *customerRepository) Get(ctx context.Context, id int64) (domain.Customer, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	c, err := scanCustomer(r.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Customer{}, domain.NotFoundf("customer %d", id)
		}
		return domain.Customer{}, fmt.Errorf("select customer: %w", err)
	}
	return c, nil
}

func (r *customerRepository) GetByEmail(ctx context.Context, email string) (domain.Customer, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	c, err := scanCustomer(r.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE email = $1`, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Customer{}, domain.NotFoundf("customer with email %q", email)
		}
		return domain.Customer{}, fmt.Errorf("select customer by email: %w", err)
	}
	return c, nil
}

func (r *customerRepository) List(ctx context.Context, filter domain.CustomerFilter) ([]domain.Customer, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	var (
		conds []string
		args  []any
	)
	if filter.Email != "" {
		args = append(args, filter.Email)
		conds = append(conds, "email = $"+strconv.Itoa(len(args)))
	}
	if filter.City != "" {
		args = append(args, filter.City)
		conds = append(conds, "city = $"+strconv.Itoa(len(args)))
	}

	query := `SELECT ` + customerColumns + ` FROM customers`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan customer row: %w", err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate customer rows: %w", err)
	}

	return customers, nil
}

func (r *customerRepository) Update(ctx context.Context, c domain.Customer) (domain.Customer, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	updated, err := scanCustomer(r.db.QueryRowContext(ctx, `
		UPDATE customers
		SET phone = $2,
		    city = $3
		WHERE id = $1
		RETURNING `+customerColumns,
		c.ID, c.Phone, c.City,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Customer{}, domain.NotFoundf("customer %d", c.ID)
		}
		return domain.Customer{}, fmt.Errorf("update customer: %w", err)
	}
	return updated, nil
}

func (r *customerRepository) Delete(ctx context.Context, id int64) (domain.Customer, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	deleted, err := scanCustomer(r.db.QueryRowContext(ctx, `DELETE FROM customers WHERE id = $1 RETURNING `+customerColumns, id))
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return domain.Customer{}, domain.NotFoundf("customer %d", id)
		case isForeignKeyViolation(err):
			return domain.Customer{}, fmt.Errorf("%w: customer %d has orders", domain.ErrDeleteBlocked, id)
		}
		return domain.Customer{}, fmt.Errorf("delete customer: %w", err)
	}
	return deleted, nil
}

func scanCustomer(row scanner) (domain.Customer, error) {
	var c domain.Customer
	if err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.City, &c.CreatedAt); err != nil {
		return domain.Customer{}, err
	}
	return c, nil
}

var _ domain.CustomerRepository = (*customerRepository)(nil)
