package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

type customerRepository struct {
	v view
}

func (r *customerRepository) Create(_ context.Context, c domain.NewCustomer) (domain.Customer, error) {
	var created domain.Customer
	err := r.v.write(func(st *state) error {
		if _, taken := st.emailIndex[c.Email]; taken {
			return fmt.Errorf("%w: customer with email %q", domain.ErrAlreadyExists, c.Email)
		}
		st.customerSeq++
		created = domain.Customer{
			ID:        st.customerSeq,
			Name:      c.Name,
			Email:     c.Email,
			Phone:     c.Phone,
			City:      c.City,
			CreatedAt: r.v.now(),
		}
		st.customers[created.ID] = created
		st.emailIndex[created.Email] = created.ID
		return nil
	})
	return created, err
}

func (r *customerRepository) Get(_ context.Context, id int64) (domain.Customer, error) {
	var found domain.Customer
	err := r.v.read(func(st *state) error {
		c, ok := st.customers[id]
		if !ok {
			return domain.NotFoundf("customer %d", id)
		}
		found = c
		return nil
	})
	return found, err
}

func (r *customerRepository) GetByEmail(_ context.Context, email string) (domain.Customer, error) {
	var found domain.Customer
	err := r.v.read(func(st *state) error {
		id, ok := st.emailIndex[email]
		if !ok {
			return domain.NotFoundf("customer with email %q", email)
		}
		found = st.customers[id]
		return nil
	})
	return found, err
}

func (r *customerRepository) List(_ context.Context, filter domain.CustomerFilter) ([]domain.Customer, error) {
	var result []domain.Customer
	err := r.v.read(func(st *state) error {
		result = make([]domain.Customer, 0, len(st.customers))
		for _, c := range st.customers {
			if filter.Email != "" && c.Email != filter.Email {
				continue
			}
			if filter.City != "" && c.City != filter.City {
				continue
			}
			result = append(result, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return applyLimit(result, filter.Limit), nil
}

func (r *customerRepository) Update(_ context.Context, c domain.Customer) (domain.Customer, error) {
	var updated domain.Customer
	err := r.v.write(func(st *state) error {
		current, ok := st.customers[c.ID]
		if !ok {
			return domain.NotFoundf("customer %d", c.ID)
		}
		current.Phone = c.Phone
		current.City = c.City
		st.customers[c.ID] = current
		updated = current
		return nil
	})
	return updated, err
}

func (r *customerRepository) Delete(_ context.Context, id int64) (domain.Customer, error) {
	var deleted domain.Customer
	err := r.v.write(func(st *state) error {
		c, ok := st.customers[id]
		if !ok {
			return domain.NotFoundf("customer %d", id)
		}
		for _, o := range st.orders {
			if o.CustomerID == id {
				return fmt.Errorf("%w: customer %d has orders", domain.ErrDeleteBlocked, id)
			}
		}
		delete(st.customers, id)
		delete(st.emailIndex, c.Email)
		deleted = c
		return nil
	})
	return deleted, err
}

var _ domain.CustomerRepository = (*customerRepository)(nil)
