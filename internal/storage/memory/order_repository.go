package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

type orderRepository struct {
	v view
}

// Create сохраняет заголовок заказа. Покупатель должен существовать.
func (r *orderRepository) Create(_ context.Context, o domain.Order) (domain.Order, error) {
	var created domain.Order
	err := r.v.write(func(st *state) error {
		if _, ok := st.customers[o.CustomerID]; !ok {
			return domain.NotFoundf("customer %d", o.CustomerID)
		}
		st.orderSeq++
		now := r.v.now()
		created = o
		created.ID = st.orderSeq
		if created.OrderDate.IsZero() {
			created.OrderDate = now
		}
		created.UpdatedAt = now
		st.orders[created.ID] = created
		return nil
	})
	return created, err
}

// AddItems сохраняет позиции заказа. Заказ и все товары должны существовать.
func (r *orderRepository) AddItems(_ context.Context, orderID int64, items []domain.OrderItem) ([]domain.OrderItem, error) {
	var saved []domain.OrderItem
	err := r.v.write(func(st *state) error {
		if _, ok := st.orders[orderID]; !ok {
			return domain.NotFoundf("order %d", orderID)
		}
		for _, item := range items {
			if _, ok := st.products[item.ProductID]; !ok {
				return domain.NotFoundf("product %d", item.ProductID)
			}
			if item.Quantity <= 0 {
				return domain.Validationf("quantity must be > 0, got %d", item.Quantity)
			}
		}
		saved = make([]domain.OrderItem, 0, len(items))
		for _, item := range items {
			st.itemSeq++
			item.ID = st.itemSeq
			item.OrderID = orderID
			saved = append(saved, item)
		}
		st.items[orderID] = append(st.items[orderID], saved...)
		return nil
	})
	return saved, err
}

// Get возвращает заголовок заказа или ErrNotFound.
func (r *orderRepository) Get(_ context.Context, id int64) (domain.Order, error) {
	var found domain.Order
	err := r.v.read(func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return domain.NotFoundf("order %d", id)
		}
		found = o
		return nil
	})
	return found, err
}

// GetForUpdate совпадает с Get: транзакции хранилища и так выполняются по одной.
func (r *orderRepository) GetForUpdate(ctx context.Context, id int64) (domain.Order, error) {
	return r.Get(ctx, id)
}

func (r *orderRepository) Items(_ context.Context, orderID int64) ([]domain.OrderItem, error) {
	var result []domain.OrderItem
	err := r.v.read(func(st *state) error {
		result = append([]domain.OrderItem(nil), st.items[orderID]...)
		return nil
	})
	return result, err
}

// ListByCustomer возвращает заказы клиента от новых к старым, ограничивая выборку limit (если >0).
func (r *orderRepository) ListByCustomer(_ context.Context, customerID int64, limit int) ([]domain.Order, error) {
	var result []domain.Order
	err := r.v.read(func(st *state) error {
		for _, o := range st.orders {
			if o.CustomerID == customerID {
				result = append(result, o)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].OrderDate.Equal(result[j].OrderDate) {
			return result[i].OrderDate.After(result[j].OrderDate)
		}
		return result[i].ID > result[j].ID
	})
	return applyLimit(result, limit), nil
}

func (r *orderRepository) CountByCustomer(_ context.Context, customerID int64) (int, error) {
	count := 0
	err := r.v.read(func(st *state) error {
		for _, o := range st.orders {
			if o.CustomerID == customerID {
				count++
			}
		}
		return nil
	})
	return count, err
}

// UpdateStatus переводит заказ из from в to, если текущий статус равен from.
func (r *orderRepository) UpdateStatus(_ context.Context, id int64, from, to domain.OrderStatus) (domain.Order, error) {
	var updated domain.Order
	err := r.v.write(func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return domain.NotFoundf("order %d", id)
		}
		if o.Status != from {
			return fmt.Errorf("%w: order %d is %s, expected %s", domain.ErrInvalidState, id, o.Status, from)
		}
		o.Status = to
		o.UpdatedAt = r.v.now()
		st.orders[id] = o
		updated = o
		return nil
	})
	return updated, err
}

var _ domain.OrderRepository = (*orderRepository)(nil)
