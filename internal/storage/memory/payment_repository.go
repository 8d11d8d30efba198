package memory

import (
	"context"
	"fmt"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

type paymentRepository struct {
	v view
}

func (r *paymentRepository) Create(_ context.Context, p domain.Payment) (domain.Payment, error) {
	var created domain.Payment
	err := r.v.write(func(st *state) error {
		if _, ok := st.orders[p.OrderID]; !ok {
			return domain.NotFoundf("order %d", p.OrderID)
		}
		if p.Status == domain.PaymentStatusRefunded {
			for _, existing := range st.payments {
				if existing.OrderID == p.OrderID && existing.Status == domain.PaymentStatusRefunded {
					return domain.InvalidStatef("order %d is already refunded", p.OrderID)
				}
			}
		}
		st.paymentSeq++
		now := r.v.now()
		created = p
		created.ID = st.paymentSeq
		created.CreatedAt = now
		created.UpdatedAt = now
		st.payments[created.ID] = created
		return nil
	})
	return created, err
}

// LatestByOrder возвращает платёж с наибольшим ID для заказа.
func (r *paymentRepository) LatestByOrder(_ context.Context, orderID int64) (domain.Payment, error) {
	var latest domain.Payment
	err := r.v.read(func(st *state) error {
		for _, p := range st.payments {
			if p.OrderID == orderID && p.ID > latest.ID {
				latest = p
			}
		}
		if latest.ID == 0 {
			return domain.NotFoundf("payment for order %d", orderID)
		}
		return nil
	})
	return latest, err
}

func (r *paymentRepository) UpdateStatus(_ context.Context, id int64, from, to domain.PaymentStatus) (domain.Payment, error) {
	var updated domain.Payment
	err := r.v.write(func(st *state) error {
		p, ok := st.payments[id]
		if !ok {
			return domain.NotFoundf("payment %d", id)
		}
		if p.Status != from {
			return fmt.Errorf("%w: payment %d is %s, expected %s", domain.ErrInvalidState, id, p.Status, from)
		}
		p.Status = to
		p.UpdatedAt = r.v.now()
		st.payments[id] = p
		updated = p
		return nil
	})
	return updated, err
}

var _ domain.PaymentRepository = (*paymentRepository)(nil)
