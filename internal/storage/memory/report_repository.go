package memory

import (
	"context"
	"sort"
	"time"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

type reportRepository struct {
	v view
}

func (r *reportRepository) TopSellingProducts(_ context.Context, limit int) ([]domain.ProductSales, error) {
	totals := make(map[int64]*domain.ProductSales)
	err := r.v.read(func(st *state) error {
		for orderID, items := range st.items {
			if st.orders[orderID].Status == domain.OrderStatusCancelled {
				continue
			}
			for _, item := range items {
				row, ok := totals[item.ProductID]
				if !ok {
					name := domain.UnknownProductName
					if p, exists := st.products[item.ProductID]; exists {
						name = p.Name
					}
					row = &domain.ProductSales{ProductID: item.ProductID, Name: name}
					totals[item.ProductID] = row
				}
				row.Quantity += item.Quantity
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := make([]domain.ProductSales, 0, len(totals))
	for _, row := range totals {
		result = append(result, *row)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Quantity != result[j].Quantity {
			return result[i].Quantity > result[j].Quantity
		}
		return result[i].ProductID < result[j].ProductID
	})
	return applyLimit(result, limit), nil
}

func (r *reportRepository) Revenue(_ context.Context, from, to time.Time) (domain.Money, error) {
	var total domain.Money
	err := r.v.read(func(st *state) error {
		for _, o := range st.orders {
			if o.Status != domain.OrderStatusCompleted {
				continue
			}
			if o.OrderDate.Before(from) || !o.OrderDate.Before(to) {
				continue
			}
			total += o.TotalAmount
		}
		return nil
	})
	return total, err
}

func (r *reportRepository) OrdersPerCustomer(_ context.Context) ([]domain.CustomerOrderCount, error) {
	counts := make(map[int64]*domain.CustomerOrderCount)
	err := r.v.read(func(st *state) error {
		for _, o := range st.orders {
			row, ok := counts[o.CustomerID]
			if !ok {
				row = &domain.CustomerOrderCount{CustomerID: o.CustomerID, Name: st.customers[o.CustomerID].Name}
				counts[o.CustomerID] = row
			}
			row.Orders++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := make([]domain.CustomerOrderCount, 0, len(counts))
	for _, row := range counts {
		result = append(result, *row)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Orders != result[j].Orders {
			return result[i].Orders > result[j].Orders
		}
		return result[i].CustomerID < result[j].CustomerID
	})
	return result, nil
}

var _ domain.ReportRepository = (*reportRepository)(nil)
