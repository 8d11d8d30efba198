package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

type productRepository struct {
	v view
}

func (r *productRepository) Create(_ context.Context, p domain.NewProduct) (domain.Product, error) {
	var created domain.Product
	err := r.v.write(func(st *state) error {
		if _, taken := st.skuIndex[p.SKU]; taken {
			return fmt.Errorf("%w: product with sku %q", domain.ErrAlreadyExists, p.SKU)
		}
		st.productSeq++
		now := r.v.now()
		created = domain.Product{
			ID:        st.productSeq,
			Name:      p.Name,
			SKU:       p.SKU,
			Price:     p.Price,
			Stock:     p.Stock,
			Category:  p.Category,
			CreatedAt: now,
			UpdatedAt: now,
		}
		st.products[created.ID] = created
		st.skuIndex[created.SKU] = created.ID
		return nil
	})
	return created, err
}

func (r *productRepository) Get(_ context.Context, id int64) (domain.Product, error) {
	var found domain.Product
	err := r.v.read(func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return domain.NotFoundf("product %d", id)
		}
		found = p
		return nil
	})
	return found, err
}

func (r *productRepository) GetBySKU(_ context.Context, sku string) (domain.Product, error) {
	var found domain.Product
	err := r.v.read(func(st *state) error {
		id, ok := st.skuIndex[sku]
		if !ok {
			return domain.NotFoundf("product with sku %q", sku)
		}
		found = st.products[id]
		return nil
	})
	return found, err
}

func (r *productRepository) List(_ context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	needle := strings.ToLower(filter.NameContains)
	var result []domain.Product
	err := r.v.read(func(st *state) error {
		result = make([]domain.Product, 0, len(st.products))
		for _, p := range st.products {
			if filter.Category != "" && p.Category != filter.Category {
				continue
			}
			if needle != "" && !strings.Contains(strings.ToLower(p.Name), needle) {
				continue
			}
			if filter.MaxStock != nil && p.Stock > *filter.MaxStock {
				continue
			}
			result = append(result, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return applyLimit(result, filter.Limit), nil
}

func (r *productRepository) Update(_ context.Context, p domain.Product) (domain.Product, error) {
	var updated domain.Product
	err := r.v.write(func(st *state) error {
		current, ok := st.products[p.ID]
		if !ok {
			return domain.NotFoundf("product %d", p.ID)
		}
		if owner, taken := st.skuIndex[p.SKU]; taken && owner != p.ID {
			return fmt.Errorf("%w: product with sku %q", domain.ErrAlreadyExists, p.SKU)
		}
		delete(st.skuIndex, current.SKU)
		updated = current
		updated.Name = p.Name
		updated.SKU = p.SKU
		updated.Price = p.Price
		updated.Stock = p.Stock
		updated.Category = p.Category
		updated.UpdatedAt = r.v.now()
		st.products[p.ID] = updated
		st.skuIndex[updated.SKU] = updated.ID
		return nil
	})
	return updated, err
}

func (r *productRepository) Delete(_ context.Context, id int64) (domain.Product, error) {
	var deleted domain.Product
	err := r.v.write(func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return domain.NotFoundf("product %d", id)
		}
		for _, items := range st.items {
			for _, item := range items {
				if item.ProductID == id {
					return fmt.Errorf("%w: product %d is referenced by order %d", domain.ErrDeleteBlocked, id, item.OrderID)
				}
			}
		}
		delete(st.products, id)
		delete(st.skuIndex, p.SKU)
		deleted = p
		return nil
	})
	return deleted, err
}

func (r *productRepository) AdjustStock(_ context.Context, id int64, delta int64) (domain.Product, error) {
	var updated domain.Product
	err := r.v.write(func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return domain.NotFoundf("product %d", id)
		}
		stock, err := domain.AddQuantity(p.Stock, delta)
		if err != nil {
			return domain.Validationf("stock of product %d cannot change by %d", id, delta)
		}
		if stock < 0 {
			return fmt.Errorf("%w: product %d has %d, requested %d", domain.ErrInsufficientStock, id, p.Stock, -delta)
		}
		p.Stock = stock
		p.UpdatedAt = r.v.now()
		st.products[id] = p
		updated = p
		return nil
	})
	return updated, err
}

var _ domain.ProductRepository = (*productRepository)(nil)
