// Package catalog содержит операции над каталогом товаров и складскими остатками.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

// DefaultLowStockThreshold используется, если порог не задан.
const DefaultLowStockThreshold = 5

// Service проверяет ввод и делегирует изменения хранилищу.
type Service struct {
	store  domain.Store
	logger *log.Entry
}

// NewService создаёт сервис каталога.
func NewService(store domain.Store, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "catalog")
	}
	return &Service{store: store, logger: logger}
}

// AddProduct добавляет товар. Дубликат SKU даёт ErrAlreadyExists.
func (s *Service) AddProduct(ctx context.Context, in domain.NewProduct) (domain.Product, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return domain.Product{}, err
	}

	var created domain.Product
	err := s.store.WithinTx(ctx, func(repos domain.Repositories) error {
		// Предварительная проверка даёт понятное сообщение; гарантию даёт UNIQUE.
		if _, err := repos.Products.GetBySKU(ctx, in.SKU); err == nil {
			return fmt.Errorf("%w: product with sku %q", domain.ErrAlreadyExists, in.SKU)
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		var err error
		created, err = repos.Products.Create(ctx, in)
		return err
	})
	if err != nil {
		s.logRejected("add product", err, log.Fields{"sku": in.SKU})
		return domain.Product{}, err
	}

	s.logger.WithFields(log.Fields{
		"product_id": created.ID,
		"sku":        created.SKU,
	}).Info("product added")
	return created, nil
}

// GetProduct возвращает товар по идентификатору.
func (s *Service) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	return s.store.Repositories().Products.Get(ctx, id)
}

// ListProducts возвращает товары, при необходимости ограничивая категорией.
func (s *Service) ListProducts(ctx context.Context, category string, limit int) ([]domain.Product, error) {
	return s.store.Repositories().Products.List(ctx, domain.ProductFilter{
		Category: strings.TrimSpace(category),
		Limit:    limit,
	})
}

// SearchProducts ищет товары по подстроке названия без учёта регистра.
func (s *Service) SearchProducts(ctx context.Context, name string, limit int) ([]domain.Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.Validationf("search term is required")
	}
	return s.store.Repositories().Products.List(ctx, domain.ProductFilter{
		NameContains: name,
		Limit:        limit,
	})
}

// LowStock возвращает товары с остатком не больше threshold.
func (s *Service) LowStock(ctx context.Context, threshold int64) ([]domain.Product, error) {
	if threshold < 0 {
		return nil, domain.Validationf("threshold must be >= 0, got %d", threshold)
	}
	return s.store.Repositories().Products.List(ctx, domain.ProductFilter{MaxStock: &threshold})
}

// UpdateProduct частично обновляет товар. Пустой патч возвращает текущую запись.
func (s *Service) UpdateProduct(ctx context.Context, id int64, patch domain.ProductPatch) (domain.Product, error) {
	var updated domain.Product
	err := s.store.WithinTx(ctx, func(repos domain.Repositories) error {
		current, err := repos.Products.Get(ctx, id)
		if err != nil {
			return err
		}
		if patch.IsEmpty() {
			updated = current
			return nil
		}

		next := patch.Apply(current)
		if err := next.Validate(); err != nil {
			return err
		}
		if next.SKU != current.SKU {
			owner, err := repos.Products.GetBySKU(ctx, next.SKU)
			switch {
			case err == nil && owner.ID != id:
				return fmt.Errorf("%w: product with sku %q", domain.ErrAlreadyExists, next.SKU)
			case err != nil && !errors.Is(err, domain.ErrNotFound):
				return err
			}
		}

		updated, err = repos.Products.Update(ctx, next)
		return err
	})
	if err != nil {
		s.logRejected("update product", err, log.Fields{"product_id": id})
		return domain.Product{}, err
	}

	s.logger.WithField("product_id", id).Info("product updated")
	return updated, nil
}

// Restock увеличивает остаток на delta > 0.
func (s *Service) Restock(ctx context.Context, id, delta int64) (domain.Product, error) {
	if delta <= 0 {
		return domain.Product{}, domain.Validationf("delta must be > 0, got %d", delta)
	}
	return s.adjust(ctx, "restock", id, delta)
}

// ReduceStock уменьшает остаток на delta > 0. При нехватке ErrInsufficientStock.
func (s *Service) ReduceStock(ctx context.Context, id, delta int64) (domain.Product, error) {
	if delta <= 0 {
		return domain.Product{}, domain.Validationf("delta must be > 0, got %d", delta)
	}
	return s.adjust(ctx, "reduce stock", id, -delta)
}

func (s *Service) adjust(ctx context.Context, op string, id, delta int64) (domain.Product, error) {
	product, err := s.store.Repositories().Products.AdjustStock(ctx, id, delta)
	if err != nil {
		s.logRejected(op, err, log.Fields{"product_id": id, "delta": delta})
		return domain.Product{}, err
	}
	s.logger.WithFields(log.Fields{
		"product_id": id,
		"delta":      delta,
		"stock":      product.Stock,
	}).Info("stock adjusted")
	return product, nil
}

// DeleteProduct удаляет товар с нулевым остатком и возвращает удалённую запись.
func (s *Service) DeleteProduct(ctx context.Context, id int64) (domain.Product, error) {
	var deleted domain.Product
	err := s.store.WithinTx(ctx, func(repos domain.Repositories) error {
		current, err := repos.Products.Get(ctx, id)
		if err != nil {
			return err
		}
		if current.Stock > 0 {
			return fmt.Errorf("%w: product %d still has %d in stock", domain.ErrDeleteBlocked, id, current.Stock)
		}
		deleted, err = repos.Products.Delete(ctx, id)
		return err
	})
	if err != nil {
		s.logRejected("delete product", err, log.Fields{"product_id": id})
		return domain.Product{}, err
	}

	s.logger.WithField("product_id", id).Info("product deleted")
	return deleted, nil
}

func (s *Service) logRejected(op string, err error, fields log.Fields) {
	entry := s.logger.WithError(err).WithFields(fields).WithField("operation", op)
	if domain.IsBusiness(err) {
		entry.Debug("operation rejected")
		return
	}
	entry.Error("operation failed")
}
