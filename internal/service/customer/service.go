// Package customer содержит операции над покупателями.
package customer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

// Service проверяет ввод и делегирует изменения хранилищу.
type Service struct {
	store  domain.Store
	logger *log.Entry
}

// NewService создаёт сервис покупателей.
func NewService(store domain.Store, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "customer")
	}
	return &Service{store: store, logger: logger}
}

// AddCustomer регистрирует покупателя. Повтор email даёт ErrAlreadyExists.
func (s *Service) AddCustomer(ctx context.Context, in domain.NewCustomer) (domain.Customer, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return domain.Customer{}, err
	}

	var created domain.Customer
	err := s.store.WithinTx(ctx, func(repos domain.Repositories) error {
		if _, err := repos.Customers.GetByEmail(ctx, in.Email); err == nil {
			return fmt.Errorf("%w: customer with email %q", domain.ErrAlreadyExists, in.Email)
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		var err error
		created, err = repos.Customers.Create(ctx, in)
		return err
	})
	if err != nil {
		s.logRejected("add customer", err, log.Fields{"email": in.Email})
		return domain.Customer{}, err
	}

	s.logger.WithField("customer_id", created.ID).Info("customer added")
	return created, nil
}

// UpdateCustomer меняет телефон и/или город.
func (s *Service) UpdateCustomer(ctx context.Context, id int64, patch domain.CustomerPatch) (domain.Customer, error) {
	patch = patch.Normalize()
	if patch.IsEmpty() {
		return domain.Customer{}, domain.Validationf("no fields to update")
	}

	var updated domain.Customer
	err := s.store.WithinTx(ctx, func(repos domain.Repositories) error {
		current, err := repos.Customers.Get(ctx, id)
		if err != nil {
			return err
		}
		updated, err = repos.Customers.Update(ctx, patch.Apply(current))
		return err
	})
	if err != nil {
		s.logRejected("update customer", err, log.Fields{"customer_id": id})
		return domain.Customer{}, err
	}

	s.logger.WithField("customer_id", id).Info("customer updated")
	return updated, nil
}

// DeleteCustomer удаляет покупателя без заказов и возвращает удалённую запись.
func (s *Service) DeleteCustomer(ctx context.Context, id int64) (domain.Customer, error) {
	var deleted domain.Customer
	err := s.store.WithinTx(ctx, func(repos domain.Repositories) error {
		if _, err := repos.Customers.Get(ctx, id); err != nil {
			return err
		}
		count, err := repos.Orders.CountByCustomer(ctx, id)
		if err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: customer %d has %d orders", domain.ErrDeleteBlocked, id, count)
		}
		deleted, err = repos.Customers.Delete(ctx, id)
		return err
	})
	if err != nil {
		s.logRejected("delete customer", err, log.Fields{"customer_id": id})
		return domain.Customer{}, err
	}

	s.logger.WithField("customer_id", id).Info("customer deleted")
	return deleted, nil
}

// GetCustomer возвращает покупателя по идентификатору.
func (s *Service) GetCustomer(ctx context.Context, id int64) (domain.Customer, error) {
	return s.store.Repositories().Customers.Get(ctx, id)
}

// ListCustomers возвращает покупателей по возрастанию id.
func (s *Service) ListCustomers(ctx context.Context, limit int) ([]domain.Customer, error) {
	return s.store.Repositories().Customers.List(ctx, domain.CustomerFilter{Limit: limit})
}

// SearchCustomers ищет покупателей по точному email и/или городу.
func (s *Service) SearchCustomers(ctx context.Context, filter domain.CustomerFilter) ([]domain.Customer, error) {
	filter.Email = strings.TrimSpace(filter.Email)
	filter.City = strings.TrimSpace(filter.City)
	return s.store.Repositories().Customers.List(ctx, filter)
}

func (s *Service) logRejected(op string, err error, fields log.Fields) {
	entry := s.logger.WithError(err).WithFields(fields).WithField("operation", op)
	if domain.IsBusiness(err) {
		entry.Debug("operation rejected")
		return
	}
	entry.Error("operation failed")
}
