// Package report строит отчёты только для чтения поверх ReportRepository.
package report

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

// DefaultTopLimit — размер отчёта о самых продаваемых товарах по умолчанию.
const DefaultTopLimit = 5

// Service отдаёт агрегаты продаж и покупателей.
type Service struct {
	store  domain.Store
	now    func() time.Time
	logger *log.Entry
}

// NewService создаёт сервис отчётов. nil now означает time.Now().UTC().
func NewService(store domain.Store, now func() time.Time, logger *log.Entry) *Service {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	if logger == nil {
		logger = log.New().WithField("component", "report")
	}
	return &Service{store: store, now: now, logger: logger}
}

// TopSellingProducts возвращает товары по убыванию проданного количества
// без учёта отменённых заказов. limit <= 0 заменяется на DefaultTopLimit.
func (s *Service) TopSellingProducts(ctx context.Context, limit int) ([]domain.ProductSales, error) {
	if limit <= 0 {
		limit = DefaultTopLimit
	}
	return s.store.Repositories().Reports.TopSellingProducts(ctx, limit)
}

// Revenue суммирует оплаченные заказы с датой в [from, to).
func (s *Service) Revenue(ctx context.Context, from, to time.Time) (domain.RevenueReport, error) {
	if !from.Before(to) {
		return domain.RevenueReport{}, domain.Validationf("period start %s must be before end %s",
			from.Format(time.DateOnly), to.Format(time.DateOnly))
	}
	total, err := s.store.Repositories().Reports.Revenue(ctx, from, to)
	if err != nil {
		s.logger.WithError(err).Error("revenue report failed")
		return domain.RevenueReport{}, err
	}
	return domain.RevenueReport{From: from, To: to, Total: total}, nil
}

// RevenueLastMonth считает выручку за предыдущий календарный месяц.
func (s *Service) RevenueLastMonth(ctx context.Context) (domain.RevenueReport, error) {
	from, to := PreviousMonth(s.now())
	return s.Revenue(ctx, from, to)
}

// PreviousMonth возвращает границы [from, to) календарного месяца перед now
// в часовом поясе now. Январь переходит в декабрь прошлого года.
func PreviousMonth(now time.Time) (time.Time, time.Time) {
	year, month, _ := now.Date()
	to := time.Date(year, month, 1, 0, 0, 0, 0, now.Location())
	if month == time.January {
		year, month = year-1, time.December
	} else {
		month--
	}
	return time.Date(year, month, 1, 0, 0, 0, 0, now.Location()), to
}

// OrdersPerCustomer возвращает число заказов каждого покупателя, у которого они есть.
func (s *Service) OrdersPerCustomer(ctx context.Context) ([]domain.CustomerOrderCount, error) {
	return s.store.Repositories().Reports.OrdersPerCustomer(ctx)
}

// CustomersWithMoreThan оставляет покупателей, у которых заказов больше n.
func (s *Service) CustomersWithMoreThan(ctx context.Context, n int64) ([]domain.CustomerOrderCount, error) {
	if n < 0 {
		return nil, domain.Validationf("minimum order count must be >= 0, got %d", n)
	}
	all, err := s.OrdersPerCustomer(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]domain.CustomerOrderCount, 0, len(all))
	for _, row := range all {
		if row.Orders > n {
			result = append(result, row)
		}
	}
	return result, nil
}
