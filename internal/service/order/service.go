// Package order реализует workflow заказа: оформление, просмотр и отмену.
package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/retail/internal/domain"
	"github.com/vladislavdragonenkov/retail/internal/metrics"
	"github.com/vladislavdragonenkov/retail/internal/service/idempotency"
	"github.com/vladislavdragonenkov/retail/internal/service/lifecycle"
)

// Service оформляет и отменяет заказы. Каждая операция записи выполняется
// в одной транзакции хранилища вместе с событиями timeline и outbox.
type Service struct {
	store    domain.Store
	recorder *lifecycle.Recorder
	keeper   *idempotency.Keeper
	metrics  *metrics.WorkflowMetrics
	logger   *log.Entry
}

// NewService создаёт сервис заказов. recorder и m могут быть nil.
func NewService(store domain.Store, recorder *lifecycle.Recorder, m *metrics.WorkflowMetrics, logger *log.Entry) *Service {
	if recorder == nil {
		recorder = lifecycle.NewRecorder(nil)
	}
	if logger == nil {
		logger = log.New().WithField("component", "order")
	}
	return &Service{
		store:    store,
		recorder: recorder,
		keeper:   idempotency.NewKeeper(0, nil),
		metrics:  m,
		logger:   logger,
	}
}

// WithKeeper заменяет Keeper ключей идемпотентности (например, с другим TTL).
func (s *Service) WithKeeper(keeper *idempotency.Keeper) *Service {
	if keeper != nil {
		s.keeper = keeper
	}
	return s
}

// createOrderRequest — тело запроса, от которого считается хэш ключа идемпотентности.
type createOrderRequest struct {
	CustomerID int64                `json:"customer_id"`
	Items      []domain.ItemRequest `json:"items"`
}

// CreateOrder оформляет заказ. Сначала проверяются покупатель, все товары и
// остатки, и только затем списывается склад. Любая ошибка откатывает всё.
func (s *Service) CreateOrder(ctx context.Context, customerID int64, items []domain.ItemRequest) (domain.OrderDetails, error) {
	details, _, err := s.createOrder(ctx, "", customerID, items)
	return details, err
}

// CreateOrderOnce оформляет заказ под ключом идемпотентности. Ключ, заказ и ответ
// фиксируются одной транзакцией. Повтор с тем же ключом и телом возвращает ответ
// первого запроса (replayed=true) и ничего не списывает; с другим телом — ErrAlreadyExists.
func (s *Service) CreateOrderOnce(ctx context.Context, key string, customerID int64, items []domain.ItemRequest) (domain.OrderDetails, bool, error) {
	if _, err := domain.NormalizeIdempotencyKey(key); err != nil {
		return domain.OrderDetails{}, false, err
	}
	return s.createOrder(ctx, key, customerID, items)
}

func (s *Service) createOrder(ctx context.Context, key string, customerID int64, items []domain.ItemRequest) (domain.OrderDetails, bool, error) {
	start := time.Now()
	defer func() { s.metrics.RecordDuration(metrics.OperationCreateOrder, time.Since(start)) }()

	if err := domain.ValidateItems(items); err != nil {
		s.reject(metrics.OperationCreateOrder, err, log.Fields{"customer_id": customerID})
		return domain.OrderDetails{}, false, err
	}
	requested, err := domain.SumQuantities(items)
	if err != nil {
		s.reject(metrics.OperationCreateOrder, err, log.Fields{"customer_id": customerID})
		return domain.OrderDetails{}, false, err
	}

	var (
		claim   idempotency.Claim
		details domain.OrderDetails
	)
	err = s.store.WithinTx(ctx, func(repos domain.Repositories) error {
		if key != "" {
			var err error
			claim, err = s.keeper.Begin(ctx, repos, key, domain.IdempotencyOperationCreateOrder,
				createOrderRequest{CustomerID: customerID, Items: items})
			if err != nil || claim.Replayed {
				return err
			}
		}

		if _, err := repos.Customers.Get(ctx, customerID); err != nil {
			return err
		}

		prices := make(map[int64]domain.Money, len(requested))
		for _, item := range requested {
			product, err := repos.Products.Get(ctx, item.ProductID)
			if err != nil {
				return err
			}
			if product.Stock < item.Quantity {
				return fmt.Errorf("%w: product %d has %d, requested %d",
					domain.ErrInsufficientStock, product.ID, product.Stock, item.Quantity)
			}
			prices[product.ID] = product.Price
		}

		lines := make([]domain.OrderItem, 0, len(items))
		var total domain.Money
		for _, item := range items {
			price := prices[item.ProductID]
			lines = append(lines, domain.OrderItem{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Price:     price,
			})
			subtotal, err := price.Mul(item.Quantity)
			if err != nil {
				return err
			}
			if total, err = total.Add(subtotal); err != nil {
				return err
			}
		}

		// Условное списание: параллельный заказ, успевший забрать остаток,
		// приводит к ErrInsufficientStock и откату.
		for _, item := range requested {
			if _, err := repos.Products.AdjustStock(ctx, item.ProductID, -item.Quantity); err != nil {
				return err
			}
		}

		placed, err := repos.Orders.Create(ctx, domain.Order{
			CustomerID:  customerID,
			TotalAmount: total,
			Status:      domain.OrderStatusPlaced,
		})
		if err != nil {
			return err
		}
		if _, err := repos.Orders.AddItems(ctx, placed.ID, lines); err != nil {
			return err
		}

		if err := s.recorder.Record(ctx, repos, placed, domain.EventOrderPlaced, "", map[string]any{
			"items": len(lines),
		}); err != nil {
			return err
		}

		if details, err = s.details(ctx, repos, placed.ID); err != nil {
			return err
		}
		if key != "" {
			return s.keeper.Finish(ctx, repos, claim, details)
		}
		return nil
	})
	if err != nil {
		s.reject(metrics.OperationCreateOrder, err, log.Fields{"customer_id": customerID})
		return domain.OrderDetails{}, false, err
	}

	if claim.Replayed {
		replayed, err := idempotency.Decode[domain.OrderDetails](claim)
		if err != nil {
			s.reject(metrics.OperationCreateOrder, err, log.Fields{"customer_id": customerID})
			return domain.OrderDetails{}, false, err
		}
		s.logger.WithFields(log.Fields{
			"order_id":        replayed.Order.ID,
			"idempotency_key": key,
		}).Info("order request replayed")
		return replayed, true, nil
	}

	placed := details.Order
	s.metrics.RecordOrderCreated(placed.TotalAmount)
	s.metrics.RecordTimelineEvent()
	s.metrics.RecordOutboxEvent()
	s.logger.WithFields(log.Fields{
		"order_id":     placed.ID,
		"customer_id":  customerID,
		"total_amount": placed.TotalAmount.String(),
	}).Info("order placed")

	return details, false, nil
}

// GetOrderDetails возвращает заказ с покупателем и позициями. Для позиций
// удалённых товаров подставляется domain.UnknownProductName.
func (s *Service) GetOrderDetails(ctx context.Context, orderID int64) (domain.OrderDetails, error) {
	return s.details(ctx, s.store.Repositories(), orderID)
}

func (s *Service) details(ctx context.Context, repos domain.Repositories, orderID int64) (domain.OrderDetails, error) {
	order, err := repos.Orders.Get(ctx, orderID)
	if err != nil {
		return domain.OrderDetails{}, err
	}
	details := domain.OrderDetails{Order: order}

	customer, err := repos.Customers.Get(ctx, order.CustomerID)
	switch {
	case err == nil:
		details.Customer = &customer
	case !errors.Is(err, domain.ErrNotFound):
		return domain.OrderDetails{}, err
	}

	items, err := repos.Orders.Items(ctx, orderID)
	if err != nil {
		return domain.OrderDetails{}, err
	}
	details.Items = make([]domain.ItemDetail, 0, len(items))
	for _, item := range items {
		subtotal, err := item.Price.Mul(item.Quantity)
		if err != nil {
			return domain.OrderDetails{}, err
		}
		detail := domain.ItemDetail{
			OrderItem:   item,
			ProductName: domain.UnknownProductName,
			Subtotal:    subtotal,
		}
		product, err := repos.Products.Get(ctx, item.ProductID)
		switch {
		case err == nil:
			detail.ProductName = product.Name
			detail.CurrentPrice = product.Price
		case !errors.Is(err, domain.ErrNotFound):
			return domain.OrderDetails{}, err
		}
		details.Items = append(details.Items, detail)
	}
	return details, nil
}

// CancelOrder отменяет заказ в статусе PLACED и возвращает остатки на склад.
func (s *Service) CancelOrder(ctx context.Context, orderID int64) (domain.Order, error) {
	start := time.Now()
	defer func() { s.metrics.RecordDuration(metrics.OperationCancelOrder, time.Since(start)) }()

	var cancelled domain.Order
	err := s.store.WithinTx(ctx, func(repos domain.Repositories) error {
		order, err := repos.Orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !order.Status.CanTransitionTo(domain.OrderStatusCancelled) {
			return domain.InvalidStatef("order %d is %s, only %s orders can be cancelled",
				orderID, order.Status, domain.OrderStatusPlaced)
		}

		items, err := repos.Orders.Items(ctx, orderID)
		if err != nil {
			return err
		}
		for _, item := range items {
			if _, err := repos.Products.AdjustStock(ctx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		cancelled, err = repos.Orders.UpdateStatus(ctx, orderID, domain.OrderStatusPlaced, domain.OrderStatusCancelled)
		if err != nil {
			return err
		}
		return s.recorder.Record(ctx, repos, cancelled, domain.EventOrderCancelled, "", nil)
	})
	if err != nil {
		s.reject(metrics.OperationCancelOrder, err, log.Fields{"order_id": orderID})
		return domain.Order{}, err
	}

	s.metrics.RecordOrderCancelled()
	s.metrics.RecordTimelineEvent()
	s.metrics.RecordOutboxEvent()
	s.logger.WithField("order_id", orderID).Info("order cancelled")
	return cancelled, nil
}

// ListCustomerOrders возвращает заказы покупателя от новых к старым.
func (s *Service) ListCustomerOrders(ctx context.Context, customerID int64, limit int) ([]domain.Order, error) {
	repos := s.store.Repositories()
	if _, err := repos.Customers.Get(ctx, customerID); err != nil {
		return nil, err
	}
	return repos.Orders.ListByCustomer(ctx, customerID, limit)
}

// Timeline возвращает историю событий заказа.
func (s *Service) Timeline(ctx context.Context, orderID int64) ([]domain.TimelineEvent, error) {
	repos := s.store.Repositories()
	if _, err := repos.Orders.Get(ctx, orderID); err != nil {
		return nil, err
	}
	return repos.Timeline.List(ctx, orderID)
}

func (s *Service) reject(operation string, err error, fields log.Fields) {
	s.metrics.RecordRejection(operation, err)
	entry := s.logger.WithError(err).WithFields(fields).WithField("operation", operation)
	if domain.IsBusiness(err) {
		entry.Warn("order operation rejected")
		return
	}
	entry.Error("order operation failed")
}
