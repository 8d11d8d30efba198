// Package payment реализует оплату и возврат по заказам.
package payment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/retail/internal/domain"
	"github.com/vladislavdragonenkov/retail/internal/metrics"
	"github.com/vladislavdragonenkov/retail/internal/service/idempotency"
	"github.com/vladislavdragonenkov/retail/internal/service/lifecycle"
)

// Service проводит оплату и возврат. Изменение платежа, статуса заказа и
// событий выполняется в одной транзакции.
type Service struct {
	store    domain.Store
	recorder *lifecycle.Recorder
	keeper   *idempotency.Keeper
	metrics  *metrics.WorkflowMetrics
	logger   *log.Entry
}

// NewService создаёт платёжный сервис. recorder и m могут быть nil.
func NewService(store domain.Store, recorder *lifecycle.Recorder, m *metrics.WorkflowMetrics, logger *log.Entry) *Service {
	if recorder == nil {
		recorder = lifecycle.NewRecorder(nil)
	}
	if logger == nil {
		logger = log.New().WithField("component", "payment")
	}
	return &Service{
		store:    store,
		recorder: recorder,
		keeper:   idempotency.NewKeeper(0, nil),
		metrics:  m,
		logger:   logger,
	}
}

// WithKeeper заменяет Keeper ключей идемпотентности.
func (s *Service) WithKeeper(keeper *idempotency.Keeper) *Service {
	if keeper != nil {
		s.keeper = keeper
	}
	return s
}

type payRequest struct {
	OrderID int64                `json:"order_id"`
	Method  domain.PaymentMethod `json:"method"`
}

// Pay оплачивает заказ в статусе PLACED полной суммой и переводит его в COMPLETED.
func (s *Service) Pay(ctx context.Context, orderID int64, rawMethod string) (domain.Payment, error) {
	paid, _, err := s.pay(ctx, "", orderID, rawMethod)
	return paid, err
}

// PayOnce оплачивает заказ под ключом идемпотентности. Повтор с тем же ключом
// возвращает сохранённый платёж (replayed=true) вместо ErrInvalidState.
func (s *Service) PayOnce(ctx context.Context, key string, orderID int64, rawMethod string) (domain.Payment, bool, error) {
	if _, err := domain.NormalizeIdempotencyKey(key); err != nil {
		return domain.Payment{}, false, err
	}
	return s.pay(ctx, key, orderID, rawMethod)
}

func (s *Service) pay(ctx context.Context, key string, orderID int64, rawMethod string) (domain.Payment, bool, error) {
	start := time.Now()
	defer func() { s.metrics.RecordDuration(metrics.OperationPay, time.Since(start)) }()

	method, err := domain.ParsePaymentMethod(rawMethod)
	if err != nil {
		s.reject(metrics.OperationPay, err, orderID)
		return domain.Payment{}, false, err
	}

	var (
		claim idempotency.Claim
		paid  domain.Payment
	)
	err = s.store.WithinTx(ctx, func(repos domain.Repositories) error {
		if key != "" {
			var err error
			claim, err = s.keeper.Begin(ctx, repos, key, domain.IdempotencyOperationPayOrder,
				payRequest{OrderID: orderID, Method: method})
			if err != nil || claim.Replayed {
				return err
			}
		}

		order, err := repos.Orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !order.Status.CanTransitionTo(domain.OrderStatusCompleted) {
			return domain.InvalidStatef("order %d is %s, only %s orders can be paid",
				orderID, order.Status, domain.OrderStatusPlaced)
		}

		paid, err = repos.Payments.Create(ctx, domain.Payment{
			OrderID:   orderID,
			Amount:    order.TotalAmount,
			Status:    domain.PaymentStatusPaid,
			Method:    method,
			Reference: uuid.NewString(),
		})
		if err != nil {
			return err
		}

		completed, err := repos.Orders.UpdateStatus(ctx, orderID, domain.OrderStatusPlaced, domain.OrderStatusCompleted)
		if err != nil {
			return err
		}
		if err := s.recorder.Record(ctx, repos, completed, domain.EventOrderPaid, "", map[string]any{
			"payment_id": paid.ID,
			"method":     string(method),
			"reference":  paid.Reference,
		}); err != nil {
			return err
		}
		if key != "" {
			return s.keeper.Finish(ctx, repos, claim, paid)
		}
		return nil
	})
	if err != nil {
		s.reject(metrics.OperationPay, err, orderID)
		return domain.Payment{}, false, err
	}

	if claim.Replayed {
		replayed, err := idempotency.Decode[domain.Payment](claim)
		if err != nil {
			s.reject(metrics.OperationPay, err, orderID)
			return domain.Payment{}, false, err
		}
		s.logger.WithFields(log.Fields{
			"order_id":        orderID,
			"payment_id":      replayed.ID,
			"idempotency_key": key,
		}).Info("payment request replayed")
		return replayed, true, nil
	}

	s.metrics.RecordPayment(method)
	s.metrics.RecordTimelineEvent()
	s.metrics.RecordOutboxEvent()
	s.logger.WithFields(log.Fields{
		"order_id":   orderID,
		"payment_id": paid.ID,
		"method":     method,
		"amount":     paid.Amount.String(),
	}).Info("order paid")
	return paid, false, nil
}

// Refund помечает последний платёж отменённого заказа как REFUNDED.
// Если заказ не оплачивался, сохраняется запись возврата с нулевой суммой.
func (s *Service) Refund(ctx context.Context, orderID int64) (domain.Payment, error) {
	start := time.Now()
	defer func() { s.metrics.RecordDuration(metrics.OperationRefund, time.Since(start)) }()

	var refunded domain.Payment
	err := s.store.WithinTx(ctx, func(repos domain.Repositories) error {
		order, err := repos.Orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != domain.OrderStatusCancelled {
			return domain.InvalidStatef("order %d is %s, only %s orders can be refunded",
				orderID, order.Status, domain.OrderStatusCancelled)
		}

		latest, err := repos.Payments.LatestByOrder(ctx, orderID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			refunded, err = repos.Payments.Create(ctx, domain.Payment{
				OrderID:   orderID,
				Status:    domain.PaymentStatusRefunded,
				Method:    domain.PaymentMethodNone,
				Reference: uuid.NewString(),
			})
			if err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if !latest.Status.CanTransitionTo(domain.PaymentStatusRefunded) {
				return domain.InvalidStatef("payment %d of order %d is already %s", latest.ID, orderID, latest.Status)
			}
			refunded, err = repos.Payments.UpdateStatus(ctx, latest.ID, latest.Status, domain.PaymentStatusRefunded)
			if err != nil {
				return err
			}
		}

		return s.recorder.Record(ctx, repos, order, domain.EventOrderRefunded, "", map[string]any{
			"payment_id": refunded.ID,
			"amount":     refunded.Amount.String(),
		})
	})
	if err != nil {
		s.reject(metrics.OperationRefund, err, orderID)
		return domain.Payment{}, err
	}

	s.metrics.RecordRefund()
	s.metrics.RecordTimelineEvent()
	s.metrics.RecordOutboxEvent()
	s.logger.WithFields(log.Fields{
		"order_id":   orderID,
		"payment_id": refunded.ID,
		"amount":     refunded.Amount.String(),
	}).Info("payment refunded")
	return refunded, nil
}

func (s *Service) reject(operation string, err error, orderID int64) {
	s.metrics.RecordRejection(operation, err)
	entry := s.logger.WithError(err).WithFields(log.Fields{
		"order_id":  orderID,
		"operation": operation,
	})
	if domain.IsBusiness(err) {
		entry.Warn("payment operation rejected")
		return
	}
	entry.Error("payment operation failed")
}
