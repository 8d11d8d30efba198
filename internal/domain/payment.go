package domain

import (
	"fmt"
	"strings"
	"time"
)

// PaymentStatus описывает состояние платежа.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

// ParsePaymentStatus проверяет значение, прочитанное из хранилища.
func ParsePaymentStatus(raw string) (PaymentStatus, error) {
	switch s := PaymentStatus(raw); s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusRefunded:
		return s, nil
	default:
		return "", fmt.Errorf("%w: unknown payment status %q", ErrStoreIntegrity, raw)
	}
}

// CanTransitionTo сообщает, разрешён ли переход платежа в next.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	switch next {
	case PaymentStatusPaid:
		return s == PaymentStatusPending
	case PaymentStatusRefunded:
		return s == PaymentStatusPending || s == PaymentStatusPaid
	default:
		return false
	}
}

// PaymentMethod — способ оплаты.
type PaymentMethod string

const (
	PaymentMethodCash PaymentMethod = "Cash"
	PaymentMethodCard PaymentMethod = "Card"
	PaymentMethodUPI  PaymentMethod = "UPI"
	// PaymentMethodNone — у записи возврата без фактической оплаты способа нет.
	PaymentMethodNone PaymentMethod = ""
)

// PaymentMethods перечисляет допустимые способы оплаты.
var PaymentMethods = []PaymentMethod{PaymentMethodCash, PaymentMethodCard, PaymentMethodUPI}

// ParsePaymentMethod приводит ввод к одному из допустимых способов (регистр не важен).
func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	raw = strings.TrimSpace(raw)
	for _, m := range PaymentMethods {
		if strings.EqualFold(raw, string(m)) {
			return m, nil
		}
	}
	return "", Validationf("invalid payment method %q: must be one of Cash, Card, UPI", raw)
}

// Payment — платёж по заказу.
type Payment struct {
	ID        int64         `json:"id"`
	OrderID   int64         `json:"order_id"`
	Amount    Money         `json:"amount"`
	Status    PaymentStatus `json:"status"`
	Method    PaymentMethod `json:"method,omitempty"`
	Reference string        `json:"reference"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}
