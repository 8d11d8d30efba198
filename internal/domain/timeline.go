package domain

import "time"

// Типы событий жизненного цикла заказа. Они же — типы сообщений outbox.
const (
	EventOrderPlaced    = "OrderPlaced"
	EventOrderCancelled = "OrderCancelled"
	EventOrderPaid      = "OrderPaid"
	EventOrderRefunded  = "OrderRefunded"
)

// TimelineEvent описывает событие в жизненном цикле заказа.
type TimelineEvent struct {
	OrderID  int64     `json:"order_id"`
	Type     string    `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurred"`
}
