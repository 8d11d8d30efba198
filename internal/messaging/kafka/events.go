package kafka

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

// EventType определяет тип события
type EventType string

const (
	EventTypeOrderPlaced    EventType = "order.placed"
	EventTypeOrderPaid      EventType = "order.paid"
	EventTypeOrderCancelled EventType = "order.cancelled"
	EventTypeOrderRefunded  EventType = "order.refunded"
)

// Topics для Kafka
const (
	TopicOrderEvents     = "retail.order.events"
	TopicDeadLetterQueue = "retail.dlq" // сюда уходят сообщения outbox после исчерпания попыток
)

// AggregateOrder — тип агрегата в outbox для событий заказа.
const AggregateOrder = "order"

var eventTypes = map[string]EventType{
	domain.EventOrderPlaced:    EventTypeOrderPlaced,
	domain.EventOrderPaid:      EventTypeOrderPaid,
	domain.EventOrderCancelled: EventTypeOrderCancelled,
	domain.EventOrderRefunded:  EventTypeOrderRefunded,
}

// OrderEvent представляет событие заказа
type OrderEvent struct {
	EventType   EventType      `json:"event_type"`
	OrderID     int64          `json:"order_id"`
	CustomerID  int64          `json:"customer_id"`
	Status      string         `json:"status"`
	TotalAmount domain.Money   `json:"total_amount"`
	Timestamp   time.Time      `json:"timestamp"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// NewOrderEvent создает событие по текущему состоянию заказа.
func NewOrderEvent(eventType EventType, order domain.Order, metadata map[string]any) *OrderEvent {
	return &OrderEvent{
		EventType:   eventType,
		OrderID:     order.ID,
		CustomerID:  order.CustomerID,
		Status:      string(order.Status),
		TotalAmount: order.TotalAmount,
		Timestamp:   time.Now().UTC(),
		Metadata:    metadata,
	}
}

// NewOrderOutboxMessage упаковывает событие заказа в сообщение outbox.
// domainEvent — одно из domain.EventOrder*.
func NewOrderOutboxMessage(domainEvent string, order domain.Order, metadata map[string]any) (domain.OutboxMessage, error) {
	eventType, ok := eventTypes[domainEvent]
	if !ok {
		return domain.OutboxMessage{}, fmt.Errorf("unknown order event %q", domainEvent)
	}
	payload, err := json.Marshal(NewOrderEvent(eventType, order, metadata))
	if err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("marshal order event: %w", err)
	}
	return domain.OutboxMessage{
		AggregateType: AggregateOrder,
		AggregateID:   strconv.FormatInt(order.ID, 10),
		EventType:     domainEvent,
		Payload:       payload,
	}, nil
}

// ParseOrderEvent разбирает полезную нагрузку события заказа.
func ParseOrderEvent(data []byte) (*OrderEvent, error) {
	var event OrderEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order event: %w", err)
	}
	return &event, nil
}
