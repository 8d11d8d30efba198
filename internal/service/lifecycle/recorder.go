// Package lifecycle записывает события жизненного цикла заказа: запись в
// timeline и сообщение transactional outbox в рамках текущей транзакции.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/retail/internal/domain"
	"github.com/vladislavdragonenkov/retail/internal/messaging/kafka"
)

// Recorder пишет событие в timeline и outbox одним вызовом.
type Recorder struct {
	now func() time.Time
}

// NewRecorder создаёт Recorder. nil now означает time.Now().UTC().
func NewRecorder(now func() time.Time) *Recorder {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Recorder{now: now}
}

// Record сохраняет событие eventType (одно из domain.EventOrder*) для заказа.
// Вызывается внутри Store.WithinTx: ошибка откатывает всю операцию, поэтому
// событие не может потеряться или появиться без изменения заказа.
func (r *Recorder) Record(ctx context.Context, repos domain.Repositories, order domain.Order, eventType, reason string, metadata map[string]any) error {
	occurred := r.now()

	if metadata == nil {
		metadata = make(map[string]any)
	}
	if reason != "" {
		metadata["reason"] = reason
	}
	metadata["ts"] = occurred.Format(time.RFC3339Nano)

	msg, err := kafka.NewOrderOutboxMessage(eventType, order, metadata)
	if err != nil {
		return err
	}
	if _, err := repos.Outbox.Enqueue(ctx, msg); err != nil {
		return fmt.Errorf("enqueue %s for order %d: %w", eventType, order.ID, err)
	}

	event := domain.TimelineEvent{
		OrderID:  order.ID,
		Type:     eventType,
		Reason:   reason,
		Occurred: occurred,
	}
	if err := repos.Timeline.Append(ctx, event); err != nil {
		return fmt.Errorf("append %s to timeline of order %d: %w", eventType, order.ID, err)
	}
	return nil
}
