package domain

import (
	"context"
	"time"
)

// ProductRepository хранит каталог товаров.
type ProductRepository interface {
	// Create сохраняет товар; дубликат SKU даёт ErrAlreadyExists.
	Create(ctx context.Context, p NewProduct) (Product, error)
	Get(ctx context.Context, id int64) (Product, error)
	GetBySKU(ctx context.Context, sku string) (Product, error)
	List(ctx context.Context, filter ProductFilter) ([]Product, error)
	// Update перезаписывает все изменяемые поля товара.
	Update(ctx context.Context, p Product) (Product, error)
	// Delete удаляет товар; при ссылках из позиций заказов ErrDeleteBlocked.
	Delete(ctx context.Context, id int64) (Product, error)
	// AdjustStock атомарно меняет остаток на delta. Если остаток стал бы
	// отрицательным, возвращает ErrInsufficientStock и ничего не меняет.
	AdjustStock(ctx context.Context, id int64, delta int64) (Product, error)
}

// CustomerRepository хранит покупателей.
type CustomerRepository interface {
	// Create сохраняет покупателя; дубликат email даёт ErrAlreadyExists.
	Create(ctx context.Context, c NewCustomer) (Customer, error)
	Get(ctx context.Context, id int64) (Customer, error)
	GetByEmail(ctx context.Context, email string) (Customer, error)
	List(ctx context.Context, filter CustomerFilter) ([]Customer, error)
	// Update сохраняет телефон и город; имя и email не меняются.
	Update(ctx context.Context, c Customer) (Customer, error)
	// Delete удаляет покупателя; при наличии заказов ErrDeleteBlocked.
	Delete(ctx context.Context, id int64) (Customer, error)
}

// OrderRepository хранит заголовки и позиции заказов.
type OrderRepository interface {
	Create(ctx context.Context, o Order) (Order, error)
	AddItems(ctx context.Context, orderID int64, items []OrderItem) ([]OrderItem, error)
	Get(ctx context.Context, id int64) (Order, error)
	// GetForUpdate читает заказ и блокирует его до конца транзакции.
	// Переходы статуса и возвраты по одному заказу выполняются строго по очереди.
	GetForUpdate(ctx context.Context, id int64) (Order, error)
	Items(ctx context.Context, orderID int64) ([]OrderItem, error)
	ListByCustomer(ctx context.Context, customerID int64, limit int) ([]Order, error)
	CountByCustomer(ctx context.Context, customerID int64) (int, error)
	// UpdateStatus меняет статус, только если текущий равен from (compare-and-swap).
	// Иначе возвращает ErrInvalidState.
	UpdateStatus(ctx context.Context, id int64, from, to OrderStatus) (Order, error)
}

// PaymentRepository хранит платежи.
type PaymentRepository interface {
	Create(ctx context.Context, p Payment) (Payment, error)
	// LatestByOrder возвращает последний платёж заказа или ErrNotFound.
	LatestByOrder(ctx context.Context, orderID int64) (Payment, error)
	// UpdateStatus — compare-and-swap по статусу, как у заказов.
	UpdateStatus(ctx context.Context, id int64, from, to PaymentStatus) (Payment, error)
}

// ReportRepository строит агрегаты только для чтения.
type ReportRepository interface {
	// TopSellingProducts суммирует количество по товарам неотменённых заказов.
	TopSellingProducts(ctx context.Context, limit int) ([]ProductSales, error)
	// Revenue суммирует оплаченные заказы с датой в [from, to).
	Revenue(ctx context.Context, from, to time.Time) (Money, error)
	OrdersPerCustomer(ctx context.Context) ([]CustomerOrderCount, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(ctx context.Context, event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(ctx context.Context, event TimelineEvent) error
	List(ctx context.Context, orderID int64) ([]TimelineEvent, error)
}

// IdempotencyRepository хранит ключи идемпотентности вместе с ответом операции.
type IdempotencyRepository interface {
	// Claim сохраняет новую запись (claimed=true) или возвращает уже существующую
	// неистёкшую запись с тем же ключом (claimed=false). Истёкшая запись перезаписывается.
	Claim(ctx context.Context, rec IdempotencyRecord) (IdempotencyRecord, bool, error)
	// Complete сохраняет ответ и переводит запись в IdempotencyStatusDone.
	Complete(ctx context.Context, key string, response []byte) error
	Get(ctx context.Context, key string) (IdempotencyRecord, error)
	// DeleteExpired удаляет не более limit записей с expires_at <= before (limit <= 0 — без ограничения).
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error)
}

// Repositories — набор репозиториев, привязанных к одному соединению или транзакции.
type Repositories struct {
	Products  ProductRepository
	Customers CustomerRepository
	Orders    OrderRepository
	Payments  PaymentRepository
	Timeline  TimelineRepository
	Outbox    OutboxRepository
	Reports   ReportRepository

	// Idempotency — ключи повторных запросов.
	Idempotency IdempotencyRepository
}

// Store — хранилище записей. Многошаговые изменения выполняются через WithinTx:
// если fn вернула ошибку, ни одно изменение не сохраняется.
type Store interface {
	Repositories() Repositories
	WithinTx(ctx context.Context, fn func(repos Repositories) error) error
	Ping(ctx context.Context) error
	Close() error
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
