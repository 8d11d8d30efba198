package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

// state — всё содержимое in-memory хранилища. Транзакция работает с копией
// state и при успехе подменяет ею текущее состояние.
type state struct {
	products   map[int64]domain.Product
	skuIndex   map[string]int64
	customers  map[int64]domain.Customer
	emailIndex map[string]int64
	orders     map[int64]domain.Order
	items      map[int64][]domain.OrderItem
	payments   map[int64]domain.Payment
	timeline   map[int64][]domain.TimelineEvent
	outbox     map[string]outboxRecord
	idem       map[string]domain.IdempotencyRecord

	productSeq  int64
	customerSeq int64
	orderSeq    int64
	itemSeq     int64
	paymentSeq  int64
}

func newState() *state {
	return &state{
		products:   make(map[int64]domain.Product),
		skuIndex:   make(map[string]int64),
		customers:  make(map[int64]domain.Customer),
		emailIndex: make(map[string]int64),
		orders:     make(map[int64]domain.Order),
		items:      make(map[int64][]domain.OrderItem),
		payments:   make(map[int64]domain.Payment),
		timeline:   make(map[int64][]domain.TimelineEvent),
		outbox:     make(map[string]outboxRecord),
		idem:       make(map[string]domain.IdempotencyRecord),
	}
}

func (s *state) clone() *state {
	c := &state{
		products:    make(map[int64]domain.Product, len(s.products)),
		skuIndex:    make(map[string]int64, len(s.skuIndex)),
		customers:   make(map[int64]domain.Customer, len(s.customers)),
		emailIndex:  make(map[string]int64, len(s.emailIndex)),
		orders:      make(map[int64]domain.Order, len(s.orders)),
		items:       make(map[int64][]domain.OrderItem, len(s.items)),
		payments:    make(map[int64]domain.Payment, len(s.payments)),
		timeline:    make(map[int64][]domain.TimelineEvent, len(s.timeline)),
		outbox:      make(map[string]outboxRecord, len(s.outbox)),
		idem:        make(map[string]domain.IdempotencyRecord, len(s.idem)),
		productSeq:  s.productSeq,
		customerSeq: s.customerSeq,
		orderSeq:    s.orderSeq,
		itemSeq:     s.itemSeq,
		paymentSeq:  s.paymentSeq,
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.skuIndex {
		c.skuIndex[k] = v
	}
	for k, v := range s.customers {
		c.customers[k] = v
	}
	for k, v := range s.emailIndex {
		c.emailIndex[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.items {
		c.items[k] = append([]domain.OrderItem(nil), v...)
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	for k, v := range s.timeline {
		c.timeline[k] = append([]domain.TimelineEvent(nil), v...)
	}
	for k, v := range s.idem {
		c.idem[k] = cloneIdempotencyRecord(v)
	}
	for k, v := range s.outbox {
		c.outbox[k] = v
	}
	return c
}

// Store — in-memory реализация domain.Store для разработки и тестов.
// Транзакции выполняются строго по одной; одиночные изменения вне
// транзакции тоже ждут завершения текущей транзакции.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	st   *state
	now  func() time.Time
}

// Option настраивает Store.
type Option func(*Store)

// WithClock подменяет источник времени (для тестов отчётов).
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New создаёт пустое хранилище.
func New(opts ...Option) *Store {
	s := &Store{
		st:  newState(),
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Repositories возвращает репозитории в режиме autocommit.
func (s *Store) Repositories() domain.Repositories {
	return s.repositories(view{store: s})
}

// WithinTx выполняет fn над копией состояния. Копия становится текущим
// состоянием, только если fn завершилась без ошибки и ctx не отменён.
func (s *Store) WithinTx(ctx context.Context, fn func(repos domain.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	work := s.st.clone()
	s.mu.RUnlock()

	if err := fn(s.repositories(view{store: s, tx: work})); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.st = work
	s.mu.Unlock()
	return nil
}

// Ping всегда успешен.
func (s *Store) Ping(context.Context) error {
	return nil
}

// Close ничего не освобождает.
func (s *Store) Close() error {
	return nil
}

func (s *Store) repositories(v view) domain.Repositories {
	return domain.Repositories{
		Products:  &productRepository{v: v},
		Customers: &customerRepository{v: v},
		Orders:    &orderRepository{v: v},
		Payments:  &paymentRepository{v: v},
		Timeline:  &timelineRepository{v: v},
		Outbox:    &outboxRepository{v: v},
		Reports:   &reportRepository{v: v},

		Idempotency: &idempotencyRepository{v: v},
	}
}

// view привязывает репозиторий либо к транзакционной копии, либо к общему состоянию.
type view struct {
	store *Store
	tx    *state
}

func (v view) now() time.Time {
	return v.store.now()
}

func (v view) read(fn func(st *state) error) error {
	if v.tx != nil {
		return fn(v.tx)
	}
	v.store.mu.RLock()
	defer v.store.mu.RUnlock()
	return fn(v.store.st)
}

// write применяет изменение. Вне транзакции fn обязана проверить все
// условия до первой мутации, потому что отката нет.
func (v view) write(fn func(st *state) error) error {
	if v.tx != nil {
		return fn(v.tx)
	}
	v.store.txMu.Lock()
	defer v.store.txMu.Unlock()
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	return fn(v.store.st)
}

func applyLimit[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

var _ domain.Store = (*Store)(nil)
