package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

// Операции, по которым считаются отказы и длительность.
const (
	OperationCreateOrder = "create_order"
	OperationCancelOrder = "cancel_order"
	OperationPay         = "pay"
	OperationRefund      = "refund"
)

// WorkflowMetrics содержит метрики workflow заказов и платежей.
type WorkflowMetrics struct {
	ordersCreated   prometheus.Counter
	ordersCancelled prometheus.Counter
	payments        *prometheus.CounterVec
	refunds         prometheus.Counter
	rejections      *prometheus.CounterVec

	orderValue        prometheus.Histogram
	operationDuration *prometheus.HistogramVec

	// Счётчики событий timeline и outbox
	timelineEvents prometheus.Counter
	outboxEvents   prometheus.Counter
}

// NewWorkflowMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewWorkflowMetrics() *WorkflowMetrics {
	return NewWorkflowMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWorkflowMetricsWithRegisterer регистрирует метрики в заданном реестре.
// Повторная регистрация возвращает уже существующие коллекторы.
func NewWorkflowMetricsWithRegisterer(registerer prometheus.Registerer) *WorkflowMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &WorkflowMetrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "retail_orders_created_total",
			Help: "Total number of orders placed",
		}),
		ordersCancelled: registerCounter(registerer, prometheus.CounterOpts{
			Name: "retail_orders_cancelled_total",
			Help: "Total number of orders cancelled",
		}),
		payments: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "retail_payments_total",
			Help: "Total number of successful payments grouped by method",
		}, []string{"method"}),
		refunds: registerCounter(registerer, prometheus.CounterOpts{
			Name: "retail_refunds_total",
			Help: "Total number of refunded payments",
		}),
		rejections: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "retail_workflow_rejections_total",
			Help: "Total number of rejected workflow operations grouped by operation and error kind",
		}, []string{"operation", "kind"}),
		orderValue: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "retail_order_value_minor",
			Help:    "Distribution of placed order totals in minor currency units",
			Buckets: prometheus.ExponentialBuckets(100, 4, 10),
		}),
		operationDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "retail_workflow_duration_seconds",
			Help:    "Duration of workflow operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"operation"}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "retail_timeline_events_total",
			Help: "Total number of timeline events recorded",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "retail_outbox_events_total",
			Help: "Total number of outbox events enqueued",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// Все Record*-методы безопасны для nil-получателя: сервисы в тестах
// создаются без метрик.

// RecordOrderCreated учитывает оформленный заказ и его сумму.
func (m *WorkflowMetrics) RecordOrderCreated(total domain.Money) {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
	m.orderValue.Observe(float64(total))
}

// RecordOrderCancelled учитывает отменённый заказ.
func (m *WorkflowMetrics) RecordOrderCancelled() {
	if m == nil {
		return
	}
	m.ordersCancelled.Inc()
}

// RecordPayment учитывает успешную оплату.
func (m *WorkflowMetrics) RecordPayment(method domain.PaymentMethod) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(string(method)).Inc()
}

// RecordRefund учитывает возврат.
func (m *WorkflowMetrics) RecordRefund() {
	if m == nil {
		return
	}
	m.refunds.Inc()
}

// RecordRejection учитывает отказ операции с видом ошибки из domain.KindOf.
func (m *WorkflowMetrics) RecordRejection(operation string, err error) {
	if m == nil || err == nil {
		return
	}
	m.rejections.WithLabelValues(operation, string(domain.KindOf(err))).Inc()
}

// RecordDuration записывает время выполнения операции.
func (m *WorkflowMetrics) RecordDuration(operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *WorkflowMetrics) RecordTimelineEvent() {
	if m == nil {
		return
	}
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *WorkflowMetrics) RecordOutboxEvent() {
	if m == nil {
		return
	}
	m.outboxEvents.Inc()
}
