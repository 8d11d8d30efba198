package app

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/retail/internal/cli"
	"github.com/vladislavdragonenkov/retail/internal/domain"
	"github.com/vladislavdragonenkov/retail/internal/metrics"
	"github.com/vladislavdragonenkov/retail/internal/service/catalog"
	"github.com/vladislavdragonenkov/retail/internal/service/customer"
	"github.com/vladislavdragonenkov/retail/internal/service/idempotency"
	"github.com/vladislavdragonenkov/retail/internal/service/lifecycle"
	"github.com/vladislavdragonenkov/retail/internal/service/order"
	"github.com/vladislavdragonenkov/retail/internal/service/payment"
	"github.com/vladislavdragonenkov/retail/internal/service/report"
	"github.com/vladislavdragonenkov/retail/internal/transport/web"
)

// Dependencies содержит сервисы приложения поверх одного хранилища.
type Dependencies struct {
	Store     domain.Store
	Catalog   *catalog.Service
	Customers *customer.Service
	Orders    *order.Service
	Payments  *payment.Service
	Reports   *report.Service
	Keeper    *idempotency.Keeper
	Metrics   *metrics.WorkflowMetrics
	Logger    *log.Entry
}

// NewDependencies собирает сервисы. registerer == nil отключает регистрацию
// метрик (CLI), logger == nil заменяется логгером по умолчанию.
func NewDependencies(store domain.Store, registerer prometheus.Registerer, logger *log.Entry) *Dependencies {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	var workflowMetrics *metrics.WorkflowMetrics
	if registerer != nil {
		workflowMetrics = metrics.NewWorkflowMetricsWithRegisterer(registerer)
	}
	recorder := lifecycle.NewRecorder(nil)
	keeper := idempotency.NewKeeper(idempotency.DefaultTTL, utcNow)

	return &Dependencies{
		Store:     store,
		Catalog:   catalog.NewService(store, logger.WithField("component", "catalog")),
		Customers: customer.NewService(store, logger.WithField("component", "customer")),
		Orders:    order.NewService(store, recorder, workflowMetrics, logger.WithField("component", "order")).WithKeeper(keeper),
		Payments:  payment.NewService(store, recorder, workflowMetrics, logger.WithField("component", "payment")).WithKeeper(keeper),
		Reports:   report.NewService(store, utcNow, logger.WithField("component", "report")),
		Keeper:    keeper,
		Metrics:   workflowMetrics,
		Logger:    logger,
	}
}

// WithIdempotencyTTL задаёт срок хранения ключей Idempotency-Key для заказов и оплаты.
func (d *Dependencies) WithIdempotencyTTL(ttl time.Duration) *Dependencies {
	d.Keeper = idempotency.NewKeeper(ttl, utcNow)
	d.Orders.WithKeeper(d.Keeper)
	d.Payments.WithKeeper(d.Keeper)
	return d
}

// utcNow — часы отчётов: границы месяцев считаются в UTC, как и даты заказов.
func utcNow() time.Time {
	return time.Now().UTC()
}

// WebServices возвращает набор сервисов для HTTP-слоя.
func (d *Dependencies) WebServices() web.Services {
	return web.Services{
		Catalog:   d.Catalog,
		Customers: d.Customers,
		Orders:    d.Orders,
		Payments:  d.Payments,
		Reports:   d.Reports,
	}
}

// CLIServices возвращает набор сервисов для командной строки.
func (d *Dependencies) CLIServices() cli.Services {
	return cli.Services{
		Catalog:   d.Catalog,
		Customers: d.Customers,
		Orders:    d.Orders,
		Payments:  d.Payments,
		Reports:   d.Reports,
	}
}
