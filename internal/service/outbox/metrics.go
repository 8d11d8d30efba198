package outbox

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// relayMetrics описывает состояние публикации outbox.
type relayMetrics struct {
	attempts         *prometheus.CounterVec
	pending          prometheus.Gauge
	oldestPendingAge prometheus.Gauge
}

func newRelayMetrics(registerer prometheus.Registerer) *relayMetrics {
	m := &relayMetrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "retail_outbox_publish_attempts_total",
			Help: "Total number of outbox publish attempts grouped by result.",
		}, []string{"result"}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "retail_outbox_pending_records",
			Help: "Current number of pending records in transactional outbox.",
		}),
		oldestPendingAge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "retail_outbox_oldest_pending_age_seconds",
			Help: "Age in seconds of the oldest pending outbox record.",
		}),
	}
	if registerer == nil {
		return m
	}

	m.attempts = register(registerer, m.attempts)
	m.pending = register(registerer, m.pending)
	m.oldestPendingAge = register(registerer, m.oldestPendingAge)
	return m
}

// register возвращает уже зарегистрированный коллектор того же типа, если он есть.
func register[C prometheus.Collector](registerer prometheus.Registerer, collector C) C {
	if err := registerer.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return collector
}
