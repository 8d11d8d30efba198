package idempotency

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type cleanupMetrics struct {
	runs        *prometheus.CounterVec
	deleted     prometheus.Counter
	lastDeleted prometheus.Gauge
}

func newCleanupMetrics(registerer prometheus.Registerer) *cleanupMetrics {
	m := &cleanupMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "retail_idempotency_cleanup_runs_total",
			Help: "Total number of idempotency cleanup runs grouped by result.",
		}, []string{"result"}),
		deleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "retail_idempotency_cleanup_deleted_total",
			Help: "Total number of deleted expired idempotency keys.",
		}),
		lastDeleted: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "retail_idempotency_cleanup_last_deleted",
			Help: "Number of keys deleted during the last cleanup run.",
		}),
	}
	if registerer == nil {
		return m
	}

	m.runs = register(registerer, m.runs)
	m.deleted = register(registerer, m.deleted)
	m.lastDeleted = register(registerer, m.lastDeleted)
	return m
}

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
