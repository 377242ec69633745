package virtualtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	scheduled prometheus.Counter
	executed  prometheus.Counter
	cancelled prometheus.Counter
	recovered prometheus.Counter
	depth     prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer, namespace string) *metrics {
	if reg == nil {
		return nil
	}
	f := promauto.With(reg)
	return &metrics{
		scheduled: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "scheduled_total",
			Help:      "Actions added to the queue.",
		}),
		executed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "executed_total",
			Help:      "Actions run by the run loop.",
		}),
		cancelled: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "cancelled_total",
			Help:      "Disposed actions discarded from the queue without running.",
		}),
		recovered: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "recovered_total",
			Help:      "Action panics recovered by the run loop.",
		}),
		depth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "queue_depth",
			Help:      "Items in the queue, including disposed items not yet discarded.",
		}),
	}
}

// All methods are safe on a nil *metrics.

func (m *metrics) scheduledOne(depth int) {
	if m == nil {
		return
	}
	m.scheduled.Inc()
	m.depth.Set(float64(depth))
}

func (m *metrics) executedOne() {
	if m == nil {
		return
	}
	m.executed.Inc()
}

func (m *metrics) setDepth(depth int) {
	if m == nil {
		return
	}
	m.depth.Set(float64(depth))
}

func (m *metrics) cancelledOne(depth int) {
	if m == nil {
		return
	}
	m.cancelled.Inc()
	m.depth.Set(float64(depth))
}

func (m *metrics) recoveredOne() {
	if m == nil {
		return
	}
	m.recovered.Inc()
}
