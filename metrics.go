package asyncdb

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "asyncdb"

// metrics holds the dispatcher's collectors. Collectors are always live;
// registering them is optional.
type metrics struct {
	submitted   *prometheus.CounterVec
	completed   *prometheus.CounterVec
	outstanding prometheus.Gauge
	queued      prometheus.Gauge

	compactions     *prometheus.CounterVec
	compactionTime  prometheus.Counter
	writeStalls     *prometheus.CounterVec
	writeStallTime  prometheus.Counter
	callbackPanics  prometheus.Counter
	engineOpenTotal *prometheus.CounterVec
}

func newMetrics() *metrics {
	return &metrics{
		submitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "tasks_submitted_total",
			Help:      "Tasks accepted by the dispatcher, by kind.",
		}, []string{"kind"}),
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "tasks_completed_total",
			Help:      "Tasks whose completion callback ran, by kind and outcome.",
		}, []string{"kind", "code"}),
		outstanding: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "tasks_outstanding",
			Help:      "Tasks submitted but not yet completed.",
		}),
		queued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "tasks_queued",
			Help:      "Tasks waiting for a worker.",
		}),
		compactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "engine",
			Name:      "compactions_total",
			Help:      "Engine compactions started, by level class.",
		}, []string{"level"}),
		compactionTime: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "engine",
			Name:      "compaction_seconds_total",
			Help:      "Wall time with at least one compaction running.",
		}),
		writeStalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "engine",
			Name:      "write_stalls_total",
			Help:      "Engine write stalls, by the first word of the reason.",
		}, []string{"reason"}),
		writeStallTime: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "engine",
			Name:      "write_stall_seconds_total",
			Help:      "Time spent in engine write stalls.",
		}),
		callbackPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "callback_panics_total",
			Help:      "Consumer callbacks that panicked.",
		}),
		engineOpenTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "engine",
			Name:      "opens_total",
			Help:      "Engine open attempts, by driver and outcome.",
		}, []string{"driver", "code"}),
	}
}

func (m *metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.submitted,
		m.completed,
		m.outstanding,
		m.queued,
		m.compactions,
		m.compactionTime,
		m.writeStalls,
		m.writeStallTime,
		m.callbackPanics,
		m.engineOpenTotal,
	}
}

func (m *metrics) register(r prometheus.Registerer) error {
	for _, c := range m.collectors() {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *metrics) compactionBegin(level0 bool) {
	if level0 {
		m.compactions.WithLabelValues("l0").Inc()
		return
	}
	m.compactions.WithLabelValues("lbase").Inc()
}

func (m *metrics) compactionEnd(d time.Duration) { m.compactionTime.Add(d.Seconds()) }

func (m *metrics) writeStallBegin(reason string) { m.writeStalls.WithLabelValues(reason).Inc() }

func (m *metrics) writeStallEnd(d time.Duration) { m.writeStallTime.Add(d.Seconds()) }
