package mqadapter

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups the prometheus instruments the adapter exposes. This is
// supplemental to the distilled spec (SPEC_FULL §9): the original system's
// non-goals exclude ordering/dedup/exactly-once/persistence/transactions,
// not observability.
type Metrics struct {
	workerPoolActive  prometheus.Gauge
	workerPoolBacklog prometheus.Gauge
	messages          *prometheus.CounterVec
	queryTimeouts     prometheus.Counter
}

// NewMetrics builds the adapter's metrics and, if reg is non-nil, registers
// them. Passing a nil Registerer is valid and yields metrics that simply
// aren't exported, useful for tests that don't want to touch the default
// registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		workerPoolActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mqadapter_worker_pool_active",
			Help: "Number of worker pool goroutines currently executing a handler.",
		}),
		workerPoolBacklog: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mqadapter_worker_pool_backlog",
			Help: "Number of tasks queued in the worker pool backlog.",
		}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mqadapter_messages_total",
			Help: "Messages processed per queue and outcome (ack, nack, reject, error).",
		}, []string{"queue", "outcome"}),
		queryTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqadapter_query_timeouts_total",
			Help: "Total number of Query calls that exceeded their deadline.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.workerPoolActive, m.workerPoolBacklog, m.messages, m.queryTimeouts)
	}
	return m
}
