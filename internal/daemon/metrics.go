package daemon

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"scribe/internal/task"
)

// Metrics tracks task lifecycle counters for the /metrics endpoint. Each
// daemon owns a private registry so repeated construction in one process
// never trips duplicate collector registration.
type Metrics struct {
	registry *prometheus.Registry

	started  *prometheus.CounterVec
	finished *prometheus.CounterVec
}

func newMetrics(registry *task.Registry) *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.started = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scribe_tasks_started_total",
			Help: "Tasks accepted by the daemon, by kind.",
		},
		[]string{"kind"},
	)
	m.finished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scribe_tasks_finished_total",
			Help: "Tasks settled to a terminal status, by kind and status.",
		},
		[]string{"kind", "status"},
	)
	running := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "scribe_tasks_running",
			Help: "Tasks with a live child process.",
		},
		func() float64 { return float64(registry.Len()) },
	)

	m.registry.MustRegister(m.started, m.finished, running)
	return m
}

// TaskStarted records a task acceptance.
func (m *Metrics) TaskStarted(kind task.Kind) {
	m.started.WithLabelValues(string(kind)).Inc()
}

// TaskFinished records a task reaching a terminal status.
func (m *Metrics) TaskFinished(kind task.Kind, status task.Status) {
	m.finished.WithLabelValues(string(kind), string(status)).Inc()
}

// Handler serves the Prometheus exposition format for this daemon's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
