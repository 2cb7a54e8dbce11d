// Package metrics exports per-operation Prometheus metrics for the facade.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the facade collectors and the registry they live in.
type Metrics struct {
	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New registers the collectors in a fresh registry, along with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sharedpasswords_operations_total",
				Help: "Facade calls by operation and outcome code",
			},
			[]string{"operation", "code"},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "sharedpasswords_operation_duration_seconds",
				Help: "Facade call duration in seconds, including time spent in system UI",
				// credential pickers wait on the user
				Buckets: []float64{.001, .01, .1, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"operation"},
		),
	}
}

// ObserveOperation records one facade call.
func (m *Metrics) ObserveOperation(operation, code string, elapsed time.Duration) {
	m.Operations.WithLabelValues(operation, code).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
