package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkerMetrics covers the ledger worker that persists run records.
type WorkerMetrics struct {
	registry *prometheus.Registry

	writes        *prometheus.CounterVec
	writeDuration prometheus.Histogram
	writesActive  prometheus.Gauge
	queueLag      prometheus.Histogram
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	labels := prometheus.Labels{"service": service}

	return &WorkerMetrics{
		registry: registry,
		writes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "ledger",
			Name:        "writes_total",
			Help:        "Run records written to the ledger, by result.",
			ConstLabels: labels,
		}, []string{"result"}),
		writeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "ledger",
			Name:        "write_duration_seconds",
			Help:        "Time spent inserting one run record.",
			ConstLabels: labels,
			Buckets:     []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		writesActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "ledger",
			Name:        "writes_in_flight",
			Help:        "Ledger inserts currently running.",
			ConstLabels: labels,
		}),
		queueLag: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "ledger",
			Name:        "queue_lag_seconds",
			Help:        "Delay between a file finishing and its record reaching the worker.",
			ConstLabels: labels,
			Buckets:     []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartWrite() {
	m.writesActive.Inc()
}

func (m *WorkerMetrics) FinishWrite(elapsed time.Duration, err error) {
	m.writesActive.Dec()
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.writes.WithLabelValues(result).Inc()
	m.writeDuration.Observe(elapsed.Seconds())
}

// ObserveQueueLag ignores negative lags caused by clock skew between hosts.
func (m *WorkerMetrics) ObserveQueueLag(lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.Observe(lag.Seconds())
}
