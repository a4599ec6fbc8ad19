package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/file-insights/internal/core/domain"
)

// PipelineMetrics implements ports.PipelineObserver.
type PipelineMetrics struct {
	filesTotal   *prometheus.CounterVec
	fileDuration *prometheus.HistogramVec
	tokensTotal  *prometheus.CounterVec
}

func NewPipelineMetrics(service string, registerer prometheus.Registerer) *PipelineMetrics {
	labels := prometheus.Labels{"service": service}
	filesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "pipeline",
			Name:        "files_total",
			Help:        "Processed files by task kind, file kind, status and error kind.",
			ConstLabels: labels,
		},
		[]string{"task_kind", "file_kind", "status", "error_kind"},
	)
	fileDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "pipeline",
			Name:        "file_duration_seconds",
			Help:        "Per-file pipeline duration in seconds, inference included.",
			Buckets:     []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
			ConstLabels: labels,
		},
		[]string{"task_kind", "status"},
	)
	tokensTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "llm",
			Name:        "tokens_total",
			Help:        "Token usage reported by the provider, by direction.",
			ConstLabels: labels,
		},
		[]string{"model", "direction"},
	)

	if registerer != nil {
		registerer.MustRegister(filesTotal, fileDuration, tokensTotal)
	}

	return &PipelineMetrics{
		filesTotal:   filesTotal,
		fileDuration: fileDuration,
		tokensTotal:  tokensTotal,
	}
}

func (m *PipelineMetrics) ObserveFile(record domain.RunRecord) {
	fileKind := string(record.FileKind)
	if fileKind == "" {
		fileKind = "unknown"
	}
	m.filesTotal.WithLabelValues(string(record.TaskKind), fileKind, string(record.Status), string(record.ErrorKind)).Inc()
	if record.Status == domain.RunSkipped {
		return
	}
	m.fileDuration.WithLabelValues(string(record.TaskKind), string(record.Status)).Observe(record.Duration.Seconds())

	model := record.Model
	if model == "" {
		model = "unknown"
	}
	if record.Usage.Prompt > 0 {
		m.tokensTotal.WithLabelValues(model, "in").Add(float64(record.Usage.Prompt))
	}
	if record.Usage.Completion > 0 {
		m.tokensTotal.WithLabelValues(model, "out").Add(float64(record.Usage.Completion))
	}
}
