package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
)

type WorkerMetrics struct {
	registry *prometheus.Registry
	service  string

	reanalysisTotal    *prometheus.CounterVec
	reanalysisDuration *prometheus.HistogramVec
	reanalysisInFlight prometheus.Gauge
	queueLag           *prometheus.HistogramVec
	degradedTotal      *prometheus.CounterVec
	breakerTransition  *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	reanalysisTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docintel",
			Subsystem: "worker",
			Name:      "reanalysis_total",
			Help:      "Total re-analysed documents by status.",
		},
		[]string{"service", "status"},
	)
	reanalysisDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docintel",
			Subsystem: "worker",
			Name:      "reanalysis_duration_seconds",
			Help:      "Re-analysis duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	reanalysisInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "docintel",
			Subsystem: "worker",
			Name:      "reanalysis_in_flight",
			Help:      "Number of in-flight re-analysis tasks.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docintel",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between document upload and re-analysis start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)
	degradedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docintel",
			Subsystem: "worker",
			Name:      "degraded_stages_total",
			Help:      "Pipeline stages degraded during re-analysis.",
		},
		[]string{"service", "stage"},
	)
	breakerTransition := newBreakerTransitionCounter()

	registry.MustRegister(reanalysisTotal, reanalysisDuration, reanalysisInFlight, queueLag, degradedTotal, breakerTransition)

	return &WorkerMetrics{
		registry:           registry,
		service:            service,
		reanalysisTotal:    reanalysisTotal,
		reanalysisDuration: reanalysisDuration,
		reanalysisInFlight: reanalysisInFlight,
		queueLag:           queueLag,
		degradedTotal:      degradedTotal,
		breakerTransition:  breakerTransition,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartReanalysis() {
	m.reanalysisInFlight.Inc()
}

func (m *WorkerMetrics) FinishReanalysis(duration time.Duration, err error) {
	m.reanalysisInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.reanalysisTotal.WithLabelValues(m.service, status).Inc()
	m.reanalysisDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(m.service).Observe(lag.Seconds())
}

// The worker only counts degraded stages; outcomes are tracked per
// re-analysis by FinishReanalysis.
func (m *WorkerMetrics) ObserveAnalysis(domain.AnalysisMode, domain.Action, time.Duration) {}

func (m *WorkerMetrics) ObserveDegradedStage(stage string) {
	m.degradedTotal.WithLabelValues(m.service, stage).Inc()
}

func (m *WorkerMetrics) ObserveDuplicateMatch(domain.MatchType) {}

func (m *WorkerMetrics) ObserveBreakerState(operation, state string) {
	m.breakerTransition.WithLabelValues(operation, state).Inc()
}
