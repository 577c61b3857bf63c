package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/policy-advisor/internal/core/domain"
)

const namespace = "policy_advisor"

// AdvisorMetrics owns one registry for the ingestion worker and the
// advisory engine. It implements ports.Telemetry.
type AdvisorMetrics struct {
	service  string
	registry *prometheus.Registry

	processTotal    *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
	processInFlight prometheus.Gauge
	queueLag        prometheus.Histogram

	retrievalDuration *prometheus.HistogramVec
	retrievalResults  *prometheus.HistogramVec
	keywordDegraded   prometheus.Counter
	verdictsTotal     *prometheus.CounterVec
	turnsTotal        *prometheus.CounterVec
	retriesTotal      *prometheus.CounterVec
}

func NewAdvisorMetrics(service string) *AdvisorMetrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	m := &AdvisorMetrics{
		service:  service,
		registry: registry,
		processTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "document_process_total",
			Help:        "Processed policy documents by status.",
			ConstLabels: constLabels,
		}, []string{"status"}),
		processDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "document_process_duration_seconds",
			Help:        "Policy document processing duration by status.",
			Buckets:     []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			ConstLabels: constLabels,
		}, []string{"status"}),
		processInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "document_process_in_flight",
			Help:        "In-flight policy document processing tasks.",
			ConstLabels: constLabels,
		}),
		queueLag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "queue_lag_seconds",
			Help:        "Delay between upload event publish and receipt.",
			Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
			ConstLabels: constLabels,
		}),
		retrievalDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "retrieval",
			Name:        "pass_duration_seconds",
			Help:        "Duration of individual retrieval passes.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		}, []string{"pass"}),
		retrievalResults: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "retrieval",
			Name:        "pass_results",
			Help:        "Result count of individual retrieval passes.",
			Buckets:     []float64{0, 1, 2, 3, 5, 8, 13, 21},
			ConstLabels: constLabels,
		}, []string{"pass"}),
		keywordDegraded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "retrieval",
			Name:        "keyword_degraded_total",
			Help:        "Keyword passes that failed and were treated as empty.",
			ConstLabels: constLabels,
		}),
		verdictsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "advisor",
			Name:        "verdicts_total",
			Help:        "Synthesized coverage verdicts by outcome.",
			ConstLabels: constLabels,
		}, []string{"verdict"}),
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "conversation",
			Name:        "turns_total",
			Help:        "Conversation turns by response mode.",
			ConstLabels: constLabels,
		}, []string{"mode"}),
		retriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "resilience",
			Name:        "retries_total",
			Help:        "Retries scheduled by the resilience executor per operation.",
			ConstLabels: constLabels,
		}, []string{"operation"}),
	}

	registry.MustRegister(
		m.processTotal, m.processDuration, m.processInFlight, m.queueLag,
		m.retrievalDuration, m.retrievalResults, m.keywordDegraded,
		m.verdictsTotal, m.turnsTotal, m.retriesTotal,
	)
	return m
}

func (m *AdvisorMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *AdvisorMetrics) StartDocument() {
	m.processInFlight.Inc()
}

func (m *AdvisorMetrics) FinishDocument(duration time.Duration, err error) {
	m.processInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}
	m.processTotal.WithLabelValues(status).Inc()
	m.processDuration.WithLabelValues(status).Observe(duration.Seconds())
}

func (m *AdvisorMetrics) ObserveQueueLag(lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.Observe(lag.Seconds())
}

// RecordRetry matches resilience.RetryObserver.
func (m *AdvisorMetrics) RecordRetry(operation string, _ int) {
	m.retriesTotal.WithLabelValues(operation).Inc()
}

func (m *AdvisorMetrics) ObserveRetrieval(pass string, results int, duration time.Duration) {
	m.retrievalDuration.WithLabelValues(pass).Observe(duration.Seconds())
	m.retrievalResults.WithLabelValues(pass).Observe(float64(results))
}

func (m *AdvisorMetrics) RecordKeywordDegraded() {
	m.keywordDegraded.Inc()
}

func (m *AdvisorMetrics) RecordVerdict(verdict domain.CoverageVerdict) {
	m.verdictsTotal.WithLabelValues(string(verdict)).Inc()
}

func (m *AdvisorMetrics) RecordTurn(mode domain.TurnMode) {
	m.turnsTotal.WithLabelValues(string(mode)).Inc()
}
