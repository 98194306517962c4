package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"healthcare-assistant/internal/domain"
)

const DefaultNamespace = "healthcare_assistant"

// Metrics groups all Prometheus instruments used by the chat pipeline.
// It implements usecase.Recorder.
type Metrics struct {
	TierFailures        *prometheus.CounterVec
	Responses           *prometheus.CounterVec
	ResponseLatency     *prometheus.HistogramVec
	HistoryWriteFailure prometheus.Counter

	gatherer prometheus.Gatherer
}

// New registers the instruments on reg. A nil reg uses a fresh registry so
// repeated construction in tests never collides.
func New(namespace string, reg *prometheus.Registry) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Metrics{
		TierFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tier_failures_total",
			Help:      "Generation tier failures by tier and reason.",
		}, []string{"tier", "reason"}),
		Responses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Replies served by the tier that produced them.",
		}, []string{"tier"}),
		ResponseLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "response_latency_ms",
			Help:      "Time from classification to a served reply in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 25000},
		}, []string{"tier"}),
		HistoryWriteFailure: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_write_failures_total",
			Help:      "Agent turns that could not be persisted.",
		}),
		gatherer: reg,
	}
}

func (m *Metrics) TierFailed(tier domain.Tier, reason string) {
	m.TierFailures.WithLabelValues(string(tier), reason).Inc()
}

func (m *Metrics) Responded(tier domain.Tier, elapsed time.Duration) {
	m.Responses.WithLabelValues(string(tier)).Inc()
	m.ResponseLatency.WithLabelValues(string(tier)).Observe(float64(elapsed.Milliseconds()))
}

func (m *Metrics) HistoryWriteFailed() {
	m.HistoryWriteFailure.Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
