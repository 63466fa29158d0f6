package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/siherrmann/factual/model"
)

// Metrics holds the Prometheus collectors of the verification pipeline
type Metrics struct {
	verifications  *prometheus.CounterVec
	duration       prometheus.Histogram
	hits           prometheus.Histogram
	oracleFailures *prometheus.CounterVec
	corpusFacts    prometheus.Gauge
	httpRequests   *prometheus.CounterVec
}

// NewMetrics registers all collectors on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// verifications counts verified claims by verdict, failures count as "error"
		verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "factual_verifications_total",
			Help: "Total verified claims by verdict",
		}, []string{"verdict"}),

		// duration tracks end to end verification latency
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "factual_verification_duration_seconds",
			Help:    "Verification duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		}),

		// hits tracks the number of facts retrieved per claim
		hits: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "factual_retrieval_hits",
			Help:    "Number of facts retrieved per claim",
			Buckets: []float64{0, 1, 2, 4, 8, 16},
		}),

		oracleFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "factual_oracle_failures_total",
			Help: "Total oracle calls that degraded to neutral output",
		}, []string{"oracle"}),

		corpusFacts: factory.NewGauge(prometheus.GaugeOpts{
			Name: "factual_corpus_facts",
			Help: "Number of facts in the loaded corpus",
		}),

		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "factual_http_requests_total",
			Help: "Total HTTP requests by route and status code",
		}, []string{"route", "code"}),
	}
}

// ObserveVerification records one finished verification
func (m *Metrics) ObserveVerification(verdict model.Verdict, hits int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(string(verdict)).Inc()
	m.duration.Observe(elapsed.Seconds())
	m.hits.Observe(float64(hits))
}

// ObserveError records a verification that failed
func (m *Metrics) ObserveError(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues("error").Inc()
	m.duration.Observe(elapsed.Seconds())
}

// ObserveOracleFailure records an oracle call that degraded
func (m *Metrics) ObserveOracleFailure(oracle string) {
	if m == nil {
		return
	}
	m.oracleFailures.WithLabelValues(oracle).Inc()
}

// SetCorpusSize records the number of loaded facts
func (m *Metrics) SetCorpusSize(n int) {
	if m == nil {
		return
	}
	m.corpusFacts.Set(float64(n))
}

// ObserveRequest records one served HTTP request
func (m *Metrics) ObserveRequest(route string, code string) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, code).Inc()
}
