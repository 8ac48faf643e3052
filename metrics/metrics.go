package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is what the pipeline reports to. Every method is cheap and safe to
// call from concurrent stages.
type Recorder interface {
	IncCycle(chain, result string)
	ObserveCycleDuration(chain string, seconds float64)
	AddRequests(chain, kind, status string, n int)
	IncSubmission(chain, kind, result string)
	IncRpcCall(chain, method, status string)
}

// OracleMetrics contains the instrumented metrics the node exposes on /metrics
type OracleMetrics struct {
	numCycles     *prometheus.CounterVec
	cycleDuration *prometheus.HistogramVec
	numRequests   *prometheus.CounterVec
	numSubmission *prometheus.CounterVec
	numRpcCalls   *prometheus.CounterVec
}

const apNamespace = "ap_oracle"

func NewOracleMetrics(reg prometheus.Registerer) *OracleMetrics {
	return &OracleMetrics{
		numCycles: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: apNamespace,
				Name:      "num_cycles_total",
				Help:      "The number of cycles run per chain. If it isn't increasing, the scheduler is stuck",
			}, []string{"chain", "result"}),

		cycleDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: apNamespace,
				Name:      "cycle_duration_seconds",
				Help:      "Wall time of one cycle",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
			}, []string{"chain"}),

		numRequests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: apNamespace,
				Name:      "num_requests_total",
				Help:      "The number of requests processed, by final status of the cycle",
			}, []string{"chain", "kind", "status"}),

		numSubmission: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: apNamespace,
				Name:      "num_submissions_total",
				Help:      "The number of transactions the node tried to broadcast",
			}, []string{"chain", "kind", "result"}),

		numRpcCalls: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: apNamespace,
				Name:      "num_rpc_calls_total",
				Help:      "The number of rpc calls made to the chain",
			}, []string{"chain", "method", "status"}),
	}
}

func (m *OracleMetrics) IncCycle(chain, result string) {
	m.numCycles.WithLabelValues(chain, result).Inc()
}

func (m *OracleMetrics) ObserveCycleDuration(chain string, seconds float64) {
	m.cycleDuration.WithLabelValues(chain).Observe(seconds)
}

func (m *OracleMetrics) AddRequests(chain, kind, status string, n int) {
	m.numRequests.WithLabelValues(chain, kind, status).Add(float64(n))
}

func (m *OracleMetrics) IncSubmission(chain, kind, result string) {
	m.numSubmission.WithLabelValues(chain, kind, result).Inc()
}

func (m *OracleMetrics) IncRpcCall(chain, method, status string) {
	m.numRpcCalls.WithLabelValues(chain, method, status).Inc()
}

// Noop drops every observation. Used when metrics are disabled and in tests.
type Noop struct{}

func (Noop) IncCycle(chain, result string)                      {}
func (Noop) ObserveCycleDuration(chain string, seconds float64) {}
func (Noop) AddRequests(chain, kind, status string, n int)      {}
func (Noop) IncSubmission(chain, kind, result string)           {}
func (Noop) IncRpcCall(chain, method, status string)            {}

// Ensure returns m, or Noop when m is nil.
func Ensure(m Recorder) Recorder {
	if m == nil {
		return Noop{}
	}
	return m
}
