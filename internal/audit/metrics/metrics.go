package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the audit ledger and its stream.
type Metrics struct {
	Appended        *prometheus.CounterVec
	AppendFailures  prometheus.Counter
	AppendLatency   prometheus.Histogram
	Verifications   *prometheus.CounterVec
	ChainHead       prometheus.Gauge
	StreamPublished prometheus.Counter
	StreamDropped   *prometheus.CounterVec
	StreamFailures  prometheus.Counter
	BreakerState    prometheus.Gauge
}

// New creates audit metrics registered with reg. A nil reg leaves them
// unregistered.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Appended: f.NewCounterVec(prometheus.CounterOpts{
			Name: "riskcast_audit_records_appended_total",
			Help: "Records appended to the audit chain by event type",
		}, []string{"event_type"}),
		AppendFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "riskcast_audit_append_failures_total",
			Help: "Appends that failed to persist",
		}),
		AppendLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "riskcast_audit_append_duration_seconds",
			Help:    "Time spent holding the ledger lock per append",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		Verifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "riskcast_audit_verifications_total",
			Help: "Chain verifications by result (valid or violation kind)",
		}, []string{"result"}),
		ChainHead: f.NewGauge(prometheus.GaugeOpts{
			Name: "riskcast_audit_chain_head_sequence",
			Help: "Sequence number of the latest appended record",
		}),
		StreamPublished: f.NewCounter(prometheus.CounterOpts{
			Name: "riskcast_audit_stream_published_total",
			Help: "Records published to the audit stream",
		}),
		StreamDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "riskcast_audit_stream_dropped_total",
			Help: "Records not published to the audit stream",
		}, []string{"reason"}), // reason: "buffer_full", "circuit_open", "publish_failed"
		StreamFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "riskcast_audit_stream_failures_total",
			Help: "Failed publish attempts to the audit stream",
		}),
		BreakerState: f.NewGauge(prometheus.GaugeOpts{
			Name: "riskcast_audit_stream_circuit_breaker_state",
			Help: "Stream circuit breaker state (0=closed/healthy, 1=open/unhealthy)",
		}),
	}
}

func (m *Metrics) ObserveAppend(eventType string, seq int64, d time.Duration) {
	if m != nil {
		m.Appended.WithLabelValues(eventType).Inc()
		m.AppendLatency.Observe(d.Seconds())
		m.ChainHead.Set(float64(seq))
	}
}

func (m *Metrics) IncAppendFailures() {
	if m != nil {
		m.AppendFailures.Inc()
	}
}

func (m *Metrics) IncVerification(result string) {
	if m != nil {
		m.Verifications.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) AddPublished(n int) {
	if m != nil {
		m.StreamPublished.Add(float64(n))
	}
}

func (m *Metrics) AddDropped(reason string, n int) {
	if m != nil {
		m.StreamDropped.WithLabelValues(reason).Add(float64(n))
	}
}

func (m *Metrics) IncStreamFailures() {
	if m != nil {
		m.StreamFailures.Inc()
	}
}

// SetBreakerState sets the circuit breaker state gauge.
func (m *Metrics) SetBreakerState(open bool) {
	if m == nil {
		return
	}
	if open {
		m.BreakerState.Set(1)
	} else {
		m.BreakerState.Set(0)
	}
}
