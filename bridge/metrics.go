package bridge

import "github.com/prometheus/client_golang/prometheus"

// Call outcomes recorded by bridge_calls_total.
const (
	OutcomeSuccess         = "success"
	OutcomeTimeout         = "timeout"
	OutcomeConversionError = "conversion_error"
	OutcomePublishError    = "publish_error"
	OutcomeCanceled        = "canceled"
)

// Reasons recorded by bridge_dropped_responses_total.
const (
	DropUnmatched = "unmatched"
	DropMalformed = "malformed"
)

// Metrics exposes bridge activity as Prometheus collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Pending prometheus.GaugeFunc
	Calls   *prometheus.CounterVec
	Dropped *prometheus.CounterVec
}

// NewMetrics builds the bridge collectors over registry and registers them on reg when reg is non-nil.
func NewMetrics(reg prometheus.Registerer, registry *Registry) (*Metrics, error) {
	m := &Metrics{
		Pending: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "bridge_pending_requests",
			Help: "Requests awaiting a correlated response.",
		}, func() float64 { return float64(registry.Len()) }),
		Calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_calls_total",
			Help: "Request/reply calls by outcome.",
		}, []string{"outcome"}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_dropped_responses_total",
			Help: "Inbound responses dropped by the intake, by reason.",
		}, []string{"reason"}),
	}

	if reg == nil {
		return m, nil
	}

	for _, c := range []prometheus.Collector{m.Pending, m.Calls, m.Dropped} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *Metrics) call(outcome string) {
	if m == nil {
		return
	}

	m.Calls.WithLabelValues(outcome).Inc()
}

func (m *Metrics) dropped(reason string) {
	if m == nil {
		return
	}

	m.Dropped.WithLabelValues(reason).Inc()
}
