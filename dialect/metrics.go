package dialect

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus metrics of store requests.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	slow     *prometheus.CounterVec
}

// NewMetrics creates the store request metrics and registers them with reg.
// A nil registerer leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "velograph",
				Subsystem: "store",
				Name:      "requests_total",
				Help:      "Total number of store requests",
			},
			[]string{"op", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "velograph",
				Subsystem: "store",
				Name:      "request_duration_seconds",
				Help:      "Duration of store requests",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"op"},
		),
		slow: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "velograph",
				Subsystem: "store",
				Name:      "slow_requests_total",
				Help:      "Total number of store requests exceeding the slow threshold",
			},
			[]string{"op"},
		),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.requests, m.duration, m.slow} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Requests returns the request counter, labeled by op and status.
func (m *Metrics) Requests() *prometheus.CounterVec { return m.requests }

// Slow returns the slow request counter, labeled by op.
func (m *Metrics) Slow() *prometheus.CounterVec { return m.slow }

func (m *Metrics) observe(op string, d time.Duration, err error, slow bool) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.requests.WithLabelValues(op, status).Inc()
	m.duration.WithLabelValues(op).Observe(d.Seconds())
	if slow {
		m.slow.WithLabelValues(op).Inc()
	}
}
