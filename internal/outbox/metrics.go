package outbox

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Published prometheus.Counter
	Failed    prometheus.Counter
}

func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Published: factory.NewCounter(prometheus.CounterOpts{
			Name: "testament_outbox_published_total",
			Help: "Notifications relayed from the outbox",
		}),
		Failed: factory.NewCounter(prometheus.CounterOpts{
			Name: "testament_outbox_publish_failures_total",
			Help: "Notifications whose publish attempt failed and will be retried",
		}),
	}
}

func (m *Metrics) IncrementPublished(n int) {
	if m == nil {
		return
	}
	m.Published.Add(float64(n))
}

func (m *Metrics) IncrementFailed(n int) {
	if m == nil {
		return
	}
	m.Failed.Add(float64(n))
}
