package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for testament operations.
type Metrics struct {
	// Operation outcomes by operation and result code ("ok" on success)
	Operations *prometheus.CounterVec

	// Currency flowing in through bequests and out through withdrawals
	Deposited prometheus.Counter
	PaidOut   prometheus.Counter

	// Failed payouts that were compensated
	PayoutRollbacks prometheus.Counter

	TestamentsDeployed prometheus.Counter
	Deaths             prometheus.Counter

	OperationLatency *prometheus.HistogramVec
}

// New creates a Metrics instance registered with the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the metrics on reg; tests pass a fresh registry.
func NewWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "testament_operations_total",
			Help: "Total testament operations by operation and outcome",
		}, []string{"operation", "outcome"}),
		Deposited: f.NewCounter(prometheus.CounterOpts{
			Name: "testament_deposited_units_total",
			Help: "Currency units accepted through bequests",
		}),
		PaidOut: f.NewCounter(prometheus.CounterOpts{
			Name: "testament_paid_out_units_total",
			Help: "Currency units paid out through withdrawals",
		}),
		PayoutRollbacks: f.NewCounter(prometheus.CounterOpts{
			Name: "testament_payout_rollbacks_total",
			Help: "Withdrawals whose payout failed and whose ledger entry was restored",
		}),
		TestamentsDeployed: f.NewCounter(prometheus.CounterOpts{
			Name: "testament_deployed_total",
			Help: "Total testaments deployed",
		}),
		Deaths: f.NewCounter(prometheus.CounterOpts{
			Name: "testament_deaths_declared_total",
			Help: "Total death declarations accepted",
		}),
		OperationLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "testament_operation_duration_seconds",
			Help:    "Duration of testament operations including persistence and transfers",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
	}
}

// IncrementOperation records one operation outcome.
func (m *Metrics) IncrementOperation(operation, outcome string) {
	if m != nil {
		m.Operations.WithLabelValues(operation, outcome).Inc()
	}
}

func (m *Metrics) AddDeposited(units int64) {
	if m != nil {
		m.Deposited.Add(float64(units))
	}
}

func (m *Metrics) AddPaidOut(units int64) {
	if m != nil {
		m.PaidOut.Add(float64(units))
	}
}

func (m *Metrics) IncrementPayoutRollbacks() {
	if m != nil {
		m.PayoutRollbacks.Inc()
	}
}

func (m *Metrics) IncrementDeployed() {
	if m != nil {
		m.TestamentsDeployed.Inc()
	}
}

func (m *Metrics) IncrementDeaths() {
	if m != nil {
		m.Deaths.Inc()
	}
}

// ObserveLatency records the duration of an operation.
func (m *Metrics) ObserveLatency(operation string, d time.Duration) {
	if m != nil {
		m.OperationLatency.WithLabelValues(operation).Observe(d.Seconds())
	}
}
