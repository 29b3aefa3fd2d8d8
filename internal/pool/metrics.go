// metrics.go - Prometheus instrumentation of the pool.

package pool

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts pool activity. All counters are monotonic; LiveSlots
// tracks currently allocated computation slots.
type Metrics struct {
	Submitted    *prometheus.CounterVec
	Rounds       prometheus.Counter
	Accepts      prometheus.Counter
	Rejects      prometheus.Counter
	DoubleSpends prometheus.Counter
	LiveSlots    prometheus.Gauge
}

// NewMetrics registers the pool metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Submitted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "shield_submissions_total",
			Help: "Proof submissions accepted into a slot, by kind.",
		}, []string{"kind"}),
		Rounds: f.NewCounter(prometheus.CounterOpts{
			Name: "shield_rounds_advanced_total",
			Help: "Verification rounds executed.",
		}),
		Accepts: f.NewCounter(prometheus.CounterOpts{
			Name: "shield_accepts_total",
			Help: "Computations that terminated with Accept.",
		}),
		Rejects: f.NewCounter(prometheus.CounterOpts{
			Name: "shield_rejects_total",
			Help: "Computations that terminated with Reject.",
		}),
		DoubleSpends: f.NewCounter(prometheus.CounterOpts{
			Name: "shield_double_spends_total",
			Help: "Accepts downgraded because the nullifier was present.",
		}),
		LiveSlots: f.NewGauge(prometheus.GaugeOpts{
			Name: "shield_live_slots",
			Help: "Computation slots currently allocated.",
		}),
	}
}
