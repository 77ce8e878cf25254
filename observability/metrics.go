package observability

import (
	"math"
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// RouterMetrics records offering activity for monitoring dashboards.
type RouterMetrics struct {
	offerings       *prometheus.CounterVec
	mints           prometheus.Counter
	rpcLatency      *prometheus.HistogramVec
	treasuryBalance prometheus.Gauge
}

var (
	routerMetricsOnce sync.Once
	routerRegistry    *RouterMetrics
)

// Router returns the lazily-initialised router metrics registry.
func Router() *RouterMetrics {
	routerMetricsOnce.Do(func() {
		routerRegistry = &RouterMetrics{
			offerings: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "saisen",
				Subsystem: "router",
				Name:      "offerings_total",
				Help:      "Total offering transitions segmented by outcome.",
			}, []string{"outcome"}),
			mints: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "saisen",
				Subsystem: "router",
				Name:      "mints_total",
				Help:      "Total commemorative collectibles issued.",
			}),
			rpcLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "saisen",
				Subsystem: "rpc",
				Name:      "request_seconds",
				Help:      "JSON-RPC request latency segmented by method.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method", "outcome"}),
			treasuryBalance: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "saisen",
				Subsystem: "treasury",
				Name:      "balance_units",
				Help:      "Current treasury balance in smallest units (approximate above 2^53).",
			}),
		}
		prometheus.MustRegister(
			routerRegistry.offerings,
			routerRegistry.mints,
			routerRegistry.rpcLatency,
			routerRegistry.treasuryBalance,
		)
	})
	return routerRegistry
}

// ObserveOffering records one offering transition outcome: "accepted",
// "below_minimum", "transfer_failed", "issuance_failed" or "commit_failed".
// minted additionally bumps the issuance counter.
func (m *RouterMetrics) ObserveOffering(outcome string, minted bool) {
	if m == nil {
		return
	}
	m.offerings.WithLabelValues(outcome).Inc()
	if minted {
		m.mints.Inc()
	}
}

// ObserveRPC records one JSON-RPC request latency sample.
func (m *RouterMetrics) ObserveRPC(method, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.rpcLatency.WithLabelValues(method, outcome).Observe(seconds)
}

// SetTreasuryBalance updates the treasury balance gauge. Values beyond
// float64 precision degrade gracefully.
func (m *RouterMetrics) SetTreasuryBalance(balance *big.Int) {
	if m == nil || balance == nil {
		return
	}
	value, _ := new(big.Float).SetInt(balance).Float64()
	if math.IsInf(value, 0) {
		return
	}
	m.treasuryBalance.Set(value)
}
