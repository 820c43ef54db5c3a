// Package metrics exposes Prometheus counters/gauges for the service's
// ambient health signals — decode drops, sequence gaps, subscriber count,
// and create/redeem activity — served over /metrics by the REST server.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	SequenceGaps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etf_sequence_gaps_total",
			Help: "Sequence gaps observed per feed",
		},
		[]string{"feed"},
	)

	FramesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etf_frames_dropped_total",
			Help: "Malformed datagrams dropped per feed",
		},
		[]string{"feed"},
	)

	Subscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "etf_fanout_subscribers",
			Help: "Currently connected dashboard WebSocket subscribers",
		},
	)

	CreateRedeemTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etf_create_redeem_total",
			Help: "ETF create/redeem calls by operation and outcome",
		},
		[]string{"op", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(SequenceGaps, FramesDropped, Subscribers, CreateRedeemTotal)
}
