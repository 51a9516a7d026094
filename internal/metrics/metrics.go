// Package metrics holds the Prometheus collectors of the engine and the follow runner.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "clmm"

// EngineMetrics are recorded by pool engines.
type EngineMetrics struct {
	Operations       *prometheus.CounterVec
	OperationLatency *prometheus.HistogramVec
	TicksCrossed     *prometheus.CounterVec
	CurrentTick      *prometheus.GaugeVec
	ActiveLiquidity  *prometheus.GaugeVec
	EventsPublished  *prometheus.CounterVec
}

// FollowMetrics are recorded while replaying chain logs.
type FollowMetrics struct {
	LogsReplayed   *prometheus.CounterVec
	SwapMismatches *prometheus.CounterVec
	LastBlock      prometheus.Gauge
	FetchRetries   prometheus.Counter
}

var (
	engineOnce    sync.Once
	engineMetrics *EngineMetrics

	followOnce    sync.Once
	followMetrics *FollowMetrics
)

// NewEngineMetrics creates and registers the engine collectors once per process.
func NewEngineMetrics() *EngineMetrics {
	engineOnce.Do(func() {
		engineMetrics = &EngineMetrics{
			Operations: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Subsystem: "engine",
					Name:      "operations_total",
					Help:      "Pool operations by name and outcome",
				},
				[]string{"pool", "op", "status"},
			),
			OperationLatency: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Subsystem: "engine",
					Name:      "operation_latency_seconds",
					Help:      "Time spent executing a pool operation",
					Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
				},
				[]string{"op"},
			),
			TicksCrossed: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Subsystem: "engine",
					Name:      "ticks_crossed_total",
					Help:      "Initialized ticks crossed by swaps",
				},
				[]string{"pool"},
			),
			CurrentTick: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Namespace: namespace,
					Subsystem: "engine",
					Name:      "current_tick",
					Help:      "Current tick after the last committed operation",
				},
				[]string{"pool"},
			),
			ActiveLiquidity: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Namespace: namespace,
					Subsystem: "engine",
					Name:      "active_liquidity",
					Help:      "In-range liquidity after the last committed operation (approximate)",
				},
				[]string{"pool"},
			),
			EventsPublished: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Subsystem: "engine",
					Name:      "events_published_total",
					Help:      "Events delivered to the event sink",
				},
				[]string{"pool", "event"},
			),
		}
	})
	return engineMetrics
}

// NewFollowMetrics creates and registers the follow collectors once per process.
func NewFollowMetrics() *FollowMetrics {
	followOnce.Do(func() {
		followMetrics = &FollowMetrics{
			LogsReplayed: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Subsystem: "follow",
					Name:      "logs_replayed_total",
					Help:      "Chain logs applied to the local engine",
				},
				[]string{"event"},
			),
			SwapMismatches: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Subsystem: "follow",
					Name:      "swap_mismatches_total",
					Help:      "Replayed swaps whose result differs from the chain log",
				},
				[]string{"field"},
			),
			LastBlock: promauto.NewGauge(
				prometheus.GaugeOpts{
					Namespace: namespace,
					Subsystem: "follow",
					Name:      "last_block",
					Help:      "Last block whose logs were replayed",
				},
			),
			FetchRetries: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: namespace,
					Subsystem: "follow",
					Name:      "fetch_retries_total",
					Help:      "Retried RPC calls",
				},
			),
		}
	})
	return followMetrics
}
