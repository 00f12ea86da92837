/*

Prometheus collectors for the engine. Registered on the default registry and
served by the web server's /metrics handler.

*/

package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Oracle counters, cumulative since process start.
	OracleFreshHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rotor_oracle_fresh_hits_total",
		Help: "Price lookups served from an unexpired cache entry.",
	})
	OracleStaleHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rotor_oracle_stale_fallback_hits_total",
		Help: "Price lookups served from an expired cache entry after a fetch failure.",
	})
	OracleHardFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rotor_oracle_stable_hard_fallbacks_total",
		Help: "Stable-symbol lookups that fell back to the assumed $1 peg.",
	})
	OracleFetches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rotor_oracle_fetches_total",
		Help: "Successful upstream price fetches.",
	})
	OracleFetchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rotor_oracle_fetch_failures_total",
		Help: "Failed upstream price fetches, including rate-limit short circuits.",
	})

	// Decision outcomes by action.
	Decisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rotor_decisions_total",
		Help: "Decision tick outcomes by action.",
	}, []string{"action"})

	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rotor_tick_duration_seconds",
		Help:    "Wall time of one decision tick.",
		Buckets: prometheus.DefBuckets,
	})

	PoolFetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rotor_pool_fetch_failures_total",
		Help: "Per-pool on-chain state fetch failures (pool excluded for the tick).",
	}, []string{"pool"})
)
