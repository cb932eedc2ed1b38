// Package metrics exposes Prometheus instrumentation for the trading core.
package metrics

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the trading core.
type Metrics struct {
	CandlesTotal    prometheus.Counter
	CandlesDropped  prometheus.Counter // non-increasing timestamp or full ring
	RingBufOverflow prometheus.Counter

	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	CacheEvictions prometheus.Counter

	IndicatorComputeDur   prometheus.Histogram
	ConditionsEvaluated   prometheus.Counter
	ConditionsUnsupported prometheus.Counter

	FillsTotal           *prometheus.CounterVec // labels: side
	MatchRecordsTotal    prometheus.Counter
	UnmatchedVolumeTotal prometheus.Counter
	RealizedPnL          *prometheus.GaugeVec // labels: instrument

	RedisSnapshotDur         prometheus.Histogram
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter
	SQLiteCommitDur          prometheus.Histogram
}

// New registers and returns all trading-core metrics.
func New() *Metrics {
	m := &Metrics{
		CandlesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradecore_candles_total",
			Help: "Candles accepted into the candle store",
		}),
		CandlesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradecore_candles_dropped_total",
			Help: "Candles dropped (out-of-order timestamp or full intake ring)",
		}),
		RingBufOverflow: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradecore_ringbuf_overflow_total",
			Help: "Intake ring push overflows",
		}),

		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradecore_result_cache_hits_total",
			Help: "Indicator result cache hits",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradecore_result_cache_misses_total",
			Help: "Indicator result cache misses",
		}),
		CacheEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradecore_result_cache_evictions_total",
			Help: "LRU evictions from the indicator result cache",
		}),

		IndicatorComputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradecore_indicator_compute_duration_seconds",
			Help:    "Indicator computation latency per evaluation",
			Buckets: []float64{0.000001, 0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001},
		}),
		ConditionsEvaluated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradecore_conditions_evaluated_total",
			Help: "Strategy conditions evaluated",
		}),
		ConditionsUnsupported: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradecore_conditions_unsupported_total",
			Help: "Strategy conditions that failed to parse",
		}),

		FillsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tradecore_fills_total",
			Help: "Executed fills processed (by side)",
		}, []string{"side"}),
		MatchRecordsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradecore_match_records_total",
			Help: "FIFO match records produced",
		}),
		UnmatchedVolumeTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradecore_unmatched_volume_total",
			Help: "Cumulative sell volume with no open lot to match",
		}),
		RealizedPnL: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tradecore_realized_pnl",
			Help: "Realized P&L per instrument",
		}, []string{"instrument"}),

		RedisSnapshotDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradecore_redis_snapshot_duration_seconds",
			Help:    "Redis candle snapshot save latency",
			Buckets: prometheus.DefBuckets,
		}),
		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradecore_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tradecore_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
		SQLiteCommitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradecore_sqlite_commit_duration_seconds",
			Help:    "SQLite audit batch commit latency",
			Buckets: prometheus.DefBuckets,
		}),
	}

	prometheus.MustRegister(
		m.CandlesTotal,
		m.CandlesDropped,
		m.RingBufOverflow,
		m.CacheHits,
		m.CacheMisses,
		m.CacheEvictions,
		m.IndicatorComputeDur,
		m.ConditionsEvaluated,
		m.ConditionsUnsupported,
		m.FillsTotal,
		m.MatchRecordsTotal,
		m.UnmatchedVolumeTotal,
		m.RealizedPnL,
		m.RedisSnapshotDur,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
		m.SQLiteCommitDur,
	)

	return m
}

// HealthStatus is the serialized /healthz payload.
type HealthStatus struct {
	mu sync.RWMutex

	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`
	LastCandleTime time.Time `json:"last_candle_time"`
	StartedAt      time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastCandleTime(t time.Time) {
	h.mu.Lock()
	h.LastCandleTime = t
	h.mu.Unlock()
}

// healthSnapshot is a lock-free copy for serialization.
type healthSnapshot struct {
	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`
	LastCandleTime time.Time `json:"last_candle_time"`
	StartedAt      time.Time `json:"started_at"`
}

func (h *HealthStatus) snapshot() healthSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return healthSnapshot{
		RedisConnected: h.RedisConnected,
		SQLiteOK:       h.SQLiteOK,
		LastCandleTime: h.LastCandleTime,
		StartedAt:      h.StartedAt,
	}
}

// Serve starts the metrics/health HTTP listener. Blocking.
func Serve(addr string, health *HealthStatus) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		snap := health.snapshot()
		json.NewEncoder(w).Encode(&snap)
	})

	slog.Info("metrics listener started", "addr", addr)
	return http.ListenAndServe(addr, mux)
}
