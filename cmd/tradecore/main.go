package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"cryptocore/config"
	"cryptocore/internal/condition"
	"cryptocore/internal/engine"
	"cryptocore/internal/logger"
	"cryptocore/internal/metrics"
	"cryptocore/internal/model"
	"cryptocore/internal/ringbuf"
	"cryptocore/internal/store/redis"
	"cryptocore/internal/store/sqlite"
)

func main() {
	cfg := config.Load()
	logger.Init("tradecore", parseLevel(cfg.LogLevel))
	instruments := parseInstruments(cfg.Instruments)

	mtr := metrics.New()
	health := metrics.NewHealthStatus()
	go func() {
		if err := metrics.Serve(cfg.MetricsAddr, health); err != nil {
			slog.Error("metrics listener failed", "err", err)
		}
	}()

	eng := engine.New(engineConfig(cfg), mtr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutdown signal received")
		cancel()
	}()

	var wg sync.WaitGroup

	// SQLite audit trail: match records and a candle archive.
	auditor, err := sqlite.New(sqlite.WriterConfig{DBPath: cfg.SQLitePath})
	if err != nil {
		slog.Error("sqlite init failed, audit trail disabled", "err", err)
	} else {
		defer auditor.Close()
		health.SetSQLiteOK(true)
		auditor.OnCommit = func(took time.Duration, err error) {
			mtr.SQLiteCommitDur.Observe(took.Seconds())
		}

		// Report realized P&L carried over from previous runs.
		if rd, err := sqlite.NewReader(cfg.SQLitePath); err == nil {
			for _, in := range instruments {
				if pnl, err := rd.RealizedPnL(in); err == nil && pnl != 0 {
					slog.Info("prior realized pnl on record", "instrument", in, "pnl", pnl)
				}
			}
			rd.Close()
		}
	}

	recordCh := make(chan model.MatchRecord, 1024)
	candleCh := make(chan model.Candle, 4096)
	if auditor != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			auditor.RunRecords(ctx, recordCh)
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			auditor.RunCandles(ctx, candleCh)
		}()
	}

	// Redis snapshots: warm the candle store on startup, save periodically.
	snap, err := redis.New(redis.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err != nil {
		slog.Error("redis init failed, snapshots disabled", "err", err)
	} else {
		defer snap.Close()
		health.SetRedisConnected(true)
		snap.OnSnapshot = func(took time.Duration, err error) {
			mtr.RedisSnapshotDur.Observe(took.Seconds())
		}
		snap.Breaker().OnStateChange = func(from, to redis.State) {
			slog.Warn("redis circuit breaker transition", "from", from.String(), "to", to.String())
			mtr.RedisCircuitBreakerState.Set(float64(to))
			if to == redis.StateOpen {
				mtr.RedisCircuitBreakerTrips.Inc()
			}
			health.SetRedisConnected(to == redis.StateClosed)
		}

		restoreCtx, restoreCancel := context.WithTimeout(ctx, 10*time.Second)
		n, err := snap.RestoreSnapshot(restoreCtx, eng.Store())
		restoreCancel()
		if err != nil {
			slog.Warn("snapshot restore failed", "err", err)
		} else if n > 0 {
			slog.Info("candle store restored from snapshot", "candles", n)
		}

		if cfg.SnapshotEverySec > 0 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				snap.RunSnapshots(ctx, eng.Store(), time.Duration(cfg.SnapshotEverySec)*time.Second)
			}()
		}
	}

	// Fan every match record out to the audit writer and live publisher.
	var pub *redis.Publisher
	if snap != nil {
		pub = redis.NewPublisher(ctx, snap, 10000)
	}
	eng.SetRecordObserver(func(rec model.MatchRecord) {
		if auditor != nil {
			select {
			case recordCh <- rec:
			default:
				slog.Warn("audit channel full, record dropped", "instrument", rec.Instrument)
			}
		}
		if pub != nil {
			if err := pub.PublishRecord(rec); err != nil {
				slog.Warn("record publish failed", "instrument", rec.Instrument, "err", err)
			}
		}
	})

	ring := ringbuf.New(4096)

	// Market-data intake: candles arrive over Redis Pub/Sub and flow through
	// the SPSC ring into the engine. The engine loop is the single consumer.
	if snap != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := snap.SubscribeCandles(ctx, instruments, func(c model.Candle) bool {
				health.SetLastCandleTime(c.TS)
				if !ring.Push(c) {
					mtr.RingBufOverflow.Inc()
					mtr.CandlesDropped.Inc()
					return false
				}
				if auditor != nil {
					select {
					case candleCh <- c:
					default:
					}
				}
				return true
			})
			if err != nil {
				slog.Error("candle subscription failed", "err", err)
			}
		}()
	}

	slog.Info("tradecore started",
		"instruments", instruments,
		"history_cap", cfg.HistoryCap,
		"cache_capacity", cfg.CacheCapacity,
		"min_history", cfg.MinHistory)

	eng.Run(ctx, ring)

	// The audit writers flush and exit on ctx cancellation; channels are left
	// open so late sends from the intake goroutine can never hit a closed one.
	wg.Wait()
	slog.Info("tradecore stopped")
}

func engineConfig(cfg *config.Config) engine.Config {
	return engine.Config{
		HistoryCap:    cfg.HistoryCap,
		CacheCapacity: cfg.CacheCapacity,
		Params: condition.Params{
			RSIPeriod:     cfg.RSIPeriod,
			Oversold:      cfg.RSIOversold,
			Overbought:    cfg.RSIOverbought,
			MACDFast:      cfg.MACDFast,
			MACDSlow:      cfg.MACDSlow,
			MACDSignal:    cfg.MACDSignal,
			BollPeriod:    cfg.BollPeriod,
			BollMult:      cfg.BollStdDev,
			ATRPeriod:     cfg.ATRPeriod,
			StochK:        cfg.StochK,
			StochD:        cfg.StochD,
			VolumePeriod:  cfg.VolumeAvgBars,
			ProximityBars: cfg.ProximityBars,
			MinHistory:    cfg.MinHistory,
		},
	}
}

func parseInstruments(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
