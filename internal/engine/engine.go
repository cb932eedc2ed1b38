// Package engine is the facade the external collaborators call into: market
// data flows in through OnTick, executed fills through OnFillExecuted, and
// the strategy/risk controller reads entry/exit decisions and realized P&L
// back out. The engine owns the candle store, the indicator result cache,
// the condition evaluator and the FIFO cost-basis matcher.
package engine

import (
	"context"
	"sync"
	"time"

	"cryptocore/internal/candlestore"
	"cryptocore/internal/condition"
	"cryptocore/internal/costbasis"
	"cryptocore/internal/metrics"
	"cryptocore/internal/model"
	"cryptocore/internal/rescache"
	"cryptocore/internal/ringbuf"
)

// Config sizes the engine's bounded resources.
type Config struct {
	HistoryCap    int // per-instrument candle cap
	CacheCapacity int // result cache entries; 0 uses the default, <0 disables
	Params        condition.Params
}

// DefaultConfig returns the standard engine configuration.
func DefaultConfig() Config {
	return Config{
		HistoryCap:    candlestore.DefaultCap,
		CacheCapacity: rescache.DefaultCapacity,
		Params:        condition.DefaultParams(),
	}
}

// Engine wires the trading core together. Safe for concurrent callers:
// the store and cache serialize internally, calculators and matcher need
// no external coordination.
type Engine struct {
	store   *candlestore.Store
	cache   *rescache.Cache
	eval    *condition.Evaluator
	matcher *costbasis.Matcher
	params  condition.Params
	mtr     *metrics.Metrics // optional

	// last cache stats forwarded to prometheus, guarded by statsMu
	statsMu    sync.Mutex
	lastHits   uint64
	lastMisses uint64
	lastEvicts uint64
}

// New creates an Engine. mtr may be nil (e.g. in tests). Zero-valued Params
// fields fall back to their defaults; set fields are kept as given.
func New(cfg Config, mtr *metrics.Metrics) *Engine {
	cfg.Params = fillParams(cfg.Params)
	var cache *rescache.Cache
	if cfg.CacheCapacity >= 0 {
		cache = rescache.New(cfg.CacheCapacity)
	}
	store := candlestore.New(cfg.HistoryCap)
	return &Engine{
		store:   store,
		cache:   cache,
		eval:    condition.NewEvaluator(store, cache, cfg.Params),
		matcher: costbasis.New(),
		params:  cfg.Params,
		mtr:     mtr,
	}
}

// fillParams replaces each zero-valued field with its default, so a caller
// setting only the fields it cares about keeps standard values elsewhere.
func fillParams(p condition.Params) condition.Params {
	def := condition.DefaultParams()
	if p.RSIPeriod == 0 {
		p.RSIPeriod = def.RSIPeriod
	}
	if p.Oversold == 0 {
		p.Oversold = def.Oversold
	}
	if p.Overbought == 0 {
		p.Overbought = def.Overbought
	}
	if p.MACDFast == 0 {
		p.MACDFast = def.MACDFast
	}
	if p.MACDSlow == 0 {
		p.MACDSlow = def.MACDSlow
	}
	if p.MACDSignal == 0 {
		p.MACDSignal = def.MACDSignal
	}
	if p.BollPeriod == 0 {
		p.BollPeriod = def.BollPeriod
	}
	if p.BollMult == 0 {
		p.BollMult = def.BollMult
	}
	if p.ATRPeriod == 0 {
		p.ATRPeriod = def.ATRPeriod
	}
	if p.StochK == 0 {
		p.StochK = def.StochK
	}
	if p.StochD == 0 {
		p.StochD = def.StochD
	}
	if p.VolumePeriod == 0 {
		p.VolumePeriod = def.VolumePeriod
	}
	if p.ProximityBars == 0 {
		p.ProximityBars = def.ProximityBars
	}
	if p.MinHistory == 0 {
		p.MinHistory = def.MinHistory
	}
	return p
}

// OnTick ingests one normalized OHLCV bar from the market-data collaborator.
// Returns whether the bar was accepted into the store.
func (e *Engine) OnTick(instrument string, c model.Candle) bool {
	ok := e.store.Update(instrument, c)
	if e.mtr != nil {
		if ok {
			e.mtr.CandlesTotal.Inc()
		} else {
			e.mtr.CandlesDropped.Inc()
		}
	}
	return ok
}

// OnFillExecuted ingests one executed fill from the execution collaborator
// and returns the match records it produced (none for buys).
func (e *Engine) OnFillExecuted(instrument string, side model.Side, price, volume, fee float64, ts time.Time) []model.MatchRecord {
	unmatchedBefore := e.matcher.UnmatchedVolume(instrument)
	recs := e.matcher.OnFill(model.Fill{
		Instrument: instrument,
		Side:       side,
		Price:      price,
		Volume:     volume,
		Fee:        fee,
		TS:         ts,
	})
	if e.mtr != nil {
		e.mtr.FillsTotal.WithLabelValues(string(side)).Inc()
		e.mtr.MatchRecordsTotal.Add(float64(len(recs)))
		e.mtr.RealizedPnL.WithLabelValues(instrument).Set(e.matcher.RealizedPnL(instrument))
		if d := e.matcher.UnmatchedVolume(instrument) - unmatchedBefore; d > 0 {
			e.mtr.UnmatchedVolumeTotal.Add(d)
		}
	}
	return recs
}

// ShouldEnter reports whether every entry condition holds for the instrument.
func (e *Engine) ShouldEnter(conditions []string, instrument string) bool {
	if len(conditions) == 0 {
		return false
	}
	result := true
	for _, raw := range conditions {
		if !e.evalOne(raw, instrument) {
			result = false
			break
		}
	}
	return result
}

// ShouldExit reports whether any exit condition holds for the instrument.
func (e *Engine) ShouldExit(conditions []string, instrument string) bool {
	for _, raw := range conditions {
		if e.evalOne(raw, instrument) {
			return true
		}
	}
	return false
}

func (e *Engine) evalOne(raw, instrument string) bool {
	c := condition.Parse(raw)
	if e.mtr != nil {
		e.mtr.ConditionsEvaluated.Inc()
		if c.Kind == condition.KindUnsupported {
			e.mtr.ConditionsUnsupported.Inc()
		}
		start := time.Now()
		defer func() {
			e.mtr.IndicatorComputeDur.Observe(time.Since(start).Seconds())
			e.syncCacheMetrics()
		}()
	}
	return e.eval.Evaluate(c, instrument)
}

// syncCacheMetrics forwards cache stat deltas to prometheus counters.
func (e *Engine) syncCacheMetrics() {
	hits, misses, evicts := e.cache.Stats()

	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	e.mtr.CacheHits.Add(float64(hits - e.lastHits))
	e.mtr.CacheMisses.Add(float64(misses - e.lastMisses))
	e.mtr.CacheEvictions.Add(float64(evicts - e.lastEvicts))
	e.lastHits, e.lastMisses, e.lastEvicts = hits, misses, evicts
}

// HistoryStatus returns the current and required bar counts for readiness
// checks by the strategy controller.
func (e *Engine) HistoryStatus(instrument string) (current, required int) {
	return e.store.Size(instrument), e.params.MinHistory
}

// RealizedPnL returns the realized P&L for one instrument.
func (e *Engine) RealizedPnL(instrument string) float64 {
	return e.matcher.RealizedPnL(instrument)
}

// TotalRealizedPnL returns realized P&L across all instruments.
func (e *Engine) TotalRealizedPnL() float64 {
	return e.matcher.TotalRealizedPnL()
}

// MatchRecords returns the audit trail of FIFO matches for an instrument.
func (e *Engine) MatchRecords(instrument string) []model.MatchRecord {
	return e.matcher.Records(instrument)
}

// UnmatchedVolume returns the cumulative unmatched sell volume for an
// instrument — a data-integrity signal, not a fault.
func (e *Engine) UnmatchedVolume(instrument string) float64 {
	return e.matcher.UnmatchedVolume(instrument)
}

// SetRecordObserver registers a callback for every match record, e.g. the
// SQLite audit writer. Must be set before fills flow.
func (e *Engine) SetRecordObserver(fn func(model.MatchRecord)) {
	e.matcher.SetRecordObserver(fn)
}

// Store exposes the candle store for snapshot persistence.
func (e *Engine) Store() *candlestore.Store { return e.store }

// Run drains the intake ring into the candle store until ctx is done.
// The ring is SPSC: this loop is its single consumer.
func (e *Engine) Run(ctx context.Context, ring *ringbuf.Ring) {
	idle := time.NewTicker(time.Millisecond)
	defer idle.Stop()

	for {
		c, ok := ring.Pop()
		if ok {
			e.OnTick(c.Instrument, c)
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-idle.C:
		}
	}
}
