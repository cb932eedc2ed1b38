package engine

import (
	"context"
	"math"
	"testing"
	"time"

	"cryptocore/internal/condition"
	"cryptocore/internal/model"
	"cryptocore/internal/ringbuf"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Params.MinHistory = 5
	return cfg
}

func tick(e *Engine, instrument string, i int, close float64) bool {
	return e.OnTick(instrument, model.Candle{
		Instrument: instrument,
		TS:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Minute),
		Open:       close, High: close + 1, Low: close - 1, Close: close, Volume: 100,
	})
}

func TestEngine_HistoryStatus(t *testing.T) {
	e := New(testConfig(), nil)

	cur, req := e.HistoryStatus("BTCUSDT")
	if cur != 0 || req != 5 {
		t.Fatalf("history status = (%d,%d), want (0,5)", cur, req)
	}

	for i := 0; i < 3; i++ {
		if !tick(e, "BTCUSDT", i, 100) {
			t.Fatalf("tick %d rejected", i)
		}
	}
	cur, _ = e.HistoryStatus("BTCUSDT")
	if cur != 3 {
		t.Fatalf("current = %d, want 3", cur)
	}
}

func TestEngine_PartialParamsKeepDefaults(t *testing.T) {
	// Setting one field must not wipe the rest back to zero or replace the
	// others the caller set.
	e := New(Config{Params: condition.Params{RSIPeriod: 7}}, nil)
	if e.params.RSIPeriod != 7 {
		t.Errorf("RSIPeriod = %d, want the caller's 7", e.params.RSIPeriod)
	}
	def := condition.DefaultParams()
	if e.params.MinHistory != def.MinHistory || e.params.MACDSlow != def.MACDSlow {
		t.Errorf("unset fields = (%d,%d), want defaults (%d,%d)",
			e.params.MinHistory, e.params.MACDSlow, def.MinHistory, def.MACDSlow)
	}

	e = New(Config{Params: condition.Params{MinHistory: 5, StochK: 9}}, nil)
	if _, req := e.HistoryStatus("BTCUSDT"); req != 5 {
		t.Errorf("required history = %d, want the caller's 5", req)
	}
	if e.params.StochK != 9 || e.params.StochD != def.StochD {
		t.Errorf("stoch params = (%d,%d), want (9,%d)", e.params.StochK, e.params.StochD, def.StochD)
	}
}

func TestEngine_RejectsOutOfOrderTick(t *testing.T) {
	e := New(testConfig(), nil)
	tick(e, "BTCUSDT", 5, 100)
	if tick(e, "BTCUSDT", 5, 101) {
		t.Error("duplicate timestamp must be rejected")
	}
	if tick(e, "BTCUSDT", 2, 99) {
		t.Error("earlier timestamp must be rejected")
	}
}

func TestEngine_EntryExitFlow(t *testing.T) {
	e := New(testConfig(), nil)

	// Decline then recovery: SMA(2) crosses above SMA(3) on the last bar.
	closes := []float64{10, 9, 8, 7, 6, 5, 9}
	for i, c := range closes {
		tick(e, "BTCUSDT", i, c)
	}

	if !e.ShouldEnter([]string{"MA_crossover(2,3)"}, "BTCUSDT") {
		t.Error("crossover entry should fire on the transition bar")
	}
	if e.ShouldEnter(nil, "BTCUSDT") {
		t.Error("no conditions must not enter")
	}
	if e.ShouldEnter([]string{"MA_crossover(2,3)", "not a condition"}, "BTCUSDT") {
		t.Error("an unparseable condition must veto entry")
	}
	if !e.ShouldExit([]string{"not a condition", "Price > 5"}, "BTCUSDT") {
		t.Error("a holding exit condition must fire despite a malformed sibling")
	}
}

func TestEngine_FIFOThroughFacade(t *testing.T) {
	e := New(testConfig(), nil)
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	e.OnFillExecuted("BTCUSDT", model.SideBuy, 50000, 1.0, 25, ts)
	recs := e.OnFillExecuted("BTCUSDT", model.SideSell, 60000, 1.0, 30, ts.Add(time.Second))

	if len(recs) != 1 {
		t.Fatalf("records = %d, want 1", len(recs))
	}
	if got := e.RealizedPnL("BTCUSDT"); math.Abs(got-9945) > 1e-6 {
		t.Fatalf("pnl = %v, want 9945", got)
	}
	if got := e.TotalRealizedPnL(); math.Abs(got-9945) > 1e-6 {
		t.Fatalf("total pnl = %v, want 9945", got)
	}
	if len(e.MatchRecords("BTCUSDT")) != 1 {
		t.Fatal("audit trail should hold one record")
	}
}

func TestEngine_RecordObserver(t *testing.T) {
	e := New(testConfig(), nil)
	var seen []model.MatchRecord
	e.SetRecordObserver(func(r model.MatchRecord) { seen = append(seen, r) })

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e.OnFillExecuted("BTCUSDT", model.SideBuy, 100, 2.0, 0, ts)
	e.OnFillExecuted("BTCUSDT", model.SideSell, 110, 1.0, 0, ts.Add(time.Second))
	e.OnFillExecuted("BTCUSDT", model.SideSell, 120, 1.0, 0, ts.Add(2*time.Second))

	if len(seen) != 2 {
		t.Fatalf("observer saw %d records, want 2", len(seen))
	}
}

func TestEngine_CacheDisabledSameDecisions(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + float64(i%9) - float64(i%4)
	}

	cached := New(testConfig(), nil)
	nocache := func() *Engine {
		cfg := testConfig()
		cfg.CacheCapacity = -1
		return New(cfg, nil)
	}()

	for i, c := range closes {
		tick(cached, "BTCUSDT", i, c)
		tick(nocache, "BTCUSDT", i, c)
	}

	conds := []string{"RSI > 50", "MA(3) > MA(7)", "MACD_crossover", "Volume_above_avg", "ATR > 0.5"}
	for _, cond := range conds {
		a := cached.ShouldExit([]string{cond}, "BTCUSDT")
		b := nocache.ShouldExit([]string{cond}, "BTCUSDT")
		if a != b {
			t.Errorf("%q: cached=%v uncached=%v", cond, a, b)
		}
	}
}

func TestEngine_RunDrainsRing(t *testing.T) {
	e := New(testConfig(), nil)
	ring := ringbuf.New(64)

	for i := 0; i < 20; i++ {
		ring.Push(model.Candle{
			Instrument: "BTCUSDT",
			TS:         time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Second),
			Close:      100,
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx, ring)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		if cur, _ := e.HistoryStatus("BTCUSDT"); cur == 20 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("engine did not drain the ring in time")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done
}
