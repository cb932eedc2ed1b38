package condition

import (
	"testing"
	"time"

	"cryptocore/internal/candlestore"
	"cryptocore/internal/model"
	"cryptocore/internal/rescache"
)

// feed loads a close series into a fresh store; high/low straddle the close.
func feed(closes []float64) *candlestore.Store {
	s := candlestore.New(500)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		s.Update("BTCUSDT", model.Candle{
			Instrument: "BTCUSDT",
			TS:         base.Add(time.Duration(i) * time.Minute),
			Open:       c, High: c + 1, Low: c - 1, Close: c, Volume: 100,
		})
	}
	return s
}

func smallParams() Params {
	p := DefaultParams()
	p.MinHistory = 3
	return p
}

func TestEvaluator_MACrossoverFiresOnExactBar(t *testing.T) {
	// SMA(2) vs SMA(3) over 10,9,8,7,6,5,9,12:
	// fast stays at-or-below slow through idx 5, crosses above at idx 6
	// (7 > 6.6667) and remains above at idx 7. The condition must fire on
	// idx 6 only.
	closes := []float64{10, 9, 8, 7, 6, 5, 9, 12}
	cond := []string{"MA_crossover(2,3)"}

	for barCount, want := range map[int]bool{6: false, 7: true, 8: false} {
		store := feed(closes[:barCount])
		ev := NewEvaluator(store, rescache.New(10), smallParams())
		if got := ev.ShouldEnter(cond, "BTCUSDT"); got != want {
			t.Errorf("after %d bars: ShouldEnter = %v, want %v", barCount, got, want)
		}
	}
}

func TestEvaluator_MACrossunder(t *testing.T) {
	// Mirror of the crossover case: rising then falling. SMA(2) drops to 8
	// on the last bar while SMA(3) sits at 8.3333, having been at-or-below
	// one bar earlier.
	closes := []float64{5, 6, 7, 8, 9, 10, 6}
	store := feed(closes)
	ev := NewEvaluator(store, rescache.New(10), smallParams())

	if !ev.ShouldExit([]string{"MA_crossunder(2,3)"}, "BTCUSDT") {
		t.Error("crossunder should fire after the downturn")
	}
}

func TestEvaluator_EntryIsConjunction(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + float64(i) // steady rise → RSI high
	}
	store := feed(closes)
	ev := NewEvaluator(store, rescache.New(10), DefaultParams())

	// One true condition...
	if !ev.ShouldEnter([]string{"RSI > 50"}, "BTCUSDT") {
		t.Fatal("rising series should have RSI > 50")
	}
	// ...ANDed with a false one must not enter.
	if ev.ShouldEnter([]string{"RSI > 50", "RSI < 30"}, "BTCUSDT") {
		t.Error("entry must require every condition")
	}
	// Empty entry list never enters.
	if ev.ShouldEnter(nil, "BTCUSDT") {
		t.Error("empty entry list must not enter")
	}
}

func TestEvaluator_ExitIsDisjunction(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	store := feed(closes)
	ev := NewEvaluator(store, rescache.New(10), DefaultParams())

	// A malformed condition evaluates false but must not mask the valid one.
	if !ev.ShouldExit([]string{"garbage condition here extra", "RSI > 50"}, "BTCUSDT") {
		t.Error("exit should fire on any holding condition")
	}
	if ev.ShouldExit([]string{"not parseable"}, "BTCUSDT") {
		t.Error("unparseable alone must not exit")
	}
}

func TestEvaluator_RSIOversoldOnDecline(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 1000 - float64(i)*5 // steady decline → RSI near 0
	}
	store := feed(closes)
	ev := NewEvaluator(store, rescache.New(10), DefaultParams())

	if !ev.ShouldEnter([]string{"RSI < 30"}, "BTCUSDT") {
		t.Error("declining series should be oversold")
	}
	if !ev.ShouldEnter([]string{"RSI_oversold"}, "BTCUSDT") {
		t.Error("RSI_oversold keyword should hold")
	}
	if ev.ShouldEnter([]string{"RSI_overbought"}, "BTCUSDT") {
		t.Error("declining series cannot be overbought")
	}
}

func TestEvaluator_InsufficientHistoryIsFalse(t *testing.T) {
	store := feed([]float64{100, 101}) // below MinHistory
	ev := NewEvaluator(store, rescache.New(10), DefaultParams())

	for _, cond := range []string{"RSI < 30", "RSI > 0", "Price > 1", "MACD_crossover"} {
		if ev.ShouldEnter([]string{cond}, "BTCUSDT") {
			t.Errorf("%q: must be false before minimum history", cond)
		}
	}
}

func TestEvaluator_MomentumAndPrice(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	store := feed(closes)
	ev := NewEvaluator(store, rescache.New(10), DefaultParams())

	// Last close 139, 10 bars back 129 → +7.75%.
	if !ev.ShouldEnter([]string{"Momentum(10) > 5"}, "BTCUSDT") {
		t.Error("momentum over 10 bars should exceed 5%")
	}
	if ev.ShouldEnter([]string{"Momentum(10) > 10"}, "BTCUSDT") {
		t.Error("momentum should not exceed 10%")
	}
	if !ev.ShouldEnter([]string{"Price > 138", "Price_near_high"}, "BTCUSDT") {
		t.Error("last bar of a rising series is the recent high")
	}
}

func TestEvaluator_VolumeBelowAvgNeverHolds(t *testing.T) {
	// 39 bars of volume 100 then a 500-volume spike. "Volume > Volume_avg"
	// holds on the spike; the reversed form is not a supported condition and
	// must evaluate false rather than flip the comparison.
	store := candlestore.New(500)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 40; i++ {
		vol := 100.0
		if i == 39 {
			vol = 500
		}
		store.Update("BTCUSDT", model.Candle{
			Instrument: "BTCUSDT",
			TS:         base.Add(time.Duration(i) * time.Minute),
			Open:       100, High: 101, Low: 99, Close: 100, Volume: vol,
		})
	}
	ev := NewEvaluator(store, rescache.New(10), DefaultParams())

	if !ev.ShouldEnter([]string{"Volume > Volume_avg"}, "BTCUSDT") {
		t.Error("volume spike should sit above its rolling average")
	}
	if ev.ShouldEnter([]string{"Volume < Volume_avg"}, "BTCUSDT") {
		t.Error("below-average form must evaluate false on a volume spike")
	}
}

func TestEvaluator_CacheTransparency(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i%13) - float64(i%7)
	}
	store := feed(closes)

	conds := []string{
		"RSI < 30", "RSI > 30", "MA(9) > MA(21)", "MACD_crossover",
		"Price > Bollinger_Upper", "ATR > 0", "Volume_above_avg",
		"Momentum(5) > 0", "Price_near_low",
	}

	cached := NewEvaluator(store, rescache.New(50), DefaultParams())
	uncached := NewEvaluator(store, nil, DefaultParams())

	for _, c := range conds {
		// Evaluate twice with the cache so the second pass hits it.
		first := cached.ShouldExit([]string{c}, "BTCUSDT")
		second := cached.ShouldExit([]string{c}, "BTCUSDT")
		bare := uncached.ShouldExit([]string{c}, "BTCUSDT")
		if first != bare || second != bare {
			t.Errorf("%q: cached=%v/%v uncached=%v — cache changed a decision", c, first, second, bare)
		}
	}
}

func TestEvaluator_CacheIsActuallyUsed(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	store := feed(closes)
	cache := rescache.New(50)
	ev := NewEvaluator(store, cache, DefaultParams())

	ev.ShouldEnter([]string{"RSI > 50"}, "BTCUSDT")
	ev.ShouldEnter([]string{"RSI > 50"}, "BTCUSDT")

	hits, misses, _ := cache.Stats()
	if misses == 0 {
		t.Fatal("first evaluation should miss the cache")
	}
	if hits == 0 {
		t.Fatal("second evaluation of identical input should hit the cache")
	}
}
