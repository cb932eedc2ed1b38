package condition

import (
	"log/slog"

	"cryptocore/internal/candlestore"
	"cryptocore/internal/indicator"
	"cryptocore/internal/rescache"
)

// Params holds the indicator configuration the evaluator falls back to when
// a condition does not carry its own periods.
type Params struct {
	RSIPeriod     int
	Oversold      float64
	Overbought    float64
	MACDFast      int
	MACDSlow      int
	MACDSignal    int
	BollPeriod    int
	BollMult      float64
	ATRPeriod     int
	StochK        int
	StochD        int
	VolumePeriod  int
	ProximityBars int // look-back for price-near-high/low
	MinHistory    int // bars required before any evaluation
}

// DefaultParams returns the standard indicator configuration.
func DefaultParams() Params {
	return Params{
		RSIPeriod:     14,
		Oversold:      30,
		Overbought:    70,
		MACDFast:      12,
		MACDSlow:      26,
		MACDSignal:    9,
		BollPeriod:    20,
		BollMult:      2.0,
		ATRPeriod:     14,
		StochK:        14,
		StochD:        3,
		VolumePeriod:  20,
		ProximityBars: 20,
		MinHistory:    30,
	}
}

// Evaluator turns condition lists into entry/exit decisions against the
// current market snapshot. It is stateless apart from the shared store and
// cache, so one instance serves all instruments and goroutines.
type Evaluator struct {
	store  *candlestore.Store
	cache  *rescache.Cache // nil disables memoization, not correctness
	params Params
}

// NewEvaluator creates an Evaluator. cache may be nil.
func NewEvaluator(store *candlestore.Store, cache *rescache.Cache, params Params) *Evaluator {
	return &Evaluator{store: store, cache: cache, params: params}
}

// ShouldEnter reports whether every entry condition holds for the instrument.
// An empty condition list never enters.
func (e *Evaluator) ShouldEnter(conditions []string, instrument string) bool {
	if len(conditions) == 0 {
		return false
	}
	snap := e.snapshot(instrument)
	for _, raw := range conditions {
		if !e.eval(Parse(raw), snap) {
			return false
		}
	}
	return true
}

// ShouldExit reports whether any exit condition holds for the instrument.
func (e *Evaluator) ShouldExit(conditions []string, instrument string) bool {
	snap := e.snapshot(instrument)
	for _, raw := range conditions {
		if e.eval(Parse(raw), snap) {
			return true
		}
	}
	return false
}

// Evaluate evaluates a single pre-parsed condition. Exposed for tests and
// for callers that parse once and evaluate per tick.
func (e *Evaluator) Evaluate(c Condition, instrument string) bool {
	return e.eval(c, e.snapshot(instrument))
}

// marketSnapshot is the extracted column view of one instrument's history.
type marketSnapshot struct {
	high, low, close, volume []float64
}

func (e *Evaluator) snapshot(instrument string) marketSnapshot {
	bars := e.store.ReadAll(instrument)
	s := marketSnapshot{
		high:   make([]float64, len(bars)),
		low:    make([]float64, len(bars)),
		close:  make([]float64, len(bars)),
		volume: make([]float64, len(bars)),
	}
	for i, b := range bars {
		s.high[i] = b.High
		s.low[i] = b.Low
		s.close[i] = b.Close
		s.volume[i] = b.Volume
	}
	return s
}

// eval evaluates one condition against a snapshot. Insufficient data and
// undefined indicator values evaluate to false, never to an error — a live
// signal loop cannot be interrupted.
func (e *Evaluator) eval(c Condition, s marketSnapshot) bool {
	if c.Kind == KindUnsupported {
		slog.Warn("unsupported strategy condition", "condition", c.Raw)
		return false
	}
	n := len(s.close)
	if n < e.params.MinHistory {
		return false
	}
	last := n - 1

	switch c.Kind {
	case KindRSIThreshold:
		return cmpAt(e.rsi(s), last, c.Op, c.Threshold)
	case KindRSIOversold:
		return cmpAt(e.rsi(s), last, OpLE, e.params.Oversold)
	case KindRSIOverbought:
		return cmpAt(e.rsi(s), last, OpGE, e.params.Overbought)

	case KindPriceThreshold:
		return c.Op.compare(s.close[last], c.Threshold)

	case KindMACompare:
		fast := e.ma(s, c.P1, c.Exp)
		slow := e.ma(s, c.P2, c.Exp)
		return bothDefined(fast, slow, last) && c.Op.compare(fast[last], slow[last])

	case KindPriceMACompare:
		ma := e.ma(s, c.P1, c.Exp)
		return definedAt(ma, last) && c.Op.compare(s.close[last], ma[last])

	case KindMACrossover:
		return crossesAbove(e.ma(s, c.P1, c.Exp), e.ma(s, c.P2, c.Exp), last)
	case KindMACrossunder:
		return crossesAbove(e.ma(s, c.P2, c.Exp), e.ma(s, c.P1, c.Exp), last)

	case KindMACDThreshold:
		m := e.macd(s)
		return cmpAt(m.Line, last, c.Op, c.Threshold)
	case KindMACDCrossover:
		m := e.macd(s)
		return crossesAbove(m.Line, m.Signal, last)
	case KindMACDCrossunder:
		m := e.macd(s)
		return crossesAbove(m.Signal, m.Line, last)
	case KindMACDPositive:
		m := e.macd(s)
		return cmpAt(m.Line, last, OpGT, 0)
	case KindMACDNegative:
		m := e.macd(s)
		return cmpAt(m.Line, last, OpLT, 0)

	case KindPriceAboveUpper:
		b := e.bollinger(s)
		return definedAt(b.Upper, last) && s.close[last] > b.Upper[last]
	case KindPriceBelowLower:
		b := e.bollinger(s)
		return definedAt(b.Lower, last) && s.close[last] < b.Lower[last]
	case KindBollingerOut:
		b := e.bollinger(s)
		return bothDefined(b.Upper, b.Lower, last) &&
			(s.close[last] > b.Upper[last] || s.close[last] < b.Lower[last])

	case KindATRThreshold:
		return cmpAt(e.atr(s), last, c.Op, c.Threshold)

	case KindVolumeAboveAvg:
		v := e.volume(s)
		return definedAt(v.Average, last) && s.volume[last] > c.Mult*v.Average[last]

	case KindPriceNearHigh:
		hh, ok := extreme(s.high, last, e.params.ProximityBars, true)
		return ok && hh > 0 && s.close[last] >= hh*(1-c.Mult/100)
	case KindPriceNearLow:
		ll, ok := extreme(s.low, last, e.params.ProximityBars, false)
		return ok && s.close[last] <= ll*(1+c.Mult/100)

	case KindMomentum:
		base := last - c.P1
		if base < 0 || s.close[base] == 0 {
			return false
		}
		change := 100 * (s.close[last] - s.close[base]) / s.close[base]
		return c.Op.compare(change, c.Threshold)
	}
	return false
}

// ── cached indicator access ─────────────────────────────────

func (e *Evaluator) rsi(s marketSnapshot) []float64 {
	key := rescache.Key("RSI", []float64{float64(e.params.RSIPeriod)}, s.close)
	if v, ok := e.cache.Get(key); ok {
		return v.([]float64)
	}
	out, err := indicator.RSI(s.close, e.params.RSIPeriod)
	if err != nil {
		slog.Warn("RSI computation failed", "err", err)
		return nil
	}
	e.cache.Put(key, out)
	return out
}

func (e *Evaluator) ma(s marketSnapshot, period int, exp bool) []float64 {
	name := "SMA"
	fn := indicator.SMA
	if exp {
		name = "EMA"
		fn = indicator.EMA
	}
	key := rescache.Key(name, []float64{float64(period)}, s.close)
	if v, ok := e.cache.Get(key); ok {
		return v.([]float64)
	}
	out, err := fn(s.close, period)
	if err != nil {
		slog.Warn("moving average computation failed", "name", name, "period", period, "err", err)
		return nil
	}
	e.cache.Put(key, out)
	return out
}

func (e *Evaluator) macd(s marketSnapshot) indicator.MACDResult {
	p := e.params
	key := rescache.Key("MACD",
		[]float64{float64(p.MACDFast), float64(p.MACDSlow), float64(p.MACDSignal)}, s.close)
	if v, ok := e.cache.Get(key); ok {
		return v.(indicator.MACDResult)
	}
	out, err := indicator.MACD(s.close, p.MACDFast, p.MACDSlow, p.MACDSignal)
	if err != nil {
		slog.Warn("MACD computation failed", "err", err)
		return indicator.MACDResult{}
	}
	e.cache.Put(key, out)
	return out
}

func (e *Evaluator) bollinger(s marketSnapshot) indicator.BollingerResult {
	p := e.params
	key := rescache.Key("BOLL", []float64{float64(p.BollPeriod), p.BollMult}, s.close)
	if v, ok := e.cache.Get(key); ok {
		return v.(indicator.BollingerResult)
	}
	out, err := indicator.Bollinger(s.close, p.BollPeriod, p.BollMult)
	if err != nil {
		slog.Warn("Bollinger computation failed", "err", err)
		return indicator.BollingerResult{}
	}
	e.cache.Put(key, out)
	return out
}

func (e *Evaluator) atr(s marketSnapshot) []float64 {
	key := rescache.Key("ATR", []float64{float64(e.params.ATRPeriod)}, s.high, s.low, s.close)
	if v, ok := e.cache.Get(key); ok {
		return v.([]float64)
	}
	out, err := indicator.ATR(s.high, s.low, s.close, e.params.ATRPeriod)
	if err != nil {
		slog.Warn("ATR computation failed", "err", err)
		return nil
	}
	e.cache.Put(key, out)
	return out
}

func (e *Evaluator) volume(s marketSnapshot) indicator.VolumeResult {
	key := rescache.Key("VOL", []float64{float64(e.params.VolumePeriod)}, s.close, s.volume)
	if v, ok := e.cache.Get(key); ok {
		return v.(indicator.VolumeResult)
	}
	out, err := indicator.Volume(s.close, s.volume, e.params.VolumePeriod)
	if err != nil {
		slog.Warn("volume statistics computation failed", "err", err)
		return indicator.VolumeResult{}
	}
	e.cache.Put(key, out)
	return out
}

// ── positional helpers ──────────────────────────────────────

func definedAt(s []float64, i int) bool {
	return i >= 0 && i < len(s) && indicator.IsDefined(s[i])
}

func bothDefined(a, b []float64, i int) bool {
	return definedAt(a, i) && definedAt(b, i)
}

func cmpAt(s []float64, i int, op Op, threshold float64) bool {
	return definedAt(s, i) && op.compare(s[i], threshold)
}

// crossesAbove reports whether series a transitions from at-or-below b on
// the previous bar to above b on the current bar. All four aligned points
// must be defined.
func crossesAbove(a, b []float64, last int) bool {
	prev := last - 1
	if !bothDefined(a, b, last) || !bothDefined(a, b, prev) {
		return false
	}
	return a[prev] <= b[prev] && a[last] > b[last]
}

// extreme returns the highest (max=true) or lowest value of the trailing
// window ending at last, and whether a full window existed.
func extreme(s []float64, last, window int, max bool) (float64, bool) {
	if window <= 0 || last-window+1 < 0 {
		return 0, false
	}
	v := s[last-window+1]
	for _, x := range s[last-window+2 : last+1] {
		if (max && x > v) || (!max && x < v) {
			v = x
		}
	}
	return v, true
}
