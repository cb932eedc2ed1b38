package indicator

import "math"

// ATR computes the Average True Range with Wilder smoothing.
// True range per bar is max(high−low, |high−prevClose|, |low−prevClose|);
// the first bar has no previous close, so its TR is high−low. The first
// period−1 positions are undefined; position period−1 is the mean of the
// first period true ranges.
func ATR(high, low, close []float64, period int) ([]float64, error) {
	if err := checkPeriod("ATR", period); err != nil {
		return nil, err
	}
	if err := checkOHLC("ATR", high, low, close); err != nil {
		return nil, err
	}

	n := len(close)
	out := undefinedSeries(n)
	if n < period {
		return out, nil
	}

	tr := make([]float64, n)
	tr[0] = high[0] - low[0]
	for i := 1; i < n; i++ {
		hl := high[i] - low[i]
		hc := math.Abs(high[i] - close[i-1])
		lc := math.Abs(low[i] - close[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}

	seed := 0.0
	for _, v := range tr[:period] {
		seed += v
	}
	atr := seed / float64(period)
	out[period-1] = atr

	p := float64(period)
	for i := period; i < n; i++ {
		atr = (atr*(p-1) + tr[i]) / p
		out[i] = atr
	}
	return out, nil
}
