package indicator

import "fmt"

// MACDResult holds the three aligned MACD series.
type MACDResult struct {
	Line      []float64 // fast EMA − slow EMA
	Signal    []float64 // EMA of Line
	Histogram []float64 // Line − Signal
}

// MACD computes the Moving Average Convergence/Divergence of closes.
// Line is defined from index slowPeriod−1, Signal and Histogram from
// slowPeriod+signalPeriod−2.
func MACD(closes []float64, fastPeriod, slowPeriod, signalPeriod int) (MACDResult, error) {
	if err := checkPeriod("MACD fast", fastPeriod); err != nil {
		return MACDResult{}, err
	}
	if err := checkPeriod("MACD slow", slowPeriod); err != nil {
		return MACDResult{}, err
	}
	if err := checkPeriod("MACD signal", signalPeriod); err != nil {
		return MACDResult{}, err
	}
	if fastPeriod >= slowPeriod {
		return MACDResult{}, fmt.Errorf("MACD: fast period %d must be shorter than slow period %d", fastPeriod, slowPeriod)
	}

	n := len(closes)
	res := MACDResult{
		Line:      undefinedSeries(n),
		Signal:    undefinedSeries(n),
		Histogram: undefinedSeries(n),
	}

	fast, err := EMA(closes, fastPeriod)
	if err != nil {
		return MACDResult{}, err
	}
	slow, err := EMA(closes, slowPeriod)
	if err != nil {
		return MACDResult{}, err
	}

	start := slowPeriod - 1 // first index where both EMAs are defined
	if n <= start {
		return res, nil
	}
	for i := start; i < n; i++ {
		res.Line[i] = fast[i] - slow[i]
	}

	// Signal is an EMA over the defined part of the line, shifted back into
	// alignment with the input.
	sig, err := EMA(res.Line[start:], signalPeriod)
	if err != nil {
		return MACDResult{}, err
	}
	for i, v := range sig {
		if !IsDefined(v) {
			continue
		}
		res.Signal[start+i] = v
		res.Histogram[start+i] = res.Line[start+i] - v
	}
	return res, nil
}
