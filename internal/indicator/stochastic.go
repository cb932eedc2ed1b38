package indicator

// StochasticResult holds the aligned %K and %D series.
type StochasticResult struct {
	K []float64 // fast stochastic
	D []float64 // SMA(K, dPeriod)
}

// Stochastic computes the stochastic oscillator:
//
//	%K = 100 × (close − lowestLow(kPeriod)) / (highestHigh(kPeriod) − lowestLow(kPeriod))
//	%D = SMA(%K, dPeriod)
//
// %K is defined from kPeriod−1, %D from kPeriod+dPeriod−2. A flat window
// (highestHigh == lowestLow) yields a neutral %K of 50.
func Stochastic(high, low, close []float64, kPeriod, dPeriod int) (StochasticResult, error) {
	if err := checkPeriod("Stochastic %K", kPeriod); err != nil {
		return StochasticResult{}, err
	}
	if err := checkPeriod("Stochastic %D", dPeriod); err != nil {
		return StochasticResult{}, err
	}
	if err := checkOHLC("Stochastic", high, low, close); err != nil {
		return StochasticResult{}, err
	}

	n := len(close)
	res := StochasticResult{K: undefinedSeries(n), D: undefinedSeries(n)}
	if n < kPeriod {
		return res, nil
	}

	for i := kPeriod - 1; i < n; i++ {
		hh, ll := high[i], low[i]
		for j := i - kPeriod + 1; j < i; j++ {
			if high[j] > hh {
				hh = high[j]
			}
			if low[j] < ll {
				ll = low[j]
			}
		}
		if hh == ll {
			res.K[i] = 50
		} else {
			res.K[i] = 100 * (close[i] - ll) / (hh - ll)
		}
	}

	// %D smooths the defined part of %K, shifted back into alignment.
	d, err := SMA(res.K[kPeriod-1:], dPeriod)
	if err != nil {
		return StochasticResult{}, err
	}
	for i, v := range d {
		if IsDefined(v) {
			res.D[kPeriod-1+i] = v
		}
	}
	return res, nil
}
