package indicator

import "math"

// BollingerResult holds the three aligned Bollinger Band series.
type BollingerResult struct {
	Middle []float64 // SMA(period)
	Upper  []float64 // Middle + multiplier*stddev
	Lower  []float64 // Middle − multiplier*stddev
}

// Bollinger computes Bollinger Bands over closes. The deviation is the
// population standard deviation of the same window as the middle SMA.
// The first period−1 positions are undefined.
func Bollinger(closes []float64, period int, multiplier float64) (BollingerResult, error) {
	if err := checkPeriod("Bollinger", period); err != nil {
		return BollingerResult{}, err
	}

	n := len(closes)
	res := BollingerResult{
		Middle: undefinedSeries(n),
		Upper:  undefinedSeries(n),
		Lower:  undefinedSeries(n),
	}
	if n < period {
		return res, nil
	}

	middle, err := SMA(closes, period)
	if err != nil {
		return BollingerResult{}, err
	}

	for i := period - 1; i < n; i++ {
		mean := middle[i]
		variance := 0.0
		for _, v := range closes[i-period+1 : i+1] {
			d := v - mean
			variance += d * d
		}
		sd := math.Sqrt(variance / float64(period))

		res.Middle[i] = mean
		res.Upper[i] = mean + multiplier*sd
		res.Lower[i] = mean - multiplier*sd
	}
	return res, nil
}
