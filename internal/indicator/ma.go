package indicator

// SMA computes the simple moving average of values over period.
// The first period−1 positions are undefined. An input shorter than the
// period yields an all-undefined result of the same length, not an error.
func SMA(values []float64, period int) ([]float64, error) {
	if err := checkPeriod("SMA", period); err != nil {
		return nil, err
	}
	out := undefinedSeries(len(values))
	if len(values) < period {
		return out, nil
	}

	// Rolling sum: subtract the bar leaving the window, add the one entering.
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out, nil
}

// EMA computes the exponential moving average with smoothing factor
// 2/(period+1), seeded with the SMA of the first period values.
// The first period−1 positions are undefined.
func EMA(values []float64, period int) ([]float64, error) {
	if err := checkPeriod("EMA", period); err != nil {
		return nil, err
	}
	out := undefinedSeries(len(values))
	if len(values) < period {
		return out, nil
	}

	seed := 0.0
	for _, v := range values[:period] {
		seed += v
	}
	seed /= float64(period)
	out[period-1] = seed

	multiplier := 2.0 / float64(period+1)
	prev := seed
	for i := period; i < len(values); i++ {
		prev = (values[i]-prev)*multiplier + prev
		out[i] = prev
	}
	return out, nil
}
