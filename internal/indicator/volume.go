package indicator

import "fmt"

// VolumeResult holds the aligned volume statistics series.
type VolumeResult struct {
	Average []float64 // rolling SMA of volume
	Change  []float64 // percent change vs previous bar
	OBV     []float64 // on-balance volume
}

// Volume computes rolling average volume, percentage volume change and
// on-balance volume. Average is defined from period−1, Change from index 1
// (and undefined where the previous volume is zero), OBV from index 0.
func Volume(closes, volumes []float64, period int) (VolumeResult, error) {
	if err := checkPeriod("Volume", period); err != nil {
		return VolumeResult{}, err
	}
	if len(closes) != len(volumes) {
		return VolumeResult{}, fmt.Errorf("Volume: mismatched lengths: close=%d volume=%d", len(closes), len(volumes))
	}

	n := len(volumes)
	res := VolumeResult{
		Average: undefinedSeries(n),
		Change:  undefinedSeries(n),
		OBV:     undefinedSeries(n),
	}
	if n == 0 {
		return res, nil
	}

	avg, err := SMA(volumes, period)
	if err != nil {
		return VolumeResult{}, err
	}
	res.Average = avg

	for i := 1; i < n; i++ {
		if volumes[i-1] != 0 {
			res.Change[i] = 100 * (volumes[i] - volumes[i-1]) / volumes[i-1]
		}
	}

	// OBV: cumulative volume signed by close-to-close direction.
	obv := 0.0
	res.OBV[0] = 0
	for i := 1; i < n; i++ {
		switch {
		case closes[i] > closes[i-1]:
			obv += volumes[i]
		case closes[i] < closes[i-1]:
			obv -= volumes[i]
		}
		res.OBV[i] = obv
	}
	return res, nil
}
