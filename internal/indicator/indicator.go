// Package indicator provides pure technical-indicator calculators over OHLCV
// series. Every calculator returns a result aligned positionally with its
// input: the output has the same length, and positions without enough history
// are marked undefined (NaN) rather than omitted, so index i in any result
// always refers to input bar i.
//
// Calculators are stateless — one call never affects another — which makes
// them safe to share across instruments and goroutines.
package indicator

import (
	"fmt"
	"math"
)

// Undefined returns the marker for a position with insufficient history.
func Undefined() float64 { return math.NaN() }

// IsDefined reports whether a result position holds a real value.
func IsDefined(v float64) bool { return !math.IsNaN(v) }

// undefinedSeries allocates an all-undefined result of length n.
func undefinedSeries(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}

// checkPeriod rejects non-positive periods. This is a configuration error,
// fatal to the call — it is never coerced to a default.
func checkPeriod(name string, period int) error {
	if period <= 0 {
		return fmt.Errorf("%s: period must be positive, got %d", name, period)
	}
	return nil
}

// checkOHLC rejects mismatched high/low/close lengths.
func checkOHLC(name string, high, low, close []float64) error {
	if len(high) != len(low) || len(low) != len(close) {
		return fmt.Errorf("%s: mismatched OHLC lengths: high=%d low=%d close=%d",
			name, len(high), len(low), len(close))
	}
	return nil
}
