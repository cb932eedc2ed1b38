// Package model holds the domain types shared by the trading core:
// OHLCV candles, executed fills and cost-basis match records.
package model

import (
	"encoding/json"
	"time"
)

// Candle represents one OHLCV bar for a single instrument.
// Prices and volume are float64 — crypto instruments trade in fractional
// units, so integer minor-unit representation does not apply here.
type Candle struct {
	Instrument string    `json:"instrument"`
	TS         time.Time `json:"ts"` // bar open time (UTC)
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Close      float64   `json:"close"`
	Volume     float64   `json:"volume"`
}

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}
