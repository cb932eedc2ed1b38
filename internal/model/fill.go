package model

import "time"

// Side is the direction of an executed fill.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Fill is one executed trade delivered by the execution collaborator.
// Volume is always positive regardless of side; Fee is non-negative.
// Fills are immutable and arrive in timestamp order per instrument.
type Fill struct {
	Instrument string    `json:"instrument"`
	Side       Side      `json:"side"`
	Price      float64   `json:"price"`
	Volume     float64   `json:"volume"`
	Fee        float64   `json:"fee"`
	TS         time.Time `json:"ts"`
}

// MatchRecord is one FIFO match of a sell portion against a buy lot portion.
// The sum of PnL over all records for an instrument is its realized P&L.
type MatchRecord struct {
	Instrument string    `json:"instrument"`
	Volume     float64   `json:"volume"` // matched volume
	BuyPrice   float64   `json:"buy_price"`
	SellPrice  float64   `json:"sell_price"`
	BuyFee     float64   `json:"buy_fee"`  // prorated share of the buy fill's fee
	SellFee    float64   `json:"sell_fee"` // prorated share of the sell fill's fee
	PnL        float64   `json:"pnl"`
	TS         time.Time `json:"ts"` // timestamp of the sell fill
}
