// Package costbasis implements FIFO cost-basis matching of executed fills
// into realized P&L. Each instrument keeps an ordered queue of open buy lots;
// sell fills consume lots oldest-first, producing one match record per
// lot portion with fees prorated by each side's consumed fraction of its
// original fill volume.
package costbasis

import (
	"log/slog"
	"sync"
	"time"

	"cryptocore/internal/model"
)

// volEpsilon is the tolerance below which a remaining volume counts as zero.
const volEpsilon = 1e-9

// lot is the unconsumed remainder of a buy fill.
type lot struct {
	price     float64
	fee       float64
	original  float64 // volume of the originating buy fill
	remaining float64
}

// book holds the per-instrument matcher state. Lots form a deque over a
// slice arena: head indexes the oldest live lot, fully consumed lots are
// skipped rather than shifted, and the arena compacts once the dead prefix
// dominates.
type book struct {
	lots      []lot
	head      int
	records   []model.MatchRecord
	realized  float64
	unmatched float64
}

// Matcher consumes an ordered fill log and produces realized P&L.
// Matching is strictly independent per instrument.
type Matcher struct {
	mu    sync.RWMutex
	books map[string]*book

	// onRecord, when set, observes every match record as it is produced.
	onRecord func(model.MatchRecord)
}

// New creates an empty Matcher.
func New() *Matcher {
	return &Matcher{books: make(map[string]*book, 8)}
}

// SetRecordObserver registers a callback invoked for every match record.
// Must be called before fills are processed.
func (m *Matcher) SetRecordObserver(fn func(model.MatchRecord)) {
	m.onRecord = fn
}

// OnFill applies one executed fill and returns the match records it produced
// (empty for buys). Fills must arrive in timestamp order per instrument.
func (m *Matcher) OnFill(f model.Fill) []model.MatchRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.books[f.Instrument]
	if !ok {
		b = &book{}
		m.books[f.Instrument] = b
	}

	if f.Side == model.SideBuy {
		b.lots = append(b.lots, lot{
			price:     f.Price,
			fee:       f.Fee,
			original:  f.Volume,
			remaining: f.Volume,
		})
		return nil
	}
	return m.matchSell(b, f)
}

// matchSell consumes open lots from the front of the queue per FIFO order.
func (m *Matcher) matchSell(b *book, f model.Fill) []model.MatchRecord {
	remaining := f.Volume
	var produced []model.MatchRecord

	for remaining > volEpsilon && b.head < len(b.lots) {
		l := &b.lots[b.head]

		consumed := remaining
		if l.remaining < consumed {
			consumed = l.remaining
		}

		proceeds := consumed * f.Price
		cost := consumed * l.price
		// Fees prorate by the consumed fraction of each side's ORIGINAL fill
		// volume, not of the running remainder.
		sellFee := f.Fee * (consumed / f.Volume)
		buyFee := l.fee * (consumed / l.original)

		rec := model.MatchRecord{
			Instrument: f.Instrument,
			Volume:     consumed,
			BuyPrice:   l.price,
			SellPrice:  f.Price,
			BuyFee:     buyFee,
			SellFee:    sellFee,
			PnL:        proceeds - cost - sellFee - buyFee,
			TS:         f.TS,
		}
		b.records = append(b.records, rec)
		b.realized += rec.PnL
		produced = append(produced, rec)
		if m.onRecord != nil {
			m.onRecord(rec)
		}

		l.remaining -= consumed
		remaining -= consumed
		if l.remaining <= volEpsilon {
			b.head++
		}
	}

	// Compact the arena once the dead prefix outgrows the live tail.
	if b.head > 32 && b.head > len(b.lots)/2 {
		b.lots = append(b.lots[:0], b.lots[b.head:]...)
		b.head = 0
	}

	if remaining > volEpsilon {
		b.unmatched += remaining
		slog.Warn("sell volume exceeds open lots",
			"instrument", f.Instrument,
			"unmatched_volume", remaining,
			"sell_price", f.Price,
			"ts", f.TS.Format(time.RFC3339))
	}
	return produced
}

// RealizedPnL returns the total realized P&L for one instrument.
func (m *Matcher) RealizedPnL(instrument string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if b, ok := m.books[instrument]; ok {
		return b.realized
	}
	return 0
}

// TotalRealizedPnL returns realized P&L summed across all instruments.
func (m *Matcher) TotalRealizedPnL() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	total := 0.0
	for _, b := range m.books {
		total += b.realized
	}
	return total
}

// Records returns a copy of all match records for an instrument, in the
// order they were produced.
func (m *Matcher) Records(instrument string) []model.MatchRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.books[instrument]
	if !ok {
		return nil
	}
	out := make([]model.MatchRecord, len(b.records))
	copy(out, b.records)
	return out
}

// UnmatchedVolume returns the cumulative sell volume that found no open lot.
// Non-zero values signal a data-integrity problem upstream, not a fault here.
func (m *Matcher) UnmatchedVolume(instrument string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if b, ok := m.books[instrument]; ok {
		return b.unmatched
	}
	return 0
}

// OpenVolume returns the unconsumed buy volume currently queued.
func (m *Matcher) OpenVolume(instrument string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.books[instrument]
	if !ok {
		return 0
	}
	open := 0.0
	for i := b.head; i < len(b.lots); i++ {
		open += b.lots[i].remaining
	}
	return open
}

// Instruments returns every instrument with matcher state.
func (m *Matcher) Instruments() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.books))
	for k := range m.books {
		out = append(out, k)
	}
	return out
}
