// Package candlestore provides a bounded, keyed OHLCV history buffer.
// Each instrument holds its own ring of candles capped at a fixed length;
// writers to different instruments never contend, and readers always get
// an immutable oldest-first snapshot.
package candlestore

import (
	"log/slog"
	"sync"

	"cryptocore/internal/model"
)

// DefaultCap is the default per-instrument history length.
const DefaultCap = 200

// Store is a thread-safe candle history store keyed by instrument.
type Store struct {
	mu     sync.RWMutex // guards the series map only
	series map[string]*series
	cap    int
}

// series is the per-instrument ring. head indexes the oldest bar once the
// ring has wrapped; count never exceeds cap.
type series struct {
	mu    sync.RWMutex
	buf   []model.Candle
	head  int
	count int
}

// New creates a Store with the given per-instrument cap.
// Non-positive caps fall back to DefaultCap.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCap
	}
	return &Store{
		series: make(map[string]*series, 16),
		cap:    capacity,
	}
}

// Update appends a candle to the instrument's series, evicting the oldest
// bar when the cap is exceeded. Candles whose timestamp does not advance
// past the newest stored bar are dropped with a warning and a false return —
// in-order arrival per instrument is the collaborator's contract, and
// applying a late bar would corrupt every rolling window downstream.
func (s *Store) Update(instrument string, c model.Candle) bool {
	sr := s.get(instrument)

	sr.mu.Lock()
	defer sr.mu.Unlock()

	if sr.count > 0 {
		last := sr.buf[(sr.head+sr.count-1)%s.cap]
		if !c.TS.After(last.TS) {
			slog.Warn("candle dropped: non-increasing timestamp",
				"instrument", instrument, "ts", c.TS, "last_ts", last.TS)
			return false
		}
	}

	if sr.count < s.cap {
		sr.buf[(sr.head+sr.count)%s.cap] = c
		sr.count++
		return true
	}
	// Full: overwrite the oldest and advance head.
	sr.buf[sr.head] = c
	sr.head = (sr.head + 1) % s.cap
	return true
}

// Read returns a snapshot of the most recent count bars, oldest-first.
// count <= 0 or count >= size returns the whole series. The returned slice
// is a copy; callers may retain it freely.
func (s *Store) Read(instrument string, count int) []model.Candle {
	sr := s.lookup(instrument)
	if sr == nil {
		return nil
	}

	sr.mu.RLock()
	defer sr.mu.RUnlock()

	n := sr.count
	if count > 0 && count < n {
		n = count
	}
	out := make([]model.Candle, n)
	// Start so that the newest bar lands at out[n-1].
	start := sr.head + sr.count - n
	for i := 0; i < n; i++ {
		out[i] = sr.buf[(start+i)%s.cap]
	}
	return out
}

// ReadAll returns the full series snapshot, oldest-first.
func (s *Store) ReadAll(instrument string) []model.Candle {
	return s.Read(instrument, 0)
}

// Size returns the number of bars stored for the instrument.
func (s *Store) Size(instrument string) int {
	sr := s.lookup(instrument)
	if sr == nil {
		return 0
	}
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	return sr.count
}

// HasMinimumHistory reports whether at least threshold bars exist.
func (s *Store) HasMinimumHistory(instrument string, threshold int) bool {
	return s.Size(instrument) >= threshold
}

// Instruments returns the instruments currently tracked.
func (s *Store) Instruments() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.series))
	for k := range s.series {
		out = append(out, k)
	}
	return out
}

// Cap returns the configured per-instrument history cap.
func (s *Store) Cap() int { return s.cap }

// get returns the series for an instrument, creating it on first use.
func (s *Store) get(instrument string) *series {
	s.mu.RLock()
	sr, ok := s.series[instrument]
	s.mu.RUnlock()
	if ok {
		return sr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sr, ok = s.series[instrument]; ok {
		return sr
	}
	sr = &series{buf: make([]model.Candle, s.cap)}
	s.series[instrument] = sr
	return sr
}

// lookup returns the series or nil without creating one.
func (s *Store) lookup(instrument string) *series {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.series[instrument]
}
