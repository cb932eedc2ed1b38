package redis

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"cryptocore/internal/model"
)

// Publisher pushes match records to a per-instrument Pub/Sub channel so
// dashboards can follow realized P&L live. Publishes go through the store's
// circuit breaker; while the circuit is open, records are buffered locally
// and replayed when it closes again.
type Publisher struct {
	store *Store
	ctx   context.Context

	mu     sync.Mutex
	buffer []model.MatchRecord
	maxBuf int

	// Callbacks (optional)
	OnBuffer func()          // called when a record is buffered
	OnFlush  func(count int) // called after replaying buffered records
}

// NewPublisher creates a Publisher on the given snapshot store.
// maxBufferSize caps the records held during an outage; oldest are dropped
// first. Non-positive sizes default to 10000.
func NewPublisher(ctx context.Context, s *Store, maxBufferSize int) *Publisher {
	if maxBufferSize <= 0 {
		maxBufferSize = 10000
	}
	p := &Publisher{
		store:  s,
		ctx:    ctx,
		buffer: make([]model.MatchRecord, 0, 256),
		maxBuf: maxBufferSize,
	}

	// Replay the buffer whenever the circuit closes
	prev := s.cb.OnStateChange
	s.cb.OnStateChange = func(from, to State) {
		if prev != nil {
			prev(from, to)
		}
		if to == StateClosed {
			go p.flush()
		}
	}

	return p
}

// PublishRecord publishes one match record. If the circuit is open the
// record is buffered, not lost.
func (p *Publisher) PublishRecord(rec model.MatchRecord) error {
	err := p.store.cb.Execute(func() error {
		return p.publish(rec)
	})
	if err == ErrCircuitOpen {
		p.bufferRecord(rec)
		return nil
	}
	return err
}

func (p *Publisher) publish(rec model.MatchRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return p.store.client.Publish(p.ctx, "pub:match:"+rec.Instrument, string(data)).Err()
}

func (p *Publisher) bufferRecord(rec model.MatchRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.buffer) >= p.maxBuf {
		p.buffer = p.buffer[1:]
	}
	p.buffer = append(p.buffer, rec)

	if p.OnBuffer != nil {
		p.OnBuffer()
	}
}

// flush replays all buffered records.
func (p *Publisher) flush() {
	p.mu.Lock()
	if len(p.buffer) == 0 {
		p.mu.Unlock()
		return
	}
	toFlush := p.buffer
	p.buffer = make([]model.MatchRecord, 0, 256)
	p.mu.Unlock()

	for _, rec := range toFlush {
		if err := p.publish(rec); err != nil {
			slog.Warn("buffered record replay failed", "instrument", rec.Instrument, "err", err)
		}
	}

	slog.Info("replayed buffered match records", "count", len(toFlush))
	if p.OnFlush != nil {
		p.OnFlush(len(toFlush))
	}
}

// PendingCount returns the number of records waiting for replay.
func (p *Publisher) PendingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buffer)
}
