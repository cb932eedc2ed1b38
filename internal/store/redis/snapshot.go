// Package redis snapshots the in-memory candle history to Redis so a
// restarted process can warm its store without waiting out the minimum
// history period. All Redis traffic flows through a circuit breaker, so a
// Redis outage degrades persistence without touching the hot path.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"cryptocore/internal/candlestore"
	"cryptocore/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	snapshotTTL      = 24 * time.Hour
	instrumentSetKey = "snap:instruments"
)

// Config configures the snapshot store.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int

	// Circuit breaker tuning; zero values pick defaults (5 failures, 10s).
	MaxFailures  int
	ResetTimeout time.Duration
}

// Store persists candle-history snapshots and publishes match records.
type Store struct {
	client *goredis.Client
	cb     *CircuitBreaker

	// OnSnapshot, if set, observes every snapshot attempt (for metrics).
	OnSnapshot func(took time.Duration, err error)
}

// Client returns the underlying Redis client for health checks.
func (s *Store) Client() *goredis.Client { return s.client }

// Breaker returns the circuit breaker for state-change observation.
func (s *Store) Breaker() *CircuitBreaker { return s.cb }

// New creates a snapshot Store and pings the server.
func New(cfg Config) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	maxFailures := cfg.MaxFailures
	if maxFailures <= 0 {
		maxFailures = 5
	}
	resetTimeout := cfg.ResetTimeout
	if resetTimeout <= 0 {
		resetTimeout = 10 * time.Second
	}

	slog.Info("redis connected", "addr", cfg.Addr)
	return &Store{
		client: client,
		cb:     NewCircuitBreaker(maxFailures, resetTimeout),
	}, nil
}

func snapshotKey(instrument string) string {
	return "snap:candles:" + instrument
}

// SaveSnapshot writes the full candle history of every tracked instrument
// to Redis in one pipeline.
func (s *Store) SaveSnapshot(ctx context.Context, store *candlestore.Store) error {
	start := time.Now()
	err := s.cb.Execute(func() error {
		pipe := s.client.Pipeline()
		for _, instrument := range store.Instruments() {
			candles := store.ReadAll(instrument)
			if len(candles) == 0 {
				continue
			}
			data, err := json.Marshal(candles)
			if err != nil {
				return fmt.Errorf("marshal snapshot %s: %w", instrument, err)
			}
			pipe.Set(ctx, snapshotKey(instrument), data, snapshotTTL)
			pipe.SAdd(ctx, instrumentSetKey, instrument)
		}
		pipe.Expire(ctx, instrumentSetKey, snapshotTTL)
		_, err := pipe.Exec(ctx)
		return err
	})
	if s.OnSnapshot != nil {
		s.OnSnapshot(time.Since(start), err)
	}
	return err
}

// RestoreSnapshot loads the latest snapshot into the candle store. Returns
// the number of candles restored. A missing snapshot is not an error.
func (s *Store) RestoreSnapshot(ctx context.Context, store *candlestore.Store) (int, error) {
	var restored int
	err := s.cb.Execute(func() error {
		instruments, err := s.client.SMembers(ctx, instrumentSetKey).Result()
		if err != nil {
			if err == goredis.Nil {
				return nil
			}
			return fmt.Errorf("redis smembers %s: %w", instrumentSetKey, err)
		}

		for _, instrument := range instruments {
			data, err := s.client.Get(ctx, snapshotKey(instrument)).Result()
			if err != nil {
				if err == goredis.Nil {
					continue
				}
				return fmt.Errorf("redis get snapshot %s: %w", instrument, err)
			}

			var candles []model.Candle
			if err := json.Unmarshal([]byte(data), &candles); err != nil {
				slog.Warn("snapshot unmarshal failed, skipping", "instrument", instrument, "err", err)
				continue
			}
			// Candles were stored oldest-first; Update drops any stragglers
			// older than what the store already holds.
			for _, c := range candles {
				if store.Update(instrument, c) {
					restored++
				}
			}
		}
		return nil
	})
	return restored, err
}

// RunSnapshots saves a snapshot every interval until ctx is done, then takes
// one final snapshot on the way out.
func (s *Store) RunSnapshots(ctx context.Context, store *candlestore.Store, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.SaveSnapshot(shutdownCtx, store); err != nil {
				slog.Error("final snapshot failed", "err", err)
			}
			cancel()
			return
		case <-ticker.C:
			if err := s.SaveSnapshot(ctx, store); err != nil {
				slog.Error("snapshot failed", "err", err)
			}
		}
	}
}

// Close closes the Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
