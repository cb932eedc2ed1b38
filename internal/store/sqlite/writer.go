// Package sqlite persists the audit trail: every FIFO match record and an
// archive of ingested candles, written by a single goroutine with
// transaction batching.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"cryptocore/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/tradecore.db"
}

// Writer is a single-goroutine SQLite writer with transaction batching.
type Writer struct {
	db *sql.DB

	// OnCommit, if set, observes every batch commit (for metrics).
	OnCommit func(took time.Duration, err error)
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New creates a Writer and initializes the database with WAL mode and schema.
func New(cfg WriterConfig) (*Writer, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single-writer connection pool
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	slog.Info("sqlite opened", "path", cfg.DBPath)
	return &Writer{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS match_records (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			instrument TEXT    NOT NULL,
			volume     REAL    NOT NULL,
			buy_price  REAL    NOT NULL,
			sell_price REAL    NOT NULL,
			buy_fee    REAL    NOT NULL,
			sell_fee   REAL    NOT NULL,
			pnl        REAL    NOT NULL,
			ts         INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_match_records_instrument_ts
			ON match_records (instrument, ts);

		CREATE TABLE IF NOT EXISTS candles (
			instrument TEXT    NOT NULL,
			ts         INTEGER NOT NULL,
			open       REAL    NOT NULL,
			high       REAL    NOT NULL,
			low        REAL    NOT NULL,
			close      REAL    NOT NULL,
			volume     REAL    NOT NULL,
			PRIMARY KEY (instrument, ts)
		);
	`)
	return err
}

// RunRecords reads match records from recordCh and inserts them in batched
// transactions. Flushes every batchSize records OR every flushDelay,
// whichever comes first. Blocks until ctx is cancelled or recordCh is closed.
func (w *Writer) RunRecords(ctx context.Context, recordCh <-chan model.MatchRecord) {
	batch := make([]model.MatchRecord, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		err := w.insertRecordBatch(batch)
		if err != nil {
			slog.Error("sqlite record batch insert failed", "err", err)
		} else {
			slog.Debug("sqlite records committed", "count", len(batch), "took", time.Since(start))
		}
		if w.OnCommit != nil {
			w.OnCommit(time.Since(start), err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case rec, ok := <-recordCh:
			if !ok {
				flush()
				return
			}
			batch = append(batch, rec)
			if len(batch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

func (w *Writer) insertRecordBatch(recs []model.MatchRecord) error {
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO match_records (instrument, volume, buy_price, sell_price, buy_fee, sell_fee, pnl, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, r := range recs {
		_, err := stmt.Exec(r.Instrument, r.Volume, r.BuyPrice, r.SellPrice, r.BuyFee, r.SellFee, r.PnL, r.TS.UnixNano())
		if err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// RunCandles reads candles from candleCh and archives them in batched
// transactions. Same flush policy as RunRecords.
func (w *Writer) RunCandles(ctx context.Context, candleCh <-chan model.Candle) {
	batch := make([]model.Candle, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		err := w.insertCandleBatch(batch)
		if err != nil {
			slog.Error("sqlite candle batch insert failed", "err", err)
		} else {
			slog.Debug("sqlite candles committed", "count", len(batch), "took", time.Since(start))
		}
		if w.OnCommit != nil {
			w.OnCommit(time.Since(start), err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case c, ok := <-candleCh:
			if !ok {
				flush()
				return
			}
			batch = append(batch, c)
			if len(batch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}
		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

func (w *Writer) insertCandleBatch(candles []model.Candle) error {
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO candles (instrument, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, c := range candles {
		_, err := stmt.Exec(c.Instrument, c.TS.UnixNano(), c.Open, c.High, c.Low, c.Close, c.Volume)
		if err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
