package sqlite

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"cryptocore/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Reader provides read-only access to the audit database for backfill and
// P&L reporting.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	slog.Info("sqlite reader opened", "path", dbPath)
	return &Reader{db: db}, nil
}

// ReadCandles returns archived candles for an instrument after afterTS
// (unix nanoseconds), ordered by timestamp ascending for correct replay.
func (r *Reader) ReadCandles(instrument string, afterTS int64) ([]model.Candle, error) {
	rows, err := r.db.Query(`
		SELECT instrument, ts, open, high, low, close, volume
		FROM candles
		WHERE instrument = ? AND ts > ?
		ORDER BY ts ASC
	`, instrument, afterTS)
	if err != nil {
		return nil, fmt.Errorf("sqlite query candles: %w", err)
	}
	defer rows.Close()

	var candles []model.Candle
	for rows.Next() {
		var c model.Candle
		var tsNano int64
		if err := rows.Scan(&c.Instrument, &tsNano, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("sqlite scan candles: %w", err)
		}
		c.TS = time.Unix(0, tsNano).UTC()
		candles = append(candles, c)
	}
	return candles, rows.Err()
}

// ReadMatchRecords returns the stored match records for an instrument,
// ordered by timestamp ascending.
func (r *Reader) ReadMatchRecords(instrument string) ([]model.MatchRecord, error) {
	rows, err := r.db.Query(`
		SELECT instrument, volume, buy_price, sell_price, buy_fee, sell_fee, pnl, ts
		FROM match_records
		WHERE instrument = ?
		ORDER BY ts ASC
	`, instrument)
	if err != nil {
		return nil, fmt.Errorf("sqlite query match_records: %w", err)
	}
	defer rows.Close()

	var recs []model.MatchRecord
	for rows.Next() {
		var rec model.MatchRecord
		var tsNano int64
		if err := rows.Scan(&rec.Instrument, &rec.Volume, &rec.BuyPrice, &rec.SellPrice, &rec.BuyFee, &rec.SellFee, &rec.PnL, &tsNano); err != nil {
			return nil, fmt.Errorf("sqlite scan match_records: %w", err)
		}
		rec.TS = time.Unix(0, tsNano).UTC()
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// RealizedPnL sums stored match P&L for an instrument.
func (r *Reader) RealizedPnL(instrument string) (float64, error) {
	var pnl sql.NullFloat64
	err := r.db.QueryRow(
		`SELECT SUM(pnl) FROM match_records WHERE instrument = ?`,
		instrument,
	).Scan(&pnl)
	if err != nil {
		return 0, fmt.Errorf("sqlite sum pnl: %w", err)
	}
	if !pnl.Valid {
		return 0, nil
	}
	return pnl.Float64, nil
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
