// Package marketdata keeps per-instrument daily price bars current through
// watermark-bounded incremental downloads.
package marketdata

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// PriceBar is one stored daily bar, identified by (code, date).
type PriceBar struct {
	Code        string  `json:"stock_code"`
	Date        string  `json:"date"` // YYYY-MM-DD
	Open        float64 `json:"open"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Close       float64 `json:"close"`
	Volume      int64   `json:"volume"`
	Amount      float64 `json:"amount"`
	PreClose    float64 `json:"pre_close"`
	SuspendFlag int     `json:"suspend_flag"`
}

// BarStore persists bars in their own SQLite file, separate from the trade
// ledger. The two sync paths share nothing but the session handle.
type BarStore struct {
	db *sql.DB
}

func NewBarStore(path string) (*BarStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("bar store: path cannot be empty")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BarStore{db: db}, nil
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS price_bars (
			stock_code   TEXT NOT NULL,
			date         TEXT NOT NULL,
			open         REAL NOT NULL,
			high         REAL NOT NULL,
			low          REAL NOT NULL,
			close        REAL NOT NULL,
			volume       INTEGER NOT NULL DEFAULT 0,
			amount       REAL NOT NULL DEFAULT 0,
			pre_close    REAL,
			suspend_flag INTEGER DEFAULT 0,
			PRIMARY KEY (stock_code, date)
		);
		CREATE INDEX IF NOT EXISTS idx_price_bars_date ON price_bars(date);
	`)
	return err
}

func (s *BarStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Watermarks returns the latest stored date per instrument. An empty map
// means the store is empty and a full-history download is due.
func (s *BarStore) Watermarks(ctx context.Context) (map[string]string, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("bar store not initialized")
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT stock_code, MAX(date) FROM price_bars GROUP BY stock_code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var code, maxDate string
		if err := rows.Scan(&code, &maxDate); err != nil {
			return nil, err
		}
		out[code] = maxDate
	}
	return out, rows.Err()
}

// UpsertBars writes a batch with replace semantics: the (stock_code, date)
// key always overwrites, so re-runs and overlapping downloads are safe.
func (s *BarStore) UpsertBars(ctx context.Context, bars []PriceBar) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("bar store not initialized")
	}
	if len(bars) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO price_bars
			(stock_code, date, open, high, low, close, volume, amount, pre_close, suspend_flag)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(stock_code, date) DO UPDATE SET
			open=excluded.open,
			high=excluded.high,
			low=excluded.low,
			close=excluded.close,
			volume=excluded.volume,
			amount=excluded.amount,
			pre_close=excluded.pre_close,
			suspend_flag=excluded.suspend_flag`)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	defer stmt.Close()
	for _, bar := range bars {
		if _, err := stmt.ExecContext(ctx,
			bar.Code, bar.Date, bar.Open, bar.High, bar.Low, bar.Close,
			bar.Volume, bar.Amount, bar.PreClose, bar.SuspendFlag); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(bars), nil
}

// Bars lists stored bars for one instrument, date-ascending, optionally
// bounded by from/to (inclusive, YYYY-MM-DD).
func (s *BarStore) Bars(ctx context.Context, code, from, to string) ([]PriceBar, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("bar store not initialized")
	}
	query := `SELECT stock_code, date, open, high, low, close, volume, amount,
		COALESCE(pre_close, 0), COALESCE(suspend_flag, 0)
		FROM price_bars WHERE stock_code = ?`
	args := []any{code}
	if from != "" {
		query += ` AND date >= ?`
		args = append(args, from)
	}
	if to != "" {
		query += ` AND date <= ?`
		args = append(args, to)
	}
	query += ` ORDER BY date ASC`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PriceBar
	for rows.Next() {
		var bar PriceBar
		if err := rows.Scan(&bar.Code, &bar.Date, &bar.Open, &bar.High, &bar.Low,
			&bar.Close, &bar.Volume, &bar.Amount, &bar.PreClose, &bar.SuspendFlag); err != nil {
			return nil, err
		}
		out = append(out, bar)
	}
	return out, rows.Err()
}
