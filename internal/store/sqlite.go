package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"signal-trader/internal/errors"
	"signal-trader/internal/models"
	"signal-trader/internal/timeframe"
)

// SQLiteStore implements CandleStore and TradeStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Candles keyed by bucket start in epoch ms
	CREATE TABLE IF NOT EXISTS candles (
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume REAL NOT NULL,
		PRIMARY KEY (symbol, timeframe, timestamp)
	);

	-- Realized round trips from paper runs
	CREATE TABLE IF NOT EXISTS closed_trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		amount REAL NOT NULL,
		entry_price REAL NOT NULL,
		exit_price REAL NOT NULL,
		realized_pnl REAL NOT NULL,
		fee REAL NOT NULL,
		reason TEXT,
		opened_at INTEGER NOT NULL,
		closed_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_closed_trades_run ON closed_trades(run_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Candles Methods
// ============================================================================

// SaveCandles upserts candles. Every candle must be aligned to timeframe.
func (s *SQLiteStore) SaveCandles(ctx context.Context, symbol, tf string, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	spec, err := timeframe.Parse(tf)
	if err != nil {
		return err
	}
	for _, c := range candles {
		if err := timeframe.AssertAligned(c.Timestamp, spec.Ms, "candle"); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.dbError("begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO candles (symbol, timeframe, timestamp, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return s.dbError("prepare statement", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		_, err := stmt.ExecContext(ctx, symbol, spec.String(), c.Timestamp, c.Open, c.High, c.Low, c.Close, c.Volume)
		if err != nil {
			return s.dbError("insert candle", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return s.dbError("commit transaction", err)
	}

	return nil
}

// GetCandles retrieves candles from the database.
func (s *SQLiteStore) GetCandles(ctx context.Context, symbol, tf string, from, to int64) ([]models.Candle, error) {
	name, err := timeframe.Normalize(tf)
	if err != nil {
		return nil, err
	}
	if to <= 0 {
		to = math.MaxInt64
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND timeframe = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`, symbol, name, from, to)
	if err != nil {
		return nil, s.dbError("query candles", err)
	}
	defer rows.Close()

	return scanCandles(rows, symbol, name)
}

// LatestTimestamp returns the newest stored bucket for symbol/timeframe.
func (s *SQLiteStore) LatestTimestamp(ctx context.Context, symbol, tf string) (int64, bool, error) {
	name, err := timeframe.Normalize(tf)
	if err != nil {
		return 0, false, err
	}

	var ts sql.NullInt64
	err = s.db.QueryRowContext(ctx, `
		SELECT MAX(timestamp) FROM candles WHERE symbol = ? AND timeframe = ?
	`, symbol, name).Scan(&ts)
	if err != nil && err != sql.ErrNoRows {
		return 0, false, s.dbError("latest candle", err)
	}
	if !ts.Valid {
		return 0, false, nil
	}
	return ts.Int64, true, nil
}

// FetchCandles lets the store back an mtf.Cache during replays. It returns
// up to limit candles at or after since, or the newest limit candles when
// since is nil.
func (s *SQLiteStore) FetchCandles(ctx context.Context, symbol, tf string, limit int, since *int64) ([]models.Candle, error) {
	name, err := timeframe.Normalize(tf)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	var rows *sql.Rows
	if since != nil {
		rows, err = s.db.QueryContext(ctx, `
			SELECT timestamp, open, high, low, close, volume
			FROM candles
			WHERE symbol = ? AND timeframe = ? AND timestamp >= ?
			ORDER BY timestamp ASC
			LIMIT ?
		`, symbol, name, *since, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT timestamp, open, high, low, close, volume FROM (
				SELECT timestamp, open, high, low, close, volume
				FROM candles
				WHERE symbol = ? AND timeframe = ?
				ORDER BY timestamp DESC
				LIMIT ?
			) ORDER BY timestamp ASC
		`, symbol, name, limit)
	}
	if err != nil {
		return nil, s.dbError("fetch candles", err)
	}
	defer rows.Close()

	return scanCandles(rows, symbol, name)
}

func scanCandles(rows *sql.Rows, symbol, tf string) ([]models.Candle, error) {
	var candles []models.Candle
	for rows.Next() {
		c := models.Candle{Symbol: symbol, Timeframe: tf}
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}
		candles = append(candles, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candles: %w", err)
	}
	return candles, nil
}

// ============================================================================
// Trades Methods
// ============================================================================

// SaveClosedTrade records a realized trade under runID.
func (s *SQLiteStore) SaveClosedTrade(ctx context.Context, runID string, t models.ClosedTrade) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO closed_trades (run_id, symbol, side, amount, entry_price, exit_price, realized_pnl, fee, reason, opened_at, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, t.Symbol, string(t.Side), t.Amount, t.EntryPrice, t.ExitPrice, t.RealizedPnL, t.Fee, t.Reason, t.OpenedAt, t.ClosedAt)
	if err != nil {
		return s.dbError("log trade", err)
	}
	return nil
}

// GetClosedTrades retrieves trades ordered by close time.
func (s *SQLiteStore) GetClosedTrades(ctx context.Context, filter TradeFilter) ([]models.ClosedTrade, error) {
	query := "SELECT symbol, side, amount, entry_price, exit_price, realized_pnl, fee, reason, opened_at, closed_at FROM closed_trades WHERE 1=1"
	args := []interface{}{}

	if filter.RunID != "" {
		query += " AND run_id = ?"
		args = append(args, filter.RunID)
	}
	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, filter.Symbol)
	}

	query += " ORDER BY closed_at ASC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.dbError("query trades", err)
	}
	defer rows.Close()

	var trades []models.ClosedTrade
	for rows.Next() {
		var t models.ClosedTrade
		var side string
		var reason sql.NullString
		if err := rows.Scan(&t.Symbol, &side, &t.Amount, &t.EntryPrice, &t.ExitPrice, &t.RealizedPnL, &t.Fee, &reason, &t.OpenedAt, &t.ClosedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		t.Side = models.PositionSide(side)
		t.Reason = reason.String
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func (s *SQLiteStore) dbError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", errors.ErrDatabaseError, op, err)
}

var (
	_ CandleStore = (*SQLiteStore)(nil)
	_ TradeStore  = (*SQLiteStore)(nil)
)
