package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"edgelab/internal/backtest"
	"edgelab/internal/domain"
	"edgelab/internal/strategy"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ RunStore = (*SQLiteStore)(nil)

// SQLiteStore implements RunStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id              TEXT PRIMARY KEY,
	strategy        TEXT NOT NULL,
	universe        TEXT NOT NULL,
	period          TEXT NOT NULL,
	started_at      INTEGER NOT NULL,
	elapsed_ms      INTEGER NOT NULL,
	params          TEXT NOT NULL,
	metrics         TEXT NOT NULL,
	total_trades    INTEGER NOT NULL,
	win_rate        REAL NOT NULL,
	profit_factor   REAL NOT NULL,
	edge            INTEGER NOT NULL,
	symbols_tested  INTEGER NOT NULL,
	symbols_skipped INTEGER NOT NULL,
	symbols_failed  INTEGER NOT NULL,
	failures        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);

CREATE TABLE IF NOT EXISTS trades (
	run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	seq         INTEGER NOT NULL,
	symbol      TEXT NOT NULL,
	strategy    TEXT NOT NULL,
	entry_date  INTEGER NOT NULL,
	entry_price REAL NOT NULL,
	exit_date   INTEGER NOT NULL,
	exit_price  REAL NOT NULL,
	quantity    REAL NOT NULL,
	pnl         REAL NOT NULL,
	pnl_pct     REAL NOT NULL,
	hold_days   INTEGER NOT NULL,
	exit_reason TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);
`

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, creates the
// schema if needed and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// RunStore implementation
// ---------------------------------------------------------------------------

// SaveRun inserts res and its trades in one transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, res *backtest.Result) (string, error) {
	id := uuid.NewString()

	params, err := json.Marshal(res.Params)
	if err != nil {
		return "", fmt.Errorf("encoding params: %w", err)
	}
	metrics, err := json.Marshal(res.Metrics)
	if err != nil {
		return "", fmt.Errorf("encoding metrics: %w", err)
	}
	failures, err := json.Marshal(res.Failures)
	if err != nil {
		return "", fmt.Errorf("encoding failures: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO runs (
		id, strategy, universe, period, started_at, elapsed_ms, params, metrics,
		total_trades, win_rate, profit_factor, edge,
		symbols_tested, symbols_skipped, symbols_failed, failures
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, res.Strategy, res.Universe, res.Period,
		res.StartedAt.UnixMilli(), res.Elapsed.Milliseconds(),
		string(params), string(metrics),
		res.Metrics.TotalTrades, res.Metrics.WinRate, sortableProfitFactor(res.Metrics.ProfitFactor), res.Edge,
		res.SymbolsTested, res.SymbolsSkipped, res.SymbolsFailed, string(failures),
	)
	if err != nil {
		return "", fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO trades (
		run_id, seq, symbol, strategy, entry_date, entry_price, exit_date, exit_price,
		quantity, pnl, pnl_pct, hold_days, exit_reason
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer stmt.Close()

	for i, t := range res.Trades {
		_, err := stmt.ExecContext(ctx, id, i, t.Symbol, t.StrategyID,
			t.EntryDate.UnixMilli(), t.EntryPrice, t.ExitDate.UnixMilli(), t.ExitPrice,
			t.Quantity, t.PnL, t.PnLPct, t.HoldDays, string(t.ExitReason))
		if err != nil {
			return "", fmt.Errorf("inserting trade %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing run: %w", err)
	}
	return id, nil
}

// GetRun loads one run with its trades.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*backtest.Result, error) {
	var (
		res                       backtest.Result
		startedMs, elapsedMs      int64
		params, metrics, failures string
	)
	err := s.db.QueryRowContext(ctx, `SELECT strategy, universe, period, started_at, elapsed_ms,
		params, metrics, edge, symbols_tested, symbols_skipped, symbols_failed, failures
		FROM runs WHERE id = ?`, id).Scan(
		&res.Strategy, &res.Universe, &res.Period, &startedMs, &elapsedMs,
		&params, &metrics, &res.Edge, &res.SymbolsTested, &res.SymbolsSkipped, &res.SymbolsFailed, &failures,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying run %s: %w", id, err)
	}

	res.StartedAt = time.UnixMilli(startedMs).UTC()
	res.Elapsed = time.Duration(elapsedMs) * time.Millisecond
	res.Params = strategy.Params{}
	if err := json.Unmarshal([]byte(params), &res.Params); err != nil {
		return nil, fmt.Errorf("decoding params: %w", err)
	}
	if err := json.Unmarshal([]byte(metrics), &res.Metrics); err != nil {
		return nil, fmt.Errorf("decoding metrics: %w", err)
	}
	if err := json.Unmarshal([]byte(failures), &res.Failures); err != nil {
		return nil, fmt.Errorf("decoding failures: %w", err)
	}

	trades, err := s.loadTrades(ctx, id)
	if err != nil {
		return nil, err
	}
	res.Trades = trades
	return &res, nil
}

func (s *SQLiteStore) loadTrades(ctx context.Context, runID string) ([]domain.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT symbol, strategy, entry_date, entry_price, exit_date,
		exit_price, quantity, pnl, pnl_pct, hold_days, exit_reason
		FROM trades WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying trades: %w", err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var (
			t               domain.Trade
			entryMs, exitMs int64
			reason          string
		)
		if err := rows.Scan(&t.Symbol, &t.StrategyID, &entryMs, &t.EntryPrice, &exitMs,
			&t.ExitPrice, &t.Quantity, &t.PnL, &t.PnLPct, &t.HoldDays, &reason); err != nil {
			return nil, fmt.Errorf("scanning trade: %w", err)
		}
		t.EntryDate = time.UnixMilli(entryMs).UTC()
		t.ExitDate = time.UnixMilli(exitMs).UTC()
		t.ExitReason = domain.ExitReason(reason)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// ListRuns returns the newest runs first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, strategy, universe, period, started_at, metrics, edge
		FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var (
			r         RunRecord
			startedMs int64
			metrics   string
		)
		if err := rows.Scan(&r.ID, &r.Strategy, &r.Universe, &r.Period, &startedMs, &metrics, &r.Edge); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if err := json.Unmarshal([]byte(metrics), &r.Metrics); err != nil {
			return nil, fmt.Errorf("decoding metrics for %s: %w", r.ID, err)
		}
		r.StartedAt = time.UnixMilli(startedMs).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// sortableProfitFactor caps +Inf so the column can be stored as REAL.
func sortableProfitFactor(pf float64) float64 {
	if pf > 1e300 {
		return 1e300
	}
	return pf
}
