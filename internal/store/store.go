// Package store defines storage interfaces for cached daily bars and for the
// history of backtest runs, with Parquet and SQLite implementations.
package store

import (
	"context"
	"errors"
	"time"

	"edgelab/internal/backtest"
	"edgelab/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// BarStore persists and retrieves daily OHLCV bars.
type BarStore interface {
	// WriteBars persists a batch of bars, merging with bars already stored.
	WriteBars(ctx context.Context, bars []domain.Bar) error

	// ReadBars returns bars for symbol within [start, end], oldest first.
	ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all symbols with stored bars.
	ListSymbols(ctx context.Context) ([]string, error)

	// LastBarTime returns the timestamp of the newest stored bar for symbol,
	// or the zero time when there is none.
	LastBarTime(ctx context.Context, symbol string) (time.Time, error)
}

// RunRecord is the listing view of a stored backtest run.
type RunRecord struct {
	ID        string           `json:"id"`
	Strategy  string           `json:"strategy"`
	Universe  string           `json:"universe"`
	Period    string           `json:"period"`
	StartedAt time.Time        `json:"started_at"`
	Metrics   backtest.Metrics `json:"metrics"`
	Edge      bool             `json:"edge"`
}

// RunStore persists backtest results.
type RunStore interface {
	// SaveRun stores res with its trades and returns the new run ID.
	SaveRun(ctx context.Context, res *backtest.Result) (string, error)

	// GetRun loads a stored run including its trades.
	GetRun(ctx context.Context, id string) (*backtest.Result, error)

	// ListRuns returns the most recent runs, newest first, up to limit.
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
}
