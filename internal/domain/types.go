// Package domain defines the core value types shared across edgelab: daily
// bars, price series and simulated trades.
package domain

import (
	"errors"
	"fmt"
	"time"
)

// Validation errors reported by PriceSeries.Validate.
var (
	ErrEmptySeries  = errors.New("series has no bars")
	ErrNonMonotonic = errors.New("bar timestamps not strictly increasing")
	ErrBadPrice     = errors.New("bar price must be positive")
	ErrBadVolume    = errors.New("bar volume must be non-negative")
)

// Bar is a single daily OHLCV observation.
type Bar struct {
	Symbol     string    `json:"symbol"`
	Timestamp  time.Time `json:"timestamp"`
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Close      float64   `json:"close"`
	Volume     int64     `json:"volume"`
	TradeCount int64     `json:"trade_count,omitempty"`
	VWAP       float64   `json:"vwap,omitempty"`
}

// PriceSeries is the ordered bar history of one instrument. A series is
// treated as immutable once fetched; strategies and the simulator only read it.
type PriceSeries struct {
	Symbol string `json:"symbol"`
	Bars   []Bar  `json:"bars"`
}

// NewPriceSeries wraps bars for symbol.
func NewPriceSeries(symbol string, bars []Bar) PriceSeries {
	return PriceSeries{Symbol: symbol, Bars: bars}
}

// Len returns the number of bars.
func (s PriceSeries) Len() int { return len(s.Bars) }

// Validate checks the series invariants: at least one bar, strictly increasing
// timestamps, positive prices and non-negative volume.
func (s PriceSeries) Validate() error {
	if len(s.Bars) == 0 {
		return fmt.Errorf("%s: %w", s.Symbol, ErrEmptySeries)
	}
	for i, b := range s.Bars {
		if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
			return fmt.Errorf("%s bar %d (%s): %w", s.Symbol, i, b.Timestamp.Format("2006-01-02"), ErrBadPrice)
		}
		if b.Volume < 0 {
			return fmt.Errorf("%s bar %d: %w", s.Symbol, i, ErrBadVolume)
		}
		if i > 0 && !b.Timestamp.After(s.Bars[i-1].Timestamp) {
			return fmt.Errorf("%s bar %d (%s): %w", s.Symbol, i, b.Timestamp.Format("2006-01-02"), ErrNonMonotonic)
		}
	}
	return nil
}

// Closes returns the close prices as a slice aligned with Bars.
func (s PriceSeries) Closes() []float64 {
	return s.column(func(b Bar) float64 { return b.Close })
}

// Opens returns the open prices.
func (s PriceSeries) Opens() []float64 {
	return s.column(func(b Bar) float64 { return b.Open })
}

// Highs returns the high prices.
func (s PriceSeries) Highs() []float64 {
	return s.column(func(b Bar) float64 { return b.High })
}

// Lows returns the low prices.
func (s PriceSeries) Lows() []float64 {
	return s.column(func(b Bar) float64 { return b.Low })
}

// Volumes returns the volumes as float64.
func (s PriceSeries) Volumes() []float64 {
	return s.column(func(b Bar) float64 { return float64(b.Volume) })
}

func (s PriceSeries) column(f func(Bar) float64) []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = f(b)
	}
	return out
}

// ExitReason records why a simulated position was closed.
type ExitReason string

const (
	ExitReasonSignal   ExitReason = "exit_signal"
	ExitReasonTimeStop ExitReason = "time_stop"
)

// Trade is one closed simulated round trip. Trades are created only by the
// simulator and never modified afterwards.
type Trade struct {
	Symbol     string     `json:"symbol"`
	StrategyID string     `json:"strategy"`
	EntryDate  time.Time  `json:"entry_date"`
	EntryPrice float64    `json:"entry_price"`
	ExitDate   time.Time  `json:"exit_date"`
	ExitPrice  float64    `json:"exit_price"`
	Quantity   float64    `json:"quantity"`
	PnL        float64    `json:"pnl"`
	PnLPct     float64    `json:"pnl_pct"`
	HoldDays   int        `json:"hold_days"`
	ExitReason ExitReason `json:"exit_reason"`
}

// IsWinner reports whether the trade closed with a positive return.
func (t Trade) IsWinner() bool { return t.PnLPct > 0 }
