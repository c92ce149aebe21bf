package backtest

import (
	"errors"
	"fmt"

	"edgelab/internal/domain"
	"edgelab/internal/strategy"
)

// ErrMalformedSeries wraps validation failures of a series or frame handed to
// the simulator.
var ErrMalformedSeries = errors.New("malformed series")

// Simulate replays a signal frame bar by bar through a FLAT / IN_TRADE state
// machine and returns the closed trades in chronological order.
//
// Entries and exits fill at the bar's close. While in a trade, an exit signal
// closes the position first; otherwise the position closes once it has been
// held for the entry bar's HoldDays. The bar that closes a trade is not
// considered for a new entry. A position still open at the end of the frame
// is discarded.
func Simulate(frame strategy.Frame, sizer Sizer) ([]domain.Trade, error) {
	if err := validateFrame(frame); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", frame.Symbol, ErrMalformedSeries, err)
	}

	var (
		trades   []domain.Trade
		inTrade  bool
		entryIdx int
		holdDays int
	)

	for i, row := range frame.Rows {
		if !inTrade {
			if row.Entry {
				inTrade = true
				entryIdx = i
				holdDays = max(row.HoldDays, 1)
			}
			continue
		}

		held := i - entryIdx
		var reason domain.ExitReason
		switch {
		case row.Exit == strategy.ExitFire:
			reason = domain.ExitReasonSignal
		case held >= holdDays:
			reason = domain.ExitReasonTimeStop
		default:
			continue
		}

		trades = append(trades, closeTrade(frame, entryIdx, i, reason, sizer))
		inTrade = false
	}
	return trades, nil
}

// SimulateSeries validates series, generates its signal frame with s and
// simulates it.
func SimulateSeries(s strategy.Strategy, series domain.PriceSeries, p strategy.Params, sizer Sizer) ([]domain.Trade, error) {
	if err := series.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedSeries, err)
	}
	return Simulate(s.Generate(series, p), sizer)
}

func closeTrade(frame strategy.Frame, entryIdx, exitIdx int, reason domain.ExitReason, sizer Sizer) domain.Trade {
	entry := frame.Rows[entryIdx]
	exit := frame.Rows[exitIdx]
	qty := sizer.Quantity(entry.Close)
	return domain.Trade{
		Symbol:     frame.Symbol,
		StrategyID: frame.Strategy,
		EntryDate:  entry.Timestamp,
		EntryPrice: entry.Close,
		ExitDate:   exit.Timestamp,
		ExitPrice:  exit.Close,
		Quantity:   qty.InexactFloat64(),
		PnL:        sizer.PnL(entry.Close, exit.Close, qty).InexactFloat64(),
		PnLPct:     (exit.Close/entry.Close - 1) * 100,
		HoldDays:   exitIdx - entryIdx,
		ExitReason: reason,
	}
}

func validateFrame(f strategy.Frame) error {
	if len(f.Rows) == 0 {
		return domain.ErrEmptySeries
	}
	for i, r := range f.Rows {
		if !(r.Close > 0) {
			return fmt.Errorf("row %d: %w", i, domain.ErrBadPrice)
		}
		if i > 0 && !r.Timestamp.After(f.Rows[i-1].Timestamp) {
			return fmt.Errorf("row %d: %w", i, domain.ErrNonMonotonic)
		}
	}
	return nil
}
