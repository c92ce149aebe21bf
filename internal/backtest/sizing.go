package backtest

import (
	"github.com/shopspring/decimal"
)

// Default position sizing: a fixed fraction of a small retail account.
const (
	DefaultInitialCapital  = 3000.0
	DefaultPositionSizePct = 0.05
)

// Sizer computes position size and dollar P&L for simulated trades. Every
// trade is sized against the initial capital; equity is not compounded.
type Sizer struct {
	capital  decimal.Decimal
	fraction decimal.Decimal
}

// NewSizer creates a Sizer allocating positionPct of capital per trade.
// Non-positive inputs fall back to the defaults.
func NewSizer(capital, positionPct float64) Sizer {
	if capital <= 0 {
		capital = DefaultInitialCapital
	}
	if positionPct <= 0 {
		positionPct = DefaultPositionSizePct
	}
	return Sizer{
		capital:  decimal.NewFromFloat(capital),
		fraction: decimal.NewFromFloat(positionPct),
	}
}

// Allocation is the dollar amount committed per trade.
func (s Sizer) Allocation() decimal.Decimal {
	return s.capital.Mul(s.fraction)
}

// Quantity returns the number of units bought at entryPrice.
func (s Sizer) Quantity(entryPrice float64) decimal.Decimal {
	if entryPrice <= 0 {
		return decimal.Zero
	}
	return s.Allocation().Div(decimal.NewFromFloat(entryPrice))
}

// PnL returns (exit - entry) * qty.
func (s Sizer) PnL(entryPrice, exitPrice float64, qty decimal.Decimal) decimal.Decimal {
	return decimal.NewFromFloat(exitPrice).Sub(decimal.NewFromFloat(entryPrice)).Mul(qty)
}
