package builtins

import (
	"edgelab/internal/domain"
	"edgelab/internal/indicator"
	"edgelab/internal/strategy"
)

var (
	_ strategy.Strategy = MeanReversion{}
	_ strategy.Strategy = RSIDivergence{}
)

// ---------------------------------------------------------------------------
// MeanReversion
// ---------------------------------------------------------------------------

// MeanReversion buys oversold RSI readings and sells once RSI recovers above
// rsi_exit, with max_hold_days as the time stop.
type MeanReversion struct{}

// Name returns "mean_reversion".
func (MeanReversion) Name() string { return "mean_reversion" }

// Description implements strategy.Strategy.
func (MeanReversion) Description() string {
	return "buy RSI oversold, exit on RSI recovery or time stop"
}

// Defaults implements strategy.Strategy.
func (MeanReversion) Defaults() strategy.Params {
	return strategy.Params{"rsi_period": 14, "rsi_entry": 30, "rsi_exit": 50, "max_hold_days": 10}
}

// MinBars implements strategy.Strategy.
func (MeanReversion) MinBars(p strategy.Params) int {
	return p.Int("rsi_period", 14) + 1
}

// Generate implements strategy.Strategy.
func (m MeanReversion) Generate(series domain.PriceSeries, p strategy.Params) strategy.Frame {
	entry := p.Float("rsi_entry", 30)
	exit := p.Float("rsi_exit", 50)
	f := strategy.NewFrame(m.Name(), series, p.Int("max_hold_days", 10))
	if series.Len() < m.MinBars(p) {
		return f
	}

	rsi := indicator.RSI(series.Closes(), p.Int("rsi_period", 14))
	for i := range f.Rows {
		f.SetIndicator(i, "rsi", rsi[i])
		f.Rows[i].Entry = strategy.Lt(rsi[i], entry)
		f.Rows[i].Exit = strategy.ExitWhen(rsi[i], rsi[i] > exit)
	}
	return f
}

// ---------------------------------------------------------------------------
// RSIDivergence
// ---------------------------------------------------------------------------

// RSIDivergence looks for bullish divergence: price undercuts its swing low
// from swing_window bars ago while RSI holds above its own earlier low, with
// RSI still below rsi_ceiling.
type RSIDivergence struct{}

// Name returns "rsi_divergence".
func (RSIDivergence) Name() string { return "rsi_divergence" }

// Description implements strategy.Strategy.
func (RSIDivergence) Description() string {
	return "lower price low with higher RSI low"
}

// Defaults implements strategy.Strategy.
func (RSIDivergence) Defaults() strategy.Params {
	return strategy.Params{"lookback": 14, "swing_window": 5, "rsi_ceiling": 40, "hold_days": 7}
}

// MinBars implements strategy.Strategy.
func (RSIDivergence) MinBars(p strategy.Params) int {
	return p.Int("lookback", 14) + 2*p.Int("swing_window", 5)
}

// Generate implements strategy.Strategy.
func (r RSIDivergence) Generate(series domain.PriceSeries, p strategy.Params) strategy.Frame {
	w := p.Int("swing_window", 5)
	ceiling := p.Float("rsi_ceiling", 40)
	f := strategy.NewFrame(r.Name(), series, p.Int("hold_days", 7))
	if series.Len() < r.MinBars(p) {
		return f
	}

	closes := series.Closes()
	rsi := indicator.RSI(closes, p.Int("lookback", 14))
	prevPriceLow := indicator.Shift(indicator.RollingMin(closes, w), w)
	prevRSILow := indicator.Shift(indicator.RollingMin(rsi, w), w)

	for i := range f.Rows {
		f.SetIndicator(i, "rsi", rsi[i])
		f.SetIndicator(i, "prev_price_low", prevPriceLow[i])
		f.SetIndicator(i, "prev_rsi_low", prevRSILow[i])
		f.Rows[i].Entry = strategy.Lt(closes[i], prevPriceLow[i]) &&
			strategy.Gt(rsi[i], prevRSILow[i]) &&
			strategy.Lt(rsi[i], ceiling)
	}
	return f
}
