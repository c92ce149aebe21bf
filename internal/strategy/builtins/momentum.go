package builtins

import (
	"edgelab/internal/domain"
	"edgelab/internal/indicator"
	"edgelab/internal/strategy"
)

var _ strategy.Strategy = MomentumBreakout{}

// MomentumBreakout enters when the close breaks above the highest high of the
// previous lookback bars on volume above volume_multiplier times the average.
// Positions are closed by the hold_days time stop.
type MomentumBreakout struct{}

// Name returns "momentum_breakout".
func (MomentumBreakout) Name() string { return "momentum_breakout" }

// Description implements strategy.Strategy.
func (MomentumBreakout) Description() string {
	return "close above prior N-day high on above-average volume"
}

// Defaults implements strategy.Strategy.
func (MomentumBreakout) Defaults() strategy.Params {
	return strategy.Params{"lookback": 20, "volume_multiplier": 1.5, "hold_days": 5}
}

// MinBars implements strategy.Strategy.
func (MomentumBreakout) MinBars(p strategy.Params) int {
	return p.Int("lookback", 20) + 1
}

// Generate implements strategy.Strategy. The volume average includes the
// current bar; the breakout level does not.
func (m MomentumBreakout) Generate(series domain.PriceSeries, p strategy.Params) strategy.Frame {
	lookback := p.Int("lookback", 20)
	mult := p.Float("volume_multiplier", 1.5)
	f := strategy.NewFrame(m.Name(), series, p.Int("hold_days", 5))
	if series.Len() < m.MinBars(p) {
		return f
	}

	closes := series.Closes()
	vols := series.Volumes()
	highN := indicator.Shift(indicator.RollingMax(series.Highs(), lookback), 1)
	volAvg := indicator.SMA(vols, lookback)

	for i := range f.Rows {
		f.SetIndicator(i, "high_n", highN[i])
		f.SetIndicator(i, "vol_avg", volAvg[i])
		f.Rows[i].Entry = strategy.Gt(closes[i], highN[i]) && strategy.Gt(vols[i], mult*volAvg[i])
	}
	return f
}
