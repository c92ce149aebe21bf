package builtins

import (
	"edgelab/internal/domain"
	"edgelab/internal/indicator"
	"edgelab/internal/strategy"
)

var (
	_ strategy.Strategy = VolumeSpike{}
	_ strategy.Strategy = GapFade{}
	_ strategy.Strategy = BollingerSqueeze{}
)

// ---------------------------------------------------------------------------
// VolumeSpike
// ---------------------------------------------------------------------------

// VolumeSpike buys capitulation: a red day down at least min_drop_pct on
// volume of at least volume_spike times its volume_window average.
type VolumeSpike struct{}

// Name returns "volume_spike".
func (VolumeSpike) Name() string { return "volume_spike" }

// Description implements strategy.Strategy.
func (VolumeSpike) Description() string {
	return "buy a high-volume red day"
}

// Defaults implements strategy.Strategy.
func (VolumeSpike) Defaults() strategy.Params {
	return strategy.Params{"volume_spike": 2.5, "volume_window": 20, "min_drop_pct": 0.02, "hold_days": 5}
}

// MinBars implements strategy.Strategy.
func (VolumeSpike) MinBars(p strategy.Params) int {
	return p.Int("volume_window", 20)
}

// Generate implements strategy.Strategy.
func (v VolumeSpike) Generate(series domain.PriceSeries, p strategy.Params) strategy.Frame {
	spike := p.Float("volume_spike", 2.5)
	drop := p.Float("min_drop_pct", 0.02)
	f := strategy.NewFrame(v.Name(), series, p.Int("hold_days", 5))
	if series.Len() < v.MinBars(p) {
		return f
	}

	closes := series.Closes()
	opens := series.Opens()
	vols := series.Volumes()
	volAvg := indicator.SMA(vols, p.Int("volume_window", 20))
	pct := indicator.PctChange(closes)

	for i := range f.Rows {
		ratio := indicator.Ratio(vols[i], volAvg[i])
		f.SetIndicator(i, "vol_ratio", ratio)
		f.SetIndicator(i, "pct_change", pct[i])
		f.Rows[i].Entry = strategy.Ge(ratio, spike) &&
			closes[i] < opens[i] &&
			strategy.Le(pct[i], -drop)
	}
	return f
}

// ---------------------------------------------------------------------------
// GapFade
// ---------------------------------------------------------------------------

// GapFade buys an opening gap down larger than min_gap_pct, betting the gap
// fills.
type GapFade struct{}

// Name returns "gap_fade".
func (GapFade) Name() string { return "gap_fade" }

// Description implements strategy.Strategy.
func (GapFade) Description() string {
	return "buy a gap down, expect the gap to fill"
}

// Defaults implements strategy.Strategy.
func (GapFade) Defaults() strategy.Params {
	return strategy.Params{"min_gap_pct": 0.03, "hold_days": 3}
}

// MinBars implements strategy.Strategy.
func (GapFade) MinBars(_ strategy.Params) int { return 2 }

// Generate implements strategy.Strategy.
func (g GapFade) Generate(series domain.PriceSeries, p strategy.Params) strategy.Frame {
	minGap := p.Float("min_gap_pct", 0.03)
	f := strategy.NewFrame(g.Name(), series, p.Int("hold_days", 3))
	if series.Len() < g.MinBars(p) {
		return f
	}

	bars := series.Bars
	for i := 1; i < len(bars); i++ {
		prev := bars[i-1].Close
		gap := indicator.Ratio(bars[i].Open-prev, prev)
		f.SetIndicator(i, "gap", gap)
		f.Rows[i].Entry = strategy.Lt(gap, -minGap)
	}
	return f
}

// ---------------------------------------------------------------------------
// BollingerSqueeze
// ---------------------------------------------------------------------------

// BollingerSqueeze waits for band width to sit in its lowest
// squeeze_percentile over rank_window bars, then buys the first bar that
// leaves the squeeze while closing above the middle band.
type BollingerSqueeze struct{}

// Name returns "bollinger_squeeze".
func (BollingerSqueeze) Name() string { return "bollinger_squeeze" }

// Description implements strategy.Strategy.
func (BollingerSqueeze) Description() string {
	return "buy the upside release of a Bollinger band squeeze"
}

// Defaults implements strategy.Strategy.
func (BollingerSqueeze) Defaults() strategy.Params {
	return strategy.Params{
		"bb_period":          20,
		"bb_std":             2,
		"squeeze_percentile": 20,
		"rank_window":        100,
		"hold_days":          7,
	}
}

// MinBars implements strategy.Strategy.
func (BollingerSqueeze) MinBars(p strategy.Params) int {
	return p.Int("bb_period", 20) + p.Int("rank_window", 100) - 1
}

// Generate implements strategy.Strategy.
func (b BollingerSqueeze) Generate(series domain.PriceSeries, p strategy.Params) strategy.Frame {
	threshold := p.Float("squeeze_percentile", 20)
	f := strategy.NewFrame(b.Name(), series, p.Int("hold_days", 7))
	if series.Len() < b.MinBars(p) {
		return f
	}

	closes := series.Closes()
	bands := indicator.Bollinger(closes, p.Int("bb_period", 20), p.Float("bb_std", 2))
	pctile := indicator.RollingPercentRank(bands.Width, p.Int("rank_window", 100))

	for i := range f.Rows {
		f.SetIndicator(i, "bb_mid", bands.Mid[i])
		f.SetIndicator(i, "bb_width", bands.Width[i])
		f.SetIndicator(i, "width_pctile", pctile[i])
		if i == 0 {
			continue
		}
		wasSqueezed := strategy.Lt(pctile[i-1], threshold)
		released := strategy.Ge(pctile[i], threshold)
		f.Rows[i].Entry = wasSqueezed && released && strategy.Gt(closes[i], bands.Mid[i])
	}
	return f
}
