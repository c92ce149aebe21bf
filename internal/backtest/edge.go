package backtest

import (
	"sort"
)

// EdgeCriteria is the predicate deciding whether a result shows an edge.
type EdgeCriteria struct {
	MinProfitFactor float64 `yaml:"min_profit_factor" json:"min_profit_factor"`
	MinWinRate      float64 `yaml:"min_win_rate" json:"min_win_rate"`
	MinTrades       int     `yaml:"min_trades" json:"min_trades"`
}

// DefaultEdgeCriteria requires PF > 1.2, win rate > 40% and at least 10
// trades.
func DefaultEdgeCriteria() EdgeCriteria {
	return EdgeCriteria{MinProfitFactor: 1.2, MinWinRate: 0.40, MinTrades: 10}
}

// HasEdge reports whether m clears every threshold. Profit factor and win
// rate must be strictly greater than their minimums.
func (c EdgeCriteria) HasEdge(m Metrics) bool {
	return m.TotalTrades >= c.MinTrades &&
		m.ProfitFactor > c.MinProfitFactor &&
		m.WinRate > c.MinWinRate
}

// HasEdge reports whether r clears c. Callers with their own thresholds use
// this instead of the Edge flag set by the Backtester.
func (r *Result) HasEdge(c EdgeCriteria) bool {
	return c.HasEdge(r.Metrics)
}

// Rank returns results sorted by profit factor, highest first. Ties keep
// their input order. The input slice is not modified.
func Rank(results []*Result) []*Result {
	out := make([]*Result, len(results))
	copy(out, results)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Metrics.ProfitFactor > out[j].Metrics.ProfitFactor
	})
	return out
}

// TopStrategies returns up to n ranked results with at least minTrades
// trades and a profit factor above 1.
func TopStrategies(results []*Result, minTrades, n int) []*Result {
	var eligible []*Result
	for _, r := range results {
		if r.Metrics.TotalTrades >= minTrades && r.Metrics.ProfitFactor > 1.0 {
			eligible = append(eligible, r)
		}
	}
	ranked := Rank(eligible)
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
