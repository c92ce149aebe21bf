package backtest

import (
	"encoding/json"
	"math"
	"sort"

	"edgelab/internal/domain"
)

// tradingDaysPerYear annualises the per-trade Sharpe-like ratio.
const tradingDaysPerYear = 252

// Metrics summarises a trade log. All percentage fields are in percent units
// (5 means 5%); WinRate is a fraction in [0, 1].
type Metrics struct {
	TotalTrades    int     `json:"total_trades"`
	Winners        int     `json:"winners"`
	Losers         int     `json:"losers"`
	WinRate        float64 `json:"win_rate"`
	AvgWinPct      float64 `json:"avg_win_pct"`
	AvgLossPct     float64 `json:"avg_loss_pct"`
	ProfitFactor   float64 `json:"profit_factor"`
	TotalPnLPct    float64 `json:"total_pnl_pct"`
	TotalPnL       float64 `json:"total_pnl"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	AvgHoldDays    float64 `json:"avg_hold_days"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
	Expectancy     float64 `json:"expectancy"`
}

// Aggregate computes Metrics over trades. It is a pure function of its input;
// the order of trades does not matter.
//
// Losers are trades with a return <= 0. ProfitFactor is gross winning
// percent over gross losing percent, +Inf when there are winners and no
// losses, and 0 when there are no winners. TotalPnLPct is a simple sum of
// per-trade percentages, not a compounded return.
func Aggregate(trades []domain.Trade) Metrics {
	n := len(trades)
	if n == 0 {
		return Metrics{}
	}

	var (
		m                       Metrics
		grossWin, grossLoss     float64
		sumPct, sumHold, sumPnL float64
	)
	m.TotalTrades = n
	for _, t := range trades {
		sumPct += t.PnLPct
		sumHold += float64(t.HoldDays)
		sumPnL += t.PnL
		if t.IsWinner() {
			m.Winners++
			grossWin += t.PnLPct
		} else {
			m.Losers++
			grossLoss += t.PnLPct
		}
	}

	m.WinRate = float64(m.Winners) / float64(n)
	if m.Winners > 0 {
		m.AvgWinPct = grossWin / float64(m.Winners)
	}
	if m.Losers > 0 {
		m.AvgLossPct = grossLoss / float64(m.Losers)
	}
	m.ProfitFactor = profitFactor(grossWin, -grossLoss)
	m.TotalPnLPct = sumPct
	m.TotalPnL = sumPnL
	m.Expectancy = sumPct / float64(n)
	m.AvgHoldDays = sumHold / float64(n)
	m.MaxDrawdownPct = maxDrawdown(trades)
	m.SharpeRatio = sharpe(trades, m.Expectancy, m.AvgHoldDays)
	return m
}

func profitFactor(grossWin, grossLoss float64) float64 {
	switch {
	case grossWin <= 0:
		return 0
	case grossLoss == 0:
		return math.Inf(1)
	default:
		return grossWin / grossLoss
	}
}

// maxDrawdown walks the cumulative percent curve in exit order and returns
// the largest fall from a running peak of that curve.
func maxDrawdown(trades []domain.Trade) float64 {
	ordered := make([]domain.Trade, len(trades))
	copy(ordered, trades)
	SortTrades(ordered)

	var cum, peak, dd float64
	for i, t := range ordered {
		cum += t.PnLPct
		if i == 0 || cum > peak {
			peak = cum
		}
		dd = max(dd, peak-cum)
	}
	return dd
}

func sharpe(trades []domain.Trade, mean, avgHold float64) float64 {
	if len(trades) < 2 || avgHold <= 0 {
		return 0
	}
	var ss float64
	for _, t := range trades {
		d := t.PnLPct - mean
		ss += d * d
	}
	std := math.Sqrt(ss / float64(len(trades)))
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(tradingDaysPerYear/avgHold)
}

// SortTrades orders trades chronologically by exit date, then entry date,
// then symbol.
func SortTrades(trades []domain.Trade) {
	sort.SliceStable(trades, func(i, j int) bool {
		a, b := trades[i], trades[j]
		if !a.ExitDate.Equal(b.ExitDate) {
			return a.ExitDate.Before(b.ExitDate)
		}
		if !a.EntryDate.Equal(b.EntryDate) {
			return a.EntryDate.Before(b.EntryDate)
		}
		return a.Symbol < b.Symbol
	})
}

// ---------------------------------------------------------------------------
// JSON
// ---------------------------------------------------------------------------

// MarshalJSON encodes an infinite profit factor as the string "Infinity",
// which encoding/json cannot represent as a number.
func (m Metrics) MarshalJSON() ([]byte, error) {
	type plain Metrics
	var pf any = m.ProfitFactor
	if math.IsInf(m.ProfitFactor, 1) {
		pf = "Infinity"
	}
	return json.Marshal(struct {
		plain
		ProfitFactor any `json:"profit_factor"`
	}{plain(m), pf})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (m *Metrics) UnmarshalJSON(data []byte) error {
	type plain Metrics
	aux := struct {
		*plain
		ProfitFactor json.RawMessage `json:"profit_factor"`
	}{plain: (*plain)(m)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.ProfitFactor) == 0 {
		return nil
	}
	var s string
	if err := json.Unmarshal(aux.ProfitFactor, &s); err == nil {
		if s == "Infinity" {
			m.ProfitFactor = math.Inf(1)
		}
		return nil
	}
	return json.Unmarshal(aux.ProfitFactor, &m.ProfitFactor)
}
