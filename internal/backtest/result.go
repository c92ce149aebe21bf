package backtest

import (
	"fmt"
	"math"
	"strings"
	"time"

	"edgelab/internal/domain"
	"edgelab/internal/strategy"
)

// SymbolFailure records one symbol excluded from a batch because fetching or
// simulating it failed.
type SymbolFailure struct {
	Symbol string `json:"symbol"`
	Error  string `json:"error"`
}

// Result is the outcome of one strategy over one universe and period. It is
// read-only once returned by the Backtester.
type Result struct {
	Strategy string          `json:"strategy"`
	Universe string          `json:"universe"`
	Period   string          `json:"period"`
	Params   strategy.Params `json:"params,omitempty"`
	Metrics  Metrics         `json:"metrics"`
	Edge     bool            `json:"edge"`
	Trades   []domain.Trade  `json:"trades,omitempty"`

	SymbolsTested  int             `json:"symbols_tested"`
	SymbolsSkipped int             `json:"symbols_skipped"`
	SymbolsFailed  int             `json:"symbols_failed"`
	Failures       []SymbolFailure `json:"failures,omitempty"`

	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed"`
}

const rule = "============================================================"

// Summary renders the canonical human readable report.
func (r *Result) Summary() string {
	m := r.Metrics
	edge := "NO"
	if r.Edge {
		edge = "YES"
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "BACKTEST: %s (%s)\n", r.Strategy, r.Universe)
	fmt.Fprintf(&b, "Period: %s\n", r.Period)
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "Total Trades:     %d\n", m.TotalTrades)
	fmt.Fprintf(&b, "Win Rate:         %.1f%%\n", m.WinRate*100)
	fmt.Fprintf(&b, "Avg Winner:       +%.2f%%\n", m.AvgWinPct)
	fmt.Fprintf(&b, "Avg Loser:        %.2f%%\n", m.AvgLossPct)
	fmt.Fprintf(&b, "Profit Factor:    %s\n", FormatProfitFactor(m.ProfitFactor, 0))
	fmt.Fprintf(&b, "Total Return:     %+.2f%%\n", m.TotalPnLPct)
	fmt.Fprintf(&b, "Max Drawdown:     %.2f%%\n", m.MaxDrawdownPct)
	fmt.Fprintf(&b, "Avg Hold Time:    %.1f days\n", m.AvgHoldDays)
	fmt.Fprintf(&b, "Sharpe Ratio:     %.2f\n", m.SharpeRatio)
	fmt.Fprintf(&b, "Expectancy/Trade: %+.2f%%\n", m.Expectancy)
	b.WriteString("\n")
	fmt.Fprintf(&b, "EDGE DETECTED: %s\n", edge)
	b.WriteString(rule + "\n")
	return b.String()
}

// FormatProfitFactor formats pf with two decimals, right aligned to width,
// printing "inf" for an infinite value.
func FormatProfitFactor(pf float64, width int) string {
	if math.IsInf(pf, 1) {
		return fmt.Sprintf("%*s", width, "inf")
	}
	return fmt.Sprintf("%*.2f", width, pf)
}
