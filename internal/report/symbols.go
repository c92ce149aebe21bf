package report

import (
	"fmt"
	"sort"

	"edgelab/internal/domain"
)

// SymbolStats summarises one symbol's trades within a run.
type SymbolStats struct {
	Symbol      string  `json:"symbol"`
	Trades      int     `json:"trades"`
	Winners     int     `json:"winners"`
	WinRate     float64 `json:"win_rate"`
	TotalPnLPct float64 `json:"total_pnl_pct"`
	TotalPnL    float64 `json:"total_pnl"`
	BestPct     float64 `json:"best_pct"`
	WorstPct    float64 `json:"worst_pct"`
}

// BySymbol groups trades per symbol, ordered by total return descending
// and then by symbol.
func BySymbol(trades []domain.Trade) []SymbolStats {
	idx := make(map[string]int)
	var out []SymbolStats
	for _, t := range trades {
		i, ok := idx[t.Symbol]
		if !ok {
			i = len(out)
			idx[t.Symbol] = i
			out = append(out, SymbolStats{Symbol: t.Symbol, BestPct: t.PnLPct, WorstPct: t.PnLPct})
		}
		s := &out[i]
		s.Trades++
		if t.IsWinner() {
			s.Winners++
		}
		s.TotalPnLPct += t.PnLPct
		s.TotalPnL += t.PnL
		s.BestPct = max(s.BestPct, t.PnLPct)
		s.WorstPct = min(s.WorstPct, t.PnLPct)
	}
	for i := range out {
		out[i].WinRate = float64(out[i].Winners) / float64(out[i].Trades)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TotalPnLPct != out[j].TotalPnLPct {
			return out[i].TotalPnLPct > out[j].TotalPnLPct
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

// SymbolTable prints the per-symbol breakdown of trades.
func (w *Writer) SymbolTable(trades []domain.Trade) {
	stats := BySymbol(trades)
	if len(stats) == 0 {
		return
	}
	fmt.Fprintf(w.w, "%-8s %6s %7s %9s %8s %8s\n", "Symbol", "Trades", "Win", "Return", "Best", "Worst")
	for _, s := range stats {
		ret := FormatSignedPct(s.TotalPnLPct, 8)
		if s.TotalPnLPct > 0 {
			ret = w.styles.render(w.styles.Gain, ret)
		} else if s.TotalPnLPct < 0 {
			ret = w.styles.render(w.styles.Loss, ret)
		}
		fmt.Fprintf(w.w, "%-8s %6s %7s %s %s %s\n",
			s.Symbol, FormatInt(s.Trades), FormatRate(s.WinRate, 7), ret,
			FormatSignedPct(s.BestPct, 7), FormatSignedPct(s.WorstPct, 7))
	}
}
