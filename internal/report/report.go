// Package report renders backtest results for terminals and files: the
// full-run universe tables, the top-strategy ranking, per-symbol breakdowns
// and trade CSV exports.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"edgelab/internal/backtest"
	"edgelab/internal/universe"
)

const (
	width        = 70
	headerSample = 8
)

var (
	heavyRule = strings.Repeat("=", width)
	lightRule = strings.Repeat("─", width)
)

// Styles colours selected fragments of the report. The zero value renders
// plain text.
type Styles struct {
	Edge   lipgloss.Style
	NoEdge lipgloss.Style
	Title  lipgloss.Style
	Gain   lipgloss.Style
	Loss   lipgloss.Style
	plain  bool
}

// PlainStyles returns styles that never emit escape codes.
func PlainStyles() Styles { return Styles{plain: true} }

// ColorStyles returns the terminal palette.
func ColorStyles() Styles {
	return Styles{
		Edge:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		NoEdge: lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		Title:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Gain:   lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		Loss:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	}
}

func (s Styles) render(st lipgloss.Style, text string) string {
	if s.plain {
		return text
	}
	return st.Render(text)
}

// Writer prints report sections to an io.Writer.
type Writer struct {
	w      io.Writer
	styles Styles
}

// NewWriter creates a Writer; color selects ColorStyles over PlainStyles.
func NewWriter(w io.Writer, color bool) *Writer {
	st := PlainStyles()
	if color {
		st = ColorStyles()
	}
	return &Writer{w: w, styles: st}
}

// Banner prints the full-run title block.
func (w *Writer) Banner() {
	fmt.Fprintf(w.w, "\n%s\n%s\n%s\n", heavyRule,
		w.styles.render(w.styles.Title, "COMPREHENSIVE BACKTEST - RETAIL MARKET EDGE ANALYSIS"), heavyRule)
}

// UniverseHeader prints the universe name, rationale and a symbol sample.
func (w *Writer) UniverseHeader(u universe.Universe) {
	fmt.Fprintf(w.w, "\n%s\n", lightRule)
	fmt.Fprintf(w.w, "Universe: %s\n", w.styles.render(w.styles.Title, u.Name))
	fmt.Fprintf(w.w, "Why: %s\n", u.Rationale)
	fmt.Fprintf(w.w, "Symbols: %s...\n", firstN(u.Symbols, headerSample))
	fmt.Fprintf(w.w, "%s\n", lightRule)
}

// StrategyLine prints one row of a universe table. Results without trades
// are omitted.
func (w *Writer) StrategyLine(r *backtest.Result) {
	if r.Metrics.TotalTrades == 0 {
		return
	}
	m := r.Metrics
	ret := FormatSignedPct(m.TotalPnLPct, 7)
	if m.TotalPnLPct > 0 {
		ret = w.styles.render(w.styles.Gain, ret)
	} else if m.TotalPnLPct < 0 {
		ret = w.styles.render(w.styles.Loss, ret)
	}
	fmt.Fprintf(w.w, "  %-25s | Trades: %4d | Win: %s | PF: %s | Return: %s | %s\n",
		r.Strategy, m.TotalTrades, FormatRate(m.WinRate, 5), FormatPF(m.ProfitFactor, 5), ret, w.edgeFlag(r.Edge))
}

func (w *Writer) edgeFlag(edge bool) string {
	if edge {
		return w.styles.render(w.styles.Edge, "✅ EDGE")
	}
	return w.styles.render(w.styles.NoEdge, "❌ NO EDGE")
}

// Universe prints a universe header followed by one line per result.
func (w *Writer) Universe(u universe.Universe, results []*backtest.Result) {
	w.UniverseHeader(u)
	for _, r := range results {
		w.StrategyLine(r)
	}
}

// TopStrategies prints the ranking of results with at least minTrades
// trades and a profit factor above 1, best first, limited to n rows.
func (w *Writer) TopStrategies(results []*backtest.Result, minTrades, n int) {
	fmt.Fprintf(w.w, "\n%s\n%s\n%s\n", heavyRule,
		w.styles.render(w.styles.Title, "TOP STRATEGIES BY PROFIT FACTOR"), heavyRule)
	for i, r := range backtest.TopStrategies(results, minTrades, n) {
		fmt.Fprintf(w.w, "%2d. %-25s on %-30s | PF: %s | Win: %.1f%% | Trades: %d\n",
			i+1, r.Strategy, r.Universe, FormatPF(r.Metrics.ProfitFactor, 0), r.Metrics.WinRate*100, r.Metrics.TotalTrades)
	}
}

// Summary prints the canonical single-run block.
func (w *Writer) Summary(r *backtest.Result) {
	fmt.Fprint(w.w, r.Summary())
}

// Diagnostics prints symbol coverage and failures of a run.
func (w *Writer) Diagnostics(r *backtest.Result) {
	fmt.Fprintf(w.w, "Symbols: %d tested, %d skipped (no data), %d failed\n",
		r.SymbolsTested, r.SymbolsSkipped, r.SymbolsFailed)
	for _, f := range r.Failures {
		fmt.Fprintf(w.w, "  %-8s %s\n", f.Symbol, f.Error)
	}
	fmt.Fprintln(w.w, "Note: total return is the sum of per-trade returns, not compounded.")
}
