package report

import (
	"fmt"
	"strings"

	"edgelab/internal/backtest"
)

// FormatInt formats an integer with comma separators.
func FormatInt(n int) string {
	if n < 0 {
		return "-" + FormatInt(-n)
	}
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	start := len(s) % 3
	if start > 0 {
		b.WriteString(s[:start])
	}
	for i := start; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatRate formats a 0..1 ratio as a percentage with one decimal,
// right-aligned to width.
func FormatRate(r float64, width int) string {
	return fmt.Sprintf("%*s", width, fmt.Sprintf("%.1f%%", r*100))
}

// FormatSignedPct formats an already-scaled percentage as "+X.X%".
func FormatSignedPct(p float64, width int) string {
	return fmt.Sprintf("%+*.1f%%", width, p)
}

// FormatPF formats a profit factor, printing "inf" when infinite.
func FormatPF(pf float64, width int) string {
	return backtest.FormatProfitFactor(pf, width)
}

// firstN joins up to n symbols with ", ".
func firstN(symbols []string, n int) string {
	if len(symbols) > n {
		symbols = symbols[:n]
	}
	return strings.Join(symbols, ", ")
}
