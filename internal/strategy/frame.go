package strategy

import (
	"math"
	"time"

	"edgelab/internal/domain"
)

// ExitState is the per-bar value of a strategy's exit rule.
type ExitState int

const (
	// ExitNone means the exit rule is defined and did not fire.
	ExitNone ExitState = iota
	// ExitFire means the exit rule fired on this bar.
	ExitFire
	// ExitUnknown means the field the exit rule consults is undefined (NaN).
	ExitUnknown
)

// String implements fmt.Stringer.
func (e ExitState) String() string {
	switch e {
	case ExitFire:
		return "fire"
	case ExitUnknown:
		return "unknown"
	default:
		return "none"
	}
}

// ExitWhen maps a condition over x to an ExitState, yielding ExitUnknown
// when x is NaN.
func ExitWhen(x float64, cond bool) ExitState {
	if math.IsNaN(x) {
		return ExitUnknown
	}
	if cond {
		return ExitFire
	}
	return ExitNone
}

// Signal is one row of a Frame, aligned with one bar of the source series.
type Signal struct {
	Timestamp  time.Time          `json:"timestamp"`
	Close      float64            `json:"close"`
	Indicators map[string]float64 `json:"indicators,omitempty"`
	Entry      bool               `json:"entry"`
	Exit       ExitState          `json:"exit"`
	HoldDays   int                `json:"hold_days"`
}

// Frame is the output of Strategy.Generate: one Signal per bar.
type Frame struct {
	Symbol   string   `json:"symbol"`
	Strategy string   `json:"strategy"`
	Rows     []Signal `json:"rows"`
}

// NewFrame builds a frame with one row per bar carrying the bar's timestamp
// and close, the given hold limit, and no entries.
func NewFrame(name string, series domain.PriceSeries, holdDays int) Frame {
	rows := make([]Signal, len(series.Bars))
	for i, b := range series.Bars {
		rows[i] = Signal{Timestamp: b.Timestamp, Close: b.Close, HoldDays: holdDays}
	}
	return Frame{Symbol: series.Symbol, Strategy: name, Rows: rows}
}

// Len returns the number of rows.
func (f Frame) Len() int { return len(f.Rows) }

// Entries returns the row indexes flagged for entry.
func (f Frame) Entries() []int {
	var idx []int
	for i, r := range f.Rows {
		if r.Entry {
			idx = append(idx, i)
		}
	}
	return idx
}

// SetIndicator records a named derived value on row i.
func (f Frame) SetIndicator(i int, name string, v float64) {
	if f.Rows[i].Indicators == nil {
		f.Rows[i].Indicators = make(map[string]float64, 4)
	}
	f.Rows[i].Indicators[name] = v
}

// Gt reports a > b, false when either side is NaN.
func Gt(a, b float64) bool { return !math.IsNaN(a) && !math.IsNaN(b) && a > b }

// Lt reports a < b, false when either side is NaN.
func Lt(a, b float64) bool { return !math.IsNaN(a) && !math.IsNaN(b) && a < b }

// Ge reports a >= b, false when either side is NaN.
func Ge(a, b float64) bool { return !math.IsNaN(a) && !math.IsNaN(b) && a >= b }

// Le reports a <= b, false when either side is NaN.
func Le(a, b float64) bool { return !math.IsNaN(a) && !math.IsNaN(b) && a <= b }
