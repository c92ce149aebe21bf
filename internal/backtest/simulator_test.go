package backtest

import (
	"errors"
	"math"
	"testing"
	"time"

	"edgelab/internal/domain"
	"edgelab/internal/strategy"
	"edgelab/internal/strategy/builtins"
)

func day(n int) time.Time {
	return time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

// breakoutSeries is 20 flat bars at 100 followed by a 3x-volume breakout to
// 107 that holds for the remaining bars.
func breakoutSeries(symbol string, n int) domain.PriceSeries {
	const v = 1_000_000
	bars := make([]domain.Bar, n)
	for i := range bars {
		p := 100.0
		if i >= 20 {
			p = 107
		}
		bars[i] = domain.Bar{Symbol: symbol, Timestamp: day(i), Open: p, High: p, Low: p, Close: p, Volume: v}
	}
	if n > 20 {
		bars[20].Volume = 3 * v
	}
	return domain.NewPriceSeries(symbol, bars)
}

func closesSeries(symbol string, closes []float64) domain.PriceSeries {
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = domain.Bar{Symbol: symbol, Timestamp: day(i), Open: c, High: c, Low: c, Close: c, Volume: 1000}
	}
	return domain.NewPriceSeries(symbol, bars)
}

func withTimestamp(s domain.PriceSeries, i int, ts time.Time) domain.PriceSeries {
	s.Bars[i].Timestamp = ts
	return s
}

// manualFrame builds a frame from explicit entry flags and exit states.
func manualFrame(entries []bool, exits []strategy.ExitState, hold int) strategy.Frame {
	rows := make([]strategy.Signal, len(entries))
	for i := range rows {
		rows[i] = strategy.Signal{Timestamp: day(i), Close: 100 + float64(i), Entry: entries[i], HoldDays: hold}
		if exits != nil {
			rows[i].Exit = exits[i]
		}
	}
	return strategy.Frame{Symbol: "TEST", Strategy: "manual", Rows: rows}
}

func TestSimulateMomentumBreakout(t *testing.T) {
	sizer := NewSizer(3000, 0.05)
	trades, err := SimulateSeries(builtins.MomentumBreakout{}, breakoutSeries("TEST", 30), nil, sizer)
	if err != nil {
		t.Fatalf("SimulateSeries: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(trades))
	}
	tr := trades[0]
	if !tr.EntryDate.Equal(day(20)) || !tr.ExitDate.Equal(day(25)) {
		t.Errorf("entry/exit = %s/%s, want bar 20/25", tr.EntryDate, tr.ExitDate)
	}
	if tr.EntryPrice != 107 || tr.ExitPrice != 107 {
		t.Errorf("prices = %v/%v, want 107/107", tr.EntryPrice, tr.ExitPrice)
	}
	if tr.HoldDays != 5 || tr.ExitReason != domain.ExitReasonTimeStop {
		t.Errorf("hold=%d reason=%s, want 5 time_stop", tr.HoldDays, tr.ExitReason)
	}
	if tr.PnLPct != 0 || tr.PnL != 0 {
		t.Errorf("pnl = %v (%v%%), want 0", tr.PnL, tr.PnLPct)
	}
	if math.Abs(tr.Quantity-150.0/107) > 1e-9 {
		t.Errorf("quantity = %v, want %v", tr.Quantity, 150.0/107)
	}
	if tr.StrategyID != "momentum_breakout" || tr.Symbol != "TEST" {
		t.Errorf("trade identity = %s/%s", tr.StrategyID, tr.Symbol)
	}
}

func TestSimulateMeanReversionExitSignal(t *testing.T) {
	var closes []float64
	for i := 0; i < 15; i++ {
		closes = append(closes, 100-float64(i))
	}
	closes = append(closes, 91, 96, 101)

	trades, err := SimulateSeries(builtins.MeanReversion{}, closesSeries("TEST", closes), nil, NewSizer(0, 0))
	if err != nil {
		t.Fatalf("SimulateSeries: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(trades))
	}
	tr := trades[0]
	if !tr.EntryDate.Equal(day(14)) || !tr.ExitDate.Equal(day(17)) {
		t.Errorf("entry/exit = %s/%s, want bar 14/17", tr.EntryDate, tr.ExitDate)
	}
	if tr.ExitReason != domain.ExitReasonSignal {
		t.Errorf("reason = %s, want exit_signal", tr.ExitReason)
	}
	if want := (101.0/86 - 1) * 100; math.Abs(tr.PnLPct-want) > 1e-9 {
		t.Errorf("PnLPct = %v, want %v", tr.PnLPct, want)
	}
	if want := (101.0 - 86) * 150 / 86; math.Abs(tr.PnL-want) > 1e-6 {
		t.Errorf("PnL = %v, want %v", tr.PnL, want)
	}
}

func TestSimulateExitBarDoesNotReenter(t *testing.T) {
	entries := []bool{true, true, true, true, true, true, true, true}
	trades, err := Simulate(manualFrame(entries, nil, 2), NewSizer(0, 0))
	if err != nil {
		t.Fatal(err)
	}
	// 0->2, 3->5, then 6 is still open when the frame ends.
	if len(trades) != 2 {
		t.Fatalf("trades = %d, want 2", len(trades))
	}
	if !trades[0].ExitDate.Equal(day(2)) || !trades[1].EntryDate.Equal(day(3)) {
		t.Errorf("trades = %+v", trades)
	}
}

func TestSimulateTradesNeverOverlap(t *testing.T) {
	entries := make([]bool, 60)
	for i := range entries {
		entries[i] = i%3 != 1
	}
	trades, err := Simulate(manualFrame(entries, nil, 4), NewSizer(0, 0))
	if err != nil {
		t.Fatal(err)
	}
	for i, tr := range trades {
		if !tr.ExitDate.After(tr.EntryDate) {
			t.Errorf("trade %d exits on or before entry", i)
		}
		if i > 0 && !tr.EntryDate.After(trades[i-1].ExitDate) {
			t.Errorf("trade %d overlaps trade %d", i, i-1)
		}
	}
}

func TestSimulateExitSignalBeatsTimeStop(t *testing.T) {
	entries := []bool{true, false, false, false}
	exits := []strategy.ExitState{strategy.ExitNone, strategy.ExitUnknown, strategy.ExitFire, strategy.ExitNone}
	trades, err := Simulate(manualFrame(entries, exits, 2), NewSizer(0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if len(trades) != 1 || trades[0].ExitReason != domain.ExitReasonSignal || trades[0].HoldDays != 2 {
		t.Errorf("trades = %+v, want one exit_signal after 2 days", trades)
	}
}

func TestSimulateUnknownExitIsNoSignal(t *testing.T) {
	entries := []bool{true, false, false, false}
	exits := []strategy.ExitState{strategy.ExitNone, strategy.ExitUnknown, strategy.ExitUnknown, strategy.ExitUnknown}
	trades, err := Simulate(manualFrame(entries, exits, 3), NewSizer(0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if len(trades) != 1 || trades[0].ExitReason != domain.ExitReasonTimeStop {
		t.Errorf("trades = %+v, want one time_stop", trades)
	}
}

func TestSimulateShortSeriesHasNoTrades(t *testing.T) {
	for _, s := range builtins.All() {
		n := s.MinBars(s.Defaults()) - 1
		trades, err := SimulateSeries(s, breakoutSeries("TEST", n), nil, NewSizer(0, 0))
		if err != nil {
			t.Fatalf("%s: %v", s.Name(), err)
		}
		if len(trades) != 0 {
			t.Errorf("%s: %d trades on %d bars, want 0", s.Name(), len(trades), n)
		}
	}
}

func TestSimulateMalformedSeries(t *testing.T) {
	tests := []struct {
		name   string
		series domain.PriceSeries
		want   error
	}{
		{"empty", domain.NewPriceSeries("X", nil), domain.ErrEmptySeries},
		{"non-monotonic", withTimestamp(closesSeries("X", []float64{1, 2}), 1, day(0)), domain.ErrNonMonotonic},
		{"zero price", closesSeries("X", []float64{1, 0}), domain.ErrBadPrice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trades, err := SimulateSeries(builtins.GapFade{}, tt.series, nil, NewSizer(0, 0))
			if len(trades) != 0 {
				t.Errorf("trades = %d, want 0", len(trades))
			}
			if !errors.Is(err, ErrMalformedSeries) || !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want ErrMalformedSeries wrapping %v", err, tt.want)
			}
		})
	}
}

func TestSimulateMalformedFrame(t *testing.T) {
	f := manualFrame([]bool{true, false}, nil, 1)
	f.Rows[1].Close = math.NaN()
	if _, err := Simulate(f, NewSizer(0, 0)); !errors.Is(err, ErrMalformedSeries) {
		t.Errorf("err = %v, want ErrMalformedSeries", err)
	}
}

func TestSizer(t *testing.T) {
	s := NewSizer(3000, 0.05)
	if got := s.Allocation().InexactFloat64(); got != 150 {
		t.Errorf("Allocation = %v, want 150", got)
	}
	if got := s.Quantity(50).InexactFloat64(); got != 3 {
		t.Errorf("Quantity(50) = %v, want 3", got)
	}
	if !s.Quantity(0).IsZero() {
		t.Error("Quantity(0) should be zero")
	}
	if got := s.PnL(50, 55, s.Quantity(50)).InexactFloat64(); got != 15 {
		t.Errorf("PnL = %v, want 15", got)
	}
}
