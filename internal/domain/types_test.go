package domain

import (
	"errors"
	"testing"
	"time"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func bar(n int, close float64) Bar {
	return Bar{Symbol: "AAPL", Timestamp: day(n), Open: close, High: close, Low: close, Close: close, Volume: 100}
}

func TestTypesExist(t *testing.T) {
	bar := Bar{}
	if bar.Symbol != "" || !bar.Timestamp.IsZero() {
		t.Error("expected zero-value Bar")
	}
	if bar.Volume != 0 || bar.TradeCount != 0 || bar.VWAP != 0 {
		t.Error("expected zero Volume/TradeCount/VWAP for zero-value Bar")
	}

	trade := Trade{}
	if trade.IsWinner() {
		t.Error("zero-value Trade should not be a winner")
	}
}

func TestPriceSeriesValidate(t *testing.T) {
	tests := []struct {
		name string
		bars []Bar
		want error
	}{
		{"ok", []Bar{bar(0, 10), bar(1, 11)}, nil},
		{"empty", nil, ErrEmptySeries},
		{"duplicate timestamp", []Bar{bar(0, 10), bar(0, 11)}, ErrNonMonotonic},
		{"backwards", []Bar{bar(2, 10), bar(1, 11)}, ErrNonMonotonic},
		{"zero close", []Bar{bar(0, 10), {Timestamp: day(1), Open: 1, High: 1, Low: 1}}, ErrBadPrice},
		{"negative volume", []Bar{{Timestamp: day(0), Open: 1, High: 1, Low: 1, Close: 1, Volume: -1}}, ErrBadVolume},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewPriceSeries("AAPL", tt.bars).Validate()
			if tt.want == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPriceSeriesColumns(t *testing.T) {
	s := NewPriceSeries("AAPL", []Bar{
		{Timestamp: day(0), Open: 1, High: 4, Low: 0.5, Close: 2, Volume: 10},
		{Timestamp: day(1), Open: 2, High: 5, Low: 1.5, Close: 3, Volume: 20},
	})
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
	if got := s.Closes(); got[0] != 2 || got[1] != 3 {
		t.Errorf("Closes() = %v, want [2 3]", got)
	}
	if got := s.Highs(); got[1] != 5 {
		t.Errorf("Highs()[1] = %v, want 5", got[1])
	}
	if got := s.Volumes(); got[1] != 20 {
		t.Errorf("Volumes()[1] = %v, want 20", got[1])
	}
	if got := s.Opens(); got[0] != 1 {
		t.Errorf("Opens()[0] = %v, want 1", got[0])
	}
	if got := s.Lows(); got[0] != 0.5 {
		t.Errorf("Lows()[0] = %v, want 0.5", got[0])
	}
}
