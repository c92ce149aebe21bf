package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"edgelab/internal/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func bar(symbol string, ts time.Time, px float64) domain.Bar {
	return domain.Bar{Symbol: symbol, Timestamp: ts, Open: px, High: px + 1, Low: px - 1, Close: px, Volume: 1000}
}

// fakeFetcher serves bars filtered to the requested range and records calls.
type fakeFetcher struct {
	mu    sync.Mutex
	bars  []domain.Bar
	err   error
	calls []DateRange
}

func (f *fakeFetcher) FetchBars(_ context.Context, _ string, start, end time.Time) ([]domain.Bar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, DateRange{Start: start, End: end})
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.Bar
	for _, b := range f.bars {
		if !b.Timestamp.Before(start) && !b.Timestamp.After(end) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestSeriesSource(t *testing.T) {
	f := &fakeFetcher{bars: []domain.Bar{
		bar("AAPL", day(2024, 3, 5), 3),
		bar("AAPL", day(2024, 3, 1), 1),
		bar("AAPL", day(2024, 3, 4), 2),
		bar("AAPL", day(2024, 3, 4), 2.5),
	}}
	now := day(2024, 3, 6)
	src := NewSeriesSource(f).WithClock(func() time.Time { return now })

	s, err := src.Series(context.Background(), "aapl", "1mo")
	if err != nil {
		t.Fatalf("Series: %v", err)
	}
	if s.Symbol != "AAPL" {
		t.Errorf("Symbol = %s, want AAPL", s.Symbol)
	}
	want := []float64{1, 2.5, 3}
	if s.Len() != len(want) {
		t.Fatalf("Len = %d, want %d", s.Len(), len(want))
	}
	for i, w := range want {
		if s.Bars[i].Close != w {
			t.Errorf("bar %d close = %v, want %v", i, s.Bars[i].Close, w)
		}
	}
	if err := s.Validate(); err != nil {
		t.Errorf("normalized series invalid: %v", err)
	}
	if got := f.calls[0]; !got.Start.Equal(day(2024, 2, 6)) || !got.End.Equal(now) {
		t.Errorf("fetch range = %+v", got)
	}
}

func TestSeriesSourceErrors(t *testing.T) {
	src := NewSeriesSource(&fakeFetcher{})
	if _, err := src.Series(context.Background(), "AAPL", "forever"); !errors.Is(err, ErrBadPeriod) {
		t.Errorf("bad period err = %v", err)
	}

	boom := errors.New("boom")
	src = NewSeriesSource(&fakeFetcher{err: boom})
	if _, err := src.Series(context.Background(), "AAPL", "1y"); !errors.Is(err, boom) {
		t.Errorf("fetch err = %v, want wrapped boom", err)
	}

	s, err := NewSeriesSource(&fakeFetcher{}).Series(context.Background(), "NONE", "1y")
	if err != nil || s.Len() != 0 {
		t.Errorf("empty source = %d bars, %v", s.Len(), err)
	}
}
