package gather

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"

	"edgelab/internal/domain"
	"edgelab/internal/store"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type fetchCall struct {
	symbol     string
	start, end time.Time
}

// fakeFetcher serves canned bars filtered to the requested range.
type fakeFetcher struct {
	mu    sync.Mutex
	bars  map[string][]domain.Bar
	errs  map[string]error
	calls []fetchCall
}

func (f *fakeFetcher) FetchBars(_ context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fetchCall{symbol, start, end})
	if err := f.errs[symbol]; err != nil {
		return nil, err
	}
	var out []domain.Bar
	for _, b := range f.bars[symbol] {
		if !b.Timestamp.Before(start) && !b.Timestamp.After(end) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeFetcher) callsFor(symbol string) []fetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []fetchCall
	for _, c := range f.calls {
		if c.symbol == symbol {
			out = append(out, c)
		}
	}
	return out
}

func dailyBars(symbol string, days ...time.Time) []domain.Bar {
	out := make([]domain.Bar, len(days))
	for i, d := range days {
		out[i] = domain.Bar{Symbol: symbol, Timestamp: d, Open: 10, High: 11, Low: 9, Close: 10, Volume: 100}
	}
	return out
}

func fixedCalendar(now time.Time) WeekdayCalendar {
	return WeekdayCalendar{Now: func() time.Time { return now }}
}

func TestUniverseGathererBackfill(t *testing.T) {
	dir := t.TempDir()
	ps := store.NewParquetStore(dir)
	ctx := context.Background()

	f := &fakeFetcher{bars: map[string][]domain.Bar{
		"AAA": dailyBars("AAA", day(2024, 3, 4), day(2024, 3, 5), day(2024, 3, 6), day(2024, 3, 7)),
	}}
	opts := Options{DataDir: dir, Start: day(2024, 3, 1), Workers: 2}
	wed := time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC)

	g := NewUniverseGatherer([]string{"AAA", "bbb", " aaa "}, f, ps, fixedCalendar(wed), opts)
	if err := g.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := Stats{Symbols: 2, Updated: 1, Empty: 1, Bars: 2}
	if got := g.Stats(); got != want {
		t.Errorf("Stats = %+v, want %+v", got, want)
	}
	last, err := ps.LastBarTime(ctx, "AAA")
	if err != nil || !last.Equal(day(2024, 3, 5)) {
		t.Errorf("LastBarTime = %v, %v, want 2024-03-05", last, err)
	}
	if calls := f.callsFor("AAA"); len(calls) != 1 || !calls[0].start.Equal(day(2024, 3, 1)) {
		t.Errorf("AAA calls = %+v", calls)
	}

	// Same end date: nothing is fetched again.
	g = NewUniverseGatherer([]string{"AAA", "BBB"}, f, ps, fixedCalendar(wed), opts)
	if err := g.Run(ctx); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if n := len(f.callsFor("AAA")) + len(f.callsFor("BBB")); n != 2 {
		t.Errorf("fetch calls after rerun = %d, want 2", n)
	}

	// A later end date fetches only the missing tail and retries empties.
	fri := time.Date(2024, 3, 8, 12, 0, 0, 0, time.UTC)
	g = NewUniverseGatherer([]string{"AAA", "BBB"}, f, ps, fixedCalendar(fri), opts)
	if err := g.Run(ctx); err != nil {
		t.Fatalf("third Run: %v", err)
	}
	calls := f.callsFor("AAA")
	if len(calls) != 2 || !calls[1].start.Equal(day(2024, 3, 6)) {
		t.Errorf("AAA calls = %+v, want second from 2024-03-06", calls)
	}
	if len(f.callsFor("BBB")) != 2 {
		t.Errorf("BBB was not retried after a new end date")
	}
	if got := g.Stats(); got.Updated != 1 || got.Bars != 2 || got.Empty != 1 {
		t.Errorf("Stats = %+v", got)
	}
}

func TestUniverseGathererFailureKeepsIncomplete(t *testing.T) {
	dir := t.TempDir()
	ps := store.NewParquetStore(dir)
	f := &fakeFetcher{
		bars: map[string][]domain.Bar{"OK": dailyBars("OK", day(2024, 3, 4))},
		errs: map[string]error{"BAD": errors.New("rate limited")},
	}
	wed := time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC)

	var mu sync.Mutex
	seen := map[string]error{}
	g := NewUniverseGatherer([]string{"OK", "BAD"}, f, ps, fixedCalendar(wed), Options{DataDir: dir, Start: day(2024, 1, 1)})
	g.OnSymbol(func(symbol string, _ int, err error) {
		mu.Lock()
		seen[symbol] = err
		mu.Unlock()
	})
	if err := g.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := g.Stats(); got.Failed != 1 || got.Updated != 1 {
		t.Errorf("Stats = %+v", got)
	}
	if len(seen) != 2 || seen["BAD"] == nil || seen["OK"] != nil {
		t.Errorf("callbacks = %v", seen)
	}
	if _, err := os.Stat(filepath.Join(dir, "daily", completedFile)); !os.IsNotExist(err) {
		t.Errorf("completion marker written despite failure: %v", err)
	}
}

func TestUniverseGathererCancelled(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := NewUniverseGatherer([]string{"A", "B"}, &fakeFetcher{}, store.NewParquetStore(dir),
		fixedCalendar(time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC)), Options{DataDir: dir})
	if err := g.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run err = %v, want context.Canceled", err)
	}
}

// ---------------------------------------------------------------------------
// Calendar
// ---------------------------------------------------------------------------

type fakeCalendarClient struct {
	days []alpaca.CalendarDay
	err  error
}

func (f fakeCalendarClient) GetCalendar(alpaca.GetCalendarRequest) ([]alpaca.CalendarDay, error) {
	return f.days, f.err
}

func TestAlpacaCalendar(t *testing.T) {
	et := time.FixedZone("EST", -5*3600)
	days := []alpaca.CalendarDay{
		{Date: "2024-02-29"},
		{Date: "2024-03-01"},
		{Date: "2024-03-04"},
	}

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"today before settle", time.Date(2024, 3, 4, 16, 30, 0, 0, et), day(2024, 3, 1)},
		{"today after settle", time.Date(2024, 3, 4, 20, 30, 0, 0, et), day(2024, 3, 4)},
		{"weekend", time.Date(2024, 3, 3, 10, 0, 0, 0, et), day(2024, 3, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			visible := days
			if tt.now.Day() == 3 {
				visible = days[:2]
			}
			c := newAlpacaCalendar(fakeCalendarClient{days: visible}, et, func() time.Time { return tt.now })
			got, err := c.LatestFinishedTradingDay(context.Background())
			if err != nil {
				t.Fatalf("LatestFinishedTradingDay: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	c := newAlpacaCalendar(fakeCalendarClient{err: errors.New("boom")}, et, time.Now)
	if _, err := c.LatestFinishedTradingDay(context.Background()); err == nil {
		t.Error("expected error from calendar client")
	}
	c = newAlpacaCalendar(fakeCalendarClient{}, et, time.Now)
	if _, err := c.LatestFinishedTradingDay(context.Background()); err == nil {
		t.Error("expected error for empty calendar")
	}
}

func TestWeekdayCalendar(t *testing.T) {
	mon := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	got, _ := fixedCalendar(mon).LatestFinishedTradingDay(context.Background())
	if !got.Equal(day(2024, 3, 1)) {
		t.Errorf("got %v, want 2024-03-01", got)
	}
}
