// Package feed supplies daily price series to the backtester. A Fetcher
// loads raw bars for a date range from one source (Alpaca, the local Parquet
// store, Postgres); SeriesSource adapts any Fetcher to the backtester's
// period-label interface.
package feed

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"edgelab/internal/backtest"
	"edgelab/internal/domain"
)

// DateRange represents an inclusive time range for data fetching.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Fetcher loads daily bars for symbol within [start, end]. A symbol without
// data returns an empty slice and a nil error.
type Fetcher interface {
	FetchBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)
}

// Compile-time interface check.
var _ backtest.SeriesProvider = (*SeriesSource)(nil)

// SeriesSource resolves period labels against a clock and serves the
// resulting bars as a PriceSeries.
type SeriesSource struct {
	fetcher Fetcher
	now     func() time.Time
}

// NewSeriesSource wraps f using the wall clock.
func NewSeriesSource(f Fetcher) *SeriesSource {
	return &SeriesSource{fetcher: f, now: time.Now}
}

// WithClock returns a copy of s that resolves periods against now.
func (s *SeriesSource) WithClock(now func() time.Time) *SeriesSource {
	c := *s
	c.now = now
	return &c
}

// Series fetches symbol's bars for period, sorted oldest first with
// duplicate timestamps collapsed to the last one seen.
func (s *SeriesSource) Series(ctx context.Context, symbol, period string) (domain.PriceSeries, error) {
	r, err := ParsePeriod(period, s.now())
	if err != nil {
		return domain.PriceSeries{}, err
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	bars, err := s.fetcher.FetchBars(ctx, symbol, r.Start, r.End)
	if err != nil {
		return domain.PriceSeries{}, fmt.Errorf("fetching %s %s: %w", symbol, period, err)
	}
	return domain.NewPriceSeries(symbol, normalizeBars(bars)), nil
}

// normalizeBars orders bars by timestamp and drops earlier duplicates.
func normalizeBars(bars []domain.Bar) []domain.Bar {
	if len(bars) == 0 {
		return nil
	}
	sorted := make([]domain.Bar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	out := sorted[:0]
	for _, b := range sorted {
		if n := len(out); n > 0 && out[n-1].Timestamp.Equal(b.Timestamp) {
			out[n-1] = b
			continue
		}
		out = append(out, b)
	}
	return out
}
