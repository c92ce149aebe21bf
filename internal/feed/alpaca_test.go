package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

type fakeBarsClient struct {
	failures int
	calls    int
	reqs     []marketdata.GetBarsRequest
	bars     []marketdata.Bar
}

func (c *fakeBarsClient) GetBars(_ string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error) {
	c.calls++
	c.reqs = append(c.reqs, req)
	if c.calls <= c.failures {
		return nil, errors.New("429 too many requests")
	}
	return c.bars, nil
}

func TestAlpacaFetcherRetriesAndConverts(t *testing.T) {
	ts := time.Date(2024, 3, 1, 5, 0, 0, 0, time.UTC)
	c := &fakeBarsClient{
		failures: 2,
		bars: []marketdata.Bar{
			{Timestamp: ts, Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 12345, TradeCount: 99, VWAP: 10.2},
		},
	}
	f := newAlpacaFetcher(c, AlpacaOptions{Feed: "iex"})
	f.backoff = 0

	bars, err := f.FetchBars(context.Background(), "msft", ts.AddDate(0, 0, -10), ts)
	if err != nil {
		t.Fatalf("FetchBars: %v", err)
	}
	if c.calls != 3 {
		t.Errorf("GetBars calls = %d, want 3", c.calls)
	}
	if len(bars) != 1 {
		t.Fatalf("bars = %d, want 1", len(bars))
	}
	b := bars[0]
	if b.Symbol != "MSFT" || b.Close != 10.5 || b.Volume != 12345 || b.TradeCount != 99 || b.VWAP != 10.2 {
		t.Errorf("bar = %+v", b)
	}
	req := c.reqs[0]
	if req.TimeFrame != marketdata.OneDay || req.Adjustment != marketdata.All {
		t.Errorf("request = %+v", req)
	}
}

func TestAlpacaFetcherGivesUp(t *testing.T) {
	c := &fakeBarsClient{failures: 10}
	f := newAlpacaFetcher(c, AlpacaOptions{Feed: "iex"})
	f.backoff = 0

	now := time.Now()
	if _, err := f.FetchBars(context.Background(), "X", now.AddDate(0, 0, -5), now); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if c.calls != f.attempts {
		t.Errorf("calls = %d, want %d", c.calls, f.attempts)
	}
}

func TestAlpacaFetcherCapsSIPEnd(t *testing.T) {
	now := time.Date(2024, 3, 6, 15, 0, 0, 0, time.UTC)
	c := &fakeBarsClient{}
	f := newAlpacaFetcher(c, AlpacaOptions{})
	f.now = func() time.Time { return now }

	if _, err := f.FetchBars(context.Background(), "X", now.AddDate(0, 0, -5), now); err != nil {
		t.Fatal(err)
	}
	if got := c.reqs[0].End; !got.Equal(now.Add(-16 * time.Minute)) {
		t.Errorf("End = %v, want capped to now-16m", got)
	}

	// A range entirely inside the blackout window is not requested.
	if _, err := f.FetchBars(context.Background(), "X", now.Add(-time.Minute), now); err != nil {
		t.Fatal(err)
	}
	if c.calls != 1 {
		t.Errorf("calls = %d, want 1", c.calls)
	}
}
