package feed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"edgelab/internal/domain"
	"edgelab/internal/util"
)

// Compile-time interface check.
var _ Fetcher = (*AlpacaFetcher)(nil)

// barsClient is the subset of *marketdata.Client used here.
type barsClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// AlpacaOptions configures an AlpacaFetcher.
type AlpacaOptions struct {
	APIKey          string
	APISecret       string
	DataURL         string
	Feed            string // "sip" or "iex"
	RateLimitPerMin int
}

// AlpacaFetcher loads split- and dividend-adjusted daily bars from the
// Alpaca market-data API.
type AlpacaFetcher struct {
	client   barsClient
	feed     string
	limiter  *util.RateLimiter
	attempts int
	backoff  time.Duration
	now      func() time.Time
	log      *slog.Logger
}

// NewAlpacaFetcher creates an AlpacaFetcher with the given credentials.
func NewAlpacaFetcher(o AlpacaOptions) *AlpacaFetcher {
	opts := marketdata.ClientOpts{
		APIKey:    o.APIKey,
		APISecret: o.APISecret,
	}
	if o.DataURL != "" {
		opts.BaseURL = o.DataURL
	}
	return newAlpacaFetcher(marketdata.NewClient(opts), o)
}

func newAlpacaFetcher(c barsClient, o AlpacaOptions) *AlpacaFetcher {
	feed := strings.ToLower(o.Feed)
	if feed == "" {
		feed = "sip"
	}
	return &AlpacaFetcher{
		client:   c,
		feed:     feed,
		limiter:  util.NewRateLimiter(o.RateLimitPerMin),
		attempts: 3,
		backoff:  time.Second,
		now:      time.Now,
		log:      slog.Default().With("component", "feed.alpaca"),
	}
}

// FetchBars requests daily bars for symbol within [start, end], retrying
// transient failures with exponential backoff.
func (f *AlpacaFetcher) FetchBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	// The SIP feed rejects queries for the most recent 15 minutes on
	// non-subscribed accounts.
	if f.feed == "sip" {
		end = minTime(end, f.now().Add(-16*time.Minute))
	}
	if !end.After(start) {
		return nil, nil
	}

	req := marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Start:      start,
		End:        end,
		Adjustment: marketdata.All,
		Feed:       marketdata.Feed(f.feed),
	}

	var raw []marketdata.Bar
	err := util.Retry(ctx, f.attempts, f.backoff, func() error {
		if err := f.limiter.Wait(ctx); err != nil {
			return util.Permanent(err)
		}
		var err error
		raw, err = f.client.GetBars(symbol, req)
		if err != nil {
			f.log.Debug("GetBars failed", "symbol", symbol, "error", err)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("GetBars %s: %w", symbol, err)
	}

	bars := make([]domain.Bar, 0, len(raw))
	for _, ab := range raw {
		bars = append(bars, domain.Bar{
			Symbol:     strings.ToUpper(symbol),
			Timestamp:  ab.Timestamp.UTC(),
			Open:       ab.Open,
			High:       ab.High,
			Low:        ab.Low,
			Close:      ab.Close,
			Volume:     int64(ab.Volume),
			TradeCount: int64(ab.TradeCount),
			VWAP:       ab.VWAP,
		})
	}
	f.log.Debug("fetched bars", "symbol", symbol, "bars", len(bars))
	return bars, nil
}

func minTime(a, b time.Time) time.Time {
	if b.Before(a) {
		return b
	}
	return a
}
