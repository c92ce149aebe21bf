package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"edgelab/internal/backtest"
	"edgelab/internal/store"
)

// Source names accepted by Open.
const (
	SourceAlpaca   = "alpaca"
	SourceStore    = "store"
	SourceCache    = "cache"
	SourcePostgres = "postgres"
)

// ErrUnknownSource is returned by Open for an unrecognised source name.
var ErrUnknownSource = errors.New("unknown data source")

// Options selects and configures the series provider built by Open.
type Options struct {
	Source      string
	DataDir     string
	Alpaca      AlpacaOptions
	PostgresURL string
	MemoryTTL   time.Duration
}

// Provider is a SeriesProvider that may hold resources.
type Provider struct {
	*MemoryCache
	closers []func() error
}

// Close releases any connections held by the provider.
func (p *Provider) Close() error {
	var errs []error
	for _, c := range p.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// Open builds the series provider for o.Source:
//
//	alpaca    Alpaca market data, no persistence
//	store     local Parquet bars only (offline)
//	cache     local Parquet bars topped up from Alpaca
//	postgres  a Postgres/TimescaleDB candles table
//
// Every source is fronted by an in-memory TTL cache.
func Open(ctx context.Context, o Options) (*Provider, error) {
	var (
		fetcher Fetcher
		closers []func() error
	)
	switch strings.ToLower(o.Source) {
	case SourceAlpaca:
		fetcher = NewAlpacaFetcher(o.Alpaca)
	case SourceStore:
		fetcher = NewStoreFetcher(store.NewParquetStore(o.DataDir))
	case "", SourceCache:
		fetcher = NewCachingFetcher(NewAlpacaFetcher(o.Alpaca), store.NewParquetStore(o.DataDir))
	case SourcePostgres:
		pg, err := NewPostgresFetcher(ctx, o.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		fetcher = pg
		closers = append(closers, pg.Close)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, o.Source)
	}

	var sp backtest.SeriesProvider = NewSeriesSource(fetcher)
	return &Provider{MemoryCache: NewMemoryCache(sp, o.MemoryTTL), closers: closers}, nil
}
