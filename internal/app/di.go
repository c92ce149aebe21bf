// Package app builds edgelab's components from configuration. The Provide*
// functions are shared by the commands and used as Wire providers.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"edgelab/internal/api"
	"edgelab/internal/backtest"
	"edgelab/internal/config"
	"edgelab/internal/feed"
	"edgelab/internal/gather"
	"edgelab/internal/store"
	"edgelab/internal/strategy"
	"edgelab/internal/universe"
	"edgelab/internal/util"
)

// ProvideConfig loads the configuration from path, or from EDGELAB_CONFIG
// when path is empty.
func ProvideConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// ProvideLogger builds the logger described by cfg and installs it as the
// slog default.
func ProvideLogger(cfg *config.Config) *slog.Logger {
	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
	slog.SetDefault(logger)
	return logger
}

// ProvideUniverses loads the configured universe file, or the built-in
// universes.
func ProvideUniverses(cfg *config.Config) (*universe.Registry, error) {
	return universe.Load(cfg.Backtest.UniverseFile)
}

// ProvideAlpacaOptions maps the Alpaca config section to fetcher options.
func ProvideAlpacaOptions(cfg *config.Config) feed.AlpacaOptions {
	return feed.AlpacaOptions{
		APIKey:          cfg.Alpaca.APIKey,
		APISecret:       cfg.Alpaca.APISecret,
		DataURL:         cfg.Alpaca.DataURL,
		Feed:            cfg.Alpaca.Feed,
		RateLimitPerMin: cfg.Backtest.RateLimitPerMin,
	}
}

// ProvideFeed opens the configured series provider. The returned cleanup
// closes it.
func ProvideFeed(ctx context.Context, cfg *config.Config) (*feed.Provider, func(), error) {
	p, err := feed.Open(ctx, feed.Options{
		Source:      cfg.Backtest.Source,
		DataDir:     cfg.Storage.DataDir,
		Alpaca:      ProvideAlpacaOptions(cfg),
		PostgresURL: cfg.Postgres.URL,
	})
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := p.Close(); err != nil {
			slog.Warn("closing feed", "error", err)
		}
	}
	return p, cleanup, nil
}

// ProvideBacktestConfig maps the backtest, edge and strategies sections to
// backtest.Config.
func ProvideBacktestConfig(cfg *config.Config) backtest.Config {
	params := make(map[string]strategy.Params, len(cfg.Strategies))
	for name, p := range cfg.Strategies {
		params[name] = strategy.Params(p)
	}
	return backtest.Config{
		InitialCapital:  cfg.Backtest.InitialCapital,
		PositionSizePct: cfg.Backtest.PositionSizePct,
		Workers:         cfg.Backtest.Workers,
		MinHistoryBars:  cfg.Backtest.MinHistoryBars,
		Edge: backtest.EdgeCriteria{
			MinProfitFactor: cfg.Edge.MinProfitFactor,
			MinWinRate:      cfg.Edge.MinWinRate,
			MinTrades:       cfg.Edge.MinTrades,
		},
		StrategyParams: params,
	}
}

// ProvideRunStore opens the SQLite run history, creating its directory.
func ProvideRunStore(cfg *config.Config) (*store.SQLiteStore, func(), error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.SQLitePath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating sqlite dir: %w", err)
	}
	s, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening run store: %w", err)
	}
	cleanup := func() {
		if err := s.Close(); err != nil {
			slog.Warn("closing run store", "error", err)
		}
	}
	return s, cleanup, nil
}

// ProvideServer creates the API server on the configured addresses. A zero
// gRPC port disables gRPC.
func ProvideServer(cfg *config.Config, svc *api.Service) *api.Server {
	grpcAddr := ""
	if cfg.Server.GRPCPort > 0 {
		grpcAddr = cfg.Server.GRPCAddr()
	}
	return api.NewServer(svc, cfg.Server.Addr(), grpcAddr)
}

// ProvideGatherer builds a gatherer that backfills every symbol of unis from
// Alpaca into the Parquet store. Without trading API credentials the end date
// falls back to the previous weekday. force reruns symbols already marked
// empty or complete for the current end date.
func ProvideGatherer(cfg *config.Config, unis *universe.Registry, force bool) (*gather.UniverseGatherer, error) {
	start, err := time.Parse(time.DateOnly, cfg.Backtest.GatherStart)
	if err != nil {
		return nil, fmt.Errorf("parsing gather_start %q: %w", cfg.Backtest.GatherStart, err)
	}

	var cal gather.Calendar = gather.WeekdayCalendar{}
	if cfg.Alpaca.APIKey != "" && cfg.Alpaca.BaseURL != "" {
		ac, err := gather.NewAlpacaCalendar(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL)
		if err != nil {
			return nil, err
		}
		cal = ac
	}

	return gather.NewUniverseGatherer(
		unis.Symbols(),
		feed.NewAlpacaFetcher(ProvideAlpacaOptions(cfg)),
		store.NewParquetStore(cfg.Storage.DataDir),
		cal,
		gather.Options{
			DataDir: cfg.Storage.DataDir,
			Start:   start,
			Workers: cfg.Backtest.Workers,
			Force:   force,
		},
	), nil
}
