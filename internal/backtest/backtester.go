// Package backtest replays strategy signals over historical price series,
// simulates the resulting trades and aggregates them into performance
// metrics. The Backtester fans the per-symbol work of a universe out over a
// bounded worker pool and merges the trade logs at a single point.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"edgelab/internal/domain"
	"edgelab/internal/strategy"
	"edgelab/internal/universe"
)

// DefaultMinHistoryBars is the shortest fetched history that is simulated.
// Shorter series are skipped as "no data".
const DefaultMinHistoryBars = 60

// SeriesProvider supplies the daily history of one symbol over a period
// label such as "2y". A symbol without data returns an empty series and a
// nil error.
type SeriesProvider interface {
	Series(ctx context.Context, symbol, period string) (domain.PriceSeries, error)
}

// ProgressFunc is called once per finished symbol. It may be called from
// several goroutines at once.
type ProgressFunc func(strategy, symbol string, outcome SymbolOutcome)

// SymbolOutcome is the per-symbol result of a batch: either trades, a skip
// for missing or short history, or an error.
type SymbolOutcome struct {
	Symbol  string
	Bars    int
	Trades  []domain.Trade
	Skipped bool
	Err     error
}

// Config controls simulation and fan-out.
type Config struct {
	InitialCapital  float64
	PositionSizePct float64
	Workers         int
	MinHistoryBars  int
	Edge            EdgeCriteria
	// StrategyParams overrides defaults per strategy name.
	StrategyParams map[string]strategy.Params
}

// DefaultConfig returns the standard simulation settings.
func DefaultConfig() Config {
	return Config{
		InitialCapital:  DefaultInitialCapital,
		PositionSizePct: DefaultPositionSizePct,
		Workers:         runtime.NumCPU(),
		MinHistoryBars:  DefaultMinHistoryBars,
		Edge:            DefaultEdgeCriteria(),
	}
}

// Backtester runs strategies over universes.
type Backtester struct {
	strategies *strategy.Registry
	universes  *universe.Registry
	provider   SeriesProvider
	cfg        Config
	sizer      Sizer
	progress   ProgressFunc
	log        *slog.Logger
}

// NewBacktester creates a Backtester. Zero fields in cfg take their defaults.
func NewBacktester(strategies *strategy.Registry, universes *universe.Registry, provider SeriesProvider, cfg Config) *Backtester {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.MinHistoryBars < 0 {
		cfg.MinHistoryBars = 0
	}
	if cfg.Edge == (EdgeCriteria{}) {
		cfg.Edge = def.Edge
	}
	return &Backtester{
		strategies: strategies,
		universes:  universes,
		provider:   provider,
		cfg:        cfg,
		sizer:      NewSizer(cfg.InitialCapital, cfg.PositionSizePct),
		log:        slog.Default().With("component", "backtester"),
	}
}

// SetProgress installs a per-symbol progress callback.
func (bt *Backtester) SetProgress(fn ProgressFunc) {
	bt.progress = fn
}

// Strategies returns the strategy registry.
func (bt *Backtester) Strategies() *strategy.Registry { return bt.strategies }

// Universes returns the universe registry.
func (bt *Backtester) Universes() *universe.Registry { return bt.universes }

// EdgeCriteria returns the criteria applied to results.
func (bt *Backtester) EdgeCriteria() EdgeCriteria { return bt.cfg.Edge }

// ---------------------------------------------------------------------------
// Batch runs
// ---------------------------------------------------------------------------

// Run backtests one strategy over every symbol of one universe. Unknown
// strategy or universe names and invalid params are returned as errors;
// failures of individual symbols are recorded on the result instead.
func (bt *Backtester) Run(ctx context.Context, strategyName, universeKey, period string, params strategy.Params) (*Result, error) {
	s, err := bt.strategies.Resolve(strategyName)
	if err != nil {
		return nil, err
	}
	u, err := bt.universes.Resolve(universeKey)
	if err != nil {
		return nil, err
	}
	if err := strategy.Validate(s, params); err != nil {
		return nil, err
	}
	if err := strategy.Validate(s, bt.cfg.StrategyParams[s.Name()]); err != nil {
		return nil, fmt.Errorf("configured params: %w", err)
	}
	merged := s.Defaults().Merge(bt.cfg.StrategyParams[s.Name()]).Merge(params)

	started := time.Now()
	outcomes, err := bt.runSymbols(ctx, s, merged, u.Symbols, period)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Strategy:  s.Name(),
		Universe:  u.Key,
		Period:    period,
		Params:    merged,
		StartedAt: started,
	}
	var trades []domain.Trade
	for _, o := range outcomes {
		switch {
		case o.Err != nil:
			res.SymbolsFailed++
			res.Failures = append(res.Failures, SymbolFailure{Symbol: o.Symbol, Error: o.Err.Error()})
		case o.Skipped:
			res.SymbolsSkipped++
		default:
			res.SymbolsTested++
			trades = append(trades, o.Trades...)
		}
	}
	SortTrades(trades)
	res.Trades = trades
	res.Metrics = Aggregate(trades)
	res.Edge = res.HasEdge(bt.cfg.Edge)
	res.Elapsed = time.Since(started)

	bt.log.Info("backtest complete",
		"strategy", res.Strategy,
		"universe", res.Universe,
		"period", period,
		"trades", res.Metrics.TotalTrades,
		"tested", res.SymbolsTested,
		"skipped", res.SymbolsSkipped,
		"failed", res.SymbolsFailed,
		"edge", res.Edge,
		"elapsed", res.Elapsed.Round(time.Millisecond),
	)
	return res, nil
}

// RunAll backtests every registered strategy over one universe, in
// strategy name order.
func (bt *Backtester) RunAll(ctx context.Context, universeKey, period string) ([]*Result, error) {
	if _, err := bt.universes.Resolve(universeKey); err != nil {
		return nil, err
	}
	var results []*Result
	for _, name := range bt.strategies.List() {
		res, err := bt.Run(ctx, name, universeKey, period, nil)
		if err != nil {
			return results, fmt.Errorf("running %s on %s: %w", name, universeKey, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// RunEverything backtests every strategy over every universe.
func (bt *Backtester) RunEverything(ctx context.Context, period string) ([]*Result, error) {
	var results []*Result
	for _, key := range bt.universes.List() {
		rs, err := bt.RunAll(ctx, key, period)
		results = append(results, rs...)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// ---------------------------------------------------------------------------
// Per-symbol fan-out
// ---------------------------------------------------------------------------

// runSymbols simulates each symbol on a bounded pool. Each goroutine writes
// only its own slot of the outcome slice.
func (bt *Backtester) runSymbols(ctx context.Context, s strategy.Strategy, p strategy.Params, symbols []string, period string) ([]SymbolOutcome, error) {
	outcomes := make([]SymbolOutcome, len(symbols))
	sem := make(chan struct{}, bt.cfg.Workers)

	g, gctx := errgroup.WithContext(ctx)
	for i, sym := range symbols {
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			outcomes[i] = bt.runSymbol(gctx, s, p, sym, period)
			if bt.progress != nil {
				bt.progress(s.Name(), sym, outcomes[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// runSymbol fetches and simulates one symbol. Panics are converted into the
// symbol's error so one bad series cannot take down the batch.
func (bt *Backtester) runSymbol(ctx context.Context, s strategy.Strategy, p strategy.Params, symbol, period string) (out SymbolOutcome) {
	out.Symbol = symbol
	log := bt.log.With("strategy", s.Name(), "symbol", symbol)

	defer func() {
		if r := recover(); r != nil {
			out.Trades = nil
			out.Err = fmt.Errorf("panic: %v", r)
			log.Error("symbol panicked", "error", out.Err)
		}
	}()

	if err := ctx.Err(); err != nil {
		out.Err = err
		return out
	}

	series, err := bt.provider.Series(ctx, symbol, period)
	if err != nil {
		out.Err = fmt.Errorf("fetching %s: %w", symbol, err)
		if !errors.Is(err, context.Canceled) {
			log.Warn("fetch failed", "error", err)
		}
		return out
	}
	out.Bars = series.Len()
	if series.Len() == 0 || series.Len() < bt.cfg.MinHistoryBars {
		out.Skipped = true
		log.Debug("insufficient history", "bars", series.Len(), "min", bt.cfg.MinHistoryBars)
		return out
	}

	trades, err := SimulateSeries(s, series, p, bt.sizer)
	if err != nil {
		out.Err = err
		log.Warn("simulation failed", "error", err)
		return out
	}
	out.Trades = trades
	log.Debug("symbol simulated", "bars", series.Len(), "trades", len(trades))
	return out
}
