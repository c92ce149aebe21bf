package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/schollz/progressbar/v3"

	"edgelab/internal/app"
	"edgelab/internal/backtest"
	"edgelab/internal/config"
	"edgelab/internal/domain"
	"edgelab/internal/report"
	"edgelab/internal/store"
	"edgelab/internal/strategy/builtins"
	"edgelab/internal/universe"
)

// Ranking settings for the full-run report.
const (
	topMinTrades = 10
	topN         = 10
)

type options struct {
	strategy string
	universe string
	period   string
	all      bool
	source   string
	csvPath  string
	color    bool
	save     bool
	bySymbol bool
	progress bool
}

// full reports whether every strategy and universe should run.
func (o options) full() bool {
	return o.all || o.strategy == ""
}

func run(ctx context.Context, cfg *config.Config, o options, stdout, stderr io.Writer) error {
	if o.source != "" {
		cfg.Backtest.Source = o.source
	}
	if o.period == "" {
		o.period = cfg.Backtest.Period
	}

	unis, err := app.ProvideUniverses(cfg)
	if err != nil {
		return err
	}
	provider, closeFeed, err := app.ProvideFeed(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFeed()

	strategies := builtins.NewRegistry()
	bt := backtest.NewBacktester(strategies, unis, provider, app.ProvideBacktestConfig(cfg))

	var runs store.RunStore
	if o.save {
		s, closeRuns, err := app.ProvideRunStore(cfg)
		if err != nil {
			return err
		}
		defer closeRuns()
		runs = s
	}

	if o.progress {
		total, err := symbolCount(o, unis, len(strategies.List()))
		if err != nil {
			return err
		}
		bar := newProgressBar(total, stderr)
		defer bar.Finish()
		bt.SetProgress(func(_, _ string, _ backtest.SymbolOutcome) { bar.Add(1) })
	}

	w := report.NewWriter(stdout, o.color)
	var results []*backtest.Result
	if o.full() {
		results, err = runFull(ctx, bt, unis, o.period, w)
	} else {
		var res *backtest.Result
		res, err = bt.Run(ctx, o.strategy, o.universe, o.period, nil)
		if res != nil {
			results = append(results, res)
			w.Summary(res)
			w.Diagnostics(res)
			if o.bySymbol {
				w.SymbolTable(res.Trades)
			}
		}
	}
	if err != nil {
		return err
	}

	if o.csvPath != "" {
		if err := report.WriteTradesCSVFile(o.csvPath, allTrades(results)); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Trades written to %s\n", o.csvPath)
	}
	if runs != nil {
		for _, r := range results {
			id, err := runs.SaveRun(ctx, r)
			if err != nil {
				return fmt.Errorf("saving %s/%s: %w", r.Strategy, r.Universe, err)
			}
			slog.Info("run saved", "id", id, "strategy", r.Strategy, "universe", r.Universe)
		}
	}
	return nil
}

// runFull backtests every strategy on every universe, printing one table per
// universe and the overall ranking.
func runFull(ctx context.Context, bt *backtest.Backtester, unis *universe.Registry, period string, w *report.Writer) ([]*backtest.Result, error) {
	w.Banner()
	var all []*backtest.Result
	for _, u := range unis.All() {
		results, err := bt.RunAll(ctx, u.Key, period)
		all = append(all, results...)
		if err != nil {
			return all, err
		}
		w.Universe(u, results)
	}
	w.TopStrategies(all, topMinTrades, topN)
	return all, nil
}

func symbolCount(o options, unis *universe.Registry, strategies int) (int, error) {
	if o.full() {
		n := 0
		for _, u := range unis.All() {
			n += len(u.Symbols)
		}
		return n * strategies, nil
	}
	u, err := unis.Resolve(o.universe)
	if err != nil {
		return 0, err
	}
	return len(u.Symbols), nil
}

func newProgressBar(total int, w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetDescription("Backtesting..."),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}

func allTrades(results []*backtest.Result) []domain.Trade {
	var out []domain.Trade
	for _, r := range results {
		out = append(out, r.Trades...)
	}
	return out
}
