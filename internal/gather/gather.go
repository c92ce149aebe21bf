// Package gather backfills the local bar store from a remote provider so
// backtests can run offline.
package gather

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"edgelab/internal/feed"
	"edgelab/internal/store"
)

// Gatherer is the interface for data gathering processes.
type Gatherer interface {
	// Name returns the gatherer identifier.
	Name() string
	// Run gathers until done or ctx is cancelled.
	Run(ctx context.Context) error
}

// Options configures a UniverseGatherer.
type Options struct {
	// DataDir holds the progress files, normally the Parquet store root.
	DataDir string
	// Start is the first date fetched for a symbol with no stored bars.
	Start   time.Time
	Workers int
	// Force ignores the completion marker and the empty-symbol list.
	Force bool
}

// Stats summarises one gather run.
type Stats struct {
	Symbols  int
	Updated  int
	UpToDate int
	Empty    int
	Failed   int
	Bars     int64
}

// SymbolFunc is called once per finished symbol. It may be called from
// several goroutines at once.
type SymbolFunc func(symbol string, bars int, err error)

// UniverseGatherer fetches daily bars for a fixed symbol list and appends
// them to a BarStore. Each symbol is fetched from the day after its newest
// stored bar through the latest finished trading day.
type UniverseGatherer struct {
	symbols  []string
	remote   feed.Fetcher
	store    store.BarStore
	calendar Calendar
	opts     Options
	onSymbol SymbolFunc
	stats    Stats
	log      *slog.Logger
}

var _ Gatherer = (*UniverseGatherer)(nil)

// NewUniverseGatherer creates a gatherer for symbols. Duplicates and case
// differences are collapsed.
func NewUniverseGatherer(symbols []string, remote feed.Fetcher, s store.BarStore, cal Calendar, opts Options) *UniverseGatherer {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	seen := make(map[string]struct{}, len(symbols))
	var uniq []string
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		if _, ok := seen[sym]; ok {
			continue
		}
		seen[sym] = struct{}{}
		uniq = append(uniq, sym)
	}
	return &UniverseGatherer{
		symbols:  uniq,
		remote:   remote,
		store:    s,
		calendar: cal,
		opts:     opts,
		log:      slog.Default().With("component", "gather"),
	}
}

// Name implements Gatherer.
func (g *UniverseGatherer) Name() string { return "universe-daily" }

// OnSymbol installs a per-symbol callback.
func (g *UniverseGatherer) OnSymbol(fn SymbolFunc) { g.onSymbol = fn }

// Stats returns the counters of the last Run.
func (g *UniverseGatherer) Stats() Stats { return g.stats }

// Run implements Gatherer. Failures of single symbols are logged and
// counted; the run is marked complete only when none failed.
func (g *UniverseGatherer) Run(ctx context.Context) error {
	end, err := g.calendar.LatestFinishedTradingDay(ctx)
	if err != nil {
		return fmt.Errorf("determining end date: %w", err)
	}
	endStr := end.Format(time.DateOnly)

	prog, err := openProgress(filepath.Join(g.opts.DataDir, "daily"))
	if err != nil {
		return err
	}
	defer prog.close()

	last := prog.lastCompleted()
	if !g.opts.Force && last == endStr {
		g.log.Info("already complete", "end", endStr)
		g.stats = Stats{Symbols: len(g.symbols), UpToDate: len(g.symbols)}
		return nil
	}
	if g.opts.Force || (last != "" && last != endStr) {
		if err := prog.reset(); err != nil {
			return fmt.Errorf("resetting progress: %w", err)
		}
	}

	g.log.Info("gather starting", "symbols", len(g.symbols), "end", endStr, "workers", g.opts.Workers)
	started := time.Now()

	var updated, upToDate, empty, failed atomic.Int64
	var bars atomic.Int64

	sem := make(chan struct{}, g.opts.Workers)
	eg, ctx := errgroup.WithContext(ctx)
	for _, sym := range g.symbols {
		eg.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}
			defer func() { <-sem }()

			if prog.isEmpty(sym) {
				empty.Add(1)
				g.notify(sym, 0, nil)
				return nil
			}
			n, err := g.gatherSymbol(ctx, sym, end)
			switch {
			case ctx.Err() != nil:
				return ctx.Err()
			case err != nil:
				failed.Add(1)
				g.log.Warn("symbol failed", "symbol", sym, "error", err)
			case n < 0:
				upToDate.Add(1)
			case n == 0:
				empty.Add(1)
				if err := prog.markEmpty(sym); err != nil {
					g.log.Error("recording empty symbol", "symbol", sym, "error", err)
				}
			default:
				updated.Add(1)
				bars.Add(int64(n))
			}
			g.notify(sym, max(n, 0), err)
			return nil
		})
	}
	err = eg.Wait()

	g.stats = Stats{
		Symbols:  len(g.symbols),
		Updated:  int(updated.Load()),
		UpToDate: int(upToDate.Load()),
		Empty:    int(empty.Load()),
		Failed:   int(failed.Load()),
		Bars:     bars.Load(),
	}
	if err != nil {
		return err
	}
	if g.stats.Failed == 0 {
		if err := prog.markCompleted(endStr); err != nil {
			return fmt.Errorf("marking completed: %w", err)
		}
	}

	g.log.Info("gather complete",
		"updated", g.stats.Updated,
		"up_to_date", g.stats.UpToDate,
		"empty", g.stats.Empty,
		"failed", g.stats.Failed,
		"bars", g.stats.Bars,
		"elapsed", time.Since(started).Round(time.Second),
	)
	return nil
}

// gatherSymbol fetches and stores the missing tail of one symbol. It
// returns -1 when the symbol is already current.
func (g *UniverseGatherer) gatherSymbol(ctx context.Context, symbol string, end time.Time) (int, error) {
	lastBar, err := g.store.LastBarTime(ctx, symbol)
	if err != nil {
		return 0, fmt.Errorf("reading last bar: %w", err)
	}
	start := g.opts.Start
	if !lastBar.IsZero() {
		start = lastBar.AddDate(0, 0, 1)
	}
	if start.After(end) {
		return -1, nil
	}

	fetched, err := g.remote.FetchBars(ctx, symbol, start, endOfDay(end))
	if err != nil {
		return 0, err
	}
	if len(fetched) == 0 {
		if !lastBar.IsZero() {
			return -1, nil
		}
		return 0, nil
	}
	if err := g.store.WriteBars(ctx, fetched); err != nil {
		return 0, fmt.Errorf("writing bars: %w", err)
	}
	g.log.Debug("symbol updated", "symbol", symbol, "bars", len(fetched), "from", start.Format(time.DateOnly))
	return len(fetched), nil
}

func (g *UniverseGatherer) notify(symbol string, bars int, err error) {
	if g.onSymbol != nil {
		g.onSymbol(symbol, bars, err)
	}
}

func endOfDay(d time.Time) time.Time {
	return d.AddDate(0, 0, 1).Add(-time.Second)
}
