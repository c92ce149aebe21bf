// Command edgelab backtests the built-in strategies over the configured
// universes and prints whether any of them show an edge.
//
// Usage:
//
//	edgelab --all
//	edgelab --strategy momentum_breakout --universe meme_stocks --period 2y
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"edgelab/internal/app"
)

func main() {
	var opts options
	flag.StringVar(&opts.strategy, "strategy", "", "strategy to test (default: run everything)")
	flag.StringVar(&opts.strategy, "s", "", "shorthand for -strategy")
	flag.StringVar(&opts.universe, "universe", "meme_stocks", "market universe")
	flag.StringVar(&opts.universe, "u", "meme_stocks", "shorthand for -universe")
	flag.StringVar(&opts.period, "period", "", "period label such as 6mo, 2y, ytd (default from config)")
	flag.StringVar(&opts.period, "p", "", "shorthand for -period")
	flag.BoolVar(&opts.all, "all", false, "run every strategy over every universe")
	flag.StringVar(&opts.source, "source", "", "data source: alpaca, store, cache, postgres (default from config)")
	flag.StringVar(&opts.csvPath, "csv", "", "write all trades to this CSV file")
	flag.BoolVar(&opts.color, "color", false, "colorize the report")
	flag.BoolVar(&opts.save, "save", false, "store results in the run history database")
	flag.BoolVar(&opts.bySymbol, "by-symbol", false, "print per-symbol totals for a single run")
	flag.BoolVar(&opts.progress, "progress", true, "show a progress bar on stderr")
	cfgPath := flag.String("config", "", "config file (default $EDGELAB_CONFIG)")
	flag.Parse()

	cfg, err := app.ProvideConfig(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return
	}
	app.ProvideLogger(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Errors are reported as text; the exit status is always zero.
	if err := run(ctx, cfg, opts, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stdout, "Error:", err)
	}
}
