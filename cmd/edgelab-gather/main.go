// Command edgelab-gather backfills daily bars for every universe symbol from
// Alpaca into the local Parquet store, so backtests can run with
// -source store.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"

	"edgelab/internal/app"
)

func main() {
	cfgPath := flag.String("config", "", "config file (default $EDGELAB_CONFIG)")
	force := flag.Bool("force", false, "retry symbols already marked empty or complete")
	quiet := flag.Bool("quiet", false, "hide the progress bar")
	flag.Parse()

	cfg, err := app.ProvideConfig(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	app.ProvideLogger(cfg)

	unis, err := app.ProvideUniverses(cfg)
	if err != nil {
		log.Fatalf("failed to load universes: %v", err)
	}
	g, err := app.ProvideGatherer(cfg, unis, *force)
	if err != nil {
		log.Fatalf("failed to create gatherer: %v", err)
	}

	if !*quiet {
		bar := progressbar.NewOptions(len(unis.Symbols()),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("Gathering..."),
			progressbar.OptionShowCount(),
			progressbar.OptionSetElapsedTime(true),
		)
		defer bar.Finish()
		g.OnSymbol(func(_ string, _ int, _ error) { bar.Add(1) })
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("starting edgelab-gather", "dataDir", cfg.Storage.DataDir, "symbols", len(unis.Symbols()))
	if err := g.Run(ctx); err != nil {
		log.Fatalf("gather error: %v", err)
	}
	st := g.Stats()
	slog.Info("gather finished",
		"updated", st.Updated,
		"up_to_date", st.UpToDate,
		"empty", st.Empty,
		"failed", st.Failed,
		"bars", st.Bars,
	)
}
