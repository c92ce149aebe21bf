package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"edgelab/internal/api"
	"edgelab/internal/backtest"
	"edgelab/internal/report"
	"edgelab/pkg/edgelab"
)

const version = "0.2.0"

// backend is the subset of the API reachable over both HTTP and gRPC.
type backend interface {
	Strategies(ctx context.Context) ([]api.StrategyInfo, error)
	Universes(ctx context.Context) ([]edgelab.Universe, error)
	Backtest(ctx context.Context, req api.BacktestRequest) (*api.BacktestResponse, error)
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: edgelab-cli [options] <command> [args]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  version                     Print the CLI version\n")
	fmt.Fprintf(os.Stderr, "  status                      Check edgelab-server health\n")
	fmt.Fprintf(os.Stderr, "  strategies                  List strategies and defaults\n")
	fmt.Fprintf(os.Stderr, "  universes                   List universes\n")
	fmt.Fprintf(os.Stderr, "  backtest <strategy> [k=v]   Run a backtest (k=v overrides params)\n")
	fmt.Fprintf(os.Stderr, "  runs                        List stored runs\n")
	fmt.Fprintf(os.Stderr, "  run <id>                    Show a stored run\n")
	fmt.Fprintf(os.Stderr, "\nOptions:\n")
	flag.PrintDefaults()
}

func main() {
	server := flag.String("server", envOr("EDGELAB_SERVER", "http://127.0.0.1:8080"), "edgelab-server base URL")
	grpcAddr := flag.String("grpc", "", "use gRPC at this address for strategies, universes and backtest")
	universeKey := flag.String("universe", "", "universe for backtest (server default meme_stocks)")
	period := flag.String("period", "", "period for backtest (server default 2y)")
	save := flag.Bool("save", false, "store the backtest on the server")
	limit := flag.Int("limit", 20, "number of runs to list")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	client := edgelab.NewClient(*server)
	var be backend = client
	if *grpcAddr != "" {
		gc, err := api.DialGRPC(*grpcAddr)
		if err != nil {
			fatal(err)
		}
		defer gc.Close()
		be = gc
	}

	ctx := context.Background()
	args := flag.Args()
	var err error
	switch args[0] {
	case "version":
		fmt.Printf("edgelab-cli %s\n", version)
	case "status":
		err = client.Health(ctx)
		if err == nil {
			fmt.Println("ok")
		}
	case "strategies":
		err = listStrategies(ctx, be, os.Stdout)
	case "universes":
		err = listUniverses(ctx, be, os.Stdout)
	case "backtest":
		if len(args) < 2 {
			usage()
			os.Exit(1)
		}
		req := api.BacktestRequest{Strategy: args[1], Universe: *universeKey, Period: *period, Save: *save}
		req.Params, err = parseParams(args[2:])
		if err == nil {
			err = runBacktest(ctx, be, req, os.Stdout)
		}
	case "runs":
		err = listRuns(ctx, client, *limit, os.Stdout)
	case "run":
		if len(args) < 2 {
			usage()
			os.Exit(1)
		}
		err = showRun(ctx, client, args[1], os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		usage()
		os.Exit(1)
	}
	if err != nil {
		fatal(err)
	}
}

func listStrategies(ctx context.Context, be backend, out io.Writer) error {
	strategies, err := be.Strategies(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDESCRIPTION\tDEFAULTS")
	for _, s := range strategies {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Name, s.Description, formatParams(s.Defaults))
	}
	return tw.Flush()
}

func listUniverses(ctx context.Context, be backend, out io.Writer) error {
	unis, err := be.Universes(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tNAME\tSYMBOLS")
	for _, u := range unis {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", u.Key, u.Name, len(u.Symbols))
	}
	return tw.Flush()
}

func runBacktest(ctx context.Context, be backend, req api.BacktestRequest, out io.Writer) error {
	resp, err := be.Backtest(ctx, req)
	if err != nil {
		return err
	}
	w := report.NewWriter(out, false)
	w.Summary(resp.Result)
	w.Diagnostics(resp.Result)
	if resp.RunID != "" {
		fmt.Fprintf(out, "Saved as run %s\n", resp.RunID)
	}
	return nil
}

func listRuns(ctx context.Context, c *edgelab.Client, limit int, out io.Writer) error {
	runs, err := c.Runs(ctx, limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSTRATEGY\tUNIVERSE\tPERIOD\tTRADES\tPF\tEDGE")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%v\n",
			r.ID, r.StartedAt.Local().Format(time.DateTime), r.Strategy, r.Universe, r.Period,
			r.Metrics.TotalTrades, backtest.FormatProfitFactor(r.Metrics.ProfitFactor, 0), r.Edge)
	}
	return tw.Flush()
}

func showRun(ctx context.Context, c *edgelab.Client, id string, out io.Writer) error {
	res, err := c.Run(ctx, id)
	if err != nil {
		return err
	}
	w := report.NewWriter(out, false)
	w.Summary(res)
	w.Diagnostics(res)
	w.SymbolTable(res.Trades)
	return nil
}

// parseParams reads key=value strategy overrides.
func parseParams(args []string) (map[string]float64, error) {
	if len(args) == 0 {
		return nil, nil
	}
	params := make(map[string]float64, len(args))
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("parameter %q: want key=value", a)
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", k, err)
		}
		params[k] = f
	}
	return params, nil
}

func formatParams(p map[string]float64) string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + strconv.FormatFloat(p[k], 'g', -1, 64)
	}
	return strings.Join(parts, " ")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
