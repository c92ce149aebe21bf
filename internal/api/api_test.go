package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"edgelab/internal/backtest"
	"edgelab/internal/domain"
	"edgelab/internal/store"
	"edgelab/internal/strategy/builtins"
	"edgelab/internal/universe"
)

type seriesMap map[string]domain.PriceSeries

func (m seriesMap) Series(_ context.Context, symbol, _ string) (domain.PriceSeries, error) {
	return m[symbol], nil
}

// breakoutSeries is 20 flat bars followed by a high-volume breakout that
// produces exactly one momentum_breakout trade.
func breakoutSeries(symbol string) domain.PriceSeries {
	const v = 1_000_000
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, 30)
	for i := range bars {
		p := 100.0
		if i >= 20 {
			p = 107
		}
		bars[i] = domain.Bar{Symbol: symbol, Timestamp: start.AddDate(0, 0, i), Open: p, High: p, Low: p, Close: p, Volume: v}
	}
	bars[20].Volume = 3 * v
	return domain.NewPriceSeries(symbol, bars)
}

func newTestService(t *testing.T, withRuns bool) *Service {
	t.Helper()
	unis, err := universe.NewRegistry(
		universe.Universe{Key: "meme_stocks", Name: "Meme Stocks", Rationale: "retail", Symbols: []string{"GME", "AMC"}},
		universe.Universe{Key: "mega_tech", Name: "Mega Tech", Symbols: []string{"AAPL"}},
	)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	provider := seriesMap{
		"GME":  breakoutSeries("GME"),
		"AMC":  breakoutSeries("AMC"),
		"AAPL": breakoutSeries("AAPL"),
	}
	cfg := backtest.DefaultConfig()
	cfg.Workers = 2
	cfg.MinHistoryBars = 0
	bt := backtest.NewBacktester(builtins.NewRegistry(), unis, provider, cfg)

	var runs store.RunStore
	if withRuns {
		db, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
		if err != nil {
			t.Fatalf("NewSQLiteStore: %v", err)
		}
		t.Cleanup(func() { db.Close() })
		runs = db
	}
	return NewService(bt, runs)
}

func getJSON(t *testing.T, srv *httptest.Server, path string, v any) int {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("GET %s content type = %q", path, ct)
	}
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decoding %s: %v", path, err)
		}
	}
	return resp.StatusCode
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

func TestServiceBacktestDefaults(t *testing.T) {
	svc := newTestService(t, false)
	resp, err := svc.Backtest(context.Background(), BacktestRequest{Strategy: "momentum_breakout"})
	if err != nil {
		t.Fatalf("Backtest: %v", err)
	}
	r := resp.Result
	if r.Universe != DefaultUniverse || r.Period != DefaultPeriod {
		t.Errorf("universe/period = %s/%s, want %s/%s", r.Universe, r.Period, DefaultUniverse, DefaultPeriod)
	}
	if r.Metrics.TotalTrades != 2 {
		t.Errorf("TotalTrades = %d, want 2", r.Metrics.TotalTrades)
	}
	if r.Trades != nil {
		t.Errorf("trades included without IncludeTrades: %d", len(r.Trades))
	}
	if resp.RunID != "" {
		t.Errorf("RunID = %q for unsaved run", resp.RunID)
	}
	if resp.Summary == "" {
		t.Error("empty summary")
	}
}

func TestServiceBacktestErrors(t *testing.T) {
	svc := newTestService(t, false)
	ctx := context.Background()

	tests := []struct {
		name string
		req  BacktestRequest
	}{
		{"missing strategy", BacktestRequest{}},
		{"unknown strategy", BacktestRequest{Strategy: "nope"}},
		{"unknown universe", BacktestRequest{Strategy: "gap_fade", Universe: "nope"}},
		{"bad period", BacktestRequest{Strategy: "gap_fade", Period: "3q"}},
		{"unknown param", BacktestRequest{Strategy: "gap_fade", Params: map[string]float64{"bogus": 1}}},
		{"save without store", BacktestRequest{Strategy: "gap_fade", Save: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Backtest(ctx, tt.req)
			if err == nil {
				t.Fatal("expected error")
			}
			if !isClientError(err) {
				t.Errorf("err = %v, want client error", err)
			}
		})
	}
}

func TestServiceSaveAndLoad(t *testing.T) {
	svc := newTestService(t, true)
	ctx := context.Background()

	resp, err := svc.Backtest(ctx, BacktestRequest{Strategy: "momentum_breakout", Universe: "mega_tech", Save: true, IncludeTrades: true})
	if err != nil {
		t.Fatalf("Backtest: %v", err)
	}
	if resp.RunID == "" {
		t.Fatal("RunID is empty")
	}
	if len(resp.Result.Trades) != 1 {
		t.Errorf("trades = %d, want 1", len(resp.Result.Trades))
	}

	runs, err := svc.Runs(ctx, 10)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != resp.RunID {
		t.Fatalf("Runs = %+v", runs)
	}

	got, err := svc.Run(ctx, resp.RunID)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got.Strategy != "momentum_breakout" || len(got.Trades) != 1 {
		t.Errorf("Run = %s with %d trades", got.Strategy, len(got.Trades))
	}

	if _, err := svc.Run(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Run(missing) err = %v, want ErrNotFound", err)
	}
}

func TestServiceRunsWithoutStore(t *testing.T) {
	svc := newTestService(t, false)
	runs, err := svc.Runs(context.Background(), 5)
	if err != nil || len(runs) != 0 {
		t.Errorf("Runs = %v, %v", runs, err)
	}
	if _, err := svc.Run(context.Background(), "x"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Run err = %v, want ErrNotFound", err)
	}
}

// ---------------------------------------------------------------------------
// HTTP
// ---------------------------------------------------------------------------

func TestHTTPListings(t *testing.T) {
	srv := httptest.NewServer(newTestService(t, false).Handler())
	defer srv.Close()

	var health map[string]string
	if code := getJSON(t, srv, "/api/health", &health); code != http.StatusOK || health["status"] != "ok" {
		t.Errorf("health = %d %v", code, health)
	}

	var strategies []StrategyInfo
	if code := getJSON(t, srv, "/api/strategies", &strategies); code != http.StatusOK {
		t.Fatalf("strategies status = %d", code)
	}
	if len(strategies) != 6 {
		t.Errorf("strategies = %d, want 6", len(strategies))
	}
	for i := 1; i < len(strategies); i++ {
		if strategies[i-1].Name >= strategies[i].Name {
			t.Errorf("strategies not sorted: %s before %s", strategies[i-1].Name, strategies[i].Name)
		}
	}

	var unis []universe.Universe
	if code := getJSON(t, srv, "/api/universes", &unis); code != http.StatusOK {
		t.Fatalf("universes status = %d", code)
	}
	if len(unis) != 2 || unis[0].Key != "meme_stocks" || unis[0].Rationale != "retail" {
		t.Errorf("universes = %+v", unis)
	}
}

func TestHTTPBacktest(t *testing.T) {
	srv := httptest.NewServer(newTestService(t, true).Handler())
	defer srv.Close()

	var resp BacktestResponse
	code := getJSON(t, srv, "/api/backtest?strategy=momentum_breakout&universe=meme_stocks&period=1y&save=true&trades=1&p.hold_days=3", &resp)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if resp.Result.Params["hold_days"] != 3 {
		t.Errorf("params = %v", resp.Result.Params)
	}
	if len(resp.Result.Trades) != 2 {
		t.Errorf("trades = %d, want 2", len(resp.Result.Trades))
	}
	for _, tr := range resp.Result.Trades {
		if tr.HoldDays != 3 {
			t.Errorf("%s hold = %d, want 3", tr.Symbol, tr.HoldDays)
		}
	}

	var runs []store.RunRecord
	if code := getJSON(t, srv, "/api/runs?limit=5", &runs); code != http.StatusOK || len(runs) != 1 {
		t.Fatalf("runs = %d %+v", code, runs)
	}
	var run backtest.Result
	if code := getJSON(t, srv, "/api/runs/"+resp.RunID, &run); code != http.StatusOK {
		t.Fatalf("run status = %d", code)
	}
	if run.Period != "1y" || len(run.Trades) != 2 {
		t.Errorf("run = %s with %d trades", run.Period, len(run.Trades))
	}
}

func TestHTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(newTestService(t, true).Handler())
	defer srv.Close()

	tests := []struct {
		path string
		want int
	}{
		{"/api/backtest", http.StatusBadRequest},
		{"/api/backtest?strategy=nope", http.StatusBadRequest},
		{"/api/backtest?strategy=gap_fade&period=abc", http.StatusBadRequest},
		{"/api/backtest?strategy=gap_fade&p.gap_pct=x", http.StatusBadRequest},
		{"/api/runs?limit=-1", http.StatusBadRequest},
		{"/api/runs/missing", http.StatusNotFound},
	}
	for _, tt := range tests {
		var body map[string]string
		if code := getJSON(t, srv, tt.path, &body); code != tt.want {
			t.Errorf("GET %s = %d, want %d", tt.path, code, tt.want)
		}
		if body["error"] == "" {
			t.Errorf("GET %s: missing error message", tt.path)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := httptest.NewServer(newTestService(t, false).Handler())
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/strategies", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q", got)
	}
}

// ---------------------------------------------------------------------------
// gRPC
// ---------------------------------------------------------------------------

func dialBufconn(t *testing.T, svc *Service) *GRPCClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	svc.RegisterGRPC(gs)
	go gs.Serve(lis)
	t.Cleanup(gs.Stop)

	c, err := DialGRPC("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("DialGRPC: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestGRPCRoundTrip(t *testing.T) {
	c := dialBufconn(t, newTestService(t, false))
	ctx := context.Background()

	strategies, err := c.Strategies(ctx)
	if err != nil {
		t.Fatalf("Strategies: %v", err)
	}
	if len(strategies) != 6 {
		t.Errorf("strategies = %d, want 6", len(strategies))
	}

	unis, err := c.Universes(ctx)
	if err != nil {
		t.Fatalf("Universes: %v", err)
	}
	if len(unis) != 2 || len(unis[0].Symbols) != 2 {
		t.Errorf("universes = %+v", unis)
	}

	resp, err := c.Backtest(ctx, BacktestRequest{Strategy: "momentum_breakout", IncludeTrades: true})
	if err != nil {
		t.Fatalf("Backtest: %v", err)
	}
	if resp.Result.Metrics.TotalTrades != 2 || len(resp.Result.Trades) != 2 {
		t.Errorf("result = %d trades, %d listed", resp.Result.Metrics.TotalTrades, len(resp.Result.Trades))
	}
	if resp.Result.Universe != DefaultUniverse {
		t.Errorf("universe = %s", resp.Result.Universe)
	}
}

func TestGRPCErrorCodes(t *testing.T) {
	c := dialBufconn(t, newTestService(t, false))
	_, err := c.Backtest(context.Background(), BacktestRequest{Strategy: "nope"})
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("code = %v, want InvalidArgument (err %v)", status.Code(err), err)
	}
}
