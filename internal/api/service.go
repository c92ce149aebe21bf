package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"edgelab/internal/backtest"
	"edgelab/internal/feed"
	"edgelab/internal/store"
	"edgelab/internal/strategy"
	"edgelab/internal/universe"
)

// Defaults applied to a BacktestRequest with empty fields.
const (
	DefaultUniverse = "meme_stocks"
	DefaultPeriod   = "2y"
)

// ErrBadRequest marks caller errors that are not covered by a more specific
// sentinel.
var ErrBadRequest = errors.New("bad request")

// StrategyInfo describes a registered strategy.
type StrategyInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Defaults    strategy.Params `json:"defaults"`
}

// BacktestRequest selects one strategy/universe/period run.
type BacktestRequest struct {
	Strategy      string          `json:"strategy"`
	Universe      string          `json:"universe"`
	Period        string          `json:"period"`
	Params        strategy.Params `json:"params,omitempty"`
	Save          bool            `json:"save"`
	IncludeTrades bool            `json:"include_trades"`
}

// BacktestResponse carries a finished run.
type BacktestResponse struct {
	RunID   string           `json:"run_id,omitempty"`
	Result  *backtest.Result `json:"result"`
	Summary string           `json:"summary"`
}

// Service is the transport-independent API surface shared by the HTTP and
// gRPC servers.
type Service struct {
	bt   *backtest.Backtester
	runs store.RunStore
	now  func() time.Time
	log  *slog.Logger
}

// NewService creates a Service. runs may be nil, in which case saving and
// run history are unavailable.
func NewService(bt *backtest.Backtester, runs store.RunStore) *Service {
	return &Service{
		bt:   bt,
		runs: runs,
		now:  time.Now,
		log:  slog.Default().With("component", "api"),
	}
}

// Strategies lists registered strategies in name order.
func (s *Service) Strategies() []StrategyInfo {
	reg := s.bt.Strategies()
	names := reg.List()
	out := make([]StrategyInfo, 0, len(names))
	for _, n := range names {
		st, _ := reg.Get(n)
		out = append(out, StrategyInfo{Name: n, Description: st.Description(), Defaults: st.Defaults()})
	}
	return out
}

// Universes lists universes in registration order.
func (s *Service) Universes() []universe.Universe {
	return s.bt.Universes().All()
}

// Backtest runs req and optionally persists the result.
func (s *Service) Backtest(ctx context.Context, req BacktestRequest) (*BacktestResponse, error) {
	if strings.TrimSpace(req.Strategy) == "" {
		return nil, fmt.Errorf("%w: strategy is required", ErrBadRequest)
	}
	if req.Universe == "" {
		req.Universe = DefaultUniverse
	}
	if req.Period == "" {
		req.Period = DefaultPeriod
	}
	if _, err := feed.ParsePeriod(req.Period, s.now()); err != nil {
		return nil, err
	}
	if req.Save && s.runs == nil {
		return nil, fmt.Errorf("%w: run history is not configured", ErrBadRequest)
	}

	res, err := s.bt.Run(ctx, req.Strategy, req.Universe, req.Period, req.Params)
	if err != nil {
		return nil, err
	}

	resp := &BacktestResponse{Summary: res.Summary()}
	if req.Save {
		id, err := s.runs.SaveRun(ctx, res)
		if err != nil {
			return nil, fmt.Errorf("saving run: %w", err)
		}
		resp.RunID = id
		s.log.Info("run saved", "id", id, "strategy", res.Strategy, "universe", res.Universe)
	}
	if !req.IncludeTrades {
		trimmed := *res
		trimmed.Trades = nil
		res = &trimmed
	}
	resp.Result = res
	return resp, nil
}

// Runs lists stored runs, newest first.
func (s *Service) Runs(ctx context.Context, limit int) ([]store.RunRecord, error) {
	if s.runs == nil {
		return []store.RunRecord{}, nil
	}
	runs, err := s.runs.ListRuns(ctx, limit)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []store.RunRecord{}
	}
	return runs, nil
}

// Run loads a stored run with its trades.
func (s *Service) Run(ctx context.Context, id string) (*backtest.Result, error) {
	if s.runs == nil {
		return nil, fmt.Errorf("run %s: %w", id, store.ErrNotFound)
	}
	return s.runs.GetRun(ctx, id)
}

// isClientError reports whether err was caused by the request.
func isClientError(err error) bool {
	return errors.Is(err, ErrBadRequest) ||
		errors.Is(err, strategy.ErrUnknownStrategy) ||
		errors.Is(err, strategy.ErrUnknownParam) ||
		errors.Is(err, universe.ErrUnknownUniverse) ||
		errors.Is(err, feed.ErrBadPeriod)
}
