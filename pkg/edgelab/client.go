// Package edgelab is a Go client for the edgelab-server HTTP API.
package edgelab

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"edgelab/internal/api"
	"edgelab/internal/backtest"
	"edgelab/internal/store"
	"edgelab/internal/universe"
)

// Wire types shared with the server.
type (
	StrategyInfo     = api.StrategyInfo
	BacktestRequest  = api.BacktestRequest
	BacktestResponse = api.BacktestResponse
	Result           = backtest.Result
	RunRecord        = store.RunRecord
	Universe         = universe.Universe
)

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("edgelab: %d %s", e.StatusCode, e.Message)
}

// Client provides a Go SDK for the edgelab-server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new edgelab API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	var out map[string]string
	return c.get(ctx, "/api/health", nil, &out)
}

// Strategies lists the server's strategies.
func (c *Client) Strategies(ctx context.Context) ([]StrategyInfo, error) {
	var out []StrategyInfo
	if err := c.get(ctx, "/api/strategies", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Universes lists the server's universes.
func (c *Client) Universes(ctx context.Context) ([]Universe, error) {
	var out []Universe
	if err := c.get(ctx, "/api/universes", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Backtest runs one backtest on the server.
func (c *Client) Backtest(ctx context.Context, req BacktestRequest) (*BacktestResponse, error) {
	q := url.Values{}
	q.Set("strategy", req.Strategy)
	if req.Universe != "" {
		q.Set("universe", req.Universe)
	}
	if req.Period != "" {
		q.Set("period", req.Period)
	}
	if req.Save {
		q.Set("save", "true")
	}
	if req.IncludeTrades {
		q.Set("trades", "true")
	}
	for k, v := range req.Params {
		q.Set("p."+k, strconv.FormatFloat(v, 'f', -1, 64))
	}
	var out BacktestResponse
	if err := c.get(ctx, "/api/backtest", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Runs lists stored runs, newest first. A limit of 0 uses the server
// default.
func (c *Client) Runs(ctx context.Context, limit int) ([]RunRecord, error) {
	var q url.Values
	if limit > 0 {
		q = url.Values{"limit": {strconv.Itoa(limit)}}
	}
	var out []RunRecord
	if err := c.get(ctx, "/api/runs", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Run loads one stored run with its trades.
func (c *Client) Run(ctx context.Context, id string) (*Result, error) {
	var out Result
	if err := c.get(ctx, "/api/runs/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, v any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}
