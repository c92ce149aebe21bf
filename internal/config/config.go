// Package config loads edgelab's YAML configuration, applies environment
// overrides and fills defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// EnvPath names the environment variable consulted when no path is given.
const EnvPath = "EDGELAB_CONFIG"

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for edgelab.
type Config struct {
	Storage    Storage                       `yaml:"storage"`
	Server     Server                        `yaml:"server"`
	Alpaca     Alpaca                        `yaml:"alpaca"`
	Postgres   Postgres                      `yaml:"postgres"`
	Logging    Logging                       `yaml:"logging"`
	Backtest   Backtest                      `yaml:"backtest"`
	Edge       Edge                          `yaml:"edge"`
	Strategies map[string]map[string]float64 `yaml:"strategies"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Server holds network listener configuration.
type Server struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	GRPCPort int    `yaml:"grpc_port"`
}

// Alpaca holds credentials and endpoints for the Alpaca APIs.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	DataURL   string `yaml:"data_url"`
	Feed      string `yaml:"feed"`
}

// Postgres configures the optional candle database.
type Postgres struct {
	URL string `yaml:"url"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Backtest controls data sourcing and simulation parameters.
type Backtest struct {
	Source          string  `yaml:"source"`
	Period          string  `yaml:"period"`
	InitialCapital  float64 `yaml:"initial_capital"`
	PositionSizePct float64 `yaml:"position_size_pct"`
	Workers         int     `yaml:"workers"`
	MinHistoryBars  int     `yaml:"min_history_bars"`
	RateLimitPerMin int     `yaml:"rate_limit_per_min"`
	UniverseFile    string  `yaml:"universe_file"`
	GatherStart     string  `yaml:"gather_start"`
}

// Edge holds the thresholds a result must clear to report an edge.
type Edge struct {
	MinProfitFactor float64 `yaml:"min_profit_factor"`
	MinWinRate      float64 `yaml:"min_win_rate"`
	MinTrades       int     `yaml:"min_trades"`
}

// Defaults returns the configuration used when no file is present.
func Defaults() *Config {
	return &Config{
		Storage: Storage{
			DataDir:    "data",
			SQLitePath: "data/edgelab.db",
		},
		Server: Server{
			Host:     "127.0.0.1",
			Port:     8080,
			GRPCPort: 9090,
		},
		Alpaca: Alpaca{
			BaseURL: "https://paper-api.alpaca.markets",
			Feed:    "sip",
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
		Backtest: Backtest{
			Source:          "cache",
			Period:          "2y",
			InitialCapital:  3000,
			PositionSizePct: 0.05,
			Workers:         8,
			MinHistoryBars:  60,
			RateLimitPerMin: 180,
			GatherStart:     "2015-01-01",
		},
		Edge: Edge{
			MinProfitFactor: 1.2,
			MinWinRate:      0.40,
			MinTrades:       10,
		},
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. An empty path falls back to $EDGELAB_CONFIG; a
// missing file leaves the defaults in place.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvPath)
	}

	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", path, err)
			}
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	b := c.Backtest
	switch {
	case b.InitialCapital <= 0:
		return fmt.Errorf("backtest.initial_capital must be positive, got %v", b.InitialCapital)
	case b.PositionSizePct <= 0 || b.PositionSizePct > 1:
		return fmt.Errorf("backtest.position_size_pct must be in (0, 1], got %v", b.PositionSizePct)
	case b.Workers < 0:
		return fmt.Errorf("backtest.workers must not be negative, got %d", b.Workers)
	case b.MinHistoryBars < 0:
		return fmt.Errorf("backtest.min_history_bars must not be negative, got %d", b.MinHistoryBars)
	case c.Edge.MinTrades < 0:
		return fmt.Errorf("edge.min_trades must not be negative, got %d", c.Edge.MinTrades)
	}
	return nil
}

// Addr returns the HTTP listen address.
func (s Server) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

// GRPCAddr returns the gRPC listen address.
func (s Server) GRPCAddr() string { return fmt.Sprintf("%s:%d", s.Host, s.GRPCPort) }

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) error {
	strs := []struct {
		env string
		dst *string
	}{
		{"DATA_DIR", &cfg.Storage.DataDir},
		{"SQLITE_PATH", &cfg.Storage.SQLitePath},
		{"ALPACA_API_KEY", &cfg.Alpaca.APIKey},
		{"ALPACA_API_SECRET", &cfg.Alpaca.APISecret},
		{"ALPACA_BASE_URL", &cfg.Alpaca.BaseURL},
		{"ALPACA_DATA_URL", &cfg.Alpaca.DataURL},
		{"ALPACA_FEED", &cfg.Alpaca.Feed},
		{"DATABASE_URL", &cfg.Postgres.URL},
		{"LOG_LEVEL", &cfg.Logging.Level},
		{"LOG_FORMAT", &cfg.Logging.Format},
		{"EDGELAB_SOURCE", &cfg.Backtest.Source},
		{"EDGELAB_PERIOD", &cfg.Backtest.Period},
		{"EDGELAB_UNIVERSE_FILE", &cfg.Backtest.UniverseFile},
		// Standard Alpaca env vars (highest priority, canonical names used by SDK).
		{"APCA_API_KEY_ID", &cfg.Alpaca.APIKey},
		{"APCA_API_SECRET_KEY", &cfg.Alpaca.APISecret},
	}
	for _, s := range strs {
		if v := os.Getenv(s.env); v != "" {
			*s.dst = v
		}
	}

	ints := []struct {
		env string
		dst *int
	}{
		{"EDGELAB_WORKERS", &cfg.Backtest.Workers},
		{"SERVER_PORT", &cfg.Server.Port},
		{"GRPC_PORT", &cfg.Server.GRPCPort},
	}
	for _, s := range ints {
		v := os.Getenv(s.env)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", s.env, err)
		}
		*s.dst = n
	}
	return nil
}
