//go:build wireinject
// +build wireinject

package main

import (
	"context"

	"github.com/google/wire"

	"edgelab/internal/api"
	"edgelab/internal/app"
	"edgelab/internal/backtest"
	"edgelab/internal/config"
	"edgelab/internal/feed"
	"edgelab/internal/store"
	"edgelab/internal/strategy/builtins"
)

// InitializeServer builds the API server and its dependencies from cfg.
// Caller must call the returned cleanup when done.
func InitializeServer(ctx context.Context, cfg *config.Config) (*api.Server, func(), error) {
	wire.Build(
		builtins.NewRegistry,
		app.ProvideUniverses,
		app.ProvideFeed,
		app.ProvideBacktestConfig,
		wire.Bind(new(backtest.SeriesProvider), new(*feed.Provider)),
		backtest.NewBacktester,
		app.ProvideRunStore,
		wire.Bind(new(store.RunStore), new(*store.SQLiteStore)),
		api.NewService,
		app.ProvideServer,
	)
	return nil, nil, nil
}
