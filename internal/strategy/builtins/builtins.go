// Package builtins provides the strategy implementations that ship with
// edgelab.
package builtins

import (
	"edgelab/internal/strategy"
)

// All returns one instance of every built-in strategy.
func All() []strategy.Strategy {
	return []strategy.Strategy{
		MomentumBreakout{},
		MeanReversion{},
		RSIDivergence{},
		VolumeSpike{},
		GapFade{},
		BollingerSqueeze{},
	}
}

// NewRegistry returns a registry holding every built-in strategy.
func NewRegistry() *strategy.Registry {
	return strategy.NewRegistry(All()...)
}
