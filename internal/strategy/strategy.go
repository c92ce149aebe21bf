// Package strategy defines the Strategy interface implemented by the signal
// generators and provides a Registry for looking them up by name.
package strategy

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"edgelab/internal/domain"
)

// ErrUnknownStrategy is returned when a strategy name is not registered.
var ErrUnknownStrategy = errors.New("unknown strategy")

// ErrUnknownParam is returned when a parameter key is not recognised by the
// strategy it is passed to.
var ErrUnknownParam = errors.New("unknown strategy parameter")

// Strategy turns a price series into a signal frame. Implementations must be
// pure: the same series and params always produce the same frame, and the
// series is never modified.
type Strategy interface {
	// Name returns the unique registry key, e.g. "momentum_breakout".
	Name() string

	// Description is a one-line human readable summary of the rule.
	Description() string

	// Defaults returns every recognised parameter with its default value.
	Defaults() Params

	// MinBars is the shortest history for which the rule can fire.
	MinBars(p Params) int

	// Generate computes one Signal per bar. Series shorter than MinBars
	// produce a frame with no entries.
	Generate(series domain.PriceSeries, p Params) Frame
}

// Validate rejects parameter keys the strategy does not recognise.
func Validate(s Strategy, p Params) error {
	defaults := s.Defaults()
	var unknown []string
	for k := range p {
		if _, ok := defaults[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return fmt.Errorf("%s: %w: %s", s.Name(), ErrUnknownParam, strings.Join(unknown, ", "))
}

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

// Registry holds a named collection of strategies. It is populated once at
// startup and only read afterwards.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry creates a Registry holding the given strategies.
func NewRegistry(strategies ...Strategy) *Registry {
	r := &Registry{strategies: make(map[string]Strategy, len(strategies))}
	for _, s := range strategies {
		r.Register(s)
	}
	return r
}

// Register adds a strategy keyed by its Name(), replacing any previous entry.
func (r *Registry) Register(s Strategy) {
	r.strategies[s.Name()] = s
}

// Get retrieves a strategy by name. The second return value indicates whether
// the strategy was found.
func (r *Registry) Get(name string) (Strategy, bool) {
	s, ok := r.strategies[name]
	return s, ok
}

// Resolve is Get with an ErrUnknownStrategy error for missing names.
func (r *Registry) Resolve(name string) (Strategy, error) {
	s, ok := r.strategies[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownStrategy, name, strings.Join(r.List(), ", "))
	}
	return s, nil
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
