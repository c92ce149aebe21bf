// Package universe holds the named symbol lists that backtests run over.
// A Registry is built once at startup and is read-only afterwards.
package universe

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownUniverse is returned when a universe key is not registered.
var ErrUnknownUniverse = errors.New("unknown universe")

// Universe is a named, ordered list of symbols with a rationale for why the
// group is worth testing together.
type Universe struct {
	Key       string   `yaml:"key" json:"key"`
	Name      string   `yaml:"name" json:"name"`
	Rationale string   `yaml:"why" json:"why"`
	Symbols   []string `yaml:"symbols" json:"symbols"`
}

// Registry is an immutable, ordered collection of universes.
type Registry struct {
	order []string
	byKey map[string]Universe
}

// NewRegistry validates and indexes the given universes, preserving their
// order for List and All.
func NewRegistry(universes ...Universe) (*Registry, error) {
	r := &Registry{byKey: make(map[string]Universe, len(universes))}
	for _, u := range universes {
		if u.Key == "" {
			return nil, fmt.Errorf("universe %q: empty key", u.Name)
		}
		if _, dup := r.byKey[u.Key]; dup {
			return nil, fmt.Errorf("universe %q: duplicate key", u.Key)
		}
		u.Symbols = normalize(u.Symbols)
		if len(u.Symbols) == 0 {
			return nil, fmt.Errorf("universe %q: no symbols", u.Key)
		}
		r.order = append(r.order, u.Key)
		r.byKey[u.Key] = u
	}
	return r, nil
}

// Get returns the universe for key. The second return value indicates whether
// it was found.
func (r *Registry) Get(key string) (Universe, bool) {
	u, ok := r.byKey[key]
	if !ok {
		return Universe{}, false
	}
	u.Symbols = slices.Clone(u.Symbols)
	return u, true
}

// Resolve is Get with an ErrUnknownUniverse error for missing keys.
func (r *Registry) Resolve(key string) (Universe, error) {
	u, ok := r.Get(key)
	if !ok {
		return Universe{}, fmt.Errorf("%w: %q (available: %s)", ErrUnknownUniverse, key, strings.Join(r.List(), ", "))
	}
	return u, nil
}

// List returns universe keys in registration order.
func (r *Registry) List() []string {
	return slices.Clone(r.order)
}

// All returns every universe in registration order.
func (r *Registry) All() []Universe {
	out := make([]Universe, 0, len(r.order))
	for _, k := range r.order {
		u, _ := r.Get(k)
		out = append(out, u)
	}
	return out
}

// Symbols returns the sorted, de-duplicated union of every universe.
func (r *Registry) Symbols() []string {
	seen := make(map[string]struct{})
	for _, u := range r.byKey {
		for _, s := range u.Symbols {
			seen[s] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// normalize upper-cases symbols and drops blanks and repeats, keeping order.
func normalize(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

type fileFormat struct {
	Universes []Universe `yaml:"universes"`
}

// LoadFile reads a YAML universe file of the form
//
//	universes:
//	  - key: meme_stocks
//	    name: Meme / Reddit Stocks
//	    why: ...
//	    symbols: [GME, AMC]
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading universe file: %w", err)
	}
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing universe file %s: %w", path, err)
	}
	if len(f.Universes) == 0 {
		return nil, fmt.Errorf("universe file %s: no universes defined", path)
	}
	return NewRegistry(f.Universes...)
}

// Load returns the registry from path, or the default registry when path is
// empty.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}
