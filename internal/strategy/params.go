package strategy

import (
	"maps"
	"math"
)

// Params holds numeric strategy options keyed by name, e.g. "hold_days".
type Params map[string]float64

// Merge returns a new Params with every key of p overridden by overrides.
// Neither input is modified.
func (p Params) Merge(overrides Params) Params {
	out := make(Params, len(p)+len(overrides))
	maps.Copy(out, p)
	maps.Copy(out, overrides)
	return out
}

// Float returns the value for key, or def when the key is absent.
func (p Params) Float(key string, def float64) float64 {
	if v, ok := p[key]; ok && !math.IsNaN(v) {
		return v
	}
	return def
}

// Int returns the value for key truncated to an int, or def when absent.
// Non-positive values fall back to def.
func (p Params) Int(key string, def int) int {
	v := int(p.Float(key, float64(def)))
	if v <= 0 {
		return def
	}
	return v
}
