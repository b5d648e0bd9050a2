// Package facts holds the read-only chart snapshot the engine classifies.
// A Chart is computed upstream (pillar derivation is out of scope here) and
// is consumed only through selector methods that fall back to neutral
// values, so a sparse or partially-populated snapshot never fails a run.
package facts

import "math"

// Canonical pillar positions.
const (
	PillarYear  = "year"
	PillarMonth = "month"
	PillarDay   = "day"
	PillarHour  = "hour"
)

// Pillar is one (stem, branch) pair of the four-pillar chart.
type Pillar struct {
	Stem   string `json:"stem"`
	Branch string `json:"branch"`
}

// Hit carries one detection into a derived sub-chart so penalty rules can
// condition on what was detected and where.
type Hit struct {
	Name      string   `json:"name"`
	Category  string   `json:"category,omitempty"`
	Target    string   `json:"target,omitempty"`
	Positions []string `json:"positions,omitempty"`
}

// Chart is one subject's fact base: pillars, prior derived pattern-signal
// groups, and the single pattern quality multiplier.
//
// All fields are optional; selectors supply neutral defaults for anything
// absent.
type Chart struct {
	Pillars    map[string]Pillar             `json:"pillars,omitempty"`
	Signals    map[string]map[string]float64 `json:"signals,omitempty"`
	Multiplier *float64                      `json:"quality_multiplier,omitempty"`

	// Hit is set only on derived sub-charts built by WithHit.
	Hit *Hit `json:"-"`
}

// Pillar returns the pillar at the named position and whether it is present.
func (c *Chart) Pillar(position string) (Pillar, bool) {
	if c == nil || c.Pillars == nil {
		return Pillar{}, false
	}
	p, ok := c.Pillars[position]
	return p, ok
}

// QualityMultiplier returns the chart-level pattern quality multiplier.
// Absent or non-finite values resolve to the neutral 0.5.
func (c *Chart) QualityMultiplier() float64 {
	if c == nil || c.Multiplier == nil {
		return 0.5
	}
	v := *c.Multiplier
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0.5
	}
	return v
}

// Signal returns one field of a named pattern-signal group, or 0 when the
// group or field is absent or the stored value is non-finite.
func (c *Chart) Signal(group, field string) float64 {
	if c == nil || c.Signals == nil {
		return 0
	}
	g, ok := c.Signals[group]
	if !ok {
		return 0
	}
	v, ok := g[field]
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// WithHit returns a shallow copy of the chart with the given hit attached.
// The copy shares pillar and signal maps with the original; callers must
// treat both as read-only.
func (c *Chart) WithHit(h Hit) *Chart {
	sub := Chart{Hit: &h}
	if c != nil {
		sub.Pillars = c.Pillars
		sub.Signals = c.Signals
		sub.Multiplier = c.Multiplier
	}
	return &sub
}
