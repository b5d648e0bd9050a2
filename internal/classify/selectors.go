package classify

import (
	"strings"

	"gyeokguk/internal/competition"
	"gyeokguk/internal/facts"
)

// selectorFor resolves a competition method's signal selector name. Names
// are either the chart-level "quality_multiplier" or "<group>.<field>"
// into the chart's signal groups. Unknown shapes resolve to a constant 0,
// which the resolver treats as a missing signal.
func selectorFor(name string) competition.SignalSelector {
	if name == "quality_multiplier" {
		return func(c *facts.Chart) float64 { return c.QualityMultiplier() }
	}
	group, field, ok := strings.Cut(name, ".")
	if !ok || group == "" || field == "" {
		return func(*facts.Chart) float64 { return 0 }
	}
	return func(c *facts.Chart) float64 { return c.Signal(group, field) }
}
