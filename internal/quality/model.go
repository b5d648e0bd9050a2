package quality

import (
	"math"
	"slices"
)

// Model holds the effective quality parameters for one detection.
type Model struct {
	Enabled             bool               `json:"enabled"`
	Allow               []string           `json:"allow,omitempty"`
	Exclude             []string           `json:"exclude,omitempty"`
	Weights             map[string]float64 `json:"weights,omitempty"`
	Combine             Strategy           `json:"combine"`
	WeakThreshold       float64            `json:"weak_threshold"`
	InvalidateThreshold float64            `json:"invalidate_threshold"`
}

// Override is a partial model: nil fields inherit from the layer below.
// Weights merge per kind rather than wholesale.
type Override struct {
	Enabled             *bool
	Allow               []string
	Exclude             []string
	Weights             map[string]float64
	Combine             *Strategy
	WeakThreshold       *float64
	InvalidateThreshold *float64
}

// ModelSet is the full override stack: base model plus category-level and
// name-level partial overrides.
type ModelSet struct {
	Base       Model
	Categories map[string]Override
	Names      map[string]Override
}

// Resolved is the outcome of resolving the stack for one detection.
type Resolved struct {
	Model
	Apply bool
}

// Resolve merges base, category and name layers for one detection and
// decides whether the quality model applies to it. The name layer wins over
// the category layer on conflicting fields. Enablement is re-evaluated
// after each merge and AND-combined, so a layer can force-disable but never
// re-enable past a parent false. An explicit per-detection weight forces
// Apply to false unconditionally. Malformed override fields are ignored and
// the inherited value kept; resolution never fails.
func (ms *ModelSet) Resolve(name, category string, explicit *float64) Resolved {
	eff := ms.Base
	eff.Weights = cloneWeights(ms.Base.Weights)

	apply := layerApplies(&eff, name)
	if category != "" {
		if ov, ok := ms.Categories[category]; ok {
			mergeOverride(&eff, ov)
			apply = apply && layerApplies(&eff, name)
		}
	}
	if ov, ok := ms.Names[name]; ok {
		mergeOverride(&eff, ov)
		apply = apply && layerApplies(&eff, name)
	}
	if explicit != nil {
		apply = false
	}
	return Resolved{Model: eff, Apply: apply}
}

func layerApplies(m *Model, name string) bool {
	if !m.Enabled {
		return false
	}
	if slices.Contains(m.Exclude, name) {
		return false
	}
	return len(m.Allow) == 0 || slices.Contains(m.Allow, name)
}

func mergeOverride(eff *Model, ov Override) {
	if ov.Enabled != nil {
		eff.Enabled = *ov.Enabled
	}
	if ov.Allow != nil {
		eff.Allow = ov.Allow
	}
	if ov.Exclude != nil {
		eff.Exclude = ov.Exclude
	}
	for kind, w := range ov.Weights {
		if !inUnit(w) {
			continue
		}
		if eff.Weights == nil {
			eff.Weights = make(map[string]float64)
		}
		eff.Weights[kind] = w
	}
	if ov.Combine != nil && validStrategy(*ov.Combine) {
		eff.Combine = *ov.Combine
	}
	if ov.WeakThreshold != nil && inUnit(*ov.WeakThreshold) {
		eff.WeakThreshold = *ov.WeakThreshold
	}
	if ov.InvalidateThreshold != nil && inUnit(*ov.InvalidateThreshold) {
		eff.InvalidateThreshold = *ov.InvalidateThreshold
	}
}

func validStrategy(s Strategy) bool {
	return s == CombineMax || s == CombineSum || s == CombineUnion
}

func inUnit(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

func cloneWeights(w map[string]float64) map[string]float64 {
	if w == nil {
		return nil
	}
	out := make(map[string]float64, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}
