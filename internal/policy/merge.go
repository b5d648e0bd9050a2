package policy

import (
	"math"

	"gyeokguk/internal/competition"
	"gyeokguk/internal/quality"
)

// Quality model defaults: enabled, take-max combination, no weighted kinds
// (so nothing is penalised until the config says so), weak below 0.5,
// invalidated only at 0.
const (
	defaultWeakThreshold       = 0.5
	defaultInvalidateThreshold = 0.0
)

// Competition defaults: opt-in, linear signal power, a 0.2 floor so losing
// methods keep a visible remnant, magnitude-conserving renormalisation on.
const (
	defaultPower   = 1.0
	defaultMinKeep = 0.2
)

// mergeQuality turns the raw quality section into a full ModelSet. Every
// field gets exactly one default and one override precedence; fields of the
// wrong type or out of range are dropped.
func mergeQuality(raw map[string]any) *quality.ModelSet {
	base := quality.Model{
		Enabled:             true,
		Combine:             quality.CombineMax,
		WeakThreshold:       defaultWeakThreshold,
		InvalidateThreshold: defaultInvalidateThreshold,
	}
	if b, ok := getBool(raw, "enabled"); ok {
		base.Enabled = b
	}
	if ss, ok := getStrings(raw, "allow"); ok {
		base.Allow = ss
	}
	if ss, ok := getStrings(raw, "exclude"); ok {
		base.Exclude = ss
	}
	if ws, ok := getWeights(raw, "weights"); ok {
		base.Weights = ws
	}
	if st, ok := getStrategy(raw, "combine"); ok {
		base.Combine = st
	}
	if f, ok := getUnitFloat(raw, "weak_threshold"); ok {
		base.WeakThreshold = f
	}
	if f, ok := getUnitFloat(raw, "invalidate_threshold"); ok {
		base.InvalidateThreshold = f
	}

	return &quality.ModelSet{
		Base:       base,
		Categories: getOverrides(raw, "categories"),
		Names:      getOverrides(raw, "names"),
	}
}

func getOverrides(raw map[string]any, key string) map[string]quality.Override {
	section, ok := raw[key].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]quality.Override, len(section))
	for name, v := range section {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		var ov quality.Override
		if b, ok := getBool(m, "enabled"); ok {
			ov.Enabled = &b
		}
		if ss, ok := getStrings(m, "allow"); ok {
			ov.Allow = ss
		}
		if ss, ok := getStrings(m, "exclude"); ok {
			ov.Exclude = ss
		}
		if ws, ok := getWeights(m, "weights"); ok {
			ov.Weights = ws
		}
		if st, ok := getStrategy(m, "combine"); ok {
			ov.Combine = &st
		}
		if f, ok := getUnitFloat(m, "weak_threshold"); ok {
			ov.WeakThreshold = &f
		}
		if f, ok := getUnitFloat(m, "invalidate_threshold"); ok {
			ov.InvalidateThreshold = &f
		}
		out[name] = ov
	}
	return out
}

// mergeCompetition turns the raw competition section into a full policy.
// An absent section yields a disabled policy; a present one is enabled
// unless it says otherwise.
func mergeCompetition(raw map[string]any) competition.Policy {
	p := competition.Policy{
		Power:       defaultPower,
		MinKeep:     defaultMinKeep,
		Renormalize: true,
	}
	if raw == nil {
		return p
	}
	p.Enabled = true
	if b, ok := getBool(raw, "enabled"); ok {
		p.Enabled = b
	}
	if f, ok := getFloat(raw, "power"); ok && f > 0 {
		p.Power = f
	}
	if f, ok := getUnitFloat(raw, "min_keep"); ok {
		p.MinKeep = f
	}
	if b, ok := getBool(raw, "renormalize"); ok {
		p.Renormalize = b
	}

	methods, ok := raw["methods"].([]any)
	if !ok {
		return p
	}
	for _, mv := range methods {
		m, ok := mv.(map[string]any)
		if !ok {
			continue
		}
		name, _ := m["name"].(string)
		if name == "" {
			continue
		}
		method := competition.Method{Name: name}
		if ss, ok := getStrings(m, "include"); ok {
			method.Include = ss
		}
		if ss, ok := getStrings(m, "include_prefixes"); ok {
			method.IncludePrefixes = ss
		}
		if ss, ok := getStrings(m, "exclude"); ok {
			method.Exclude = ss
		}
		if ss, ok := getStrings(m, "exclude_prefixes"); ok {
			method.ExcludePrefixes = ss
		}
		if s, ok := m["signal"].(string); ok {
			method.Signal = s
		}
		p.Methods = append(p.Methods, method)
	}
	return p
}

// --- tolerant field getters ---

func getBool(m map[string]any, key string) (bool, bool) {
	b, ok := m[key].(bool)
	return b, ok
}

func getFloat(m map[string]any, key string) (float64, bool) {
	return toFloat(m[key])
}

// toFloat coerces the numeric types the YAML decoder produces: float64,
// int, and the wider int64/uint64 it falls back to for large literals.
func toFloat(v any) (float64, bool) {
	switch f := v.(type) {
	case float64:
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	case int:
		return float64(f), true
	case int64:
		return float64(f), true
	case uint64:
		return float64(f), true
	}
	return 0, false
}

func getUnitFloat(m map[string]any, key string) (float64, bool) {
	f, ok := getFloat(m, key)
	if !ok || f < 0 || f > 1 {
		return 0, false
	}
	return f, true
}

func getStrings(m map[string]any, key string) ([]string, bool) {
	vs, ok := m[key].([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out, true
}

func getWeights(m map[string]any, key string) (map[string]float64, bool) {
	vs, ok := m[key].(map[string]any)
	if !ok {
		return nil, false
	}
	out := make(map[string]float64, len(vs))
	for kind, v := range vs {
		f, ok := toFloat(v)
		if !ok || f < 0 || f > 1 {
			continue
		}
		out[kind] = f
	}
	return out, true
}

func getStrategy(m map[string]any, key string) (quality.Strategy, bool) {
	s, ok := m[key].(string)
	if !ok {
		return "", false
	}
	switch st := quality.Strategy(s); st {
	case quality.CombineMax, quality.CombineSum, quality.CombineUnion:
		return st, true
	}
	return "", false
}
