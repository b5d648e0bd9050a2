package quality

import "gyeokguk/internal/rules"

// Detection is one raw hit expanded from a rule emission, plus the quality
// fields attached by the scoring pipeline. Quality fields are written
// exactly once; a detection is local to one engine call.
type Detection struct {
	Name      string   `json:"name"`
	Category  string   `json:"category,omitempty"`
	Target    string   `json:"target,omitempty"`
	Positions []string `json:"positions,omitempty"`
	Explicit  *float64 `json:"explicit_weight,omitempty"`

	// Attached by Scorer.Score.
	Applied       bool    `json:"quality_applied"`
	Parts         []Part  `json:"penalty_parts,omitempty"`
	Penalty       float64 `json:"penalty"`
	QualityWeight float64 `json:"quality_weight"`
	Label         string  `json:"label"`
	Invalidated   bool    `json:"invalidated"`
	Active        bool    `json:"active"`
	Contribution  float64 `json:"contribution"`
}

// BaseWeight is the detection's pre-quality contribution: 1 for a
// targetless detection, otherwise at least 1 and growing with the number of
// matched positions.
func (d *Detection) BaseWeight() float64 {
	if d.Target == "" {
		return 1
	}
	if n := len(d.Positions); n > 1 {
		return float64(n)
	}
	return 1
}

// Expand fans one emission out into independent detections, one per named
// target; an emission with no targets yields a single targetless detection.
func Expand(e rules.Emission) []Detection {
	if len(e.Targets) == 0 {
		return []Detection{{
			Name:     e.Name,
			Category: e.Category,
			Explicit: e.Weight,
		}}
	}
	out := make([]Detection, 0, len(e.Targets))
	for _, target := range e.Targets {
		out = append(out, Detection{
			Name:      e.Name,
			Category:  e.Category,
			Target:    target,
			Positions: e.Positions[target],
			Explicit:  e.Weight,
		})
	}
	return out
}
