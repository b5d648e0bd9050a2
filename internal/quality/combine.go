// Package quality turns the independent adverse conditions found on one
// detection into a single damage multiplier in [0,1]: a penalty combinator,
// a four-layer model resolver (base, category, name, explicit), and the
// scoring pipeline that applies them.
package quality

// Strategy selects how independent penalty parts are reduced to one value.
type Strategy string

const (
	// CombineMax takes the single worst penalty.
	CombineMax Strategy = "max"
	// CombineSum adds penalties, saturating at 1.
	CombineSum Strategy = "sum"
	// CombineUnion treats penalties as independent event probabilities.
	CombineUnion Strategy = "union"
)

// Part is one adverse condition: a kind tag and a penalty value in [0,1].
type Part struct {
	Kind  string  `json:"kind"`
	Value float64 `json:"value"`
}

// Combine reduces parts to one penalty in [0,1]. Out-of-range parts are
// clamped before combination; an empty list combines to 0. Unknown
// strategies fall back to CombineMax.
func Combine(strategy Strategy, parts []Part) float64 {
	if len(parts) == 0 {
		return 0
	}
	switch strategy {
	case CombineSum:
		sum := 0.0
		for _, p := range parts {
			sum += clamp01(p.Value)
		}
		return clamp01(sum)
	case CombineUnion:
		keep := 1.0
		for _, p := range parts {
			keep *= 1 - clamp01(p.Value)
		}
		return 1 - keep
	default:
		max := 0.0
		for _, p := range parts {
			if v := clamp01(p.Value); v > max {
				max = v
			}
		}
		return max
	}
}

func clamp01(v float64) float64 {
	switch {
	case v != v: // NaN
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
