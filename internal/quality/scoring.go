package quality

import (
	"log/slog"
	"sort"
	"strings"

	"gyeokguk/internal/facts"
	"gyeokguk/internal/logging"
	"gyeokguk/internal/rules"
)

// penaltyPrefix namespaces the score keys a penalty rule set reports
// adverse conditions under, e.g. "penalty.CHUNG".
const penaltyPrefix = "penalty."

// Scorer attaches quality fields to detections. Penalty parts come from
// delegating to the rule evaluator against a sub-chart embedding the
// detection; each reported condition kind is weighted by the resolved
// model before combination.
type Scorer struct {
	models    *ModelSet
	eval      rules.Evaluator
	penalties *rules.RuleSet
	log       *slog.Logger
}

// NewScorer builds a scorer. A nil penalty rule set or evaluator is valid:
// no parts are ever collected and every applied detection keeps full quality.
func NewScorer(models *ModelSet, eval rules.Evaluator, penalties *rules.RuleSet) *Scorer {
	if models == nil {
		models = &ModelSet{}
	}
	return &Scorer{models: models, eval: eval, penalties: penalties, log: logging.New("quality")}
}

// Score resolves the model stack for the detection, collects and combines
// its penalty parts, and writes the quality fields. Detections the model
// does not apply to (including those carrying an explicit weight) still get
// the threshold treatment.
func (s *Scorer) Score(chart *facts.Chart, d *Detection) {
	resolved := s.models.Resolve(d.Name, d.Category, d.Explicit)
	d.Applied = resolved.Apply

	switch {
	case d.Explicit != nil:
		d.QualityWeight = clamp01(*d.Explicit)
	case resolved.Apply:
		d.Parts = s.collectParts(chart, d, &resolved.Model)
		d.Penalty = Combine(resolved.Combine, d.Parts)
		d.QualityWeight = clamp01(1 - d.Penalty)
	default:
		d.QualityWeight = 1
	}

	if d.QualityWeight < resolved.WeakThreshold {
		d.Label = "weak"
	} else {
		d.Label = "full"
	}
	d.Invalidated = d.QualityWeight <= resolved.InvalidateThreshold
	d.Active = !d.Invalidated
	d.Contribution = d.BaseWeight() * d.QualityWeight

	s.log.Debug("scored detection",
		"name", d.Name, "target", d.Target,
		"penalty", d.Penalty, "quality", d.QualityWeight, "label", d.Label)
}

// collectParts evaluates the penalty rule set against a sub-chart carrying
// the detection, then turns every "penalty.<KIND>" score into a part scaled
// by the model's weight for that kind. Kinds without a weight contribute
// nothing. Parts come back sorted by kind so traces are deterministic.
func (s *Scorer) collectParts(chart *facts.Chart, d *Detection, m *Model) []Part {
	if s.eval == nil || s.penalties == nil {
		return nil
	}
	sub := chart.WithHit(facts.Hit{
		Name:      d.Name,
		Category:  d.Category,
		Target:    d.Target,
		Positions: d.Positions,
	})
	res := s.eval.Evaluate(s.penalties, sub, nil)

	var parts []Part
	for key, raw := range res.Scores {
		kind, ok := strings.CutPrefix(key, penaltyPrefix)
		if !ok || kind == "" {
			continue
		}
		weight, ok := m.Weights[kind]
		if !ok {
			continue
		}
		parts = append(parts, Part{Kind: kind, Value: clamp01(raw) * clamp01(weight)})
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].Kind < parts[j].Kind })
	return parts
}
