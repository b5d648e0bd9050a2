package rules

import (
	"log/slog"
	"math"

	"github.com/expr-lang/expr/vm"

	"gyeokguk/internal/facts"
	"gyeokguk/internal/logging"
)

// ExprEvaluator is the reference Evaluator. Rule conditions are expr
// programs over a small chart environment: pillar lookups, signal
// selectors, the quality multiplier, seed scores, and the attached hit on
// derived sub-charts.
type ExprEvaluator struct {
	log *slog.Logger
}

// NewExprEvaluator returns the reference evaluator.
func NewExprEvaluator() *ExprEvaluator {
	return &ExprEvaluator{log: logging.New("rules")}
}

// Evaluate runs every rule in order against the chart. Matched rules apply
// their score deltas on top of the seed scores, queue their emissions, and
// check their assertions. A condition that errors at runtime or yields a
// non-bool counts as a non-match; non-finite deltas are dropped.
func (e *ExprEvaluator) Evaluate(rs *RuleSet, chart *facts.Chart, seed ScoreMap) Result {
	res := Result{Scores: seed.Clone()}
	if rs == nil || len(rs.Rules) == 0 {
		return res
	}

	env := chartEnv(chart, seed)
	for i := range rs.Rules {
		r := &rs.Rules[i]
		if !e.matches(r.ID, r.cond, env) {
			continue
		}
		res.Matches = append(res.Matches, r.ID)
		for key, delta := range r.Score {
			if math.IsNaN(delta) || math.IsInf(delta, 0) {
				e.log.Debug("dropping non-finite score delta", "rule", r.ID, "key", key)
				continue
			}
			res.Scores[key] += delta
		}
		res.Emits = append(res.Emits, r.Emit...)
		if r.assertCond != nil && !e.matches(r.ID, r.assertCond, env) {
			res.AssertionsFailed = append(res.AssertionsFailed, AssertionFailure{
				RuleID:      r.ID,
				Explanation: r.Assert.Explain,
			})
		}
	}

	sanitize(res.Scores)
	return res
}

func (e *ExprEvaluator) matches(ruleID string, prog *vm.Program, env map[string]any) bool {
	if prog == nil {
		return false
	}
	out, err := vm.Run(prog, env)
	if err != nil {
		e.log.Debug("condition errored, treating as non-match", "rule", ruleID, "err", err)
		return false
	}
	b, ok := out.(bool)
	if !ok {
		e.log.Debug("condition yielded non-bool, treating as non-match", "rule", ruleID)
		return false
	}
	return b
}

// chartEnv builds the expr environment for one chart. Selector functions
// keep the fact base's neutral-default contract: absent data reads as 0
// (or 0.5 for the multiplier), never as an error.
func chartEnv(chart *facts.Chart, seed ScoreMap) map[string]any {
	hit := map[string]any{
		"name":      "",
		"category":  "",
		"target":    "",
		"positions": 0,
	}
	if chart != nil && chart.Hit != nil {
		hit["name"] = chart.Hit.Name
		hit["category"] = chart.Hit.Category
		hit["target"] = chart.Hit.Target
		hit["positions"] = len(chart.Hit.Positions)
	}
	return map[string]any{
		"stem": func(pos string) string {
			p, _ := chart.Pillar(pos)
			return p.Stem
		},
		"branch": func(pos string) string {
			p, _ := chart.Pillar(pos)
			return p.Branch
		},
		"signal": func(group, field string) float64 {
			return chart.Signal(group, field)
		},
		"multiplier": chart.QualityMultiplier(),
		"score": func(key string) float64 {
			return seed[key]
		},
		"hit": hit,
	}
}
