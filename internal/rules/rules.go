// Package rules defines the rule-evaluation capability the classification
// engine is built around: ordered rule sets over a chart fact base, an
// Evaluator interface, a reference evaluator whose condition language is
// expr, and a JSON spec compiler.
package rules

import (
	"fmt"
	"math"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"gyeokguk/internal/facts"
)

// ScoreMap maps namespaced score keys ("category.subtype") to signed values.
type ScoreMap map[string]float64

// Clone returns an independent copy. A nil map clones to an empty one.
func (m ScoreMap) Clone() ScoreMap {
	out := make(ScoreMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Emission is a structured payload a rule emits when it matches. One
// emission may name several targets; expansion into per-target detections
// happens downstream.
type Emission struct {
	Name      string              `json:"name"`
	Category  string              `json:"category,omitempty"`
	Targets   []string            `json:"targets,omitempty"`
	Positions map[string][]string `json:"positions,omitempty"`
	Weight    *float64            `json:"weight,omitempty"`
}

// Assertion is checked when its rule matches; a false outcome is a domain
// finding surfaced in the trace, not an error.
type Assertion struct {
	That    string `json:"that"`
	Explain string `json:"explain,omitempty"`
}

// Rule is one condition with effects: score deltas, emissions, and an
// optional assertion.
type Rule struct {
	ID     string             `json:"id"`
	When   string             `json:"when"`
	Score  map[string]float64 `json:"score,omitempty"`
	Emit   []Emission         `json:"emit,omitempty"`
	Assert *Assertion         `json:"assert,omitempty"`

	cond       *vm.Program
	assertCond *vm.Program
}

// RuleSet is an ordered, immutable list of compiled rules.
type RuleSet struct {
	Name  string
	Rules []Rule
}

// NewRuleSet compiles every rule condition and returns the immutable set.
// Condition compilation is the expensive step; sets are built once per
// configuration and cached by the policy layer.
func NewRuleSet(name string, rs []Rule) (*RuleSet, error) {
	compiled := make([]Rule, len(rs))
	for i, r := range rs {
		if r.ID == "" {
			return nil, fmt.Errorf("rule %d: missing id", i)
		}
		if r.When == "" {
			return nil, fmt.Errorf("rule %q: missing condition", r.ID)
		}
		prog, err := expr.Compile(r.When, expr.AllowUndefinedVariables())
		if err != nil {
			return nil, fmt.Errorf("rule %q: compile condition: %w", r.ID, err)
		}
		r.cond = prog
		if r.Assert != nil && r.Assert.That != "" {
			ap, err := expr.Compile(r.Assert.That, expr.AllowUndefinedVariables())
			if err != nil {
				return nil, fmt.Errorf("rule %q: compile assertion: %w", r.ID, err)
			}
			r.assertCond = ap
		}
		compiled[i] = r
	}
	return &RuleSet{Name: name, Rules: compiled}, nil
}

// AssertionFailure records one failed rule assertion verbatim.
type AssertionFailure struct {
	RuleID      string `json:"rule_id"`
	Explanation string `json:"explanation,omitempty"`
}

// Result is the outcome of evaluating a rule set against one chart.
type Result struct {
	Scores           ScoreMap           `json:"scores"`
	Matches          []string           `json:"matches,omitempty"`
	AssertionsFailed []AssertionFailure `json:"assertions_failed,omitempty"`
	Emits            []Emission         `json:"emits,omitempty"`
}

// Evaluator is the injected rule-evaluation capability. Implementations
// must be pure and re-entrant: the quality pipeline invokes the evaluator
// once per detection against a derived sub-chart. Evaluation never fails;
// a condition that cannot be decided counts as a non-match.
type Evaluator interface {
	Evaluate(rs *RuleSet, chart *facts.Chart, seed ScoreMap) Result
}

// sanitize removes non-finite score values so no score is ever NaN or Inf
// after evaluation.
func sanitize(m ScoreMap) {
	for k, v := range m {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			delete(m, k)
		}
	}
}
