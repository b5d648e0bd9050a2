package rules

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"gyeokguk/internal/facts"
)

func testChart() *facts.Chart {
	mult := 0.25
	return &facts.Chart{
		Pillars: map[string]facts.Pillar{
			facts.PillarDay: {Stem: "gap", Branch: "ja"},
		},
		Signals: map[string]map[string]float64{
			"samhap": {"wood": 0.9},
		},
		Multiplier: &mult,
	}
}

func mustRuleSet(t *testing.T, rs []Rule) *RuleSet {
	t.Helper()
	set, err := NewRuleSet("test", rs)
	if err != nil {
		t.Fatalf("NewRuleSet: %v", err)
	}
	return set
}

func TestEvaluateScoresAndMatches(t *testing.T) {
	set := mustRuleSet(t, []Rule{
		{ID: "wood", When: `signal("samhap", "wood") > 0.5`, Score: map[string]float64{"pattern.samhap.wood": 1.5}},
		{ID: "fire", When: `signal("samhap", "fire") > 0.5`, Score: map[string]float64{"pattern.samhap.fire": 1.0}},
		{ID: "day-stem", When: `stem("day") == "gap"`, Score: map[string]float64{"pattern.samhap.wood": 0.5}},
	})

	res := NewExprEvaluator().Evaluate(set, testChart(), nil)

	if diff := cmp.Diff([]string{"wood", "day-stem"}, res.Matches); diff != "" {
		t.Errorf("matches (-want +got):\n%s", diff)
	}
	want := ScoreMap{"pattern.samhap.wood": 2.0}
	if diff := cmp.Diff(want, res.Scores); diff != "" {
		t.Errorf("scores (-want +got):\n%s", diff)
	}
}

func TestEvaluateSeedScores(t *testing.T) {
	set := mustRuleSet(t, []Rule{
		{ID: "boost", When: `score("base.key") > 1`, Score: map[string]float64{"base.key": 1}},
	})
	seed := ScoreMap{"base.key": 2}

	res := NewExprEvaluator().Evaluate(set, testChart(), seed)
	if res.Scores["base.key"] != 3 {
		t.Errorf("seeded score = %f, want 3", res.Scores["base.key"])
	}
	if seed["base.key"] != 2 {
		t.Error("seed map must not be mutated")
	}
}

func TestEvaluateEmitsAndAssertions(t *testing.T) {
	set := mustRuleSet(t, []Rule{
		{
			ID:   "chung",
			When: "true",
			Emit: []Emission{{Name: "CHUNG", Targets: []string{"year-month"}}},
			Assert: &Assertion{
				That:    "multiplier > 0.5",
				Explain: "low chart quality",
			},
		},
	})

	res := NewExprEvaluator().Evaluate(set, testChart(), nil)
	if len(res.Emits) != 1 || res.Emits[0].Name != "CHUNG" {
		t.Errorf("emits = %+v, want one CHUNG", res.Emits)
	}
	// multiplier is 0.25, so the assertion fails and is surfaced verbatim.
	want := []AssertionFailure{{RuleID: "chung", Explanation: "low chart quality"}}
	if diff := cmp.Diff(want, res.AssertionsFailed); diff != "" {
		t.Errorf("assertion failures (-want +got):\n%s", diff)
	}
}

func TestEvaluateRuntimeErrorIsNonMatch(t *testing.T) {
	set := mustRuleSet(t, []Rule{
		{ID: "broken", When: "missing_var > 1", Score: map[string]float64{"x": 1}},
		{ID: "non-bool", When: `signal("samhap", "wood")`, Score: map[string]float64{"y": 1}},
		{ID: "fine", When: "true", Score: map[string]float64{"z": 1}},
	})

	res := NewExprEvaluator().Evaluate(set, testChart(), nil)
	want := ScoreMap{"z": 1}
	if diff := cmp.Diff(want, res.Scores); diff != "" {
		t.Errorf("scores (-want +got):\n%s", diff)
	}
}

func TestEvaluateDropsNonFiniteDeltas(t *testing.T) {
	set := mustRuleSet(t, []Rule{
		{ID: "nan", When: "true", Score: map[string]float64{"bad": math.NaN(), "good": 1}},
	})

	res := NewExprEvaluator().Evaluate(set, testChart(), nil)
	if _, ok := res.Scores["bad"]; ok {
		t.Error("NaN delta should be dropped")
	}
	if res.Scores["good"] != 1 {
		t.Errorf("good delta = %f, want 1", res.Scores["good"])
	}
}

func TestEvaluateHitEnvironment(t *testing.T) {
	set := mustRuleSet(t, []Rule{
		{ID: "on-target", When: `hit.name == "CHUNG" && hit.positions >= 2`, Score: map[string]float64{"penalty.HYEONG": 1}},
	})
	eval := NewExprEvaluator()

	plain := eval.Evaluate(set, testChart(), nil)
	if len(plain.Matches) != 0 {
		t.Error("hit rule must not match without an attached hit")
	}

	sub := testChart().WithHit(facts.Hit{Name: "CHUNG", Positions: []string{"year", "month"}})
	res := eval.Evaluate(set, sub, nil)
	if res.Scores["penalty.HYEONG"] != 1 {
		t.Errorf("hit rule did not fire: %v", res.Scores)
	}
}

func TestEvaluateNilAndEmpty(t *testing.T) {
	eval := NewExprEvaluator()
	res := eval.Evaluate(nil, testChart(), ScoreMap{"k": 1})
	if diff := cmp.Diff(ScoreMap{"k": 1}, res.Scores); diff != "" {
		t.Errorf("nil rule set should pass the seed through:\n%s", diff)
	}

	res = eval.Evaluate(mustRuleSet(t, []Rule{{ID: "x", When: "true"}}), nil, nil)
	if len(res.Scores) != 0 {
		t.Errorf("nil chart: scores = %v, want empty", res.Scores)
	}
}

func TestNewRuleSetRejectsBadRules(t *testing.T) {
	tests := []struct {
		name  string
		rules []Rule
	}{
		{"missing id", []Rule{{When: "true"}}},
		{"missing condition", []Rule{{ID: "x"}}},
		{"unparsable condition", []Rule{{ID: "x", When: "((("}}},
		{"unparsable assertion", []Rule{{ID: "x", When: "true", Assert: &Assertion{That: "((("}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRuleSet("bad", tt.rules); err == nil {
				t.Error("expected error")
			}
		})
	}
}
